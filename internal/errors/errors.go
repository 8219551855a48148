// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"

	// 导入相关错误类型
	ErrorTypeIO                ErrorType = "io_error"
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	ErrorTypeEmptyImport       ErrorType = "empty_import"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码

	// Subject is the identifier the error is about (a scene or project ID), if any.
	Subject string
	// Details carries non-fatal context, e.g. the row warnings of an empty import.
	Details []string
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewIOError 创建读取/写入失败错误
func NewIOError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeIO, message, originalError)
}

// NewUnsupportedFormatError 创建不支持的文件格式错误
func NewUnsupportedFormatError(message string) *AppError {
	return NewAppError(ErrorTypeUnsupportedFormat, message, nil)
}

// NewEmptyImportError reports an import that produced no scenes. The
// accumulated row warnings travel with it.
func NewEmptyImportError(warnings []string) *AppError {
	e := NewAppError(ErrorTypeEmptyImport, "nothing to import", nil)
	e.Details = append([]string(nil), warnings...)
	return e
}

// NewSceneNotFoundError 创建场景不存在错误
func NewSceneNotFoundError(sceneID string) *AppError {
	e := NewNotFoundError(fmt.Sprintf("scene not found: %s", sceneID), nil)
	e.Code = CodeSceneNotFound
	e.Subject = sceneID
	return e
}

// NewReferenceNotFoundError is returned when an insert names a reference
// scene that is not part of the project.
func NewReferenceNotFoundError(sceneID string) *AppError {
	e := NewNotFoundError(fmt.Sprintf("reference scene not found: %s", sceneID), nil)
	e.Code = CodeReferenceNotFound
	e.Subject = sceneID
	return e
}

// NewProjectNotFoundError 创建项目不存在错误
func NewProjectNotFoundError(projectID string) *AppError {
	e := NewNotFoundError(fmt.Sprintf("project not found: %s", projectID), nil)
	e.Code = CodeProjectNotFound
	e.Subject = projectID
	return e
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool {
	return hasType(err, ErrorTypeConflict)
}

// IsIOError 检查是否为IO错误
func IsIOError(err error) bool {
	return hasType(err, ErrorTypeIO)
}

// IsUnsupportedFormatError 检查是否为格式错误
func IsUnsupportedFormatError(err error) bool {
	return hasType(err, ErrorTypeUnsupportedFormat)
}

// IsEmptyImportError 检查是否为空导入
func IsEmptyImportError(err error) bool {
	return hasType(err, ErrorTypeEmptyImport)
}

// IsReferenceNotFoundError 检查是否为参考场景不存在
func IsReferenceNotFoundError(err error) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Code == CodeReferenceNotFound
	}
	return false
}

// As 提取错误链中的 AppError
func As(err error) (*AppError, bool) {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError, true
	}
	return nil, false
}

func hasType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

// 错误代码，AppError.Code 的取值
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeProcessing        = "PROCESSING_ERROR"
	CodeConflict          = "CONFLICT"
	CodeIO                = "IO_ERROR"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeEmptyImport       = "EMPTY_IMPORT"
	CodeUnknown           = "UNKNOWN_ERROR"

	CodeProjectNotFound   = "PROJECT_NOT_FOUND"
	CodeSceneNotFound     = "SCENE_NOT_FOUND"
	CodeReferenceNotFound = "REFERENCE_NOT_FOUND"
)

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return CodeValidation
	case ErrorTypeNotFound:
		return CodeNotFound
	case ErrorTypeError:
		return CodeProcessing
	case ErrorTypeConflict:
		return CodeConflict
	case ErrorTypeIO:
		return CodeIO
	case ErrorTypeUnsupportedFormat:
		return CodeUnsupportedFormat
	case ErrorTypeEmptyImport:
		return CodeEmptyImport
	default:
		return CodeUnknown
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
			Subject: appError.Subject,
			Details: appError.Details,
		}
	}

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}
