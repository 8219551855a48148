// internal/api/error_codes.go
package api

import apperrors "github.com/Corphon/MVScenePlanner/internal/errors"

// API错误代码常量。领域错误的代码来自 errors 包
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorValidation    = apperrors.CodeValidation
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 项目与场景
	ErrorProjectNotFound   = apperrors.CodeProjectNotFound
	ErrorSceneNotFound     = apperrors.CodeSceneNotFound
	ErrorReferenceNotFound = apperrors.CodeReferenceNotFound

	// 导入
	ErrorFileMissing       = "FILE_MISSING"
	ErrorFileTooLarge      = "FILE_TOO_LARGE"
	ErrorUnsupportedFormat = apperrors.CodeUnsupportedFormat
	ErrorEmptyImport       = apperrors.CodeEmptyImport
)
