package importer

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
	"github.com/h2non/filetype"
)

// Kind is the declared layout of an import file.
type Kind string

const (
	KindLineText  Kind = "line-text"
	KindDelimited Kind = "delimited"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindLineText || k == KindDelimited
}

// AllowedExtensions are the upload extensions accepted for scene import.
var AllowedExtensions = []string{".txt", ".csv", ".xlsx", ".xls"}

// KindForFilename picks the parse mode from the file extension. Spreadsheet
// extensions are read as comma separated text.
func KindForFilename(name string) (Kind, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt":
		return KindLineText, nil
	case ".csv", ".xlsx", ".xls":
		return KindDelimited, nil
	default:
		return "", apperrors.NewUnsupportedFormatError(
			fmt.Sprintf("unsupported file type %q, allowed: %s", ext, strings.Join(AllowedExtensions, ", ")))
	}
}

// sniffLen matches the header size filetype inspects.
const sniffLen = 8192

// Sniff rejects uploads whose bytes are a known binary format. Only content
// that does not look like text is checked, since some magic numbers are
// plain ASCII ("BM" for bitmaps) and would match ordinary lyrics.
func Sniff(content []byte) error {
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) < 0 && utf8.Valid(head) {
		return nil
	}

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil
	}

	if filetype.IsDocument(head) || filetype.IsArchive(head) {
		return apperrors.NewUnsupportedFormatError(
			fmt.Sprintf("binary %s workbook cannot be imported, save it as CSV first", kind.Extension))
	}
	return apperrors.NewUnsupportedFormatError(
		fmt.Sprintf("file content is %s, expected text", kind.MIME.Value))
}
