package importer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Corphon/MVScenePlanner/internal/errors"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns the upload as UTF-8 text with "\n" line endings.
// Content that is not valid UTF-8 is read as Shift_JIS, the encoding Excel
// uses for CSV exports on Japanese systems.
func decodeText(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	if !utf8.Valid(content) {
		decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), content)
		if err != nil {
			return "", apperrors.NewIOError("file is neither UTF-8 nor Shift_JIS text", err)
		}
		content = decoded
	}

	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
