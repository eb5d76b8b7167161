package document

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/unalkalkan/podcaster/internal/apperrors"
)

// PageBreak separates pages in normalized markdown output
const PageBreak = "\n\n<!-- PageBreak -->\n\n"

var mediaTypeExtensions = map[string]string{
	"application/pdf":    "pdf",
	"text/plain":         "txt",
	"text/markdown":      "md",
	"text/x-markdown":    "md",
	"text/html":          "html",
	"text/csv":           "csv",
	"application/msword": "doc",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.ms-powerpoint":                                             "ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"application/vnd.ms-excel":                                                  "xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",

	"application/epub+zip":       "epub",
	"application/zip":            "zip",
	"application/vnd.ms-outlook": "msg",
	"image/jpeg":                 "jpg",
	"image/png":                  "png",
	"image/gif":                  "gif",
	"image/bmp":                  "bmp",
	"image/tiff":                 "tiff",
	"image/heif":                 "heif",
}

var extensionAliases = map[string]string{
	"jpeg":     "jpg",
	"htm":      "html",
	"markdown": "md",
	"tif":      "tiff",
	"text":     "txt",
}

// ResolveFileType maps a media type, file name or bare extension to a
// lowercase extension. It returns "" when nothing can be derived.
func ResolveFileType(mediaType string) string {
	s := strings.ToLower(strings.TrimSpace(mediaType))
	if s == "" {
		return ""
	}

	if strings.Contains(s, "/") {
		if parsed, _, err := mime.ParseMediaType(s); err == nil {
			s = parsed
		}
		if ext, ok := mediaTypeExtensions[s]; ok {
			return ext
		}
		return ""
	}

	if ext := filepath.Ext(s); ext != "" {
		s = ext
	}
	s = strings.TrimPrefix(s, ".")
	if alias, ok := extensionAliases[s]; ok {
		return alias
	}
	return s
}

// IsTextType reports whether the file type is decoded locally as UTF-8 text
func IsTextType(fileType string) bool {
	return fileType == "txt" || fileType == "md"
}

// checkSupported rejects file types outside the provider's declared set
func checkSupported(supported []string, mediaType string) (string, error) {
	fileType := ResolveFileType(mediaType)
	for _, s := range supported {
		if s == fileType {
			return fileType, nil
		}
	}
	if fileType == "" {
		fileType = mediaType
	}
	return "", apperrors.UnsupportedFormat(fmt.Sprintf("file type '%s' is not supported (supported: %s)", fileType, strings.Join(supported, ", ")))
}

// DecodeText decodes bytes as UTF-8, dropping a BOM, replacing invalid
// sequences and normalizing line endings.
func DecodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text
}
