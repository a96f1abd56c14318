package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

type parseFunc func(data []byte) (string, error)

var parsers = map[string]parseFunc{
	".pdf":      parsePDF,
	".md":       parseMarkdown,
	".markdown": parseMarkdown,
	".txt":      parseText,
}

func Supported(filename string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Parse extracts plain text from an uploaded file, picking the parser by
// file extension.
func Parse(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := parsers[ext]
	if !ok {
		return "", fmt.Errorf("%w: unsupported file type %q", appErr.ErrInvalid, ext)
	}
	text, err := fn(data)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no text found in %s", appErr.ErrInvalid, filename)
	}
	return text, nil
}

func parseText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text file is not valid utf-8", appErr.ErrInvalid)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}
