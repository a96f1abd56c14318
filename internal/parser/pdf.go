package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

func parsePDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed cross reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", appErr.ErrInvalid, r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", appErr.ErrInvalid, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extract pdf text: %w", appErr.ErrInvalid, err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("%w: read pdf text: %w", appErr.ErrInvalid, err)
	}
	return strings.ToValidUTF8(sb.String(), ""), nil
}
