package render

import (
	"bytes"
	"fmt"
)

// pdfMagic is the header every PDF byte stream starts with.
var pdfMagic = []byte("%PDF-")

// TemplateInvalidError means the bytes are not a PDF at all.
type TemplateInvalidError struct {
	Header []byte
}

func (e *TemplateInvalidError) Error() string {
	return fmt.Sprintf("template is not a PDF: header %q", e.Header)
}

// TemplateLoadError means the bytes look like a PDF but could not be parsed.
type TemplateLoadError struct {
	Err error
}

func (e *TemplateLoadError) Error() string {
	return fmt.Sprintf("failed to load PDF template: %v", e.Err)
}

func (e *TemplateLoadError) Unwrap() error { return e.Err }

// CheckHeader returns a *TemplateInvalidError unless b starts with %PDF-.
func CheckHeader(b []byte) error {
	if bytes.HasPrefix(b, pdfMagic) {
		return nil
	}
	n := len(b)
	if n > len(pdfMagic) {
		n = len(pdfMagic)
	}
	return &TemplateInvalidError{Header: append([]byte(nil), b[:n]...)}
}
