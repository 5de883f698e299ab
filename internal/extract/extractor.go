// Package extract provides text extraction for indexable documents. Only PDF is accepted.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned for inputs that are not PDF documents.
var ErrUnsupportedFormat = errors.New("file must be a PDF")

// TextExtractor turns raw document bytes into plain text.
type TextExtractor interface {
	ExtractBytes(content []byte, name string) (string, error)
}

// Extractor extracts plain text from PDF files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// IsSupported reports whether name has an accepted document extension.
func IsSupported(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	if !IsSupported(path) {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, path)
}

// ExtractBytes extracts text from content. name is only used to check the format.
// Each page's text is followed by a newline.
func (e *Extractor) ExtractBytes(content []byte, name string) (string, error) {
	if !IsSupported(name) {
		return "", fmt.Errorf("%s: %w", filepath.Base(name), ErrUnsupportedFormat)
	}
	text, err := extractPDF(content)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text, nil
}
