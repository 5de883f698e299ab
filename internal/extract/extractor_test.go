package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestIsSupported(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"lecture.pdf", true},
		{"LECTURE.PDF", true},
		{"notes.txt", false},
		{"slides.pptx", false},
		{"pdf", false},
		{"archive.pdf.zip", false},
	}
	for _, tt := range tests {
		if got := IsSupported(tt.name); got != tt.want {
			t.Errorf("IsSupported(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExtractBytes_rejectsNonPDF(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractBytes([]byte("plain text"), "notes.txt")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractBytes_invalidPDF(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractBytes([]byte("not a pdf at all"), "broken.pdf")
	if err == nil {
		t.Fatal("expected error for corrupt PDF")
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Error("corrupt PDF should not be reported as unsupported format")
	}
}

func TestExtract_rejectsBeforeReading(t *testing.T) {
	e := NewExtractor()
	// The file does not exist; the extension check must fail first.
	_, err := e.Extract(filepath.Join(t.TempDir(), "missing.docx"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtract_missingFile(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract(filepath.Join(t.TempDir(), "missing.pdf"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist error", err)
	}
}
