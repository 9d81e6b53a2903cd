package rag

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/koopa0/localrag/internal/errs"
)

func TestParseFile(t *testing.T) {
	p := NewTextParser()
	dir := t.TempDir()

	path := filepath.Join(dir, "doc.md")
	content := "# Title\n\nSome markdown body."
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := p.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if doc.Text != content {
		t.Errorf("text = %q", doc.Text)
	}
	if doc.Language != "markdown" {
		t.Errorf("language = %q, want markdown", doc.Language)
	}
	if doc.FileSize != int64(len(content)) {
		t.Errorf("file size = %d, want %d", doc.FileSize, len(content))
	}
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	p := NewTextParser()
	path := filepath.Join(t.TempDir(), "binary.exe")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := p.ParseFile(path)
	var verr *errs.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseFileRejectsDirectory(t *testing.T) {
	p := NewTextParser()
	dir := filepath.Join(t.TempDir(), "sub.txt")
	if err := os.Mkdir(dir, 0o750); err != nil {
		t.Fatal(err)
	}

	_, err := p.ParseFile(dir)
	var verr *errs.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseFileRejectsInvalidUTF8(t *testing.T) {
	p := NewTextParser()
	path := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := p.ParseFile(path)
	var verr *errs.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateAndStatMissingFile(t *testing.T) {
	p := NewTextParser()
	_, err := p.ValidateAndStat(filepath.Join(t.TempDir(), "nope.txt"))
	var ferr *errs.FileOperationError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FileOperationError, got %v", err)
	}
}

func TestSupportedExtensionsIncludeCommonFormats(t *testing.T) {
	exts := NewTextParser().SupportedExtensions()
	have := make(map[string]bool, len(exts))
	for _, ext := range exts {
		have[ext] = true
	}
	for _, want := range []string{".txt", ".md", ".go"} {
		if !have[want] {
			t.Errorf("missing extension %s", want)
		}
	}
}
