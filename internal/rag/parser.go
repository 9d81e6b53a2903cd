package rag

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/koopa0/localrag/internal/errs"
)

// maxFileSize caps how large a document the parser will read.
const maxFileSize = 10 << 20 // 10 MiB

// ParsedDocument is the parser's view of a file: extracted text plus the
// attributes worth carrying into metadata.
type ParsedDocument struct {
	Text     string
	Language string
	FileSize int64
}

// FileStats are the filesystem attributes used for change detection.
type FileStats struct {
	FileSize   int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// DocumentParser extracts text from files. Implementations return a
// ValidationError for unsupported formats or oversized files and a
// FileOperationError for I/O failures.
type DocumentParser interface {
	ParseFile(path string) (ParsedDocument, error)
	ValidateAndStat(path string) (FileStats, error)
	SupportedExtensions() []string
}

// languageByExtension maps supported file extensions to a language hint
// recorded in metadata.
var languageByExtension = map[string]string{
	".txt":  "text",
	".md":   "markdown",
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".html": "html",
	".css":  "css",
	".sh":   "shell",
	".sql":  "sql",
}

// TextParser reads plain-text formats directly. Binary formats are
// unsupported and rejected at validation time.
type TextParser struct{}

func NewTextParser() *TextParser { return &TextParser{} }

// SupportedExtensions lists the extensions ParseFile accepts.
func (p *TextParser) SupportedExtensions() []string {
	exts := make([]string, 0, len(languageByExtension))
	for ext := range languageByExtension {
		exts = append(exts, ext)
	}
	return exts
}

// ValidateAndStat checks that the file is a supported, reasonably sized
// regular file and returns its filesystem attributes.
func (p *TextParser) ValidateAndStat(path string) (FileStats, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := languageByExtension[ext]; !ok {
		return FileStats{}, errs.Validation("path", "unsupported file type %q", ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileStats{}, errs.FileOp("stat", path, err)
	}
	if info.IsDir() {
		return FileStats{}, errs.Validation("path", "%s is a directory", path)
	}
	if info.Size() > maxFileSize {
		return FileStats{}, errs.Validation("path", "file exceeds %d bytes", maxFileSize)
	}

	return FileStats{
		FileSize:   info.Size(),
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// ParseFile validates the file and reads its content as UTF-8 text.
func (p *TextParser) ParseFile(path string) (ParsedDocument, error) {
	stats, err := p.ValidateAndStat(path)
	if err != nil {
		return ParsedDocument{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ParsedDocument{}, errs.FileOp("read", path, err)
	}
	if !utf8.Valid(data) {
		return ParsedDocument{}, errs.Validation("path", "%s is not valid UTF-8 text", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	return ParsedDocument{
		Text:     string(data),
		Language: languageByExtension[ext],
		FileSize: stats.FileSize,
	}, nil
}
