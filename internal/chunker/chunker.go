// Package chunker splits raw document text into overlapping, size-bounded
// chunks suitable for embedding.
//
// The splitter prefers natural boundaries (paragraph, line, sentence, word)
// near the size limit and carries a configurable overlap between adjacent
// chunks so context is not lost at the seams. Chunks below a minimum length
// are treated as noise (headers, page numbers) and dropped — unless the whole
// document fits in a single chunk, which is always kept so short documents
// survive ingestion.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Defaults mirror the engine configuration.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 100
	DefaultMinLength = 50
)

// separators, in preference order, used to find a clean cut near the limit.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Chunk is one piece of a document. Index is the 0-based position within the
// document; after noise filtering indices are renumbered to stay contiguous.
type Chunk struct {
	Text  string
	Index int
}

// Chunker splits text into chunks.
type Chunker struct {
	chunkSize int
	overlap   int
	minLength int
}

// New creates a Chunker. Non-positive size falls back to the default; overlap
// is clamped below the chunk size.
func New(chunkSize, overlap, minLength int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	if minLength < 0 {
		minLength = 0
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap, minLength: minLength}
}

// ChunkText splits text into ordered chunks.
//
// Empty or whitespace-only input yields no chunks. A document that fits in one
// chunk is returned as-is regardless of the noise floor. For multi-chunk
// documents, pieces shorter than the minimum length are dropped and the
// remaining chunks renumbered from 0.
func (c *Chunker) ChunkText(text string) []Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if len(trimmed) <= c.chunkSize {
		return []Chunk{{Text: trimmed, Index: 0}}
	}

	var chunks []Chunk
	start := 0
	for start < len(trimmed) {
		end := start + c.chunkSize
		if end >= len(trimmed) {
			end = len(trimmed)
		} else {
			end = c.cutAt(trimmed, start, end)
		}

		piece := strings.TrimSpace(trimmed[start:end])
		if len(piece) >= c.minLength {
			chunks = append(chunks, Chunk{Text: piece, Index: len(chunks)})
		}

		if end == len(trimmed) {
			break
		}

		next := alignRune(trimmed, end-c.overlap)
		if next <= start {
			// Overlap would stall the scan on pathological input.
			_, size := utf8.DecodeRuneInString(trimmed[start:])
			next = start + size
		}
		start = next
	}

	return chunks
}

// cutAt finds the cleanest cut position in text[start:limit], scanning the
// separator hierarchy from coarsest to finest. The cut must land in the second
// half of the window so chunks stay reasonably sized. Falls back to a hard cut
// at the limit when no separator qualifies.
func (c *Chunker) cutAt(text string, start, limit int) int {
	window := text[start:limit]
	half := len(window) / 2

	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx > half {
			return start + idx + len(sep)
		}
	}
	// Hard cuts must not land inside a multi-byte rune.
	return alignRune(text, limit)
}

// alignRune backs a byte offset up to the nearest rune start.
func alignRune(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
