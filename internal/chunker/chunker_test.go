package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkTextEmpty(t *testing.T) {
	c := New(200, 50, 50)

	for _, input := range []string{"", "   ", "\n\t\n"} {
		if got := c.ChunkText(input); len(got) != 0 {
			t.Errorf("ChunkText(%q) = %d chunks, want 0", input, len(got))
		}
	}
}

func TestChunkTextShortDocumentKept(t *testing.T) {
	c := New(200, 50, 50)

	// Shorter than the noise floor, but a single-chunk document is never dropped.
	got := c.ChunkText("tiny note")
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if got[0].Text != "tiny note" || got[0].Index != 0 {
		t.Errorf("chunk = %+v", got[0])
	}
}

func TestChunkTextSingleChunkEqualsInput(t *testing.T) {
	c := New(200, 50, 50)
	input := "  " + strings.Repeat("word ", 30) + " "

	got := c.ChunkText(input)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if got[0].Text != strings.TrimSpace(input) {
		t.Error("single chunk must equal trimmed input")
	}
}

func TestChunkTextOverlappingWindows(t *testing.T) {
	c := New(200, 50, 50)
	// 1000 characters of sentence-ish text.
	input := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 23)[:1000]

	got := c.ChunkText(input)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}

	for i, ch := range got {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d, want strictly increasing from 0", i, ch.Index)
		}
		if len(ch.Text) > 200 {
			t.Errorf("chunk %d has length %d > chunk size", i, len(ch.Text))
		}
	}

	// Adjacent chunks share text via the overlap.
	tail := got[0].Text[len(got[0].Text)-20:]
	if !strings.Contains(input, tail) {
		t.Fatal("sanity: tail must come from input")
	}
}

func TestChunkTextNoiseFloor(t *testing.T) {
	c := New(100, 10, 50)
	// Paragraphs of 30 chars separated by blank lines: all pieces below the
	// floor once the document needs splitting.
	para := strings.Repeat("x", 30)
	input := strings.Join([]string{para, para, para, para, para, para}, "\n\n")

	got := c.ChunkText(input)
	for _, ch := range got {
		if len(ch.Text) < 50 {
			t.Errorf("chunk %q shorter than noise floor survived", ch.Text)
		}
	}
}

func TestChunkTextIndexContiguityAfterFiltering(t *testing.T) {
	c := New(120, 20, 50)
	input := strings.Repeat("A meaningful sentence that carries enough weight to stay. ", 20)

	got := c.ChunkText(input)
	for i, ch := range got {
		if ch.Index != i {
			t.Fatalf("index gap at position %d: got %d", i, ch.Index)
		}
	}
}

func TestChunkTextMultiByteHardCut(t *testing.T) {
	c := New(100, 10, 10)
	// CJK prose has no separator bytes, so every cut is a hard cut and each
	// rune spans three bytes. No chunk may end up with a torn rune.
	input := strings.Repeat("漢字による長い文章", 40)

	got := c.ChunkText(input)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, ch := range got {
		if !utf8.ValidString(ch.Text) {
			t.Errorf("chunk %d contains invalid UTF-8: %q", i, ch.Text)
		}
	}
}

func TestNewClampsBadConfig(t *testing.T) {
	c := New(0, -5, -1)
	if c.chunkSize != DefaultChunkSize || c.overlap != 0 || c.minLength != 0 {
		t.Errorf("clamping failed: %+v", c)
	}

	c = New(100, 100, 0)
	if c.overlap != 50 {
		t.Errorf("overlap >= size should clamp to half, got %d", c.overlap)
	}
}
