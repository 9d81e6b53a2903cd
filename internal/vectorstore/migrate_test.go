package vectorstore

import (
	"reflect"
	"testing"
	"time"
)

func TestNormalizeLegacyRow(t *testing.T) {
	raw := `{
		"id": "abc-123",
		"file_path": "/docs/readme.md",
		"chunk_index": 2,
		"content": "hello",
		"embedding": "[0.5,0.25,0.125]",
		"file_name": "readme.md",
		"file_size": 42,
		"tags": "go, rag ,",
		"created_at": "2024-03-01T10:00:00Z"
	}`

	ch, err := normalizeLegacyRow(raw, 3)
	if err != nil {
		t.Fatalf("normalizeLegacyRow: %v", err)
	}

	if ch.ID != "abc-123" || ch.FilePath != "/docs/readme.md" || ch.ChunkIndex != 2 {
		t.Errorf("identity fields wrong: %+v", ch)
	}
	if want := []float32{0.5, 0.25, 0.125}; !reflect.DeepEqual(ch.Vector, want) {
		t.Errorf("vector = %v, want %v", ch.Vector, want)
	}

	// Legacy comma-joined tags become a clean list.
	if want := []string{"go", "rag"}; !reflect.DeepEqual(ch.Metadata.Tags, want) {
		t.Errorf("tags = %v, want %v", ch.Metadata.Tags, want)
	}
	// Missing memory_type defaults to file.
	if ch.Metadata.MemoryType != MemoryTypeFile {
		t.Errorf("memory_type = %q, want %q", ch.Metadata.MemoryType, MemoryTypeFile)
	}
	// Missing updated_at takes a current default, never zero.
	if ch.Metadata.UpdatedAt.IsZero() {
		t.Error("updated_at should default, not stay zero")
	}
	if got := ch.Metadata.CreatedAt; !got.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("created_at = %v", got)
	}
}

func TestNormalizeLegacyRowRejectsMissingID(t *testing.T) {
	if _, err := normalizeLegacyRow(`{"file_path": "/x"}`, 3); err == nil {
		t.Fatal("expected error for row without id")
	}
}

func TestJSONTags(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"array form", []any{"a", "b"}, []string{"a", "b"}},
		{"array with empties", []any{"a", "", "b"}, []string{"a", "b"}},
		{"legacy comma string", "x,y , z", []string{"x", "y", "z"}},
		{"empty string", "", []string{}},
		{"null", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jsonTags(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("jsonTags(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseVectorText(t *testing.T) {
	got, err := parseVectorText("[1,2,3]", 3)
	if err != nil {
		t.Fatalf("parseVectorText: %v", err)
	}
	if want := []float32{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Missing and wrong-length embeddings zero-fill instead of failing.
	for _, in := range []string{"", "[1,2]"} {
		got, err := parseVectorText(in, 3)
		if err != nil {
			t.Fatalf("parseVectorText(%q): %v", in, err)
		}
		if want := []float32{0, 0, 0}; !reflect.DeepEqual(got, want) {
			t.Errorf("parseVectorText(%q) = %v, want zeros", in, got)
		}
	}

	if _, err := parseVectorText("[1,x,3]", 3); err == nil {
		t.Error("expected error for malformed component")
	}
}
