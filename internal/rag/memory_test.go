package rag

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/koopa0/localrag/internal/errs"
)

func TestUpdateMemoryMissingKey(t *testing.T) {
	sys, _, _ := testSystem()

	err := sys.UpdateMemory(context.Background(), "no-such-memory", MemoryUpdate{Append: "x"})
	var verr *errs.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateMemoryTextEdits(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		update MemoryUpdate
		want   string
	}{
		{"append", MemoryUpdate{Append: " More."}, "Original. More."},
		{"prepend", MemoryUpdate{Prepend: "Intro. "}, "Intro. Original."},
		{"replace", MemoryUpdate{Replace: "Rewritten."}, "Rewritten."},
		{"replace wins over append", MemoryUpdate{Replace: "Rewritten.", Append: " ignored"}, "Rewritten."},
		{"append and prepend combine", MemoryUpdate{Prepend: "A. ", Append: " Z."}, "A. Original. Z."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys, store, _ := testSystem()
			if err := sys.IngestText(ctx, "note", "Original.", IngestOptions{}); err != nil {
				t.Fatalf("IngestText: %v", err)
			}

			if err := sys.UpdateMemory(ctx, "note", tt.update); err != nil {
				t.Fatalf("UpdateMemory: %v", err)
			}

			chunks, _ := store.GetChunksByPath(ctx, "memory://note")
			if len(chunks) != 1 {
				t.Fatalf("expected 1 chunk, got %d", len(chunks))
			}
			if chunks[0].Text != tt.want {
				t.Errorf("text = %q, want %q", chunks[0].Text, tt.want)
			}
		})
	}
}

func TestUpdateMemoryReembedsWholeDocument(t *testing.T) {
	sys, store, emb := testSystem()
	ctx := context.Background()

	if err := sys.IngestText(ctx, "note", "Original.", IngestOptions{}); err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	before := emb.callCount()

	if err := sys.UpdateMemory(ctx, "note", MemoryUpdate{Append: " Appended."}); err != nil {
		t.Fatalf("UpdateMemory: %v", err)
	}
	if emb.callCount() == before {
		t.Error("update did not re-embed")
	}

	deletes, inserts := store.counts()
	if deletes != 2 || inserts != 2 {
		t.Errorf("deletes/inserts = %d/%d, want 2/2", deletes, inserts)
	}
}

func TestMergeTags(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		replace []string
		add     []string
		remove  []string
		want    []string
	}{
		{"no edits", []string{"a", "b"}, nil, nil, nil, []string{"a", "b"}},
		{"add", []string{"a"}, nil, []string{"b", "a"}, nil, []string{"a", "b"}},
		{"remove", []string{"a", "b"}, nil, nil, []string{"a"}, []string{"b"}},
		{"replace", []string{"a"}, []string{"x", "y"}, nil, nil, []string{"x", "y"}},
		{"replace then add and remove", []string{"a"}, []string{"x", "y"}, []string{"z"}, []string{"x"}, []string{"y", "z"}},
		{"replace with empty clears", []string{"a"}, []string{}, nil, nil, []string{}},
		{"dedupe", []string{"a", "a"}, nil, []string{"a"}, nil, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeTags(tt.current, tt.replace, tt.add, tt.remove)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mergeTags = %v, want %v", got, tt.want)
			}
		})
	}
}
