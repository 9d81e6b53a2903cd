package rag

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/koopa0/localrag/internal/errs"
)

// MemoryUpdate describes an in-place edit of a stored memory document.
// Exactly the set fields apply: Replace/Append/Prepend act on the
// reconstructed text; ReplaceTags wins over AddTags/RemoveTags, which then
// apply to whatever list results.
type MemoryUpdate struct {
	Replace string
	Append  string
	Prepend string

	ReplaceTags []string
	AddTags     []string
	RemoveTags  []string
}

// UpdateMemory edits a memory document: it reconstructs the full text from
// the stored chunks in index order, applies the text and tag edits, then
// re-chunks and re-embeds the whole document. Fails if the key does not
// exist.
func (s *System) UpdateMemory(ctx context.Context, label string, update MemoryUpdate) error {
	key := label
	if !strings.Contains(key, "://") {
		if !labelPattern.MatchString(label) {
			return errs.Validation("label", "must contain only word characters, dots and hyphens, got %q", label)
		}
		key = memoryKeyPrefix + label
	}

	existing, err := s.store.GetChunksByPath(ctx, key)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return errs.Validation("label", "memory %q does not exist", label)
	}

	sort.Slice(existing, func(i, j int) bool {
		return existing[i].ChunkIndex < existing[j].ChunkIndex
	})
	var sb strings.Builder
	for _, ch := range existing {
		sb.WriteString(ch.Text)
	}
	text := sb.String()

	switch {
	case update.Replace != "":
		text = update.Replace
	default:
		if update.Prepend != "" {
			text = update.Prepend + text
		}
		if update.Append != "" {
			text = text + update.Append
		}
	}

	meta := existing[0].Metadata
	meta.Tags = mergeTags(meta.Tags, update.ReplaceTags, update.AddTags, update.RemoveTags)
	meta.FileSize = int64(len(text))

	return s.replaceDocument(ctx, key, text, meta)
}

// mergeTags applies tag edits: replace first (when given), then add, then
// remove. Duplicates never survive.
func mergeTags(current, replace, add, remove []string) []string {
	tags := current
	if replace != nil {
		tags = replace
	}

	out := make([]string, 0, len(tags)+len(add))
	seen := make(map[string]bool, len(tags)+len(add))
	for _, t := range tags {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range add {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	if len(remove) > 0 {
		out = slices.DeleteFunc(out, func(t string) bool {
			return slices.Contains(remove, t)
		})
	}
	return out
}
