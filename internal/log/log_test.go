package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

	logger.Info("chunk inserted", "file_path", "/tmp/a.md")

	out := buf.String()
	if !strings.Contains(out, "chunk inserted") {
		t.Errorf("missing message in output: %s", out)
	}
	if !strings.Contains(out, "file_path=/tmp/a.md") {
		t.Errorf("missing attribute in output: %s", out)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("json line", "n", 3)

	if !strings.Contains(buf.String(), `"msg":"json line"`) {
		t.Errorf("expected JSON output, got: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Debug("hidden")
	logger.Info("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should be filtered at info level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("info record should pass")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{})

	logger.With("component", "retriever").Info("searching")

	if !strings.Contains(buf.String(), "component=retriever") {
		t.Errorf("expected component attribute, got: %s", buf.String())
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("never seen")
}
