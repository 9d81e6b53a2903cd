package cmd

import "testing"

func TestCommandsRegistered(t *testing.T) {
	want := []string{"ingest", "query", "list", "delete", "update", "status", "cleanup", "watch", "unwatch", "version"}

	have := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("short", 10); got != "short" {
		t.Errorf("snippet = %q", got)
	}
	if got := snippet("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("snippet = %q", got)
	}
}
