package memory

import (
	"strings"
	"testing"
)

func TestAddAndHistory(t *testing.T) {
	mem := New(t.TempDir(), 50, 30)

	mem.Add("owner", RoleUser, "hello")
	mem.Add("owner", RoleAssistant, "hi there")

	history := mem.History("owner")
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].Role != RoleUser || history[0].Content != "hello" {
		t.Fatalf("unexpected first entry: %+v", history[0])
	}
	if history[1].Role != RoleAssistant {
		t.Fatalf("unexpected second entry: %+v", history[1])
	}
}

func TestHistorySurvivesReload(t *testing.T) {
	dir := t.TempDir()

	mem := New(dir, 50, 30)
	mem.Add("owner", RoleUser, "persist me")

	reloaded := New(dir, 50, 30)
	history := reloaded.History("owner")
	if len(history) != 1 || history[0].Content != "persist me" {
		t.Fatalf("history did not survive reload: %+v", history)
	}
}

func TestCompressionOnOverflow(t *testing.T) {
	mem := New(t.TempDir(), 10, 6)

	for i := 0; i < 11; i++ {
		mem.Add("owner", RoleUser, "message "+strings.Repeat("x", i))
	}

	history := mem.History("owner")
	if len(history) != 7 {
		t.Fatalf("expected summary + 6 recent entries, got %d", len(history))
	}
	if history[0].Role != RoleSystem {
		t.Fatalf("first entry should be the summary, got role %s", history[0].Role)
	}
	if !strings.HasPrefix(history[0].Content, "[CONVERSATION SUMMARY]") {
		t.Fatalf("summary missing marker: %q", history[0].Content)
	}
	if !strings.HasSuffix(history[0].Content, "[END SUMMARY]") {
		t.Fatalf("summary missing end marker: %q", history[0].Content)
	}
}

func TestNoCompressionAtExactCap(t *testing.T) {
	mem := New(t.TempDir(), 10, 6)

	for i := 0; i < 10; i++ {
		mem.Add("owner", RoleUser, "message")
	}

	history := mem.History("owner")
	if len(history) != 10 {
		t.Fatalf("exactly-at-cap history should be untouched, got %d entries", len(history))
	}
	for i, e := range history {
		if e.Role != RoleUser {
			t.Fatalf("entry %d role = %s, compression must not run at the cap", i, e.Role)
		}
		if strings.Contains(e.Content, "[CONVERSATION SUMMARY]") {
			t.Fatalf("entry %d holds a summary: %q", i, e.Content)
		}
	}
}

func TestCompressionCapsLongEntries(t *testing.T) {
	mem := New(t.TempDir(), 5, 2)

	long := strings.Repeat("z", 400)
	for i := 0; i < 6; i++ {
		mem.Add("owner", RoleUser, long)
	}

	history := mem.History("owner")
	summary := history[0].Content
	if !strings.Contains(summary, strings.Repeat("z", 200)+"...") {
		t.Fatal("summary should truncate long messages at 200 chars")
	}
	if strings.Contains(summary, strings.Repeat("z", 201)) {
		t.Fatal("summary kept an untruncated long message")
	}
}

func TestFormattedRecentWindow(t *testing.T) {
	mem := New(t.TempDir(), 50, 30)
	mem.Add("owner", RoleUser, "first")
	mem.Add("owner", RoleAssistant, "second")
	mem.Add("owner", RoleUser, "third")

	got := mem.Formatted("owner", 2)
	if strings.Contains(got, "first") {
		t.Fatalf("window should drop oldest entry:\n%s", got)
	}
	want := "ASSISTANT: second\nUSER: third"
	if got != want {
		t.Fatalf("formatted = %q, want %q", got, want)
	}
}

func TestResetClearsOwnerOnly(t *testing.T) {
	dir := t.TempDir()
	mem := New(dir, 50, 30)
	mem.Add("owner-a", RoleUser, "keep a? no")
	mem.Add("owner-b", RoleUser, "keep b")

	mem.Reset("owner-a")

	if got := mem.History("owner-a"); len(got) != 0 {
		t.Fatalf("owner-a should be empty, got %+v", got)
	}
	if got := mem.History("owner-b"); len(got) != 1 {
		t.Fatalf("owner-b should be untouched, got %+v", got)
	}

	reloaded := New(dir, 50, 30)
	if got := reloaded.History("owner-a"); len(got) != 0 {
		t.Fatalf("reset should remove the file, got %+v", got)
	}
}

func TestStats(t *testing.T) {
	mem := New(t.TempDir(), 40, 20)
	mem.Add("owner", RoleUser, "one")
	mem.Add("owner", RoleAssistant, "two")

	count, max := mem.Stats("owner")
	if count != 2 || max != 40 {
		t.Fatalf("Stats = (%d, %d), want (2, 40)", count, max)
	}
}

func TestOwnerKeySanitized(t *testing.T) {
	dir := t.TempDir()
	mem := New(dir, 50, 30)
	mem.Add("telegram:12345", RoleUser, "hi")

	owners := mem.Owners()
	if len(owners) != 1 {
		t.Fatalf("expected 1 owner file, got %v", owners)
	}
	if strings.ContainsAny(owners[0], ":/\\") {
		t.Fatalf("owner file name not sanitized: %q", owners[0])
	}

	// Round trip through the same sanitized key.
	if got := mem.History("telegram:12345"); len(got) != 1 {
		t.Fatalf("history lost after sanitizing: %+v", got)
	}
}
