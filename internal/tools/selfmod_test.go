package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSelfModifyWritesWithinRoot(t *testing.T) {
	d := newTestDispatcher(t)
	res := d.Dispatch(context.Background(), KindSelfModify, "conf/agent.json|{\"mode\":\"new\"}")
	if res.Status != StatusSuccess {
		t.Fatalf("selfModify failed: %+v", res)
	}
	data, err := os.ReadFile(filepath.Join(d.installRoot, "conf", "agent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"mode":"new"}` {
		t.Fatalf("unexpected file content: %q", data)
	}
	if !strings.Contains(res.Output, "SELF_RESTART") {
		t.Fatalf("result should mention the restart step: %q", res.Output)
	}
}

func TestSelfModifyRejectsEscape(t *testing.T) {
	d := newTestDispatcher(t)
	res := d.Dispatch(context.Background(), KindSelfModify, "../outside.txt|data")
	if res.Status != StatusError || !strings.Contains(res.Output, "within the agent directory") {
		t.Fatalf("path escape should be rejected: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(d.installRoot), "outside.txt")); !os.IsNotExist(err) {
		t.Fatal("escaped file must not be created")
	}
}

func TestSelfModifyMalformedBody(t *testing.T) {
	d := newTestDispatcher(t)
	res := d.Dispatch(context.Background(), KindSelfModify, "no-separator")
	if res.Status != StatusError || !strings.Contains(res.Output, "relative_path|content") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestIsWithin(t *testing.T) {
	cases := []struct {
		root, path string
		want       bool
	}{
		{"/opt/agent", "/opt/agent", true},
		{"/opt/agent", "/opt/agent/internal/x.go", true},
		{"/opt/agent", "/opt/other", false},
		{"/opt/agent", "/opt", false},
	}
	for _, c := range cases {
		if got := isWithin(c.root, c.path); got != c.want {
			t.Errorf("isWithin(%q, %q) = %v, want %v", c.root, c.path, got, c.want)
		}
	}
}
