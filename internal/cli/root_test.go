package cli

import (
	"bytes"
	"testing"
)

// executeCommand runs a command with the given args and captures output.
func executeCommand(args ...string) (string, error) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	if _, err := executeCommand("--help"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGlobalFlags(t *testing.T) {
	root := NewRootCmd()

	formatFlag := root.PersistentFlags().Lookup("format")
	if formatFlag == nil {
		t.Fatal("expected --format flag to exist")
	}
	if formatFlag.DefValue != "text" {
		t.Errorf("expected --format default 'text', got %q", formatFlag.DefValue)
	}

	if root.PersistentFlags().Lookup("db") == nil {
		t.Fatal("expected --db flag to exist")
	}
}

func TestCommandTree(t *testing.T) {
	root := NewRootCmd()

	paths := [][]string{
		{"serve"}, {"login"}, {"logout"}, {"status"}, {"version"},
		{"house", "add"}, {"house", "list"}, {"house", "show"}, {"house", "remove"},
		{"visit", "schedule"}, {"visit", "start"}, {"visit", "complete"}, {"visit", "cancel"},
		{"visit", "remove"}, {"visit", "list"}, {"visit", "show"},
		{"suggestion", "create"}, {"suggestion", "list"}, {"suggestion", "show"},
		{"suggestion", "accept"}, {"suggestion", "reject"}, {"suggestion", "withdraw"},
		{"tour", "create"}, {"tour", "list"}, {"tour", "show"}, {"tour", "status"},
		{"tour", "add-stop"}, {"tour", "remove-stop"}, {"tour", "link"},
		{"connection", "add"}, {"connection", "list"}, {"connection", "remove"},
	}

	for _, path := range paths {
		cmd, rest, err := root.Find(path)
		if err != nil || len(rest) != 0 || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not found (got %q, rest %v, err %v)", path, cmd.Name(), rest, err)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "ht dev\n" {
		t.Errorf("output = %q", out)
	}
}
