package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"
)

func TestGetStatus_Empty(t *testing.T) {
	a := &App{}
	got := a.getStatus()
	if got != "" {
		t.Fatalf("want empty status, got %q", got)
	}
}

func TestGetStatus_WithUsernameOnly(t *testing.T) {
	a := &App{userName: "alice"}
	got := a.getStatus()
	want := "(alice )"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestGetStatus_WithUsernameAndMode(t *testing.T) {
	a := &App{userName: "alice", Mode: ModeOnline}
	if got, want := a.getStatus(), "(alice online)"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func silencePrintln(t *testing.T) {
	t.Helper()
	orig := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = orig })
}

func TestRunREPL_AppHelpThenQuit(t *testing.T) {
	silencePrintln(t)

	sc := bufio.NewScanner(strings.NewReader("help\nquit\n"))
	a := &App{sessions: &fakeSessions{}}

	runREPL(context.Background(), a, a.getStatus, sc)
}
