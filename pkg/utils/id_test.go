package utils

import (
	"strings"
	"testing"
)

func TestNewTaskIDIsLowercaseAndSortable(t *testing.T) {
	a := NewTaskID()
	b := NewTaskID()

	if a == "" || b == "" {
		t.Fatalf("NewTaskID() returned an empty string")
	}
	if strings.ToLower(a) != a {
		t.Errorf("NewTaskID() = %q, want all-lowercase", a)
	}
	if len(a) != 26 {
		t.Errorf("len(NewTaskID()) = %d, want 26 (ULID string length)", len(a))
	}
	if a == b {
		t.Errorf("two consecutive NewTaskID() calls returned the same id")
	}
	if a > b {
		t.Errorf("NewTaskID() ids out of order: first %q sorts after second %q", a, b)
	}
}

func TestSafeFilenameReplacesSeparators(t *testing.T) {
	cases := map[string]string{
		"pkg/foo/bar.go":  "pkg_foo_bar.go",
		`win\path\file.go`: "win_path_file.go",
		"a b:c":            "a_b_c",
		"":                 "root",
		"plain.go":         "plain.go",
	}
	for in, want := range cases {
		if got := SafeFilename(in); got != want {
			t.Errorf("SafeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
