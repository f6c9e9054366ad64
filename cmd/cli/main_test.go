package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"catalogdb/pkg/catalog"
	"catalogdb/pkg/config"
)

func newMenu(t *testing.T, data string) (*menu, *bytes.Buffer) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "courses.txt", []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := config.Default().Catalog
	cfg.Path = "courses.txt"
	c := catalog.New(cfg, fs)
	t.Cleanup(c.Close)

	var out bytes.Buffer
	return &menu{catalog: c, out: &out}, &out
}

func TestMenuSession(t *testing.T) {
	m, out := newMenu(t, "CS201,Data Structures,CS101\nCS101,Intro to CS\nMATH201,Discrete Math\n")
	m.run(strings.NewReader("1\n2\n3\ncs201\n3\nnope\nabc\n7\n9\n"))

	got := out.String()
	for _, want := range []string{
		"Loaded 3 courses\n",
		"Here is the sample schedule:\n\nCS101: Intro to CS\nCS201: Data Structures\nMATH201: Discrete Math\n",
		"CS201: Data Structures\nPrerequisites: CS101\n",
		"Course Id nope not found.\n",
		"Invalid choice. ",
		"7 is not a valid option.\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}
	if !strings.HasSuffix(got, "Good bye.\n") {
		t.Fatalf("expected session to end with Good bye., got:\n%s", got)
	}
	if strings.Count(got, "Good bye.") != 1 {
		t.Fatalf("expected a single Good bye.")
	}
}

func TestMenuLegacyExitAndEOF(t *testing.T) {
	m, out := newMenu(t, "CS101,Intro to CS\n")
	m.run(strings.NewReader("4\n2\n"))
	if strings.Contains(out.String(), "sample schedule") {
		t.Fatalf("expected 4 to exit before display")
	}

	m, out = newMenu(t, "CS101,Intro to CS\n")
	m.run(strings.NewReader("1\n"))
	if !strings.HasSuffix(out.String(), "Good bye.\n") {
		t.Fatalf("expected EOF to end the session, got:\n%s", out.String())
	}
}

func TestMenuReportsInvalidData(t *testing.T) {
	m, out := newMenu(t, "CS201,Data Structures,CS101\n")
	m.run(strings.NewReader("1\n9\n"))
	if !strings.Contains(out.String(), "Invalid data as some prerequisite doesn't have information.\nLoaded 1 courses\n") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestMenuDisplayEmpty(t *testing.T) {
	m, out := newMenu(t, "")
	m.run(strings.NewReader("2\n9\n"))
	if !strings.Contains(out.String(), "Here is the sample schedule:\n\n\nMenu:") {
		t.Fatalf("expected empty schedule, got:\n%s", out.String())
	}
}

func TestMenuFindPrintsEmptyPrerequisites(t *testing.T) {
	m, out := newMenu(t, "CS101,Intro to CS\n")
	m.run(strings.NewReader("1\n3\nCS101\n9\n"))
	if !strings.Contains(out.String(), "CS101: Intro to CS\nPrerequisites: \n") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}
