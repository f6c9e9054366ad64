package sql

import (
	"testing"

	"catalogdb/pkg/common"
	"catalogdb/pkg/core/tree"

	"github.com/google/go-cmp/cmp"
)

func TestParseSelect(t *testing.T) {
	tests := []struct {
		sql   string
		table string
		limit int
		hasW  bool
		err   bool
	}{
		{"SELECT * FROM courses", "courses", -1, false, false},
		{"select * from courses", "courses", -1, false, false},
		{"SELECT * FROM courses;", "courses", -1, false, false},
		{"  SELECT * FROM Courses  ", "courses", -1, false, false},
		{"SELECT * FROM courses LIMIT 10", "courses", 10, false, false},
		{"SELECT * FROM courses WHERE id >= 'CSCI200'", "courses", -1, true, false},
		{"SELECT * FROM courses WHERE id = CSCI200 LIMIT 5", "courses", 5, true, false},
		{"SELECT * FROM courses WHERE prerequisite = 'CSCI101'", "courses", -1, true, false},
		{"SELECT * FROM courses WHERE prerequisite > 'CSCI101'", "", 0, false, true},
		{"SELECT * FROM courses WHERE title = 'Intro'", "", 0, false, true},
		{"SELECT * FROM ", "", 0, false, true},
		{"SELECT id FROM courses", "", 0, false, true},
		{"INSERT INTO courses", "", 0, false, true},
		{"", "", 0, false, true},
	}
	for _, tt := range tests {
		stmt, err := Parse(tt.sql)
		if tt.err {
			if err == nil {
				t.Errorf("Parse(%q): expected error", tt.sql)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.sql, err)
			continue
		}
		if stmt.Table != tt.table {
			t.Errorf("Parse(%q): table=%q, want %q", tt.sql, stmt.Table, tt.table)
		}
		if stmt.Limit != tt.limit {
			t.Errorf("Parse(%q): limit=%d, want %d", tt.sql, stmt.Limit, tt.limit)
		}
		if (stmt.Where != nil) != tt.hasW {
			t.Errorf("Parse(%q): where=%v, want hasWhere=%v", tt.sql, stmt.Where, tt.hasW)
		}
	}
}

func TestMatch(t *testing.T) {
	stmt, _ := Parse("SELECT * FROM courses WHERE id >= 'CSCI200'")
	if stmt.Match(common.Record{ID: "CSCI101"}) {
		t.Fatalf("expected CSCI101 not to match")
	}
	if !stmt.Match(common.Record{ID: "CSCI200"}) || !stmt.Match(common.Record{ID: "MATH201"}) {
		t.Fatalf("expected id>=CSCI200 to match")
	}
	stmt2, _ := Parse("SELECT * FROM courses")
	if !stmt2.Match(common.Record{ID: "ANY"}) {
		t.Fatalf("expected query without WHERE to match any id")
	}
}

func sampleTree() *tree.OrderedIndex {
	idx := tree.New()
	for _, r := range []common.Record{
		{ID: "CSCI200", Title: "Data Structures", Prerequisites: []string{"CSCI101"}},
		{ID: "CSCI100", Title: "Intro"},
		{ID: "CSCI301", Title: "Advanced C++", Prerequisites: []string{"CSCI101"}},
		{ID: "CSCI101", Title: "C++", Prerequisites: []string{"CSCI100"}},
		{ID: "MATH201", Title: "Discrete Math"},
	} {
		idx.Insert(r)
	}
	return idx
}

func ids(recs []common.Record) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestSelect(t *testing.T) {
	idx := sampleTree()
	tests := []struct {
		query string
		want  []string
	}{
		{"SELECT * FROM courses", []string{"CSCI100", "CSCI101", "CSCI200", "CSCI301", "MATH201"}},
		{"SELECT * FROM courses LIMIT 2", []string{"CSCI100", "CSCI101"}},
		{"SELECT * FROM courses LIMIT 0", nil},
		{"SELECT * FROM courses WHERE id < 'CSCI200'", []string{"CSCI100", "CSCI101"}},
		{"SELECT * FROM courses WHERE id = 'CSCI301'", []string{"CSCI301"}},
		{"SELECT * FROM courses WHERE id != 'CSCI301' LIMIT 3", []string{"CSCI100", "CSCI101", "CSCI200"}},
		{"SELECT * FROM courses WHERE prerequisite = CSCI101", []string{"CSCI200", "CSCI301"}},
	}
	for _, tt := range tests {
		stmt, err := Parse(tt.query)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.query, err)
		}
		got := ids(Select(stmt, idx.Ascend))
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Select(%q) mismatch (-want +got):\n%s", tt.query, diff)
		}
	}
}
