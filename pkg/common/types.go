package common

import (
	"fmt"
	"slices"
	"strings"
)

// Record is one catalog entry: a course and the courses it depends on.
type Record struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Prerequisites []string `json:"prerequisites"`
}

// Clone returns a deep copy so the caller's slice is never shared with a stored record.
func (r Record) Clone() Record {
	out := r
	if r.Prerequisites != nil {
		out.Prerequisites = slices.Clone(r.Prerequisites)
	}
	return out
}

func (r Record) Equal(o Record) bool {
	return r.ID == o.ID && r.Title == o.Title && slices.Equal(r.Prerequisites, o.Prerequisites)
}

// String 方便调试打印
func (r Record) String() string {
	return fmt.Sprintf("Record{ID: %s, Title: %q, Prereqs: [%s]}", r.ID, r.Title, strings.Join(r.Prerequisites, ","))
}
