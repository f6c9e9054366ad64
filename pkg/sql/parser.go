package sql

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"catalogdb/pkg/common"
)

// SelectStmt represents a parsed SELECT * FROM table statement.
type SelectStmt struct {
	Table string
	Where *WhereClause
	Limit int
}

type WhereClause struct {
	Field string // "id" or "prerequisite"
	Op    string
	Value string
}

var selectRe = regexp.MustCompile(`(?i)^SELECT\s+\*\s+FROM\s+([a-zA-Z_][a-zA-Z0-9_]*)(?:\s+WHERE\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*(=|!=|>=|<=|>|<)\s*('[^']*'|[a-zA-Z0-9_]+))?(?:\s+LIMIT\s+(\d+))?\s*;?\s*$`)

// Parse parses simple SQL:
// "SELECT * FROM courses"
// "SELECT * FROM courses WHERE id >= 'CSCI200'"
// "SELECT * FROM courses WHERE prerequisite = CSCI101"
// "SELECT * FROM courses WHERE id < 'MATH' LIMIT 10"
// Table name must be a valid identifier (letters, digits, underscore).
func Parse(s string) (*SelectStmt, error) {
	orig := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	if orig == "" {
		return nil, errors.New("empty query")
	}

	matches := selectRe.FindStringSubmatch(orig)
	if matches == nil {
		return nil, errors.New("syntax: expected SELECT * FROM <table> [WHERE id|prerequisite <op> '<id>'] [LIMIT <n>]")
	}

	stmt := &SelectStmt{
		Table: strings.ToLower(matches[1]),
		Limit: -1,
	}

	if matches[2] != "" {
		field := strings.ToLower(matches[2])
		switch field {
		case "id":
		case "prerequisite":
			if matches[3] != "=" {
				return nil, errors.New("prerequisite only supports =")
			}
		default:
			return nil, errors.New("only WHERE id or WHERE prerequisite is supported")
		}
		stmt.Where = &WhereClause{
			Field: field,
			Op:    matches[3],
			Value: strings.Trim(matches[4], "'"),
		}
	}

	if matches[5] != "" {
		limitVal, err := strconv.Atoi(matches[5])
		if err != nil {
			return nil, errors.New("invalid LIMIT value")
		}
		stmt.Limit = limitVal
	}

	return stmt, nil
}

func (stmt *SelectStmt) Match(rec common.Record) bool {
	if stmt.Where == nil {
		return true
	}
	v := stmt.Where.Value
	if stmt.Where.Field == "prerequisite" {
		for _, p := range rec.Prerequisites {
			if p == v {
				return true
			}
		}
		return false
	}

	id := rec.ID
	switch stmt.Where.Op {
	case "=":
		return id == v
	case "!=":
		return id != v
	case ">":
		return id > v
	case "<":
		return id < v
	case ">=":
		return id >= v
	case "<=":
		return id <= v
	default:
		return false
	}
}

// pastRange reports whether an ascending walk can stop at rec.
func (stmt *SelectStmt) pastRange(rec common.Record) bool {
	if stmt.Where == nil || stmt.Where.Field != "id" {
		return false
	}
	switch stmt.Where.Op {
	case "=", "<=":
		return rec.ID > stmt.Where.Value
	case "<":
		return rec.ID >= stmt.Where.Value
	}
	return false
}

// Select evaluates stmt over an ascending walk of the catalog.
func Select(stmt *SelectStmt, ascend func(fn func(rec common.Record) bool)) []common.Record {
	var out []common.Record
	if stmt.Limit == 0 {
		return out
	}
	ascend(func(rec common.Record) bool {
		if stmt.pastRange(rec) {
			return false
		}
		if stmt.Match(rec) {
			out = append(out, rec)
		}
		return stmt.Limit < 0 || len(out) < stmt.Limit
	})
	return out
}
