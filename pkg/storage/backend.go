package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"catalogdb/pkg/common"

	_ "modernc.org/sqlite"
)

// Backend persists batches of course records. Records come back in the
// order they were saved, so replaying them rebuilds an identical index.
type Backend interface {
	Save(records []common.Record) error
	LoadAll() ([]common.Record, error)
	Count() (int, error)
	Truncate() error
	Close() error
}

type SQLiteBackend struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS courses (
	seq   INTEGER PRIMARY KEY,
	id    TEXT NOT NULL,
	title TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS prerequisites (
	course_seq INTEGER NOT NULL REFERENCES courses(seq),
	pos        INTEGER NOT NULL,
	id         TEXT NOT NULL,
	PRIMARY KEY (course_seq, pos)
);`

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragma: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Save replaces the stored catalog with records in a single transaction.
func (s *SQLiteBackend) Save(records []common.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM prerequisites"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM courses"); err != nil {
		return err
	}

	courseStmt, err := tx.Prepare("INSERT INTO courses (seq, id, title) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer courseStmt.Close()

	prereqStmt, err := tx.Prepare("INSERT INTO prerequisites (course_seq, pos, id) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer prereqStmt.Close()

	for i, rec := range records {
		seq := int64(i + 1)
		if _, err := courseStmt.Exec(seq, rec.ID, rec.Title); err != nil {
			return fmt.Errorf("insert %s: %w", rec.ID, err)
		}
		for pos, p := range rec.Prerequisites {
			if _, err := prereqStmt.Exec(seq, pos, p); err != nil {
				return fmt.Errorf("insert prerequisite %s of %s: %w", p, rec.ID, err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteBackend) LoadAll() ([]common.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT seq, id, title FROM courses ORDER BY seq ASC")
	if err != nil {
		return nil, err
	}

	var (
		records []common.Record
		bySeq   = map[int64]int{}
	)
	for rows.Next() {
		var (
			seq       int64
			id, title string
		)
		if err := rows.Scan(&seq, &id, &title); err != nil {
			rows.Close()
			return nil, err
		}
		bySeq[seq] = len(records)
		records = append(records, common.Record{ID: id, Title: title})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	prows, err := s.db.Query("SELECT course_seq, id FROM prerequisites ORDER BY course_seq ASC, pos ASC")
	if err != nil {
		return nil, err
	}
	defer prows.Close()

	for prows.Next() {
		var (
			seq int64
			id  string
		)
		if err := prows.Scan(&seq, &id); err != nil {
			return nil, err
		}
		if i, ok := bySeq[seq]; ok {
			records[i].Prerequisites = append(records[i].Prerequisites, id)
		}
	}
	return records, prows.Err()
}

func (s *SQLiteBackend) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM courses").Scan(&n)
	return n, err
}

func (s *SQLiteBackend) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM prerequisites"); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM courses")
	return err
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
