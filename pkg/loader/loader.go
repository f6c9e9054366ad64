// Package loader reads course records from comma separated text files.
//
// Each line has the form
//
//	id,title[,prerequisite]*
//
// A leading byte order mark is skipped and the first blank line ends the
// input. After reading, every prerequisite must name the id of some record
// in the same file.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"catalogdb/pkg/common"
)

var (
	ErrInvalidRecord        = errors.New("loader: invalid course record")
	ErrDanglingPrerequisite = errors.New("loader: prerequisite has no course information")
)

type Loader struct {
	fs afero.Fs
	// normalize is applied to ids and prerequisite ids; nil keeps them as read.
	normalize func(string) string
}

func New(fs afero.Fs, normalize func(string) string) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs, normalize: normalize}
}

// Load reads path and returns its records in file order. On a validation
// error the records read so far are returned along with the error.
func (l *Loader) Load(path string) ([]common.Record, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return l.Parse(f)
}

func (l *Loader) Parse(r io.Reader) ([]common.Record, error) {
	scanner := bufio.NewScanner(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))

	var records []common.Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			break
		}

		rec, err := l.parseLine(line)
		if err != nil {
			return records, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read: %w", err)
	}

	if err := Validate(records); err != nil {
		return records, err
	}
	return records, nil
}

func (l *Loader) parseLine(line string) (common.Record, error) {
	fields := strings.Split(line, ",")
	// "a,b," carries no third field
	if len(fields) > 2 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) < 2 {
		return common.Record{}, fmt.Errorf("%w: want at least id and title, got %d field(s)", ErrInvalidRecord, len(fields))
	}

	rec := common.Record{
		ID:    l.key(fields[0]),
		Title: strings.TrimSpace(fields[1]),
	}
	if rec.ID == "" || rec.Title == "" {
		return common.Record{}, fmt.Errorf("%w: empty id or title", ErrInvalidRecord)
	}
	for _, p := range fields[2:] {
		if p = l.key(p); p != "" {
			rec.Prerequisites = append(rec.Prerequisites, p)
		}
	}
	return rec, nil
}

func (l *Loader) key(s string) string {
	s = strings.TrimSpace(s)
	if l.normalize != nil {
		s = l.normalize(s)
	}
	return s
}

// Validate checks that every prerequisite refers to a record in records.
func Validate(records []common.Record) error {
	known := make(map[string]struct{}, len(records))
	for _, r := range records {
		known[r.ID] = struct{}{}
	}
	for _, r := range records {
		for _, p := range r.Prerequisites {
			if _, ok := known[p]; !ok {
				return fmt.Errorf("%w: %s requires %s", ErrDanglingPrerequisite, r.ID, p)
			}
		}
	}
	return nil
}
