package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"catalogdb/pkg/catalog"
	"catalogdb/pkg/common"
	"catalogdb/pkg/config"
	"catalogdb/pkg/loader"
	"catalogdb/pkg/storage"
)

func main() {
	configPath := pflag.String("config", "", "path to catalog.yaml")
	engine := pflag.String("engine", "", "index engine (bst or btree)")
	export := pflag.String("export", "", "write the loaded catalog to this SQLite file on exit")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if pflag.NArg() > 0 {
		cfg.Catalog.Path = pflag.Arg(0)
	}
	if *engine != "" {
		cfg.Catalog.Engine = *engine
	}
	if err := cfg.Catalog.Validate(); err != nil {
		logrus.Fatalf("Invalid catalog settings: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logrus.Fatalf("Invalid log level %q: %v", cfg.Log.Level, err)
	}
	// the menu owns the terminal, info lines would interleave with it
	if level == logrus.InfoLevel {
		level = logrus.WarnLevel
	}
	logrus.SetLevel(level)

	c := catalog.New(cfg.Catalog, afero.NewOsFs())
	defer c.Close()

	m := &menu{catalog: c, out: os.Stdout}
	m.run(os.Stdin)

	if *export != "" {
		if err := exportTo(c, *export); err != nil {
			logrus.Fatalf("Export failed: %v", err)
		}
		fmt.Printf("Exported catalog to %s\n", *export)
	}
}

func exportTo(c *catalog.Catalog, path string) error {
	b, err := storage.NewSQLiteBackend(path)
	if err != nil {
		return err
	}
	defer b.Close()
	_, err = c.Export(b)
	return err
}

type menu struct {
	catalog *catalog.Catalog
	out     io.Writer
}

func (m *menu) run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		m.printMenu()
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		choice, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprint(m.out, "Invalid choice. ")
			continue
		}

		switch choice {
		case 1:
			m.load()
		case 2:
			m.display()
		case 3:
			fmt.Fprint(m.out, "Enter the course to find: ")
			if !scanner.Scan() {
				break
			}
			m.find(strings.TrimSpace(scanner.Text()))
		case 4, 9:
			fmt.Fprintln(m.out, "Good bye.")
			return
		default:
			fmt.Fprintf(m.out, "%d is not a valid option.\n\n", choice)
		}
	}
	fmt.Fprintln(m.out, "Good bye.")
}

func (m *menu) printMenu() {
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "Menu:")
	fmt.Fprintln(m.out, "  1. Load Courses")
	fmt.Fprintln(m.out, "  2. Display All Courses")
	fmt.Fprintln(m.out, "  3. Find Course")
	fmt.Fprintln(m.out, "  9. Exit")
	fmt.Fprint(m.out, "Enter choice: ")
}

func (m *menu) load() {
	n, err := m.catalog.Load("")
	switch {
	case errors.Is(err, loader.ErrInvalidRecord):
		fmt.Fprintln(m.out, "Invalid course found.")
	case errors.Is(err, loader.ErrDanglingPrerequisite):
		fmt.Fprintln(m.out, "Invalid data as some prerequisite doesn't have information.")
	case err != nil:
		fmt.Fprintf(m.out, "Failed to load courses: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Loaded %d courses\n", n)
}

func (m *menu) display() {
	fmt.Fprintln(m.out, "Here is the sample schedule:")
	fmt.Fprintln(m.out)
	m.catalog.Ascend(func(rec common.Record) bool {
		fmt.Fprintf(m.out, "%s: %s\n", rec.ID, rec.Title)
		return true
	})
}

func (m *menu) find(id string) {
	rec, ok := m.catalog.Find(id)
	if !ok {
		fmt.Fprintf(m.out, "Course Id %s not found.\n", id)
		return
	}
	fmt.Fprintf(m.out, "%s: %s\n", rec.ID, rec.Title)
	fmt.Fprintf(m.out, "Prerequisites: %s\n", strings.Join(rec.Prerequisites, ", "))
}
