package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"catalogdb/pkg/client"
)

const Prompt = "catalog> "

func main() {
	serverAddr := pflag.String("addr", "localhost:9090", "catalog TCP server address")
	pflag.Parse()

	fmt.Printf("Catalog shell (Target: %s)\n", *serverAddr)
	fmt.Println("Connecting...")

	cli, err := client.Dial(*serverAddr)
	if err != nil {
		fmt.Printf("Connection failed: %v\n", err)
		fmt.Println("Tip: Ensure the server is running (e.g. go run ./cmd/server).")
		return
	}
	defer cli.Close()
	fmt.Println("Connected! Type 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(Prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "find", "get":
			handleFind(cli, parts)
		case "list", "ls":
			handleList(cli)
		case "load":
			handleLoad(cli, parts)
		case "stats":
			handleStats(cli)
		case "help":
			printHelp()
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Printf("Unknown command: '%s'. Type 'help'.\n", cmd)
		}
	}
}

func handleFind(cli *client.Client, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: find <course_id>")
		return
	}

	start := time.Now()
	rec, err := cli.Find(parts[1])
	duration := time.Since(start)

	if errors.Is(err, client.ErrNotFound) {
		fmt.Printf("Course Id %s not found. (%v)\n", parts[1], duration)
		return
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%s: %s\n", rec.ID, rec.Title)
	fmt.Printf("Prerequisites: %s\n", strings.Join(rec.Prerequisites, ", "))
	fmt.Printf("(%v)\n", duration)
}

func handleList(cli *client.Client) {
	start := time.Now()
	records, err := cli.List()
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Found %d courses (%v):\n", len(records), duration)
	for i, rec := range records {
		if i >= 50 {
			fmt.Printf("... and %d more\n", len(records)-50)
			break
		}
		fmt.Printf("  %s: %s\n", rec.ID, rec.Title)
	}
}

func handleLoad(cli *client.Client, parts []string) {
	path := ""
	if len(parts) > 1 {
		path = parts[1]
	}

	start := time.Now()
	n, err := cli.Load(path)
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Loaded %d courses (%v)\n", n, duration)
}

func handleStats(cli *client.Client) {
	st, err := cli.Stats()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Engine:      %s (key case %s)\n", st.Engine, st.KeyCase)
	fmt.Printf("Source:      %s\n", st.Source)
	fmt.Printf("Courses:     %d\n", st.Records)
	fmt.Printf("Tree height: %d\n", st.TreeHeight)
	fmt.Printf("Lookups:     %d (hit ratio %.2f)\n", st.Lookups, st.HitRatio)
}

func printHelp() {
	fmt.Println(`
Commands:
  find <id>              Show one course and its prerequisites
  list                   List courses in id order
  load [path]            Reload the catalog (server default path when omitted)
  stats                  Catalog statistics
  exit                   Exit shell
	`)
}
