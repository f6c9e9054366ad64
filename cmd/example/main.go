package main

import (
	"fmt"
	"log"
	"time"

	"catalogdb/pkg/client"
)

func main() {
	fmt.Println("Connecting to catalog server...")
	cli, err := client.Dial("localhost:9090")
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer cli.Close()

	start := time.Now()
	n, err := cli.Load("")
	if err != nil {
		log.Fatalf("Load failed: %v", err)
	}
	fmt.Printf("Server loaded %d courses in %v\n", n, time.Since(start))

	id := "CSCI400"
	fmt.Printf("Looking up %s...\n", id)
	start = time.Now()
	rec, err := cli.Find(id)
	if err != nil {
		log.Fatalf("Find failed: %v", err)
	}
	fmt.Printf("Got %s (in %v)\n", rec, time.Since(start))

	for _, p := range rec.Prerequisites {
		pre, err := cli.Find(p)
		if err != nil {
			log.Fatalf("Find %s failed: %v", p, err)
		}
		fmt.Printf("  requires %s: %s\n", pre.ID, pre.Title)
	}
}
