package main

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/spf13/pflag"

	"catalogdb/pkg/common"
	"catalogdb/pkg/core"
	"catalogdb/pkg/core/memory"
	"catalogdb/pkg/core/tree"
	"catalogdb/pkg/protocol"
)

func main() {
	mode := pflag.String("mode", "engine", "engine: in-process index comparison; protocol: HTTP vs TCP against a running server")
	httpAddr := pflag.String("http", "http://localhost:8080", "HTTP API base URL")
	tcpAddr := pflag.String("tcp", "localhost:9090", "TCP server address")
	id := pflag.String("id", "CSCI200", "course id looked up in protocol mode")
	nReq := pflag.Int("n", 5000, "records per index (engine) or requests per run (protocol)")
	pflag.Parse()

	switch *mode {
	case "engine":
		runEngineBenchmark(*nReq)
	case "protocol":
		runProtocolBenchmark(*httpAddr, *tcpAddr, *id, *nReq)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func runEngineBenchmark(n int) {
	fmt.Printf("Index Engine Benchmark (N=%d)\n", n)
	fmt.Println("---------------------------------------------------")

	sorted := make([]common.Record, n)
	for i := range sorted {
		sorted[i] = common.Record{ID: fmt.Sprintf("C%07d", i), Title: "bench"}
	}
	shuffled := make([]common.Record, n)
	copy(shuffled, sorted)
	rand.New(rand.NewSource(42)).Shuffle(n, func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	engines := []struct {
		name string
		make func() core.Index
	}{
		{"BST", func() core.Index { return tree.New() }},
		{"BTree", func() core.Index { return memory.NewBTreeIndex(32) }},
	}

	for _, input := range []struct {
		name    string
		records []common.Record
	}{
		{"sorted", sorted},
		{"shuffled", shuffled},
	} {
		fmt.Printf(">> %s input\n", input.name)
		for _, e := range engines {
			idx := e.make()

			start := time.Now()
			for _, rec := range input.records {
				idx.Insert(rec)
			}
			insert := time.Since(start)

			start = time.Now()
			for _, rec := range input.records {
				if _, ok := idx.Find(rec.ID); !ok {
					log.Fatalf("%s lost %s", e.name, rec.ID)
				}
			}
			find := time.Since(start)

			fmt.Printf("   %-5s insert %-12v find %-12v height %d\n", e.name, insert, find, idx.Height())
			idx.Clear()
		}
	}
	fmt.Println("---------------------------------------------------")
}

func runProtocolBenchmark(httpAddr, tcpAddr, id string, n int) {
	fmt.Printf("Catalog Protocol Benchmark (N=%d, id=%s)\n", n, id)
	fmt.Printf("  HTTP=%s  TCP=%s\n", httpAddr, tcpAddr)
	fmt.Println("---------------------------------------------------")

	fmt.Println(">> Starting HTTP Benchmark (JSON over HTTP 1.1)...")
	httpDuration := runHTTPBenchmark(httpAddr, id, n)
	fmt.Printf("   HTTP Time: %v | QPS: %.0f\n\n", httpDuration, float64(n)/httpDuration.Seconds())

	fmt.Println(">> Starting TCP Benchmark (Binary Protocol)...")
	tcpDuration := runTCPBenchmark(tcpAddr, id, n)
	fmt.Printf("   TCP  Time: %v | QPS: %.0f\n", tcpDuration, float64(n)/tcpDuration.Seconds())

	fmt.Println("---------------------------------------------------")
	speedup := httpDuration.Seconds() / tcpDuration.Seconds()
	fmt.Printf("Conclusion: TCP is %.2fx faster than HTTP!\n", speedup)
}

func runHTTPBenchmark(httpAddr, id string, n int) time.Duration {
	start := time.Now()
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 100,
		},
	}

	url := httpAddr + "/api/course?id=" + id
	for i := 0; i < n; i++ {
		resp, err := client.Get(url)
		if err != nil {
			log.Fatalf("HTTP Req failed: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return time.Since(start)
}

func runTCPBenchmark(addr, id string, n int) time.Duration {
	start := time.Now()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatalf("TCP Connect failed: %v", err)
	}
	defer conn.Close()

	key := []byte(id)
	for i := 0; i < n; i++ {
		if err := protocol.Encode(conn, protocol.OpFind, key, nil); err != nil {
			log.Fatalf("TCP Write failed: %v", err)
		}
		if _, err := protocol.Decode(conn); err != nil {
			log.Fatalf("TCP Read failed: %v", err)
		}
	}

	return time.Since(start)
}
