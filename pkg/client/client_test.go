package client

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/spf13/afero"

	"catalogdb/pkg/catalog"
	"catalogdb/pkg/config"
	"catalogdb/pkg/network"
	"catalogdb/pkg/protocol"
)

func TestDialInvalidAddr(t *testing.T) {
	_, err := Dial("invalid:invalid:invalid")
	if err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestDialUnreachable(t *testing.T) {
	// Connect to non-routable IP (RFC 5737) - expect error
	_, err := Dial("192.0.2.1:9999")
	if err == nil {
		t.Skip("connection unexpectedly succeeded (e.g. in sandbox)")
	}
}

func startServer(t *testing.T) string {
	t.Helper()
	fs := afero.NewMemMapFs()
	data := "CS101,Intro\nCS201,Data Structures,CS101\nMATH201,Calculus\n"
	if err := afero.WriteFile(fs, "courses.txt", []byte(data), 0644); err != nil {
		t.Fatalf("write courses: %v", err)
	}
	cfg := config.Default().Catalog
	cfg.Path = "courses.txt"
	cat := catalog.New(cfg, fs)
	if _, err := cat.Load(""); err != nil {
		t.Fatalf("load: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := network.NewTCPServer(cat)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return ln.Addr().String()
}

func TestClientAgainstServer(t *testing.T) {
	cli, err := Dial(startServer(t))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()

	rec, err := cli.Find("cs201")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec.Title != "Data Structures" || len(rec.Prerequisites) != 1 || rec.Prerequisites[0] != "CS101" {
		t.Fatalf("unexpected record %v", rec)
	}

	if _, err := cli.Find("NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	records, err := cli.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 || records[0].ID != "CS101" || records[2].ID != "MATH201" {
		t.Fatalf("unexpected list %v", records)
	}

	n, err := cli.Load("")
	if err != nil || n != 3 {
		t.Fatalf("reload: n=%d err=%v", n, err)
	}
	if _, err := cli.Load("missing.txt"); err == nil {
		t.Fatalf("expected reload of missing file to fail")
	}

	st, err := cli.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Records != 3 || st.Engine != "BST" || st.Lookups != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

// fakeServer answers every request on every connection with reply. A nil
// reply drops the connection instead. It returns the address and a channel
// receiving each request op.
func fakeServer(t *testing.T, reply func(req *protocol.Packet) []byte) (string, chan byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ops := make(chan byte, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				for {
					req, err := protocol.Decode(conn)
					if err != nil {
						return
					}
					ops <- req.Op
					msg := reply(req)
					if msg == nil {
						return
					}
					if err := protocol.Encode(conn, protocol.RespErr, nil, msg); err != nil {
						return
					}
				}
			}()
		}
	}()
	return ln.Addr().String(), ops
}

func TestFindSeparatesServerErrors(t *testing.T) {
	addr, _ := fakeServer(t, func(*protocol.Packet) []byte { return []byte(protocol.ErrFrameTooLarge.Error()) })
	cli, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()

	_, err = cli.Find("CS101")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a server error distinct from ErrNotFound, got %v", err)
	}
}

func TestLoadIsNotRetried(t *testing.T) {
	addr, ops := fakeServer(t, func(*protocol.Packet) []byte { return nil })
	cli, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()

	if _, err := cli.Load(""); err == nil {
		t.Fatal("expected load to fail when the server drops the connection")
	}
	if op := <-ops; op != protocol.OpLoad {
		t.Fatalf("expected a load request, got op %x", op)
	}
	select {
	case op := <-ops:
		t.Fatalf("load was sent again (op %x)", op)
	case <-time.After(200 * time.Millisecond):
	}

	// read-only requests still get their one retry
	if _, err := cli.List(); err == nil {
		t.Fatal("expected list to fail against a dropping server")
	}
	for i := 0; i < 2; i++ {
		select {
		case op := <-ops:
			if op != protocol.OpList {
				t.Fatalf("expected list request, got op %x", op)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("expected 2 list attempts, saw %d", i)
		}
	}
}
