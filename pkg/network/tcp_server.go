package network

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"catalogdb/pkg/catalog"
	"catalogdb/pkg/common"
	"catalogdb/pkg/protocol"
)

type TCPServer struct {
	catalog *catalog.Catalog
	log     *logrus.Entry

	mu       sync.Mutex // protects listener and conns
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

func NewTCPServer(c *catalog.Catalog) *TCPServer {
	return &TCPServer{
		catalog: c,
		log:     logrus.WithField("component", "tcp"),
		conns:   make(map[net.Conn]struct{}),
		quit:    make(chan struct{}),
	}
}

func (s *TCPServer) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on ln until Shutdown or Close is called.
func (s *TCPServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.quit:
		// shut down before the listener was published
		s.mu.Unlock()
		return ln.Close()
	default:
	}
	s.listener = ln
	s.mu.Unlock()
	s.log.WithField("addr", ln.Addr().String()).Info("Listening (binary protocol)")

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Warn("Accept error")
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(conn)
		}()
	}
}

func (s *TCPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// track registers conn and adds it to the wait group unless shutdown has
// begun.
func (s *TCPServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *TCPServer) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Shutdown stops accepting, wakes connections blocked waiting for a request
// and waits for them to finish, respecting the context deadline. A request
// already being answered completes first. Calling it more than once is safe.
func (s *TCPServer) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quit)
		ln := s.listener
		for conn := range s.conns {
			// unblock Decode; writes in flight are unaffected
			conn.SetReadDeadline(time.Now())
		}
		s.mu.Unlock()
		if ln != nil {
			err = ln.Close()
		}
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Close is Shutdown without a deadline.
func (s *TCPServer) Close() error {
	return s.Shutdown(context.Background())
}

func (s *TCPServer) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		req, err := protocol.Decode(conn)
		if err != nil {
			var ne net.Error
			if err != io.EOF && !(errors.As(err, &ne) && ne.Timeout()) {
				s.log.WithError(err).Debug("Decode error")
			}
			return
		}

		if err := s.dispatch(conn, req); err != nil {
			s.log.WithError(err).Debug("Write error")
			return
		}
	}
}

func (s *TCPServer) dispatch(w io.Writer, req *protocol.Packet) error {
	switch req.Op {
	case protocol.OpFind:
		rec, found := s.catalog.Find(string(req.Key))
		if !found {
			return protocol.Encode(w, protocol.RespErr, nil, []byte(protocol.MsgNotFound))
		}
		return s.writeRecords(w, rec)

	case protocol.OpList:
		return s.writeRecords(w, s.catalog.List()...)

	case protocol.OpLoad:
		path, err := s.catalog.Resolve(string(req.Key))
		if err != nil {
			s.log.WithField("path", string(req.Key)).Warn("Rejected load outside data directory")
			return protocol.Encode(w, protocol.RespErr, nil, []byte(catalog.Describe(err)))
		}
		n, err := s.catalog.Load(path)
		if err != nil {
			return protocol.Encode(w, protocol.RespErr, nil, []byte(catalog.Describe(err)))
		}
		count, _ := json.Marshal(map[string]int{"courses": n})
		return protocol.Encode(w, protocol.RespOK, nil, count)

	case protocol.OpStats:
		data, err := json.Marshal(s.catalog.Stats())
		if err != nil {
			return protocol.Encode(w, protocol.RespErr, nil, []byte(err.Error()))
		}
		return protocol.Encode(w, protocol.RespVal, nil, data)

	default:
		return protocol.Encode(w, protocol.RespErr, nil, []byte("Unknown Op"))
	}
}

func (s *TCPServer) writeRecords(w io.Writer, records ...common.Record) error {
	data, err := protocol.EncodeRecords(records)
	if err != nil {
		return protocol.Encode(w, protocol.RespErr, nil, []byte(err.Error()))
	}
	return protocol.Encode(w, protocol.RespVal, nil, data)
}
