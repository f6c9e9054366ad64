package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"catalogdb/pkg/catalog"
	"catalogdb/pkg/common"
	"catalogdb/pkg/loader"
	"catalogdb/pkg/sql"
	"catalogdb/pkg/storage"
)

type Server struct {
	catalog    *catalog.Catalog
	exportPath string
	log        *logrus.Entry

	mu     sync.Mutex
	srv    *http.Server
	closed bool
}

func NewServer(c *catalog.Catalog, exportPath string) *Server {
	return &Server{
		catalog:    c,
		exportPath: exportPath,
		log:        logrus.WithField("component", "api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/course", s.handleGet)
	mux.HandleFunc("/api/courses", s.handleList)
	mux.HandleFunc("/api/load", s.handleLoad)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/sql", s.handleSQL)
	mux.Handle("/metrics", promhttp.HandlerFor(s.catalog.Monitor().Registry(), promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) Start(addr string) error {
	s.log.WithField("addr", addr).Info("Server listening")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.srv = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a server started with Start, waiting for in-flight requests.
// A later Start returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id", http.StatusBadRequest)
		return
	}

	start := time.Now()
	rec, found := s.catalog.Find(id)
	duration := time.Since(start)

	if !found {
		http.Error(w, "Course Id "+id+" not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"course":     rec,
		"latency_ns": duration.Nanoseconds(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	courses := s.catalog.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(courses),
		"courses": courses,
	})
}

// handleLoad reloads the configured course file, or a file named relative
// to the data directory.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid body", http.StatusBadRequest)
			return
		}
	}

	path, err := s.catalog.Resolve(req.Path)
	if err != nil {
		s.log.WithField("path", req.Path).Warn("Rejected load outside data directory")
		http.Error(w, catalog.Describe(err), http.StatusForbidden)
		return
	}

	n, err := s.catalog.Load(path)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]int{"courses": n})
	case errors.Is(err, loader.ErrInvalidRecord), errors.Is(err, loader.ErrDanglingPrerequisite):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"courses": n,
			"error":   catalog.Describe(err),
		})
	default:
		http.Error(w, catalog.Describe(err), http.StatusInternalServerError)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b, err := storage.NewSQLiteBackend(s.exportPath)
	if err != nil {
		s.log.WithError(err).Error("Open export store")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	defer b.Close()

	n, err := s.catalog.Export(b)
	if errors.Is(err, catalog.ErrNotLoaded) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		s.log.WithError(err).Error("Export")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"courses": n,
		"path":    s.exportPath,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, s.catalog.Stats())
}

func (s *Server) handleSQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	stmt, err := sql.Parse(req.Query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if stmt.Table != "courses" {
		http.Error(w, "unknown table "+stmt.Table, http.StatusBadRequest)
		return
	}
	if stmt.Where != nil {
		stmt.Where.Value = s.catalog.Normalize(stmt.Where.Value)
	}

	rows := sql.Select(stmt, s.catalog.Ascend)
	if rows == nil {
		rows = []common.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rows),
		"rows":  rows,
	})
}
