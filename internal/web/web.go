// Package web serves the read-only supervisor status page.
package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/pigenny/pigenny/internal/status"
)

// Server serves "/" as HTML and "/status.json" for scripts.
type Server struct {
	tracker *status.Tracker
	httpSrv *http.Server
	logf    func(format string, v ...interface{})
}

func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{
		tracker: tracker,
		logf:    log.Printf,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/status.json", s.handleJSON)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Serve(ln net.Listener) error {
	return s.httpSrv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, s.tracker.Snapshot()); err != nil {
		s.logf("render status page: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	body, err := formatJSON(s.tracker.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}
