package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/insights-dashboard/pkg/dashboard"
	"github.com/ritzau/insights-dashboard/pkg/filters"
	"github.com/ritzau/insights-dashboard/pkg/logging"
	"github.com/ritzau/insights-dashboard/pkg/model"
	"github.com/ritzau/insights-dashboard/pkg/pubsub"
	"github.com/ritzau/insights-dashboard/pkg/render"
)

//go:embed static/*
var staticFiles embed.FS

// maxFilterValue bounds the body of a filter update
const maxFilterValue = 4 << 10

// Filter updates may carry a client id and a per-client sequence number. An
// update older than one already applied for the same client and key is refused,
// so requests that overtake each other on parallel connections cannot leave
// the filter on an earlier keystroke.
const (
	headerFilterClient = "X-Filter-Client"
	headerFilterSeq    = "X-Filter-Seq"
)

// Dashboard is what the web UI reads from and writes to
type Dashboard interface {
	Filters() model.FilterSet
	SetFilter(ctx context.Context, key model.FilterKey, value string) (model.FilterSet, error)
	View() *dashboard.View
	Chart(w io.Writer, slot string, format render.Format) (int, error)
	WriteRecords(w io.Writer) (int, error)
}

type seqKey struct {
	client string
	key    model.FilterKey
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	dashboard Dashboard
	publisher pubsub.Publisher

	// seqMu serializes sequenced filter updates from check to apply
	seqMu   sync.Mutex
	lastSeq map[seqKey]uint64
}

// NewServer creates a new web server
func NewServer(d Dashboard, p pubsub.Publisher) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		dashboard: d,
		publisher: p,
		lastSeq:   make(map[seqKey]uint64),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler with request logging applied
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/dashboard", s.handleSubscribe).Methods("GET")

	s.router.HandleFunc("/api/fields", s.handleFields).Methods("GET")
	s.router.HandleFunc("/api/filters", s.handleFilters).Methods("GET")
	s.router.HandleFunc("/api/filters/{key}", s.handleSetFilter).Methods("PUT")
	s.router.HandleFunc("/api/charts/{slot}.{format:svg|png}", s.handleChart).Methods("GET")
	s.router.HandleFunc("/api/records.json", s.handleRecordsJSON).Methods("GET")
	s.router.HandleFunc("/api/records", s.handleRecords).Methods("GET")

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		logging.Fatal("embedded static files missing", "error", err)
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	pubsub.Stream(w, r, s.publisher, pubsub.TopicDashboard)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, filters.Fields)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.dashboard.Filters())
}

// handleSetFilter takes the new value either as form field "value" or as the raw body
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseFilterKey(mux.Vars(r)["key"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFilterValue)
	var value string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		value = r.PostForm.Get("value")
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		value = strings.TrimRight(string(body), "\r\n")
	}

	client := r.Header.Get(headerFilterClient)
	var seq uint64
	if client != "" {
		seq, err = strconv.ParseUint(r.Header.Get(headerFilterSeq), 10, 64)
		if err != nil {
			http.Error(w, "invalid "+headerFilterSeq+" header", http.StatusBadRequest)
			return
		}
		s.seqMu.Lock()
		defer s.seqMu.Unlock()
		if last, ok := s.lastSeq[seqKey{client, key}]; ok && seq <= last {
			logging.DebugContext(r.Context(), "ignoring out of order filter update", "key", key, "seq", seq, "applied", last)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			writeJSON(w, r, s.dashboard.Filters())
			return
		}
	}

	set, err := s.dashboard.SetFilter(r.Context(), key, value)
	if err != nil {
		if errors.Is(err, dashboard.ErrNotRunning) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if client != "" {
		s.lastSeq[seqKey{client, key}] = seq
	}
	logging.DebugContext(r.Context(), "filter set via web", "key", key, "value", value)
	writeJSON(w, r, set)
}

// wantVersion reads the optional "v" query parameter naming the view version
// the client expects. Zero means any version.
func wantVersion(r *http.Request) (int, error) {
	v := r.URL.Query().Get("v")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid version %q", v)
	}
	return n, nil
}

// versionMismatch answers 409 when a specific version was requested and the
// content exported is from another one
func versionMismatch(w http.ResponseWriter, want, got int) bool {
	if want == 0 || want == got {
		return false
	}
	w.Header().Set("X-View-Version", strconv.Itoa(got))
	http.Error(w, fmt.Sprintf("version %d requested, %d on display", want, got), http.StatusConflict)
	return true
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	format, err := render.ParseFormat(vars["format"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	want, err := wantVersion(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// encode into memory first so a failure can still produce an error status
	var buf bytes.Buffer
	version, err := s.dashboard.Chart(&buf, vars["slot"], format)
	if err != nil {
		if errors.Is(err, dashboard.ErrUnknownSlot) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		logging.ErrorContext(r.Context(), "exporting chart", "slot", vars["slot"], "error", err)
		http.Error(w, "chart export failed", http.StatusInternalServerError)
		return
	}

	if versionMismatch(w, want, version) {
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-View-Version", strconv.Itoa(version))
	w.Write(buf.Bytes())
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	want, err := wantVersion(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	version, err := s.dashboard.WriteRecords(&buf)
	if err != nil {
		logging.WarnContext(r.Context(), "writing record list", "error", err)
		http.Error(w, "record list unavailable", http.StatusInternalServerError)
		return
	}
	if versionMismatch(w, want, version) {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-View-Version", strconv.Itoa(version))
	w.Write(buf.Bytes())
}

func (s *Server) handleRecordsJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.dashboard.View())
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WarnContext(r.Context(), "encoding response", "error", err)
	}
}

// Serve listens on port until ctx ends, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	logging.Info("web server stopped")
	return nil
}
