// Package server provides the HTTP surface: the share API, deep link
// resolution, downloads and the record event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matsuo0603/ShareFileBC/gateway"
	"github.com/matsuo0603/ShareFileBC/logger"
	"github.com/matsuo0603/ShareFileBC/share"
	"github.com/matsuo0603/ShareFileBC/store"
)

// Server is the main HTTP server.
type Server struct {
	uploader *share.Uploader
	receiver *share.Receiver
	store    store.Store
	gateway  gateway.Gateway
	logger   logger.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// New creates a new server.
func New(up *share.Uploader, recv *share.Receiver, st store.Store, gw gateway.Gateway, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Server{
		uploader: up,
		receiver: recv,
		store:    st,
		gateway:  gw,
		logger:   log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Deep link resolution. Folder ids may contain slashes, so the id is
	// the whole remaining path, not one segment.
	r.Get("/folder/*", s.handleOpenFolder)
	r.Get("/open", s.handleOpenLegacy)

	r.Route("/api", func(r chi.Router) {
		r.Post("/share", s.handleShare)
		r.Get("/shared", s.handleListShared)
		r.Get("/received", s.handleListReceived)
		r.Get("/files/*", s.handleDownload)
		r.Get("/events", s.handleEvents)
	})

	s.router = r
}

// Start runs the server until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.router}
	s.logger.Info("HTTP server listening on %s", addr)

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// --- API Handlers ---

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	recipient := r.FormValue("recipient")
	if recipient == "" {
		http.Error(w, "Recipient is required", http.StatusBadRequest)
		return
	}
	email := r.FormValue("email")

	result, err := s.uploader.ShareFile(r.Context(), file, header.Filename, recipient, email)
	if err != nil {
		s.writeError(w, "Share failed", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleOpenFolder(w http.ResponseWriter, r *http.Request) {
	folderID := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(folderID); err == nil {
		folderID = unescaped
	}
	s.openFolder(w, r, folderID)
}

func (s *Server) handleOpenLegacy(w http.ResponseWriter, r *http.Request) {
	s.openFolder(w, r, r.URL.Query().Get("folderId"))
}

func (s *Server) openFolder(w http.ResponseWriter, r *http.Request, folderID string) {
	if folderID == "" {
		http.Error(w, "Folder id is required", http.StatusBadRequest)
		return
	}

	structure, err := s.receiver.OpenFolder(r.Context(), folderID)
	if err != nil {
		s.writeError(w, "Open failed", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(structure)
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListShared()
	if err != nil {
		http.Error(w, "Failed to load shared records", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (s *Server) handleListReceived(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListReceived()
	if err != nil {
		http.Error(w, "Failed to load received records", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(fileID); err == nil {
		fileID = unescaped
	}
	if fileID == "" {
		http.Error(w, "File id is required", http.StatusBadRequest)
		return
	}

	rc, err := s.gateway.OpenFile(r.Context(), fileID)
	if err != nil {
		s.writeError(w, "Download failed", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("Download of %s interrupted: %v", fileID, err)
	}
}

// handleEvents streams record changes as server-sent events until the client
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	events := s.store.Watch(r.Context())
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// writeError maps gateway failures to meaningful statuses: a missing object
// is the client's problem, an unreachable backend is not.
func (s *Server) writeError(w http.ResponseWriter, prefix string, err error) {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		http.Error(w, fmt.Sprintf("%s: %v", prefix, err), http.StatusNotFound)
	case errors.Is(err, gateway.ErrUnavailable):
		http.Error(w, fmt.Sprintf("%s: %v", prefix, err), http.StatusBadGateway)
	default:
		s.logger.Error("%s: %v", prefix, err)
		http.Error(w, fmt.Sprintf("%s: %v", prefix, err), http.StatusInternalServerError)
	}
}
