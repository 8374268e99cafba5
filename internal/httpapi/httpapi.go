// Package httpapi wires the HTTP surface spec.md §6 names: playlist/EPG
// reads, the stream/probe endpoints, schedule generation, thumbnails, and
// the live-TV registration wrapper. Grounded on the teacher's
// internal/tuner/gateway.go request-logging convention (`req=<id> ... took
// <dur>`), with the atomic request counter replaced by google/uuid per
// spec.md §9's "module-level singletons -> injected dependencies" and
// SPEC_FULL.md's domain-stack wiring (uuid was declared but unused in the
// teacher's go.mod).
package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jellystream/jellystream/internal/jellyfin"
	"github.com/jellystream/jellystream/internal/playlist"
	"github.com/jellystream/jellystream/internal/scheduler"
	"github.com/jellystream/jellystream/internal/store"
	"github.com/jellystream/jellystream/internal/stream"
)

// Server bundles the dependencies every handler needs (spec.md §9
// "dependency context"); construct with New and mount Routes() on a mux.
type Server struct {
	Store       store.Store
	Scheduler   *scheduler.Scheduler
	Stream      *stream.Proxy
	Registrar   jellyfin.LiveTVRegistrar // nil disables register-livetv
	PublicURL   string
}

// New returns a Server ready to have its Routes mounted.
func New(st store.Store, sched *scheduler.Scheduler, proxy *stream.Proxy, registrar jellyfin.LiveTVRegistrar, publicURL string) *Server {
	return &Server{Store: st, Scheduler: sched, Stream: proxy, Registrar: registrar, PublicURL: publicURL}
}

// Routes registers every handler from spec.md §6.1 onto mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.Handle("/api/livetv/m3u/all", logged(http.HandlerFunc(s.handleM3UAll)))
	mux.Handle("/api/livetv/m3u/", logged(http.HandlerFunc(s.handleM3UOne)))
	mux.Handle("/api/livetv/xmltv/all", logged(http.HandlerFunc(s.handleXMLTVAll)))
	mux.Handle("/api/livetv/xmltv/", logged(http.HandlerFunc(s.handleXMLTVOne)))
	mux.Handle("/api/livetv/thumbnail/", logged(http.HandlerFunc(s.handleThumbnail)))
	mux.Handle("/api/livetv/stream/", logged(http.HandlerFunc(s.handleStream)))
	mux.Handle("/api/channels/", logged(http.HandlerFunc(s.handleChannelsPrefix)))
}

// handleChannelsPrefix dispatches /api/channels/{id}/generate-schedule and
// /api/channels/{id}/register-livetv, since both hang off the same prefix.
func (s *Server) handleChannelsPrefix(w http.ResponseWriter, r *http.Request) {
	rest, id, ok := shiftID(r.URL.Path, "/api/channels/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch {
	case rest == "/generate-schedule" && r.Method == http.MethodPost:
		s.generateSchedule(w, r, id)
	case rest == "/register-livetv" && r.Method == http.MethodPost:
		s.registerLiveTV(w, r, id)
	case rest == "/register-livetv" && r.Method == http.MethodDelete:
		s.unregisterLiveTV(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleM3UAll(w http.ResponseWriter, r *http.Request) {
	out, err := playlist.M3UAll(r.Context(), s.Store, s.PublicURL)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", playlist.MimeType)
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleM3UOne(w http.ResponseWriter, r *http.Request) {
	_, id, ok := shiftID(r.URL.Path, "/api/livetv/m3u/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	out, err := playlist.M3UOne(r.Context(), s.Store, id, s.PublicURL)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == "" {
		http.Error(w, "channel not found or disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", playlist.MimeType)
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleXMLTVAll(w http.ResponseWriter, r *http.Request) {
	out, err := playlist.XMLTVAll(r.Context(), s.Store, time.Now(), s.PublicURL)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", playlist.MimeTypeXMLTV)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(out)
}

func (s *Server) handleXMLTVOne(w http.ResponseWriter, r *http.Request) {
	_, id, ok := shiftID(r.URL.Path, "/api/livetv/xmltv/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	out, err := playlist.XMLTVOne(r.Context(), s.Store, id, time.Now(), s.PublicURL)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		http.Error(w, "channel not found or disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", playlist.MimeTypeXMLTV)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(out)
}

// handleThumbnail serves the JPEG recorded against a schedule entry
// (spec.md §6 `GET /api/livetv/thumbnail/{entry_id}`).
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	_, id, ok := shiftID(r.URL.Path, "/api/livetv/thumbnail/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	entry, err := s.Store.GetScheduleEntry(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if entry == nil || entry.ThumbnailPath == "" {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(entry.ThumbnailPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = io.Copy(w, f)
}

// handleStream dispatches HEAD (probe) and GET (continuous stream) for
// spec.md §6's `/api/livetv/stream/{channel_id}`.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	_, id, ok := shiftID(r.URL.Path, "/api/livetv/stream/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodHead:
		ok, err := s.Stream.Probe(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			http.Error(w, "nothing scheduled", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "video/mp2t")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.Header().Set("Content-Type", "video/mp2t")
		w.Header().Set("Cache-Control", "no-cache")
		flusher, _ := w.(http.Flusher)
		fw := &flushWriter{w: w, f: flusher}
		err := s.Stream.Stream(r.Context(), id, fw)
		if err != nil && !fw.wroteHeader {
			writeError(w, err)
		}
	default:
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) generateSchedule(w http.ResponseWriter, r *http.Request, channelID int64) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid days", http.StatusBadRequest)
			return
		}
		days = n
	}
	reset := r.URL.Query().Get("reset") == "true"

	var (
		n   int
		err error
	)
	if reset {
		n, err = s.Scheduler.Reset(r.Context(), channelID, days)
	} else {
		n, err = s.Scheduler.Generate(r.Context(), channelID, days)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"entries_created":` + strconv.Itoa(n) + `}`))
}

func (s *Server) registerLiveTV(w http.ResponseWriter, r *http.Request, channelID int64) {
	if s.Registrar == nil {
		http.Error(w, "live-tv registration not configured", http.StatusBadGateway)
		return
	}
	m3uURL := s.PublicURL + "/api/livetv/m3u/all"
	xmltvURL := s.PublicURL + "/api/livetv/xmltv/all"
	if err := s.Registrar.RegisterLiveTV(r.Context(), channelID, m3uURL, xmltvURL); err != nil {
		log.Printf("httpapi: register-livetv channel=%d: %v", channelID, err)
		http.Error(w, "register-livetv failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unregisterLiveTV(w http.ResponseWriter, r *http.Request, channelID int64) {
	if s.Registrar == nil {
		http.Error(w, "live-tv registration not configured", http.StatusBadGateway)
		return
	}
	if err := s.Registrar.UnregisterLiveTV(r.Context(), channelID); err != nil {
		log.Printf("httpapi: unregister-livetv channel=%d: %v", channelID, err)
		http.Error(w, "unregister-livetv failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps the core's sentinel error taxonomy to HTTP status codes
// (spec.md §7).
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stream.ErrChannelDisabled):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, stream.ErrNoScheduleEntry):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, stream.ErrTranscoderUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, jellyfin.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, jellyfin.ErrServer):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		log.Printf("httpapi: internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// flushWriter flushes after every write so stream bytes reach the client as
// soon as the transcoder produces them, and records whether any byte has
// been written yet so handleStream knows it is too late to change the
// status code on a mid-stream failure (spec.md §7 "streaming endpoints
// never return partially formed bodies once headers are sent").
type flushWriter struct {
	w           http.ResponseWriter
	f           http.Flusher
	wroteHeader bool
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if n > 0 {
		fw.wroteHeader = true
	}
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}

// shiftID parses "{prefix}{id}{rest}" and returns the remainder after the
// numeric id plus the id itself.
func shiftID(path, prefix string) (rest string, id int64, ok bool) {
	if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
		return "", 0, false
	}
	tail := path[len(prefix):]
	i := 0
	for i < len(tail) && tail[i] >= '0' && tail[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", 0, false
	}
	n, err := strconv.ParseInt(tail[:i], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return tail[i:], n, true
}

// logged wraps h with the teacher's `req=<id> method path status took <dur>`
// access-log convention (internal/tuner/gateway.go), using a uuid request id
// instead of the teacher's atomic counter.
func logged(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		start := time.Now()
		ctx := context.WithValue(r.Context(), reqIDKey{}, reqID)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, r.WithContext(ctx))
		log.Printf("httpapi: req=%s %s %s status=%d took=%s", reqID, r.Method, r.URL.Path, sw.status, time.Since(start).Round(time.Millisecond))
	})
}

type reqIDKey struct{}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(p []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(p)
}
