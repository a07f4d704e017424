package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/progress"
)

// handleEvents streams the snapshots of one session as Server-Sent Events.
// The current snapshot is sent first, then every published snapshot until
// the session reaches a terminal status, expires, or the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}
	if s.events == nil {
		s.writeError(w, http.StatusServiceUnavailable, "progress events are not configured", nil)
		return
	}

	var (
		current progress.Snapshot
		known   bool
	)
	if s.tracker != nil {
		current, known = s.tracker.Current(id)
	}
	if !known && !s.cross {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id), nil)
		return
	}

	// Subscribe before reading the snapshot again so no update falls in the gap.
	ch, cancel, err := s.events.Subscribe(r.Context(), id)
	if err != nil {
		s.logger.Error("subscribe to progress", err, logging.String("session", id))
		s.writeError(w, http.StatusServiceUnavailable, "failed to subscribe to progress", nil)
		return
	}
	defer cancel()
	if known {
		if snap, ok := s.tracker.Current(id); ok {
			current = snap
		}
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if known {
		if err := writeEvent(w, current); err != nil {
			return
		}
		flusher.Flush()
		if current.Status.Terminal() {
			return
		}
	} else {
		fmt.Fprint(w, ": waiting for session\n\n")
		flusher.Flush()
	}

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			// Published snapshots can be dropped, so a locally tracked
			// session is checked directly on every beat.
			if known {
				snap, ok := s.tracker.Current(id)
				if !ok {
					return
				}
				if snap.Status.Terminal() {
					if err := writeEvent(w, snap); err == nil {
						flusher.Flush()
					}
					return
				}
			}
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, snap); err != nil {
				return
			}
			flusher.Flush()
			if snap.Status.Terminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, snap progress.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
	return err
}
