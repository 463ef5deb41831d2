package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hawkaii/raahi-assistant/internal/assistant"
	"github.com/hawkaii/raahi-assistant/internal/audiocache"
	"github.com/hawkaii/raahi-assistant/internal/frame"
)

// Query handles POST /assistant/query: the split endpoint returning the
// envelope alone; audio is fetched separately by cache key.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	env, err := h.orchestrator.HandleQuery(r.Context(), req)
	if err != nil {
		h.log.Error("query failed", slog.String("error", err.Error()))
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(env)
}

// QueryWithAudio handles POST /assistant/query-with-audio: one JSON line,
// a newline delimiter, then raw audio bytes, chunked so the client can start
// playback before the stream ends.
func (h *Handlers) QueryWithAudio(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	stream, err := h.orchestrator.HandleQueryStream(r.Context(), req)
	if err != nil {
		h.log.Error("query-with-audio failed", slog.String("error", err.Error()))
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if stream.Audio != nil {
		defer stream.Audio.Close()
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Content-Type", "application/json+audio/mpeg")

	if err := frame.EmitJSON(w, stream.Envelope); err != nil {
		if frame.IsFramingError(err) {
			// The envelope would corrupt the delimiter contract; nothing has
			// been written yet, so a clean 500 is still possible.
			h.log.Error("framing violation", slog.String("error", err.Error()))
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		h.log.Debug("client went away before envelope", slog.String("error", err.Error()))
		return
	}
	flush(w)

	if stream.Audio == nil {
		return
	}
	if _, err := io.Copy(flushWriter{w}, stream.Audio); err != nil {
		// Metadata is committed; a short audio tail is the contract for
		// "audio incomplete". Close cleanly, never retry.
		h.log.Debug("audio stream ended early", slog.String("error", err.Error()))
	}
}

// Audio handles GET /assistant/audio/{cacheKey}: streams a cached clip.
func (h *Handlers) Audio(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "cacheKey")

	clip, err := h.orchestrator.Audio(r.Context(), key)
	if err != nil {
		if errors.Is(err, audiocache.ErrNotFound) {
			http.Error(w, `{"error":"audio not found in cache"}`, http.StatusNotFound)
			return
		}
		h.log.Warn("audio lookup failed", slog.String("cache_key", key), slog.String("error", err.Error()))
		http.Error(w, `{"error":"audio cache unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "inline")
	fw := flushWriter{w}
	for len(clip) > 0 {
		n := len(clip)
		if n > 4096 {
			n = 4096
		}
		if _, err := fw.Write(clip[:n]); err != nil {
			return
		}
		clip = clip[n:]
	}
}

// DeleteSession handles DELETE /assistant/session/{sessionID}. Idempotent.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, `{"error":"session id required"}`, http.StatusBadRequest)
		return
	}

	h.orchestrator.EndSession(r.Context(), sessionID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "session_id": sessionID})
}

func (h *Handlers) decodeQuery(w http.ResponseWriter, r *http.Request) (assistant.QueryRequest, bool) {
	var req assistant.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// flushWriter flushes after every write so audio chunks reach the client as
// they are produced instead of sitting in the response buffer.
type flushWriter struct {
	w http.ResponseWriter
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	flush(fw.w)
	return n, err
}
