package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectMock(t *testing.T) {
	synth := NewMockSynth()
	audio, err := Collect(context.Background(), synth, SynthRequest{Text: "namaste"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(audio) == 0 {
		t.Fatal("expected non-empty clip")
	}
}

func TestCollectHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, NewMockSynth(), SynthRequest{Text: "namaste"})
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestRemoteSynth(t *testing.T) {
	payload := strings.Repeat("audio-bytes-", 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	synth := NewRemoteSynth(srv.URL, 5*time.Second)
	audio, err := Collect(context.Background(), synth, SynthRequest{Text: "hello", Voice: "v", Language: "hi-IN"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if string(audio) != payload {
		t.Fatalf("payload mismatch: got %d bytes, want %d", len(audio), len(payload))
	}
}

func TestRemoteSynthErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := Collect(context.Background(), NewRemoteSynth(srv.URL, 5*time.Second), SynthRequest{Text: "hello"})
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}
