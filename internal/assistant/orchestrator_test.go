package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hawkaii/raahi-assistant/internal/audiocache"
	"github.com/hawkaii/raahi-assistant/internal/config"
	"github.com/hawkaii/raahi-assistant/internal/intent"
	"github.com/hawkaii/raahi-assistant/internal/search"
	"github.com/hawkaii/raahi-assistant/internal/session"
	"github.com/hawkaii/raahi-assistant/internal/tts"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeClassifier struct {
	result intent.Result
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, req intent.Request) (intent.Result, error) {
	if f.err != nil {
		return intent.Result{}, f.err
	}
	return f.result, nil
}

type fakeSearcher struct {
	trips    []search.Duty
	leads    []search.Duty
	stations []search.FuelStation
	err      error
}

func (f *fakeSearcher) SearchTrips(ctx context.Context, q search.TripQuery) ([]search.Duty, error) {
	return f.trips, f.err
}

func (f *fakeSearcher) SearchLeads(ctx context.Context, q search.TripQuery) ([]search.Duty, error) {
	return f.leads, f.err
}

func (f *fakeSearcher) SearchFuelStations(ctx context.Context, near search.Location, fuelType string) ([]search.FuelStation, error) {
	return f.stations, f.err
}

// countingSynth counts upstream synthesis calls and emits a fixed clip.
type countingSynth struct {
	calls atomic.Int64
}

func (c *countingSynth) Synthesize(ctx context.Context, req tts.SynthRequest) (<-chan tts.SynthChunk, <-chan error) {
	c.calls.Add(1)
	chunks := make(chan tts.SynthChunk, 1)
	errs := make(chan error)
	chunks <- tts.SynthChunk{Audio: []byte("audio:" + req.Text), Final: true}
	close(chunks)
	close(errs)
	return chunks, errs
}

func newTestOrchestrator(t *testing.T, classifier intent.Classifier, searcher search.Searcher, synth tts.Synthesizer) *Orchestrator {
	t.Helper()
	log := testLogger()
	cache := audiocache.New(audiocache.NewMemoryStore(), audiocache.Options{
		TTL:         time.Hour,
		WaitTimeout: time.Second,
	}, log)
	return New(Deps{
		Classifier: classifier,
		Searcher:   searcher,
		Synth:      synth,
		Cache:      cache,
		Sessions:   session.NewRegistry(time.Hour, log),
		TTS:        config.TTSConfig{Voice: "test-voice", Language: "hi-IN"},
		Greetings: config.GreetingsConfig{
			EntryAudioURL: "https://cdn.example.com/greeting.mp3",
			DutyAudioURL:  "https://cdn.example.com/duty.mp3",
		},
	}, log)
}

func TestDutyQueryCachesAudioAcrossRequests(t *testing.T) {
	classifier := &fakeClassifier{result: intent.Result{
		Intent:       intent.IntentGetDuties,
		UIAction:     intent.UIActionShowDutiesList,
		ResponseText: "दिल्ली से मुंबई के लिए उपलब्ध ड्यूटी देख रहा हूं।",
		Params:       map[string]string{"from_city": "Delhi", "to_city": "Mumbai"},
	}}
	searcher := &fakeSearcher{
		trips: []search.Duty{{ID: "t1", Type: "trip", PickupCity: "Delhi", DropCity: "Mumbai", CreatedAt: 2}},
		leads: []search.Duty{{ID: "l1", Type: "lead", PickupCity: "Delhi", CreatedAt: 1}},
	}
	synth := &countingSynth{}
	o := newTestOrchestrator(t, classifier, searcher, synth)

	req := QueryRequest{
		Text:          "Delhi se Mumbai ka duty chahiye",
		DriverProfile: DriverProfile{ID: "d1", Name: "Ramesh", VehicleType: "truck"},
	}

	env, err := o.HandleQuery(context.Background(), req)
	if err != nil {
		t.Fatalf("handle query: %v", err)
	}
	if env.Intent != intent.IntentGetDuties || env.UIAction != intent.UIActionShowDutiesList {
		t.Fatalf("unexpected verdict: %+v", env)
	}
	if env.AudioCached {
		t.Fatal("first request must report audio_cached=false")
	}
	if env.CacheKey == "" {
		t.Fatal("cache key missing")
	}
	data, ok := env.Data.(*DutyData)
	if !ok {
		t.Fatalf("unexpected data payload: %T", env.Data)
	}
	if data.Counts.Total != 2 || len(data.Duties) != 2 {
		t.Fatalf("unexpected counts: %+v", data.Counts)
	}
	if data.Duties[0].ID != "t1" {
		t.Fatalf("duties not newest-first: %+v", data.Duties)
	}
	if got := synth.calls.Load(); got != 1 {
		t.Fatalf("expected 1 synthesis call, got %d", got)
	}

	// Identical query within TTL: audio served from cache, no new synthesis.
	req.SessionID = env.SessionID
	env2, err := o.HandleQuery(context.Background(), req)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if !env2.AudioCached {
		t.Fatal("second request must report audio_cached=true")
	}
	if env2.CacheKey != env.CacheKey {
		t.Fatalf("cache key changed: %q vs %q", env2.CacheKey, env.CacheKey)
	}
	if env2.SessionID != env.SessionID {
		t.Fatalf("session not carried forward: %q vs %q", env2.SessionID, env.SessionID)
	}
	if got := synth.calls.Load(); got != 1 {
		t.Fatalf("expected no additional synthesis, got %d calls", got)
	}
}

func TestClassificationFailureDegradesToFallback(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("engine unavailable")}
	o := newTestOrchestrator(t, classifier, &fakeSearcher{}, &countingSynth{})

	env, err := o.HandleQuery(context.Background(), QueryRequest{Text: "kuch bhi"})
	if err != nil {
		t.Fatalf("handle query: %v", err)
	}
	if !env.Success {
		t.Fatal("degraded turn must still be successful")
	}
	if env.UIAction != intent.UIActionNone {
		t.Fatalf("expected ui_action none, got %q", env.UIAction)
	}
	if env.ResponseText == "" {
		t.Fatal("fallback must carry speakable text")
	}
}

func TestEntryStateSkipsSynthesis(t *testing.T) {
	synth := &countingSynth{}
	o := newTestOrchestrator(t, &fakeClassifier{}, &fakeSearcher{}, synth)

	count := 0
	env, err := o.HandleQuery(context.Background(), QueryRequest{
		Text:             "",
		InteractionCount: &count,
	})
	if err != nil {
		t.Fatalf("handle query: %v", err)
	}
	if env.Intent != intent.IntentEntry || env.UIAction != intent.UIActionEntry {
		t.Fatalf("unexpected entry verdict: %+v", env)
	}
	if env.AudioURL == "" {
		t.Fatal("entry turn must carry the greeting audio url")
	}
	if env.AudioCached || env.CacheKey != "" {
		t.Fatalf("entry turn must not touch the cache: %+v", env)
	}
	if got := synth.calls.Load(); got != 0 {
		t.Fatalf("entry turn must not synthesize, got %d calls", got)
	}
}

func TestStationSearchFailureKeepsTurnSpeakable(t *testing.T) {
	classifier := &fakeClassifier{result: intent.Result{
		Intent:       intent.IntentCNGPumps,
		UIAction:     intent.UIActionShowCNGStations,
		ResponseText: "आपके पास के CNG स्टेशन ढूंढ रहा हूं।",
	}}
	searcher := &fakeSearcher{err: errors.New("search backend down")}
	o := newTestOrchestrator(t, classifier, searcher, &countingSynth{})

	env, err := o.HandleQuery(context.Background(), QueryRequest{
		Text:            "cng pump kahan hai",
		CurrentLocation: &search.Location{Latitude: 28.6, Longitude: 77.2},
	})
	if err != nil {
		t.Fatalf("handle query: %v", err)
	}
	if !env.Success {
		t.Fatal("degraded turn must stay successful")
	}
	if env.ResponseText == "" {
		t.Fatal("expected a speakable fallback text")
	}
	if env.Data != nil {
		t.Fatalf("no data expected on failure, got %+v", env.Data)
	}
}

func TestProfileVerificationChecklist(t *testing.T) {
	classifier := &fakeClassifier{result: intent.Result{
		Intent:       intent.IntentProfileVerification,
		UIAction:     intent.UIActionShowVerificationChecklist,
		ResponseText: "मैं आपको प्रोफाइल वेरिफिकेशन में मदद करता हूं।",
	}}
	o := newTestOrchestrator(t, classifier, &fakeSearcher{}, &countingSynth{})

	env, err := o.HandleQuery(context.Background(), QueryRequest{
		Text: "meri profile verify karo",
		DriverProfile: DriverProfile{
			Name:             "Ramesh",
			LicenseVerified:  true,
			DocumentsPending: []string{"Insurance"},
		},
	})
	if err != nil {
		t.Fatalf("handle query: %v", err)
	}
	data, ok := env.Data.(*VerificationData)
	if !ok {
		t.Fatalf("unexpected data payload: %T", env.Data)
	}
	if len(data.Checklist) != 3 {
		t.Fatalf("expected 3 checklist items, got %d", len(data.Checklist))
	}
	if !data.Checklist[0].Verified || data.Checklist[1].Verified {
		t.Fatalf("checklist does not reflect profile flags: %+v", data.Checklist)
	}
}

func TestHandleQueryStreamServesAudioBody(t *testing.T) {
	classifier := &fakeClassifier{result: intent.Result{
		Intent:       intent.IntentGeneric,
		UIAction:     intent.UIActionNone,
		ResponseText: "मैं आपकी कैसे मदद कर सकता हूं?",
	}}
	synth := &countingSynth{}
	o := newTestOrchestrator(t, classifier, &fakeSearcher{}, synth)

	stream, err := o.HandleQueryStream(context.Background(), QueryRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("handle query stream: %v", err)
	}
	if stream.Audio == nil {
		t.Fatal("expected an audio body")
	}
	defer stream.Audio.Close()
	audio, err := io.ReadAll(stream.Audio)
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if len(audio) == 0 {
		t.Fatal("empty audio body")
	}
	if stream.Envelope.AudioCached {
		t.Fatal("first stream must report audio_cached=false")
	}

	// Second stream hits the cache.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stream2, err := o.HandleQueryStream(context.Background(), QueryRequest{Text: "hello"})
		if err != nil {
			t.Fatalf("second stream: %v", err)
		}
		body, _ := io.ReadAll(stream2.Audio)
		stream2.Audio.Close()
		if stream2.Envelope.AudioCached {
			if string(body) != string(audio) {
				t.Fatalf("cached audio differs: %q vs %q", body, audio)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cache entry never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
