package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hawkaii/raahi-assistant/internal/audiocache"
	"github.com/hawkaii/raahi-assistant/internal/bus"
	"github.com/hawkaii/raahi-assistant/internal/config"
	"github.com/hawkaii/raahi-assistant/internal/eventstore"
	"github.com/hawkaii/raahi-assistant/internal/intent"
	"github.com/hawkaii/raahi-assistant/internal/protocol"
	"github.com/hawkaii/raahi-assistant/internal/search"
	"github.com/hawkaii/raahi-assistant/internal/session"
	"github.com/hawkaii/raahi-assistant/internal/tts"
)

// Orchestrator drives one request through classification, data fetch, and
// audio preparation. Every collaborator is injected; nothing is ambient.
type Orchestrator struct {
	classifier intent.Classifier
	searcher   search.Searcher
	geocoder   search.Geocoder
	synth      tts.Synthesizer
	cache      *audiocache.Cache
	sessions   *session.Registry
	turns      *eventstore.Store
	publisher  bus.Publisher
	ttsCfg     config.TTSConfig
	greetings  config.GreetingsConfig
	log        *slog.Logger

	meter          metric.Meter
	requestCount   metric.Int64Counter
	cacheHitCount  metric.Int64Counter
	cacheMissCount metric.Int64Counter
	synthCount     metric.Int64Counter
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Classifier intent.Classifier
	Searcher   search.Searcher
	Geocoder   search.Geocoder
	Synth      tts.Synthesizer
	Cache      *audiocache.Cache
	Sessions   *session.Registry
	Turns      *eventstore.Store
	Publisher  bus.Publisher
	TTS        config.TTSConfig
	Greetings  config.GreetingsConfig
}

func New(deps Deps, log *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		classifier: deps.Classifier,
		searcher:   deps.Searcher,
		geocoder:   deps.Geocoder,
		synth:      deps.Synth,
		cache:      deps.Cache,
		sessions:   deps.Sessions,
		turns:      deps.Turns,
		publisher:  deps.Publisher,
		ttsCfg:     deps.TTS,
		greetings:  deps.Greetings,
		log:        log.With(slog.String("component", "orchestrator")),
		meter:      otel.Meter("github.com/hawkaii/raahi-assistant/assistant"),
	}
	if err := o.initMetrics(); err != nil {
		o.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return o
}

func (o *Orchestrator) initMetrics() error {
	var err error
	if o.requestCount, err = o.meter.Int64Counter("raahi.requests",
		metric.WithDescription("Assistant requests by intent")); err != nil {
		return err
	}
	if o.cacheHitCount, err = o.meter.Int64Counter("raahi.audio_cache.hits",
		metric.WithDescription("Audio cache hits")); err != nil {
		return err
	}
	if o.cacheMissCount, err = o.meter.Int64Counter("raahi.audio_cache.misses",
		metric.WithDescription("Audio cache misses")); err != nil {
		return err
	}
	if o.synthCount, err = o.meter.Int64Counter("raahi.synthesis.calls",
		metric.WithDescription("Upstream speech synthesis calls")); err != nil {
		return err
	}
	return nil
}

// HandleQuery resolves a query and makes sure its audio is cached, returning
// the envelope alone. AudioCached reports whether the audio existed before
// this request; the audio itself is fetched via the audio endpoint.
func (o *Orchestrator) HandleQuery(ctx context.Context, req QueryRequest) (Envelope, error) {
	start := time.Now()
	env := o.resolve(ctx, req)
	if env.Intent == intent.IntentEntry {
		o.record(ctx, req, env, false, time.Since(start))
		return env, nil
	}

	key := audiocache.DeriveKey(env.ResponseText)
	hit := o.cache.Exists(ctx, key)
	env.AudioCached = hit
	env.CacheKey = key
	o.countCache(ctx, hit)

	if _, err := o.cache.GetOrSynthesize(ctx, key, o.synthFunc(env.ResponseText, req.PreferredLanguage)); err != nil {
		// Audio failure never blocks text delivery.
		o.log.Warn("audio preparation failed, serving text only",
			slog.String("cache_key", key), slog.String("error", err.Error()))
		env.AudioCached = false
		env.CacheKey = ""
	}

	o.record(ctx, req, env, hit, time.Since(start))
	return env, nil
}

// AudioStream is one prepared framed response: the envelope plus the audio
// payload reader, nil when the turn carries no audio body.
type AudioStream struct {
	Envelope Envelope
	Audio    io.ReadCloser
}

// HandleQueryStream resolves a query and opens its audio as a stream, so the
// transport can forward bytes as they are produced. Entry-state turns carry
// an audio URL instead of a body.
func (o *Orchestrator) HandleQueryStream(ctx context.Context, req QueryRequest) (AudioStream, error) {
	start := time.Now()
	env := o.resolve(ctx, req)
	if env.Intent == intent.IntentEntry {
		o.record(ctx, req, env, false, time.Since(start))
		return AudioStream{Envelope: env}, nil
	}

	key := audiocache.DeriveKey(env.ResponseText)
	env.CacheKey = key

	audio, cached, err := o.cache.OpenStream(ctx, key, o.streamFunc(env.ResponseText, req.PreferredLanguage))
	o.countCache(ctx, cached)
	if err != nil {
		o.log.Warn("audio stream unavailable, serving text only",
			slog.String("cache_key", key), slog.String("error", err.Error()))
		env.AudioCached = false
		env.CacheKey = ""
		o.record(ctx, req, env, false, time.Since(start))
		return AudioStream{Envelope: env}, nil
	}
	env.AudioCached = cached

	o.record(ctx, req, env, cached, time.Since(start))
	return AudioStream{Envelope: env, Audio: audio}, nil
}

// Audio returns the cached clip for a key. audiocache.ErrNotFound maps to a
// 404 at the transport.
func (o *Orchestrator) Audio(ctx context.Context, key string) ([]byte, error) {
	return o.cache.Get(ctx, key)
}

// EndSession discards a session identifier. Idempotent.
func (o *Orchestrator) EndSession(ctx context.Context, id string) {
	o.sessions.Delete(id)
	if o.publisher != nil {
		if err := o.publisher.PublishSession(ctx, protocol.SessionEvent{SessionID: id, State: "ended"}); err != nil {
			o.log.Debug("session event publish failed", slog.String("error", err.Error()))
		}
	}
}

// resolve runs the per-request state machine up to the finalized envelope.
// Collaborator failures degrade to fallback envelopes; resolve itself never
// fails.
func (o *Orchestrator) resolve(ctx context.Context, req QueryRequest) Envelope {
	sessionID, created := o.sessions.Ensure(req.SessionID)
	if created && o.publisher != nil {
		if err := o.publisher.PublishSession(ctx, protocol.SessionEvent{SessionID: sessionID, State: "created"}); err != nil {
			o.log.Debug("session event publish failed", slog.String("error", err.Error()))
		}
	}

	if req.InteractionCount != nil || strings.TrimSpace(req.Text) == "" {
		return Envelope{
			SessionID: sessionID,
			Success:   true,
			Intent:    intent.IntentEntry,
			UIAction:  intent.UIActionEntry,
			AudioURL:  o.greetings.EntryAudioURL,
		}
	}

	verdict, err := o.classifier.Classify(ctx, intent.Request{
		Text:        req.Text,
		SessionID:   sessionID,
		Language:    req.PreferredLanguage,
		DriverName:  req.DriverProfile.Name,
		VehicleType: req.DriverProfile.VehicleType,
		Latitude:    latitude(req.CurrentLocation),
		Longitude:   longitude(req.CurrentLocation),
	})
	if err != nil {
		o.log.Warn("classification failed, serving fallback",
			slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return fallbackEnvelope(sessionID, req.PreferredLanguage)
	}

	env := Envelope{
		SessionID:    sessionID,
		Success:      true,
		Intent:       verdict.Intent,
		UIAction:     verdict.UIAction,
		ResponseText: verdict.ResponseText,
	}

	switch verdict.Intent {
	case intent.IntentGetDuties:
		data, err := o.fetchDuties(ctx, req, verdict.Params)
		if err != nil {
			o.log.Warn("duty search failed, serving fallback",
				slog.String("session_id", sessionID), slog.String("error", err.Error()))
			env.ResponseText = fallbackDataText(req.PreferredLanguage)
			env.Data = nil
			break
		}
		env.Data = data
		env.AudioURL = o.greetings.DutyAudioURL
	case intent.IntentCNGPumps:
		env = o.withStations(ctx, env, req, "cng")
	case intent.IntentPetrolPumps:
		env = o.withStations(ctx, env, req, "petrol")
	case intent.IntentParking:
		env = o.withStations(ctx, env, req, "parking")
	case intent.IntentProfileVerification:
		env.Data = verificationData(req.DriverProfile)
	}

	return env
}

// fetchDuties fans out text and geo searches over trips and leads in
// parallel, then merges, dedupes, and orders the results newest-first.
func (o *Orchestrator) fetchDuties(ctx context.Context, req QueryRequest, params map[string]string) (*DutyData, error) {
	pickupCity := params["from_city"]
	dropCity := params["to_city"]
	cityNames := search.ExtractCities(req.Text)
	if pickupCity == "" && len(cityNames) > 0 {
		pickupCity = cityNames[0]
	}
	if dropCity == "" && len(cityNames) > 1 {
		dropCity = cityNames[1]
	}

	var pickup *search.Location
	if pickupCity != "" && o.geocoder != nil {
		loc, err := o.geocoder.CityCoordinates(ctx, pickupCity)
		if err != nil {
			o.log.Debug("geocoding failed, text search only",
				slog.String("city", pickupCity), slog.String("error", err.Error()))
		} else {
			pickup = loc
		}
	}

	textQuery := search.TripQuery{PickupCity: pickupCity, DropCity: dropCity}
	var wg sync.WaitGroup
	var textTrips, textLeads, geoTrips, geoLeads []search.Duty
	var textTripsErr, textLeadsErr, geoTripsErr, geoLeadsErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		textTrips, textTripsErr = o.searcher.SearchTrips(ctx, textQuery)
	}()
	go func() {
		defer wg.Done()
		textLeads, textLeadsErr = o.searcher.SearchLeads(ctx, textQuery)
	}()
	if pickup != nil {
		geoQuery := search.TripQuery{Pickup: pickup}
		wg.Add(2)
		go func() {
			defer wg.Done()
			geoTrips, geoTripsErr = o.searcher.SearchTrips(ctx, geoQuery)
		}()
		go func() {
			defer wg.Done()
			geoLeads, geoLeadsErr = o.searcher.SearchLeads(ctx, geoQuery)
		}()
	}
	wg.Wait()

	// Only a total failure degrades; a partial result set is still a result.
	if textTripsErr != nil && textLeadsErr != nil && (pickup == nil || (geoTripsErr != nil && geoLeadsErr != nil)) {
		return nil, fmt.Errorf("duty search: %w", errors.Join(textTripsErr, textLeadsErr, geoTripsErr, geoLeadsErr))
	}

	trips := search.MergeDuties(textTrips, geoTrips)
	leads := search.MergeDuties(textLeads, geoLeads)
	duties := search.CombineDuties(trips, leads)

	return &DutyData{
		Duties:    duties,
		CityNames: cityNames,
		Query:     DutyQuery{PickupCity: pickupCity, DropCity: dropCity, UsedGeo: pickup != nil},
		Counts:    DutyCounts{Trips: len(trips), Leads: len(leads), Total: len(duties)},
	}, nil
}

func (o *Orchestrator) withStations(ctx context.Context, env Envelope, req QueryRequest, fuelType string) Envelope {
	if req.CurrentLocation == nil {
		return env
	}
	stations, err := o.searcher.SearchFuelStations(ctx, *req.CurrentLocation, fuelType)
	if err != nil {
		o.log.Warn("station search failed, serving fallback",
			slog.String("fuel_type", fuelType), slog.String("error", err.Error()))
		env.ResponseText = fallbackDataText(req.PreferredLanguage)
		return env
	}
	env.Data = &StationData{Stations: stations}
	return env
}

func verificationData(profile DriverProfile) *VerificationData {
	return &VerificationData{
		IsVerified: profile.IsVerified,
		Checklist: []ChecklistItem{
			{Item: "License", Verified: profile.LicenseVerified},
			{Item: "RC (Registration Certificate)", Verified: profile.RCVerified},
			{Item: "Insurance", Verified: profile.InsuranceVerified},
		},
		PendingDocuments: profile.DocumentsPending,
	}
}

func (o *Orchestrator) synthFunc(text, language string) audiocache.SynthFunc {
	return func(ctx context.Context) ([]byte, error) {
		o.countSynth(ctx)
		data, err := tts.Collect(ctx, o.synth, o.synthRequest(text, language))
		if err != nil {
			return nil, &audiocache.SynthesisError{Err: err}
		}
		return data, nil
	}
}

func (o *Orchestrator) streamFunc(text, language string) audiocache.StreamFunc {
	return func(ctx context.Context) (<-chan []byte, <-chan error) {
		o.countSynth(ctx)
		chunks, errs := o.synth.Synthesize(ctx, o.synthRequest(text, language))
		out := make(chan []byte)
		go func() {
			defer close(out)
			for chunk := range chunks {
				select {
				case out <- chunk.Audio:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, errs
	}
}

func (o *Orchestrator) synthRequest(text, language string) tts.SynthRequest {
	lang := o.ttsCfg.Language
	if language != "" && language != "hi" {
		lang = language
	}
	return tts.SynthRequest{Text: text, Voice: o.ttsCfg.Voice, Language: lang}
}

// record appends the turn to the event store and publishes it on the bus.
// Both are best effort; the driver's response never waits on analytics.
func (o *Orchestrator) record(ctx context.Context, req QueryRequest, env Envelope, cacheHit bool, elapsed time.Duration) {
	if o.requestCount != nil {
		o.requestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", string(env.Intent))))
	}
	if o.turns != nil {
		if err := o.turns.AppendSession(ctx, env.SessionID, req.DriverProfile.Name, req.DriverProfile.VehicleType); err != nil {
			o.log.Warn("session persist failed", slog.String("error", err.Error()))
		}
		payload, _ := json.Marshal(env.Data)
		turn := eventstore.Turn{
			SessionID: env.SessionID,
			Intent:    string(env.Intent),
			UIAction:  string(env.UIAction),
			Query:     req.Text,
			CacheHit:  cacheHit,
			LatencyMS: elapsed.Milliseconds(),
			Payload:   payload,
		}
		if err := o.turns.AppendTurn(ctx, turn); err != nil {
			o.log.Warn("turn persist failed", slog.String("error", err.Error()))
		}
	}
	if o.publisher != nil {
		evt := protocol.TurnEvent{
			SessionID:    env.SessionID,
			Intent:       string(env.Intent),
			UIAction:     string(env.UIAction),
			Query:        req.Text,
			ResponseText: env.ResponseText,
			CacheHit:     cacheHit,
			LatencyMS:    elapsed.Milliseconds(),
		}
		if err := o.publisher.PublishTurn(ctx, evt); err != nil {
			o.log.Debug("turn event publish failed", slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) countCache(ctx context.Context, hit bool) {
	if hit && o.cacheHitCount != nil {
		o.cacheHitCount.Add(ctx, 1)
	}
	if !hit && o.cacheMissCount != nil {
		o.cacheMissCount.Add(ctx, 1)
	}
}

func (o *Orchestrator) countSynth(ctx context.Context) {
	if o.synthCount != nil {
		o.synthCount.Add(ctx, 1)
	}
}

func latitude(loc *search.Location) float64 {
	if loc == nil {
		return 0
	}
	return loc.Latitude
}

func longitude(loc *search.Location) float64 {
	if loc == nil {
		return 0
	}
	return loc.Longitude
}
