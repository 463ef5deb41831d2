package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

type AudioCacheConfig struct {
	Backend       string `yaml:"backend"` // memory, sqlite
	Path          string `yaml:"path"`
	TTLHours      int    `yaml:"ttl_hours"`
	WaitTimeoutMS int    `yaml:"wait_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type EngineConfig struct {
	Mode      string `yaml:"mode"` // mock, remote
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type SearchConfig struct {
	Host               string  `yaml:"host"`
	Port               int     `yaml:"port"`
	Protocol           string  `yaml:"protocol"`
	APIKey             string  `yaml:"api_key"`
	TripsCollection    string  `yaml:"trips_collection"`
	LeadsCollection    string  `yaml:"leads_collection"`
	StationsCollection string  `yaml:"stations_collection"`
	RadiusKM           float64 `yaml:"radius_km"`
	Limit              int     `yaml:"limit"`
	TimeoutMS          int     `yaml:"timeout_ms"`
}

type GeocodeConfig struct {
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type TTSConfig struct {
	Mode      string `yaml:"mode"` // mock, exec, remote
	Command   string `yaml:"command"`
	Endpoint  string `yaml:"endpoint"`
	Voice     string `yaml:"voice"`
	Language  string `yaml:"language"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type GreetingsConfig struct {
	EntryAudioURL string `yaml:"entry_audio_url"`
	DutyAudioURL  string `yaml:"duty_audio_url"`
}

type Config struct {
	ServiceName string           `yaml:"service_name"`
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Session     SessionConfig    `yaml:"session"`
	AudioCache  AudioCacheConfig `yaml:"audio_cache"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Engine      EngineConfig     `yaml:"engine"`
	Search      SearchConfig     `yaml:"search"`
	Geocode     GeocodeConfig    `yaml:"geocode"`
	TTS         TTSConfig        `yaml:"tts"`
	Greetings   GreetingsConfig  `yaml:"greetings"`
}

func Default() Config {
	return Config{
		ServiceName: "raahi-assistant",
		Environment: "development",
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Session: SessionConfig{
			TTLMinutes: 60,
		},
		AudioCache: AudioCacheConfig{
			Backend:       "sqlite",
			Path:          "./data/audio-cache.db",
			TTLHours:      24 * 7,
			WaitTimeoutMS: 10000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/assistant-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Engine: EngineConfig{
			Mode:      "mock",
			Endpoint:  "http://localhost:9200",
			Model:     "gemini-1.5-flash",
			TimeoutMS: 15000,
		},
		Search: SearchConfig{
			Host:               "localhost",
			Port:               8108,
			Protocol:           "http",
			TripsCollection:    "trips",
			LeadsCollection:    "leads",
			StationsCollection: "fuel_stations",
			RadiusKM:           50,
			Limit:              50,
			TimeoutMS:          5000,
		},
		Geocode: GeocodeConfig{
			Endpoint:  "https://maps.googleapis.com/maps/api/geocode/json",
			TimeoutMS: 10000,
		},
		TTS: TTSConfig{
			Mode:      "mock",
			Voice:     "hi-IN-Chirp3-HD-Shilpa",
			Language:  "hi-IN",
			TimeoutMS: 45000,
		},
		Greetings: GreetingsConfig{},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "RAAHI_SERVICE_NAME")
	overrideString(&cfg.Environment, "RAAHI_ENVIRONMENT")
	overrideString(&cfg.Server.Bind, "RAAHI_SERVER_BIND")
	overrideInt(&cfg.Server.Port, "RAAHI_SERVER_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "RAAHI_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "RAAHI_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "RAAHI_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "RAAHI_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "RAAHI_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "RAAHI_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "RAAHI_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "RAAHI_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "RAAHI_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "RAAHI_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "RAAHI_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "RAAHI_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "RAAHI_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Session.TTLMinutes, "RAAHI_SESSION_TTL_MINUTES")
	overrideString(&cfg.AudioCache.Backend, "RAAHI_AUDIO_CACHE_BACKEND")
	overrideString(&cfg.AudioCache.Path, "RAAHI_AUDIO_CACHE_PATH")
	overrideInt(&cfg.AudioCache.TTLHours, "RAAHI_AUDIO_CACHE_TTL_HOURS")
	overrideInt(&cfg.AudioCache.WaitTimeoutMS, "RAAHI_AUDIO_CACHE_WAIT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "RAAHI_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "RAAHI_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "RAAHI_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "RAAHI_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "RAAHI_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Engine.Mode, "RAAHI_ENGINE_MODE")
	overrideString(&cfg.Engine.Endpoint, "RAAHI_ENGINE_ENDPOINT")
	overrideString(&cfg.Engine.APIKey, "RAAHI_ENGINE_API_KEY")
	overrideString(&cfg.Engine.Model, "RAAHI_ENGINE_MODEL")
	overrideInt(&cfg.Engine.TimeoutMS, "RAAHI_ENGINE_TIMEOUT_MS")
	overrideString(&cfg.Search.Host, "RAAHI_SEARCH_HOST")
	overrideInt(&cfg.Search.Port, "RAAHI_SEARCH_PORT")
	overrideString(&cfg.Search.Protocol, "RAAHI_SEARCH_PROTOCOL")
	overrideString(&cfg.Search.APIKey, "RAAHI_SEARCH_API_KEY")
	overrideString(&cfg.Search.TripsCollection, "RAAHI_SEARCH_TRIPS_COLLECTION")
	overrideString(&cfg.Search.LeadsCollection, "RAAHI_SEARCH_LEADS_COLLECTION")
	overrideString(&cfg.Search.StationsCollection, "RAAHI_SEARCH_STATIONS_COLLECTION")
	overrideFloat(&cfg.Search.RadiusKM, "RAAHI_SEARCH_RADIUS_KM")
	overrideInt(&cfg.Search.Limit, "RAAHI_SEARCH_LIMIT")
	overrideInt(&cfg.Search.TimeoutMS, "RAAHI_SEARCH_TIMEOUT_MS")
	overrideString(&cfg.Geocode.Endpoint, "RAAHI_GEOCODE_ENDPOINT")
	overrideString(&cfg.Geocode.APIKey, "RAAHI_GEOCODE_API_KEY")
	overrideInt(&cfg.Geocode.TimeoutMS, "RAAHI_GEOCODE_TIMEOUT_MS")
	overrideString(&cfg.TTS.Mode, "RAAHI_TTS_MODE")
	overrideString(&cfg.TTS.Command, "RAAHI_TTS_COMMAND")
	overrideString(&cfg.TTS.Endpoint, "RAAHI_TTS_ENDPOINT")
	overrideString(&cfg.TTS.Voice, "RAAHI_TTS_VOICE")
	overrideString(&cfg.TTS.Language, "RAAHI_TTS_LANGUAGE")
	overrideInt(&cfg.TTS.TimeoutMS, "RAAHI_TTS_TIMEOUT_MS")
	overrideString(&cfg.Greetings.EntryAudioURL, "RAAHI_GREETINGS_ENTRY_AUDIO_URL")
	overrideString(&cfg.Greetings.DutyAudioURL, "RAAHI_GREETINGS_DUTY_AUDIO_URL")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Session.TTLMinutes <= 0 {
		return errors.New("session.ttl_minutes must be positive")
	}
	switch cfg.AudioCache.Backend {
	case "memory", "sqlite":
	default:
		return errors.New("audio_cache.backend must be one of memory|sqlite")
	}
	if cfg.AudioCache.Backend == "sqlite" && cfg.AudioCache.Path == "" {
		return errors.New("audio_cache.path must not be empty when backend=sqlite")
	}
	if cfg.AudioCache.TTLHours <= 0 {
		return errors.New("audio_cache.ttl_hours must be positive")
	}
	if cfg.AudioCache.WaitTimeoutMS <= 0 {
		return errors.New("audio_cache.wait_timeout_ms must be positive")
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	switch cfg.Engine.Mode {
	case "mock", "remote":
	default:
		return errors.New("engine.mode must be one of mock|remote")
	}
	if cfg.Engine.Mode == "remote" && cfg.Engine.Endpoint == "" {
		return errors.New("engine.endpoint must be set when mode=remote")
	}
	switch cfg.TTS.Mode {
	case "mock", "exec", "remote":
	default:
		return errors.New("tts.mode must be one of mock|exec|remote")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.Mode == "remote" && cfg.TTS.Endpoint == "" {
		return errors.New("tts.endpoint must be set when mode=remote")
	}
	if cfg.Search.Limit <= 0 {
		return errors.New("search.limit must be positive")
	}
	if cfg.Search.RadiusKM <= 0 {
		return errors.New("search.radius_km must be positive")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
