// Package config loads the YAML configuration and bridges it with runtime
// overrides persisted in the database.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Audio outputs.
const (
	OutputSpeaker = "speaker"
	OutputNull    = "null"
)

// TTS engines.
const (
	EngineNone  = "none"
	EngineEdge  = "edge-tts"
	EngineAzure = "azure-speech"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Content   ContentConfig   `yaml:"content"`
	Assets    AssetsConfig    `yaml:"assets"`
	Audio     AudioConfig     `yaml:"audio"`
	Narration NarrationConfig `yaml:"narration"`
	TTS       TTSConfig       `yaml:"tts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server    LogSettings `yaml:"server"`
	Requests  LogSettings `yaml:"requests"`
	Narration LogSettings `yaml:"narration"`
	TTS       LogSettings `yaml:"tts"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path        string   `yaml:"path"`
	CacheTTL    Duration `yaml:"cache_ttl"`
	HistoryKeep int      `yaml:"history_keep"`
}

// ContentConfig selects the message library.
type ContentConfig struct {
	LibraryPath string `yaml:"library_path"` // empty uses the built-in library
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// AssetsConfig locates the narration audio files.
type AssetsConfig struct {
	Dir          string        `yaml:"dir"`      // local directory served at /still-lift-audio/
	BaseURL      string        `yaml:"base_url"` // remote origin; overrides dir when set
	CacheEntries int           `yaml:"cache_entries"`
	Timeout      Duration      `yaml:"timeout"`
	Backoff      BackoffConfig `yaml:"backoff"`
	Preload      bool          `yaml:"preload"`
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	Output string  `yaml:"output"`
	Volume float64 `yaml:"volume"`
}

// NarrationConfig holds resolver and coordinator settings.
type NarrationConfig struct {
	TTSFallback    bool     `yaml:"tts_fallback"`
	LoadTimeout    Duration `yaml:"load_timeout"`
	SuppressWindow Duration `yaml:"suppress_window"`
	Voice          string   `yaml:"voice"`
}

// EdgeTTSConfig holds settings for Edge TTS. Endpoint settings come from
// EDGE_TTS_* environment variables.
type EdgeTTSConfig struct {
	VoiceID string `yaml:"voice"`
}

// AzureSpeechConfig holds settings for Azure Speech TTS.
type AzureSpeechConfig struct {
	Key      string   `yaml:"key"`
	Region   string   `yaml:"region"` // e.g., "eastus"
	VoiceID  string   `yaml:"voice"`
	Language string   `yaml:"language"`
	Timeout  Duration `yaml:"timeout"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine      string            `yaml:"engine"`
	EdgeTTS     EdgeTTSConfig     `yaml:"edge_tts"`
	AzureSpeech AzureSpeechConfig `yaml:"azure_speech"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "localhost:1930",
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Log: LogConfig{
			Server:    LogSettings{Path: "./logs/server.log", Level: "INFO"},
			Requests:  LogSettings{Path: "./logs/requests.log", Level: "INFO"},
			Narration: LogSettings{Path: "./logs/narration.log", Level: "INFO"},
			TTS:       LogSettings{Path: "./logs/tts.log", Level: "INFO"},
		},
		DB: DBConfig{
			Path:        "./data/stilllift.db",
			CacheTTL:    Duration(30 * Day),
			HistoryKeep: 1000,
		},
		Assets: AssetsConfig{
			Dir:          "./still-lift-audio",
			CacheEntries: 64,
			Timeout:      Duration(10 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
			Preload: true,
		},
		Audio: AudioConfig{
			Output: OutputSpeaker,
			Volume: 1.0,
		},
		Narration: NarrationConfig{
			TTSFallback:    false,
			LoadTimeout:    Duration(2 * time.Second),
			SuppressWindow: Duration(500 * time.Millisecond),
		},
		TTS: TTSConfig{
			Engine: EngineNone,
			EdgeTTS: EdgeTTSConfig{
				VoiceID: "en-US-AvaMultilingualNeural",
			},
			AzureSpeech: AzureSpeechConfig{
				VoiceID:  "en-US-AvaMultilingualNeural",
				Language: "en-US",
				Timeout:  Duration(20 * time.Second),
			},
		},
	}
}

// Load loads the configuration from the given path. A missing file is
// created with defaults. An existing file is merged over the defaults but
// never rewritten, so user comments survive.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Secrets fall back to the environment and are never written back.
	if cfg.TTS.AzureSpeech.Key == "" {
		cfg.TTS.AzureSpeech.Key = os.Getenv("AZURE_SPEECH_KEY")
	}
	if cfg.TTS.AzureSpeech.Region == "" {
		cfg.TTS.AzureSpeech.Region = os.Getenv("AZURE_SPEECH_REGION")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enum fields and ranges.
func (c *Config) Validate() error {
	if !slices.Contains([]string{OutputSpeaker, OutputNull}, c.Audio.Output) {
		return fmt.Errorf("invalid audio.output %q: must be %s or %s", c.Audio.Output, OutputSpeaker, OutputNull)
	}
	if !slices.Contains([]string{EngineNone, EngineEdge, EngineAzure}, c.TTS.Engine) {
		return fmt.Errorf("invalid tts.engine %q", c.TTS.Engine)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return fmt.Errorf("invalid audio.volume %v: must be between 0 and 1", c.Audio.Volume)
	}
	if lang := c.TTS.AzureSpeech.Language; lang != "" && !isValidLocale(lang) {
		return fmt.Errorf("invalid tts.azure_speech.language '%s': must be 'xx-YY' (e.g. 'en-US')", lang)
	}
	if c.Narration.LoadTimeout <= 0 {
		return fmt.Errorf("narration.load_timeout must be positive")
	}
	return nil
}

var localePattern = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

func isValidLocale(s string) bool {
	return localePattern.MatchString(s)
}

var (
	reOutput = regexp.MustCompile(`(?m)^(\s+)output:`)
	reEngine = regexp.MustCompile(`(?m)^(\s+)engine:`)
	reFallbk = regexp.MustCompile(`(?m)^(\s+)tts_fallback:`)
)

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Still Lift Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
# Secrets may be left empty and supplied via .env / environment:
#   AZURE_SPEECH_KEY, AZURE_SPEECH_REGION, EDGE_TTS_*

`)
	data = append(header, data...)

	data = reOutput.ReplaceAll(data, []byte("${1}# Options: speaker, null (headless)\n${1}output:"))
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: none, edge-tts, azure-speech\n${1}engine:"))
	data = reFallbk.ReplaceAll(data, []byte("${1}# Speak the text when no recorded asset matches\n${1}tts_fallback:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
