package config

import (
	"context"
	"fmt"
	"strconv"

	"stilllift/pkg/store"
)

// Provider exposes settings that can change at runtime.
type Provider interface {
	TTSFallback(ctx context.Context) bool
	Volume(ctx context.Context) float64
	Voice(ctx context.Context) string

	SetTTSFallback(ctx context.Context, enabled bool) error
	SetVolume(ctx context.Context, vol float64) error
	SetVoice(ctx context.Context, voice string) error

	// AppConfig gives raw access to the static file configuration.
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider. st may be nil.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{base: base, store: st}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) TTSFallback(ctx context.Context) bool {
	return p.getBool(ctx, KeyTTSFallback, p.base.Narration.TTSFallback)
}

func (p *UnifiedProvider) Volume(ctx context.Context) float64 {
	v := p.getFloat64(ctx, KeyVolume, p.base.Audio.Volume)
	if v < 0 || v > 1 {
		return p.base.Audio.Volume
	}
	return v
}

func (p *UnifiedProvider) Voice(ctx context.Context) string {
	return p.getString(ctx, KeyVoice, p.base.Narration.Voice)
}

func (p *UnifiedProvider) SetTTSFallback(ctx context.Context, enabled bool) error {
	return p.set(ctx, KeyTTSFallback, strconv.FormatBool(enabled))
}

func (p *UnifiedProvider) SetVolume(ctx context.Context, vol float64) error {
	if vol < 0 || vol > 1 {
		return fmt.Errorf("volume %v out of range [0, 1]", vol)
	}
	return p.set(ctx, KeyVolume, strconv.FormatFloat(vol, 'f', -1, 64))
}

func (p *UnifiedProvider) SetVoice(ctx context.Context, voice string) error {
	if voice == "" {
		if p.store == nil {
			return nil
		}
		return p.store.DeleteState(ctx, KeyVoice)
	}
	return p.set(ctx, KeyVoice, voice)
}

// --- Helpers ---

func (p *UnifiedProvider) set(ctx context.Context, key, val string) error {
	if p.store == nil {
		return fmt.Errorf("no state store configured")
	}
	if err := p.store.SetState(ctx, key, val); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val == "true"
		}
	}
	return fallback
}
