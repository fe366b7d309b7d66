package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"stilllift/pkg/config"
	"stilllift/pkg/tracker"
	"stilllift/pkg/tts"
	"stilllift/pkg/version"
)

const providerName = "azure-speech"

// Provider implements tts.Provider for Azure Speech.
type Provider struct {
	key      string
	region   string
	voiceID  string
	language string
	client   *http.Client
	url      string
	tracker  *tracker.Tracker
}

// NewProvider creates a new Azure Speech TTS provider.
func NewProvider(cfg config.AzureSpeechConfig, t *tracker.Tracker) *Provider {
	lang := cfg.Language
	if lang == "" {
		lang = "en-US"
	}
	return &Provider{
		key:      cfg.Key,
		region:   cfg.Region,
		voiceID:  cfg.VoiceID,
		language: lang,
		client:   &http.Client{Timeout: cfg.Timeout.Std()},
		url:      fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region),
		tracker:  t,
	}
}

func (p *Provider) Name() string { return providerName }

// Synthesize posts SSML to Azure Speech and copies the mp3 response into w.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, w io.Writer) (string, error) {
	if p.key == "" || p.region == "" {
		return "", fmt.Errorf("azure speech key and region are required")
	}
	vid := p.voiceID
	if req.Voice != "" {
		vid = req.Voice
	}
	if vid == "" {
		return "", fmt.Errorf("no voice ID configured for Azure Speech")
	}

	ssml := tts.BuildSSML(p.language, vid, req.Text, req.Prosody)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewBufferString(ssml))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", "audio-24khz-160kbitrate-mono-mp3")
	httpReq.Header.Set("User-Agent", "StillLift/"+version.Version)

	entry := tts.LogEntry{Provider: providerName, Voice: vid, SSML: ssml}
	start := time.Now()
	resp, err := p.client.Do(httpReq)
	entry.Elapsed = time.Since(start)
	if err != nil {
		entry.Err = err
		tts.Log(entry)
		p.tracker.TrackFailure(providerName)
		return "", fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		entry.Status = resp.StatusCode
		tts.Log(entry)
		p.tracker.TrackFailure(providerName)

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		bodyStr := string(body)
		if err != nil {
			bodyStr = fmt.Sprintf("[failed to read body: %v]", err)
		}
		if bodyStr == "" {
			bodyStr = "[empty body]"
		}
		return "", tts.NewFatalError(resp.StatusCode,
			fmt.Sprintf("azure speech api error (status %d): %s", resp.StatusCode, bodyStr))
	}

	n, err := io.Copy(w, resp.Body)
	entry.Status, entry.Bytes, entry.Elapsed = resp.StatusCode, n, time.Since(start)
	if err != nil {
		entry.Err = err
		tts.Log(entry)
		p.tracker.TrackFailure(providerName)
		return "", fmt.Errorf("failed to read audio: %w", err)
	}
	tts.Log(entry)
	p.tracker.TrackSuccess(providerName)
	return "mp3", nil
}

// Voices returns the configured voice.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: p.voiceID, Name: "Configured Azure Voice", Language: p.language, IsNeural: true},
	}, nil
}
