package edgetts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stilllift/pkg/tracker"
	"stilllift/pkg/tts"
)

const (
	providerName = "edge-tts"
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
	dialAttempts = 3
)

// DefaultVoice is spoken when a request names none.
const DefaultVoice = "en-US-AvaMultilingualNeural"

// Config holds the Edge endpoint settings. They are read from the
// environment since they change with Edge releases.
type Config struct {
	BaseURL            string
	Origin             string
	UserAgent          string
	TrustedClientToken string
	SecMSGecVersion    string
	Voice              string
}

// ConfigFromEnv reads EDGE_TTS_* variables.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:            os.Getenv("EDGE_TTS_BASE_URL"),
		Origin:             os.Getenv("EDGE_TTS_ORIGIN"),
		UserAgent:          os.Getenv("EDGE_TTS_USER_AGENT"),
		TrustedClientToken: os.Getenv("EDGE_TTS_TRUSTED_CLIENT_TOKEN"),
		SecMSGecVersion:    os.Getenv("EDGE_TTS_SEC_MS_GEC_VERSION"),
		Voice:              os.Getenv("EDGE_TTS_VOICE"),
	}
}

// Validate reports the first missing setting.
func (c Config) Validate() error {
	missing := []struct{ name, val string }{
		{"EDGE_TTS_BASE_URL", c.BaseURL},
		{"EDGE_TTS_ORIGIN", c.Origin},
		{"EDGE_TTS_USER_AGENT", c.UserAgent},
		{"EDGE_TTS_TRUSTED_CLIENT_TOKEN", c.TrustedClientToken},
		{"EDGE_TTS_SEC_MS_GEC_VERSION", c.SecMSGecVersion},
	}
	for _, m := range missing {
		if m.val == "" {
			return fmt.Errorf("%s environment variable is required", m.name)
		}
	}
	return nil
}

// Provider implements tts.Provider for Microsoft Edge TTS.
type Provider struct {
	cfg     Config
	tracker *tracker.Tracker
	dialer  *websocket.Dialer
	now     func() time.Time
}

// NewProvider creates a new Edge TTS provider.
func NewProvider(cfg Config, t *tracker.Tracker) *Provider {
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	return &Provider{cfg: cfg, tracker: t, dialer: websocket.DefaultDialer, now: time.Now}
}

func (p *Provider) Name() string { return providerName }

// Synthesize streams mp3 audio from Edge TTS into w.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, w io.Writer) (string, error) {
	if err := p.cfg.Validate(); err != nil {
		return "", err
	}
	voice := req.Voice
	if voice == "" {
		voice = p.cfg.Voice
	}

	start := time.Now()
	conn, err := p.dial(ctx)
	if err != nil {
		p.tracker.TrackFailure(providerName)
		return "", err
	}
	defer conn.Close()

	if err := p.sendConfig(conn); err != nil {
		return "", err
	}

	requestID := strings.ReplaceAll(uuid.New().String(), "-", "")
	ssml := tts.BuildSSML("en-US", voice, req.Text, req.Prosody)
	if err := p.sendSSML(conn, ssml, requestID); err != nil {
		return "", err
	}

	n, err := p.consumeResponses(ctx, conn, w)
	entry := tts.LogEntry{Provider: providerName, Voice: voice, SSML: ssml, Bytes: int64(n), Elapsed: time.Since(start)}
	if err == nil && n < tts.MinAudioSize {
		err = fmt.Errorf("edge tts returned %d bytes of audio", n)
	}
	if err != nil {
		entry.Err = err
		tts.Log(entry)
		p.tracker.TrackFailure(providerName)
		return "", err
	}

	entry.Status = http.StatusOK
	tts.Log(entry)
	p.tracker.TrackSuccess(providerName)
	return "mp3", nil
}

func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Origin", p.cfg.Origin)
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("User-Agent", p.cfg.UserAgent)
	header.Set("Accept-Language", "en-US,en;q=0.9")
	header.Set("Cookie", "muid="+strings.ReplaceAll(uuid.New().String(), "-", ""))

	url := fmt.Sprintf("%s?TrustedClientToken=%s&Sec-MS-GEC=%s&Sec-MS-GEC-Version=%s",
		p.cfg.BaseURL, p.cfg.TrustedClientToken, p.generateSecMSGec(), p.cfg.SecMSGecVersion)

	var dialErr error
	for i := 0; i < dialAttempts; i++ {
		conn, resp, err := p.dialer.DialContext(ctx, url, header)
		if err == nil {
			return conn, nil
		}
		dialErr = err
		if resp != nil {
			slog.Warn("EdgeTTS: handshake failure", "status", resp.Status, "status_code", resp.StatusCode)
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, tts.NewFatalError(resp.StatusCode, fmt.Sprintf("edge tts handshake rejected: %s", resp.Status))
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("websocket dial failed after retries: %w", dialErr)
}

// generateSecMSGec derives the clock-bound token Edge expects: Windows file
// time ticks rounded down to five minutes, hashed with the client token.
func (p *Provider) generateSecMSGec() string {
	ticks := p.now().Unix() + 11644473600
	ticks -= ticks % 300
	str := fmt.Sprintf("%d0000000%s", ticks, p.cfg.TrustedClientToken)
	hash := sha256.Sum256([]byte(str))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

func (p *Provider) sendConfig(conn *websocket.Conn) error {
	msg := "Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + outputFormat + `"}}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send speech.config: %w", err)
	}
	return nil
}

func (p *Provider) sendSSML(conn *websocket.Conn, ssml, requestID string) error {
	msg := fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s", requestID, ssml)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send ssml: %w", err)
	}
	return nil
}

func (p *Provider) consumeResponses(ctx context.Context, conn *websocket.Conn, w io.Writer) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	total := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return total, ctxErr
			}
			return total, fmt.Errorf("read message failed: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				return total, nil
			}
		case websocket.BinaryMessage:
			n, err := handleBinaryMessage(data, w)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
}

// handleBinaryMessage strips the length-prefixed header from an audio frame.
func handleBinaryMessage(data []byte, w io.Writer) (int, error) {
	if len(data) < 2 {
		return 0, nil
	}
	headerLength := int(uint16(data[0])<<8 | uint16(data[1]))
	if len(data) < 2+headerLength {
		slog.Debug("EdgeTTS: dropping truncated frame", "len", len(data), "header", headerLength)
		return 0, nil
	}
	audio := data[2+headerLength:]
	if len(audio) == 0 {
		return 0, nil
	}
	n, err := w.Write(audio)
	if err != nil {
		return n, fmt.Errorf("write audio data failed: %w", err)
	}
	return n, nil
}

// Voices returns calm English neural voices suited to guidance narration.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "en-US-AvaMultilingualNeural", Name: "Ava (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-US-AndrewMultilingualNeural", Name: "Andrew (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-US-EmmaMultilingualNeural", Name: "Emma (Multilingual)", Language: "en-US", IsNeural: true},
		{ID: "en-GB-SoniaNeural", Name: "Sonia (UK)", Language: "en-GB", IsNeural: true},
		{ID: "en-AU-NatashaNeural", Name: "Natasha (Australia)", Language: "en-AU", IsNeural: true},
	}, nil
}
