package speech

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"stilllift/pkg/audio"
	"stilllift/pkg/audio/audiotest"
	"stilllift/pkg/tts"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	last   tts.Request
	length time.Duration
	err    error
	block  chan struct{}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Synthesize(ctx context.Context, req tts.Request, w io.Writer) (string, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	_, err := w.Write(audiotest.WAV(f.length))
	return "wav", err
}

func (f *fakeProvider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "en-US-AvaNeural", Name: "Ava"},
		{ID: "en-GB-SoniaNeural", Name: "Sonia"},
	}, nil
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *memCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *memCache) HasCache(ctx context.Context, key string) (bool, error) {
	_, ok := c.GetCache(ctx, key)
	return ok, nil
}

func (c *memCache) SetCache(ctx context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = val
	return nil
}

type codeRecorder struct {
	mu    sync.Mutex
	codes []ErrorCode
}

func (r *codeRecorder) handle(code ErrorCode, err error) {
	r.mu.Lock()
	r.codes = append(r.codes, code)
	r.mu.Unlock()
}

func (r *codeRecorder) Codes() []ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ErrorCode(nil), r.codes...)
}

func waitDone(t *testing.T, u *Utterance) {
	t.Helper()
	select {
	case <-u.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("utterance did not finish")
	}
}

func TestErrorCode_Benign(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{CodeInterrupted, true},
		{CodeCanceled, true},
		{CodeNotAllowed, true},
		{CodeSynthesisFailed, false},
		{ErrorCode("network"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Benign())
		})
	}
}

func TestSpeak_Unavailable(t *testing.T) {
	e := NewEngine(nil, audio.NewNullOutput(), nil)
	assert.False(t, e.Available())

	_, err := e.Speak(context.Background(), "hello", Options{})
	assert.ErrorIs(t, err, ErrUnavailable)

	var nilEngine *Engine
	assert.False(t, nilEngine.Available())
}

func TestSpeak_Completes(t *testing.T) {
	p := &fakeProvider{length: 50 * time.Millisecond}
	rec := &codeRecorder{}
	e := NewEngine(p, audio.NewNullOutput(), nil)
	e.SetErrorHandler(rec.handle)

	u, err := e.Speak(context.Background(), "  breathe  ", Options{Rate: -0.15})
	require.NoError(t, err)
	assert.True(t, u.Speaking())
	assert.Equal(t, "breathe", u.Text)

	waitDone(t, u)
	assert.False(t, u.Speaking())
	assert.False(t, e.Speaking())
	assert.NoError(t, u.Err())
	assert.Empty(t, rec.Codes())
	assert.Equal(t, -0.15, p.last.Prosody.Rate)
}

func TestSpeak_EmptyText(t *testing.T) {
	e := NewEngine(&fakeProvider{}, audio.NewNullOutput(), nil)
	_, err := e.Speak(context.Background(), "   ", Options{})
	assert.Error(t, err)
}

func TestSpeak_CancelWhilePlaying(t *testing.T) {
	p := &fakeProvider{length: 5 * time.Second}
	rec := &codeRecorder{}
	e := NewEngine(p, audio.NewNullOutput(), nil)
	e.SetErrorHandler(rec.handle)

	u, err := e.Speak(context.Background(), "a long one", Options{})
	require.NoError(t, err)

	// Let synthesis finish so the output is audible.
	time.Sleep(50 * time.Millisecond)
	e.Cancel()
	waitDone(t, u)

	var se *Error
	require.True(t, errors.As(u.Err(), &se))
	assert.Equal(t, CodeInterrupted, se.Code)
	assert.Equal(t, []ErrorCode{CodeInterrupted}, rec.Codes())
}

func TestSpeak_CancelDuringSynthesis(t *testing.T) {
	p := &fakeProvider{length: time.Second, block: make(chan struct{})}
	rec := &codeRecorder{}
	e := NewEngine(p, audio.NewNullOutput(), nil)
	e.SetErrorHandler(rec.handle)

	u, err := e.Speak(context.Background(), "never heard", Options{})
	require.NoError(t, err)
	u.Cancel()
	u.Cancel()
	waitDone(t, u)

	assert.Equal(t, []ErrorCode{CodeCanceled}, rec.Codes())
}

func TestSpeak_SynthesisFailure(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	rec := &codeRecorder{}
	e := NewEngine(p, audio.NewNullOutput(), nil)
	e.SetErrorHandler(rec.handle)

	u, err := e.Speak(context.Background(), "x", Options{})
	require.NoError(t, err)
	waitDone(t, u)

	assert.Equal(t, []ErrorCode{CodeSynthesisFailed}, rec.Codes())
	assert.False(t, rec.Codes()[0].Benign())
}

func TestSpeak_OutlivesRequestContext(t *testing.T) {
	p := &fakeProvider{length: 100 * time.Millisecond}
	rec := &codeRecorder{}
	e := NewEngine(p, audio.NewNullOutput(), nil)
	e.SetErrorHandler(rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	u, err := e.Speak(ctx, "stay", Options{})
	require.NoError(t, err)
	cancel()
	waitDone(t, u)

	assert.Empty(t, rec.Codes())
}

func TestSpeak_UsesCache(t *testing.T) {
	p := &fakeProvider{length: 20 * time.Millisecond}
	cache := &memCache{m: make(map[string][]byte)}
	e := NewEngine(p, audio.NewNullOutput(), cache)

	for range 2 {
		u, err := e.Speak(context.Background(), "same words", Options{})
		require.NoError(t, err)
		waitDone(t, u)
		assert.NoError(t, u.Err())
	}
	assert.Equal(t, 1, p.Calls())
	assert.Len(t, cache.m, 1)
}

func TestSelectVoice(t *testing.T) {
	e := NewEngine(&fakeProvider{}, audio.NewNullOutput(), nil)
	ctx := context.Background()

	assert.Equal(t, "", e.SelectVoice(ctx, nil))
	assert.Equal(t, "en-GB-SoniaNeural", e.SelectVoice(ctx, []string{"sonia", "ava"}))
	assert.Equal(t, "en-US-AvaNeural", e.SelectVoice(ctx, []string{"Samantha", "en-us"}))
	assert.Equal(t, "", e.SelectVoice(ctx, []string{"Karen"}))
}
