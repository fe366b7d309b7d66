package narration

import (
	"context"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stilllift/pkg/audio"
	"stilllift/pkg/audio/audiotest"
	"stilllift/pkg/speech"
	"stilllift/pkg/store"
	"stilllift/pkg/tracker"
	"stilllift/pkg/tts"
)

type staticPolicy bool

func (p staticPolicy) TTSFallback(context.Context) bool { return bool(p) }

type memHistory struct {
	mu   sync.Mutex
	recs []store.NarrationRecord
}

func (h *memHistory) SaveNarration(_ context.Context, r *store.NarrationRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, *r)
	return nil
}

func (h *memHistory) RecentNarrations(_ context.Context, limit int) ([]store.NarrationRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.recs), nil
}

type toneProvider struct {
	mu    sync.Mutex
	texts []string
}

func (p *toneProvider) Name() string { return "tone" }

func (p *toneProvider) Synthesize(_ context.Context, req tts.Request, w io.Writer) (string, error) {
	p.mu.Lock()
	p.texts = append(p.texts, req.Text)
	p.mu.Unlock()
	_, err := w.Write(audiotest.WAV(2 * time.Second))
	return "wav", err
}

func (p *toneProvider) Voices(context.Context) ([]tts.Voice, error) { return nil, nil }

func newTestNarrator(f *fakeAssets, opts ...NarratorOption) (*Narrator, *Coordinator) {
	c := NewCoordinator()
	r := NewResolver(f, c, tracker.New(), 200*time.Millisecond)
	return NewNarrator(c, r, opts...), c
}

func TestNarrator_PlaysRecordedAudio(t *testing.T) {
	f := newFakeAssets()
	f.cached[structured03] = true
	hist := &memHistory{}
	var events []store.NarrationRecord
	n, c := newTestNarrator(f, WithHistory(hist), WithEventLogger(func(r store.NarrationRecord) { events = append(events, r) }))

	res := n.Play(context.Background(), "", "Notice five things.", goodStill(3))
	assert.Equal(t, Result{Played: true, Outcome: store.OutcomeAudio, Source: structured03, CandidatesTried: 1}, res)

	require.Len(t, hist.recs, 1)
	rec := hist.recs[0]
	assert.Equal(t, "good", rec.Mood)
	assert.Equal(t, "still", rec.Context)
	assert.Equal(t, 3, rec.AudioIndex)
	assert.Equal(t, "task", rec.Intent)
	assert.Equal(t, store.OutcomeAudio, rec.Outcome)
	assert.Len(t, events, 1)

	c.StopAll()
}

func TestNarrator_SilentWithoutFallback(t *testing.T) {
	f := newFakeAssets()
	prov := &toneProvider{}
	engine := speech.NewEngine(prov, audio.NewNullOutput(), nil)
	hist := &memHistory{}
	n, c := newTestNarrator(f, WithSpeech(engine), WithFallbackPolicy(staticPolicy(false)), WithHistory(hist))

	res := n.Play(context.Background(), "", "Nothing recorded.", DefaultOptions())
	assert.False(t, res.Played)
	assert.Equal(t, store.OutcomeSilent, res.Outcome)
	assert.Equal(t, 4, res.CandidatesTried)
	assert.False(t, engine.Speaking())
	assert.Empty(t, prov.texts)
	assert.False(t, c.Status().Active)
	require.Len(t, hist.recs, 1)
	assert.Equal(t, store.OutcomeSilent, hist.recs[0].Outcome)
}

func TestNarrator_NilPolicyIsSilent(t *testing.T) {
	f := newFakeAssets()
	n, _ := newTestNarrator(f)
	res := n.Play(context.Background(), "", "x", DefaultOptions())
	assert.False(t, res.Played)
	assert.Equal(t, store.OutcomeSilent, res.Outcome)
}

func TestNarrator_SpeaksWhenFallbackEnabled(t *testing.T) {
	f := newFakeAssets()
	prov := &toneProvider{}
	engine := speech.NewEngine(prov, audio.NewNullOutput(), nil)
	c := NewCoordinator(WithSpeechEngine(engine))
	engine.SetErrorHandler(func(code speech.ErrorCode, err error) { c.ReportSpeechError(code, err) })
	n := NewNarrator(c, NewResolver(f, c, nil, 200*time.Millisecond), WithSpeech(engine), WithFallbackPolicy(staticPolicy(true)))

	opts := DefaultOptions()
	opts.Rate = 0.85
	res := n.Play(context.Background(), "Pause", "Breathe out slowly.", opts)
	require.True(t, res.Played)
	assert.Equal(t, store.OutcomeSpeech, res.Outcome)

	st := c.Status()
	assert.Equal(t, "speech", st.Kind)
	assert.True(t, st.Speaking)

	eventually(t, func() bool {
		prov.mu.Lock()
		defer prov.mu.Unlock()
		return len(prov.texts) == 1
	}, "provider never asked to synthesize")
	assert.Equal(t, "Pause. Breathe out slowly.", prov.texts[0])

	c.StopAll()
	eventually(t, func() bool { return !engine.Speaking() }, "utterance still speaking after stop")
}

func TestNarrator_SpeakWithoutEngine(t *testing.T) {
	n, c := newTestNarrator(newFakeAssets())
	assert.False(t, n.SpeechAvailable())
	assert.False(t, n.Speak(context.Background(), "hello", DefaultOptions()))
	assert.False(t, c.Status().Active)
}

func TestNarrator_SecondPlayStopsFirst(t *testing.T) {
	f := newFakeAssets()
	a := "/still-lift-audio/first.mp3"
	b := "/still-lift-audio/second.mp3"
	f.cached[a] = true
	f.cached[b] = true
	n, c := newTestNarrator(f)

	require.True(t, n.Play(context.Background(), "", "first", DefaultOptions()).Played)
	require.True(t, n.Play(context.Background(), "", "second", DefaultOptions()).Played)

	assert.Equal(t, []string{"play:" + a, "stop:" + a, "play:" + b}, f.Log())
	assert.Equal(t, []string{b}, f.Playing())
	assert.Equal(t, b, c.Status().Source)
	c.StopAll()
}

func TestNarrator_OverlappingPlaysLeaveOnlyTheLatest(t *testing.T) {
	f := newFakeAssets()
	a := "/still-lift-audio/slow-one.mp3"
	b := "/still-lift-audio/fast-one.mp3"
	f.loadable[a] = true
	f.loadDelay = 100 * time.Millisecond
	f.cached[b] = true
	n, c := newTestNarrator(f)

	var wg sync.WaitGroup
	var resA Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		resA = n.Play(context.Background(), "", "slow one", DefaultOptions())
	}()

	// B starts while A is still loading.
	eventually(t, func() bool { return len(f.Clips()) >= 1 }, "first narration never started")
	resB := n.Play(context.Background(), "", "fast one", DefaultOptions())
	wg.Wait()

	assert.True(t, resB.Played)
	assert.False(t, resA.Played)
	assert.Equal(t, []string{b}, f.Playing())
	assert.Equal(t, b, c.Status().Source)
	assert.NotContains(t, f.Log(), "play:"+a)
	c.StopAll()
}

func TestNarrator_ConcurrentPlaysKeepOneActive(t *testing.T) {
	f := newFakeAssets()
	for _, p := range []string{"one", "two", "three", "four", "five"} {
		f.cached["/still-lift-audio/"+p+".mp3"] = true
	}
	n, c := newTestNarrator(f)

	var wg sync.WaitGroup
	for _, p := range []string{"one", "two", "three", "four", "five"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Play(context.Background(), "", p, DefaultOptions())
		}()
	}
	wg.Wait()

	// The last Begin holds the only current token, so its clip must remain.
	eventually(t, func() bool { return len(f.Playing()) == 1 }, "expected exactly one clip playing")
	playing := f.Playing()
	st := c.Status()
	assert.True(t, st.Active)
	assert.Equal(t, playing[0], st.Source)
	c.StopAll()
	assert.Empty(t, f.Playing())
}

func TestNarrator_HomepageSurvivesTaskStop(t *testing.T) {
	f := newFakeAssets()
	f.cached["/still-lift-audio/homepage audio.mp3"] = true
	n, c := newTestNarrator(f)

	opts := DefaultOptions()
	opts.IsHomepage = true
	opts.Intent = IntentHomepage
	require.True(t, n.Play(context.Background(), "", "Welcome", opts).Played)

	c.StopByIntent(IntentTask)
	assert.Equal(t, []string{"/still-lift-audio/homepage audio.mp3"}, f.Playing())

	c.StopByIntent(IntentHomepage)
	assert.Empty(t, f.Playing())
}

func TestSpeechOptions(t *testing.T) {
	got := speechOptions(Options{Rate: 0.85, Pitch: 1.1, Volume: 0.6, VoiceHints: []string{"Ava"}})
	assert.InDelta(t, -0.15, got.Rate, 1e-9)
	assert.InDelta(t, 0.1, got.Pitch, 1e-9)
	assert.InDelta(t, -0.4, got.Volume, 1e-9)
	assert.Equal(t, []string{"Ava"}, got.VoiceHints)

	zero := speechOptions(Options{})
	assert.Equal(t, speech.Options{}, zero)
}
