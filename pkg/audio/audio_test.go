package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"stilllift/pkg/assets"
	"stilllift/pkg/audio/audiotest"
	"stilllift/pkg/tracker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDecode(t *testing.T) {
	wav := audiotest.WAV(100 * time.Millisecond)

	tests := []struct {
		name        string
		file        string
		data        []byte
		wantErr     bool
		unsupported bool
	}{
		{"wav", "a.wav", wav, false, false},
		{"upper case extension", "A.WAV", wav, false, false},
		{"m4a", "a.m4a", wav, true, true},
		{"no extension", "a", wav, true, true},
		{"corrupt wav", "a.wav", []byte("not a wav"), true, false},
		{"corrupt mp3", "a.mp3", []byte("not an mp3"), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, format, err := Decode(tt.file, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.unsupported, errors.Is(err, ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, beep.SampleRate(audiotest.SampleRate), format.SampleRate)
			assert.Equal(t, 800, s.Len())
		})
	}
}

func TestDuration(t *testing.T) {
	d, err := Duration("x.wav", audiotest.WAV(250*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

type constStreamer struct{ left int }

func (s *constStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.left == 0 {
		return 0, false
	}
	n := min(len(samples), s.left)
	for i := 0; i < n; i++ {
		samples[i] = [2]float64{1, 1}
	}
	s.left -= n
	return n, true
}

func (s *constStreamer) Err() error { return nil }

func TestFader_Ramp(t *testing.T) {
	f := NewFader(&constStreamer{left: 1000}, 0, 1, 100, time.Second)

	buf := make([][2]float64, 50)
	n, ok := f.Stream(buf)
	require.True(t, ok)
	require.Equal(t, 50, n)
	assert.InDelta(t, 0.01, buf[0][0], 1e-9)
	assert.InDelta(t, 0.5, buf[49][0], 1e-9)

	f.Stream(buf)
	f.Stream(buf)
	assert.InDelta(t, 1, f.Gain(), 1e-9, "gain must settle at the target")

	f.RampTo(0.25, 100, 0)
	f.Stream(buf[:1])
	assert.InDelta(t, 0.25, buf[0][0], 1e-9)
}

func TestPlayOptions_Rate(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1}, {-1, 1}, {0.2, 0.5}, {1.25, 1.25}, {3, 2},
	}
	for _, tt := range tests {
		if got := (PlayOptions{Rate: tt.in}).rate(); got != tt.want {
			t.Errorf("rate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPlayOptions_Gain(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1}, {-0.5, 1}, {0.25, 0.25}, {1, 1}, {4, 1},
	}
	for _, tt := range tests {
		if got := (PlayOptions{Volume: tt.in}).gain(); got != tt.want {
			t.Errorf("gain(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func newTestPlayer(t *testing.T, files map[string]time.Duration) *Player {
	t.Helper()
	root := t.TempDir()
	for name, d := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, audiotest.WAV(d), 0o644))
	}
	cache, err := assets.NewCache(8, nil)
	require.NoError(t, err)
	return NewPlayer(assets.NewDirSource(root, nil), cache, NewNullOutput())
}

func drain(t *testing.T, events <-chan LoadEvent) []LoadEvent {
	t.Helper()
	var got []LoadEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("load events not closed")
		}
	}
}

func TestClip_PlayAfterLoad(t *testing.T) {
	p := newTestPlayer(t, map[string]time.Duration{"good-still/Audio_1.wav": 80 * time.Millisecond})
	clip := p.NewClip("/still-lift-audio/good-still/Audio_1.wav", PlayOptions{Rate: 1, Volume: 1})

	assert.ErrorIs(t, clip.Play(), ErrNotLoaded)

	events := drain(t, clip.Load(context.Background()))
	assert.Equal(t, []LoadEvent{EventLoadedData, EventCanPlay, EventCanPlayThrough}, events)
	assert.Equal(t, 1, p.CacheLen())

	require.NoError(t, clip.Play())
	assert.True(t, clip.Playing())
	require.NoError(t, clip.Play(), "second Play is a no-op")

	select {
	case <-clip.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("clip did not finish")
	}
	assert.False(t, clip.Playing())
}

func TestClip_CachedAssetPlaysImmediately(t *testing.T) {
	p := newTestPlayer(t, map[string]time.Duration{"homepage audio.wav": time.Second})
	path := "/still-lift-audio/homepage audio.wav"
	require.Equal(t, 1, p.Preload(context.Background(), path, "/still-lift-audio/missing.wav"))

	clip := p.NewClip(path, PlayOptions{Volume: 1})
	require.NoError(t, clip.Play())
	require.NoError(t, clip.Stop())
	<-clip.Done()
}

func TestClip_CountsOneCacheLookup(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.wav"), audiotest.WAV(50*time.Millisecond), 0o644))
	tr := tracker.New()
	cache, err := assets.NewCache(8, tr)
	require.NoError(t, err)
	p := NewPlayer(assets.NewDirSource(root, nil), cache, NewNullOutput())

	missing := p.NewClip("/still-lift-audio/nope.wav", PlayOptions{})
	assert.ErrorIs(t, missing.Play(), ErrNotLoaded)
	assert.ErrorIs(t, missing.Play(), ErrNotLoaded)
	stats := tr.Snapshot()[tracker.ProviderCache]
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(0), stats.Hits)

	clip := p.NewClip("/still-lift-audio/a.wav", PlayOptions{})
	assert.ErrorIs(t, clip.Play(), ErrNotLoaded)
	drain(t, clip.Load(context.Background()))
	require.NoError(t, clip.Play())
	require.NoError(t, clip.Stop())
	<-clip.Done()

	stats = tr.Snapshot()[tracker.ProviderCache]
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(0), stats.Hits, "a load followed by play is not a cache hit")
}

func TestClip_Stop(t *testing.T) {
	p := newTestPlayer(t, map[string]time.Duration{"a.wav": 5 * time.Second})
	clip := p.NewClip("/still-lift-audio/a.wav", PlayOptions{Volume: 1})
	drain(t, clip.Load(context.Background()))
	require.NoError(t, clip.Play())

	require.NoError(t, clip.Stop())
	select {
	case <-clip.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Stop")
	}
	assert.False(t, clip.Playing())
	assert.ErrorIs(t, clip.Play(), ErrStopped)
	require.NoError(t, clip.Stop(), "Stop is idempotent")
}

func TestClip_StopBeforePlay(t *testing.T) {
	p := newTestPlayer(t, nil)
	clip := p.NewClip("/still-lift-audio/a.wav", PlayOptions{})
	require.NoError(t, clip.Stop())
	<-clip.Done()
}

func TestClip_LoadErrors(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.mp3"), []byte("garbage"), 0o644))
	cache, err := assets.NewCache(8, nil)
	require.NoError(t, err)
	p := NewPlayer(assets.NewDirSource(root, nil), cache, NewNullOutput())

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", "/still-lift-audio/missing.mp3", assets.ErrNotFound},
		{"undecodable", "/still-lift-audio/bad.mp3", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := p.NewClip(tt.path, PlayOptions{})
			assert.Equal(t, []LoadEvent{EventError}, drain(t, clip.Load(context.Background())))
			require.Error(t, clip.LoadErr())
			if tt.want != nil {
				assert.ErrorIs(t, clip.LoadErr(), tt.want)
			}
		})
	}
}

func TestNullOutput_PauseResume(t *testing.T) {
	s, format, err := Decode("a.wav", audiotest.WAV(100*time.Millisecond))
	require.NoError(t, err)

	done := make(chan struct{})
	out := NewNullOutput()
	pb, err := out.Start(s, format, PlayOptions{Rate: 1}, func() { close(done) })
	require.NoError(t, err)

	pb.Pause()
	select {
	case <-done:
		t.Fatal("paused playback finished")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, pb.Rewind())
	pb.Resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("resumed playback did not finish")
	}
	pb.Close()
}

func TestNullOutput_Volume(t *testing.T) {
	out := NewNullOutput()
	assert.Equal(t, 1.0, out.Volume())
	out.SetVolume(1.7)
	assert.Equal(t, 1.0, out.Volume())
	out.SetVolume(0.3)
	assert.Equal(t, 0.3, out.Volume())
}
