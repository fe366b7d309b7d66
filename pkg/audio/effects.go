package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep/v2"
)

// Fader applies a per-clip gain that ramps towards its target instead of
// jumping, so narration starts without a click.
//
// Fader is not synchronized. With the speaker package every method must be
// called while holding speaker.Lock(), the same lock the speaker goroutine
// holds while it calls Stream.
type Fader struct {
	Streamer beep.Streamer

	target  float64
	current float64
	step    float64
}

// NewFader starts at gain from and ramps to gain to over d.
func NewFader(s beep.Streamer, from, to float64, sampleRate beep.SampleRate, d time.Duration) *Fader {
	f := &Fader{Streamer: s, current: clamp01(from)}
	f.RampTo(to, sampleRate, d)
	return f
}

func (f *Fader) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = f.Streamer.Stream(samples)
	for i := 0; i < n; i++ {
		if f.current != f.target {
			if f.current < f.target {
				f.current = math.Min(f.current+f.step, f.target)
			} else {
				f.current = math.Max(f.current-f.step, f.target)
			}
		}
		samples[i][0] *= f.current
		samples[i][1] *= f.current
	}
	return n, ok
}

func (f *Fader) Err() error {
	return f.Streamer.Err()
}

// Gain is the gain applied to the most recent sample.
func (f *Fader) Gain() float64 {
	return f.current
}

// RampTo moves the gain to level over d. A non-positive d jumps on the next sample.
func (f *Fader) RampTo(level float64, sampleRate beep.SampleRate, d time.Duration) {
	f.target = clamp01(level)
	diff := math.Abs(f.target - f.current)
	switch {
	case diff == 0:
		f.step = 0
	case d <= 0 || sampleRate <= 0:
		f.step = 1
	default:
		f.step = diff / (float64(sampleRate) * d.Seconds())
	}
}
