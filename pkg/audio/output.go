package audio

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// PlayOptions control a single playback.
type PlayOptions struct {
	Rate   float64 // playback speed, 1 is normal; clamped to [0.5, 2]
	Volume float64 // per-clip gain 0..1 on top of the output volume; 0 or less means full
}

func (o PlayOptions) rate() float64 {
	switch {
	case o.Rate <= 0:
		return 1
	case o.Rate < 0.5:
		return 0.5
	case o.Rate > 2:
		return 2
	}
	return o.Rate
}

func (o PlayOptions) gain() float64 {
	if o.Volume <= 0 {
		return 1
	}
	return clamp01(o.Volume)
}

// Playback is a stream started on an Output.
type Playback interface {
	Pause()
	Resume()
	// Rewind seeks back to the first sample.
	Rewind() error
	// Close releases the stream. onDone fires if it has not already.
	Close()
}

// Output renders decoded streams. onDone is called exactly once, when the
// stream ends or the playback is closed, and never from inside Start.
type Output interface {
	Start(s beep.StreamSeekCloser, format beep.Format, opts PlayOptions, onDone func()) (Playback, error)
	SetVolume(vol float64)
	Volume() float64
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// volumeToPower maps a linear 0..1 volume to beep's base-2 exponent.
func volumeToPower(vol float64) float64 {
	if vol <= 0.01 {
		return -10
	}
	return math.Log2(vol)
}
