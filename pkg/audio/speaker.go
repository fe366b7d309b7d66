package audio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

const (
	speakerSampleRate = beep.SampleRate(48000)
	fadeIn            = 120 * time.Millisecond
)

// SpeakerOutput plays streams on the host sound device. Several playbacks
// may be mixed at once; each is stopped through its own Ctrl.
type SpeakerOutput struct {
	mu          sync.Mutex
	initialized bool
	volume      float64
	active      map[*speakerPlayback]struct{}
}

// NewSpeakerOutput creates an output at full volume. The device is opened on
// the first Start.
func NewSpeakerOutput(volume float64) *SpeakerOutput {
	return &SpeakerOutput{
		volume: clamp01(volume),
		active: make(map[*speakerPlayback]struct{}),
	}
}

func (o *SpeakerOutput) ensureSpeakerInitialized() error {
	if o.initialized {
		return nil
	}
	if err := speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10)); err != nil {
		slog.Error("Failed to initialize speaker", "error", err)
		return err
	}
	o.initialized = true
	return nil
}

// Start resamples s to the device rate, applying the playback rate, and
// begins mixing it.
func (o *SpeakerOutput) Start(s beep.StreamSeekCloser, format beep.Format, opts PlayOptions, onDone func()) (Playback, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.ensureSpeakerInitialized(); err != nil {
		return nil, err
	}

	ratio := float64(format.SampleRate) / float64(speakerSampleRate) * opts.rate()
	resampled := beep.ResampleRatio(3, ratio, s)
	fader := NewFader(resampled, 0, opts.gain(), speakerSampleRate, fadeIn)
	vol := &effects.Volume{
		Streamer: fader,
		Base:     2,
		Volume:   volumeToPower(o.volume),
		Silent:   o.volume <= 0.01,
	}

	p := &speakerPlayback{
		out:    o,
		stream: s,
		vol:    vol,
		onDone: onDone,
		ctrl:   &beep.Ctrl{Streamer: vol},
	}
	o.active[p] = struct{}{}

	speaker.Play(beep.Seq(p.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine with its lock held.
		go p.finish()
	})))
	return p, nil
}

// SetVolume changes the master volume of every active playback.
func (o *SpeakerOutput) SetVolume(vol float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.volume = clamp01(vol)
	if !o.initialized {
		return
	}
	speaker.Lock()
	for p := range o.active {
		p.vol.Volume = volumeToPower(o.volume)
		p.vol.Silent = o.volume <= 0.01
	}
	speaker.Unlock()
}

func (o *SpeakerOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

func (o *SpeakerOutput) remove(p *speakerPlayback) {
	o.mu.Lock()
	delete(o.active, p)
	o.mu.Unlock()
}

type speakerPlayback struct {
	out    *SpeakerOutput
	stream beep.StreamSeekCloser
	ctrl   *beep.Ctrl
	vol    *effects.Volume
	onDone func()
	once   sync.Once
}

func (p *speakerPlayback) Pause() {
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
}

func (p *speakerPlayback) Resume() {
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
}

func (p *speakerPlayback) Rewind() error {
	speaker.Lock()
	defer speaker.Unlock()
	if p.ctrl.Streamer == nil {
		return nil
	}
	return p.stream.Seek(0)
}

// Close detaches the stream from the mixer. A nil Ctrl streamer ends the
// sequence, so the speaker drops it on its next pass.
func (p *speakerPlayback) Close() {
	speaker.Lock()
	p.ctrl.Streamer = nil
	speaker.Unlock()
	p.finish()
}

func (p *speakerPlayback) finish() {
	p.once.Do(func() {
		p.out.remove(p)
		if err := p.stream.Close(); err != nil {
			slog.Debug("Audio: stream close failed", "error", err)
		}
		if p.onDone != nil {
			p.onDone()
		}
	})
}
