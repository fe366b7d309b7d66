package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// NullOutput plays nothing but keeps real timing: a playback ends after the
// stream's duration divided by its rate. It serves headless hosts and tests.
type NullOutput struct {
	mu     sync.Mutex
	volume float64
}

func NewNullOutput() *NullOutput {
	return &NullOutput{volume: 1}
}

func (o *NullOutput) Start(s beep.StreamSeekCloser, format beep.Format, opts PlayOptions, onDone func()) (Playback, error) {
	total := time.Duration(float64(format.SampleRate.D(s.Len())) / opts.rate())
	p := &nullPlayback{stream: s, total: total, remaining: total, onDone: onDone}
	p.mu.Lock()
	p.startLocked()
	p.mu.Unlock()
	return p, nil
}

func (o *NullOutput) SetVolume(vol float64) {
	o.mu.Lock()
	o.volume = clamp01(vol)
	o.mu.Unlock()
}

func (o *NullOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

type nullPlayback struct {
	mu        sync.Mutex
	stream    beep.StreamSeekCloser
	timer     *time.Timer
	started   time.Time
	total     time.Duration
	remaining time.Duration
	paused    bool
	closed    bool
	onDone    func()
	once      sync.Once
}

func (p *nullPlayback) startLocked() {
	p.started = time.Now()
	p.timer = time.AfterFunc(p.remaining, p.finish)
}

func (p *nullPlayback) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.closed {
		return
	}
	if p.timer.Stop() {
		p.remaining -= time.Since(p.started)
	}
	p.paused = true
}

func (p *nullPlayback) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused || p.closed {
		return
	}
	p.paused = false
	p.startLocked()
}

func (p *nullPlayback) Rewind() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.remaining = p.total
	if !p.paused && p.timer.Stop() {
		p.startLocked()
	}
	return p.stream.Seek(0)
}

func (p *nullPlayback) Close() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.closed = true
	p.mu.Unlock()
	p.finish()
}

func (p *nullPlayback) finish() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		_ = p.stream.Close()
		if p.onDone != nil {
			p.onDone()
		}
	})
}
