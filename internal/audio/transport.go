package audio

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"

	"stemgrid/api"
)

// Defaults for the transport's fixed behaviors. Overridable through
// config; the values come from the product's original tuning.
const (
	DefaultSkipStep     = 10 * time.Second
	DefaultEndTolerance = 100 * time.Millisecond
)

// Device abstracts the audio output so transports can be exercised in
// tests without a real backend. The production implementation wraps
// the beep speaker.
type Device interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

type speakerDevice struct {
	rate beep.SampleRate
}

// NewSpeakerDevice returns the Device backed by beep's speaker.
func NewSpeakerDevice() Device {
	return &speakerDevice{}
}

func (d *speakerDevice) Init(sr beep.SampleRate, bufferSize int) error {
	if d.rate == sr {
		return nil
	}
	if err := speaker.Init(sr, bufferSize); err != nil {
		return err
	}
	d.rate = sr
	return nil
}

func (d *speakerDevice) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (d *speakerDevice) Clear()                  { speaker.Clear() }
func (d *speakerDevice) Lock()                   { speaker.Lock() }
func (d *speakerDevice) Unlock()                 { speaker.Unlock() }

func clampDur(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// multiTransport plays every loaded stem in sample-accurate unison
// against one playback clock. All stem sources enter the output in a
// single Play dispatch, which is the phase-lock point: the device mixes
// them from the same frame onward.
type multiTransport struct {
	mu       sync.Mutex
	device   Device
	clock    *playClock
	bank     *StemBank
	mixer    *Mixer
	channels map[api.StemName]*effects.Volume
	playing  bool
	gen      int // invalidates end callbacks from torn-down dispatches
	endTol   time.Duration
	skip     time.Duration
	onEnded  func()
}

var _ api.Transport = (*multiTransport)(nil)

func newMultiTransport(device Device, clk Clock, bank *StemBank, mixer *Mixer, endTol, skip time.Duration, onEnded func()) (*multiTransport, error) {
	format := bank.Track(bank.Stems()[0]).Format
	if err := device.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &multiTransport{
		device:  device,
		clock:   newPlayClock(clk),
		bank:    bank,
		mixer:   mixer,
		endTol:  endTol,
		skip:    skip,
		onEnded: onEnded,
	}, nil
}

func (t *multiTransport) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		return
	}
	t.start()
}

// start dispatches one source per stem at the clock's current offset.
// Caller holds t.mu.
func (t *multiTransport) start() {
	offset := clampDur(t.clock.Position(), 0, t.bank.Duration())
	t.clock.SetOffset(offset)

	t.gen++
	gen := t.gen
	longest := t.bank.Longest()

	t.channels = make(map[api.StemName]*effects.Volume, t.bank.Len())
	streams := make([]beep.Streamer, 0, t.bank.Len())
	for _, name := range t.bank.Stems() {
		st := t.bank.Track(name)
		from := st.Format.SampleRate.N(offset)
		if from > st.Buffer.Len() {
			from = st.Buffer.Len()
		}
		vol := &effects.Volume{
			Streamer: st.Buffer.Streamer(from, st.Buffer.Len()),
			Base:     2,
			Silent:   t.mixer.EffectiveGain(name) == 0,
		}
		t.channels[name] = vol

		var s beep.Streamer = vol
		if name == longest {
			s = beep.Seq(vol, beep.Callback(func() {
				// Runs inside the device's mix loop; finish on a
				// separate goroutine so Clear does not deadlock.
				go t.sourceEnded(gen)
			}))
		}
		streams = append(streams, s)
	}

	t.device.Play(streams...)
	t.clock.Start()
	t.playing = true
}

func (t *multiTransport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		return
	}
	t.stop()
}

// stop persists the position and tears down all sources. Caller holds t.mu.
func (t *multiTransport) stop() {
	t.clock.Pause()
	t.device.Clear()
	t.channels = nil
	t.playing = false
	t.gen++
}

func (t *multiTransport) Toggle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		t.stop()
	} else {
		t.start()
	}
}

func (t *multiTransport) Seek(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seek(d)
}

func (t *multiTransport) seek(d time.Duration) {
	d = clampDur(d, 0, t.bank.Duration())
	if t.playing {
		t.stop()
		t.clock.SetOffset(d)
		t.start()
	} else {
		t.clock.SetOffset(d)
	}
}

func (t *multiTransport) SkipForward() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seek(t.clock.Position() + t.skip)
}

func (t *multiTransport) SkipBackward() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seek(t.clock.Position() - t.skip)
}

func (t *multiTransport) CurrentTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return clampDur(t.clock.Position(), 0, t.bank.Duration())
}

func (t *multiTransport) Duration() time.Duration {
	return t.bank.Duration()
}

func (t *multiTransport) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// ApplyGains pushes the mixer's current gain vector onto every live
// channel atomically with respect to the mix loop.
func (t *multiTransport) ApplyGains(m *Mixer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.channels == nil {
		return
	}
	t.device.Lock()
	for name, vol := range t.channels {
		vol.Silent = m.EffectiveGain(name) == 0
	}
	t.device.Unlock()
}

// sourceEnded fires when the longest stem's source drains naturally.
// It only counts as end of track when the clock agrees we are within
// tolerance of the full duration; anything else is a stale callback.
func (t *multiTransport) sourceEnded(gen int) {
	t.mu.Lock()
	if gen != t.gen || !t.playing {
		t.mu.Unlock()
		return
	}
	if t.bank.Duration()-t.clock.Position() > t.endTol {
		t.mu.Unlock()
		return
	}

	t.stop()
	t.clock.SetOffset(0)
	cb := t.onEnded
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// singleTransport is the fallback over one continuous mixed-audio
// stream. Position and seek map directly onto the stream; there is no
// multi-source phase lock to maintain.
type singleTransport struct {
	mu         sync.Mutex
	device     Device
	streamer   beep.StreamSeekCloser
	format     beep.Format
	ctrl       *beep.Ctrl
	dispatched bool
	playing    bool
	gen        int
	endTol     time.Duration
	skip       time.Duration
	onEnded    func()
}

var _ api.Transport = (*singleTransport)(nil)

func newSingleTransport(device Device, streamer beep.StreamSeekCloser, format beep.Format, endTol, skip time.Duration, onEnded func()) (*singleTransport, error) {
	if err := device.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &singleTransport{
		device:   device,
		streamer: streamer,
		format:   format,
		endTol:   endTol,
		skip:     skip,
		onEnded:  onEnded,
	}, nil
}

func (t *singleTransport) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.play()
}

func (t *singleTransport) play() {
	if t.playing {
		return
	}
	if t.dispatched {
		t.device.Lock()
		t.ctrl.Paused = false
		t.device.Unlock()
		t.playing = true
		return
	}

	t.gen++
	gen := t.gen
	t.ctrl = &beep.Ctrl{
		Streamer: beep.Seq(t.streamer, beep.Callback(func() {
			go t.sourceEnded(gen)
		})),
	}
	t.device.Play(t.ctrl)
	t.dispatched = true
	t.playing = true
}

func (t *singleTransport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pause()
}

func (t *singleTransport) pause() {
	if !t.playing {
		return
	}
	t.device.Lock()
	t.ctrl.Paused = true
	t.device.Unlock()
	t.playing = false
}

func (t *singleTransport) Toggle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		t.pause()
	} else {
		t.play()
	}
}

func (t *singleTransport) Seek(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seek(d)
}

func (t *singleTransport) seek(d time.Duration) {
	d = clampDur(d, 0, t.duration())
	t.device.Lock()
	t.streamer.Seek(t.format.SampleRate.N(d))
	t.device.Unlock()
}

func (t *singleTransport) SkipForward() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seek(t.position() + t.skip)
}

func (t *singleTransport) SkipBackward() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seek(t.position() - t.skip)
}

func (t *singleTransport) position() time.Duration {
	t.device.Lock()
	pos := t.streamer.Position()
	t.device.Unlock()
	return t.format.SampleRate.D(pos)
}

func (t *singleTransport) duration() time.Duration {
	return t.format.SampleRate.D(t.streamer.Len())
}

func (t *singleTransport) CurrentTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position()
}

func (t *singleTransport) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration()
}

func (t *singleTransport) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *singleTransport) sourceEnded(gen int) {
	t.mu.Lock()
	if gen != t.gen || !t.playing {
		t.mu.Unlock()
		return
	}
	if t.duration()-t.position() > t.endTol {
		t.mu.Unlock()
		return
	}

	t.device.Clear()
	t.streamer.Seek(0)
	t.dispatched = false
	t.playing = false
	t.gen++
	cb := t.onEnded
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Close releases the fallback stream.
func (t *singleTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		t.device.Clear()
		t.playing = false
	}
	return t.streamer.Close()
}
