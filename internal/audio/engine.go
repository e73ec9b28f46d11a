package audio

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/faiface/beep"

	"stemgrid/api"
	"stemgrid/internal/beatgrid"
	griderrors "stemgrid/pkg/errors"
	"stemgrid/pkg/events"
)

// SessionSource supplies the audio of one analyzed song: per-stem
// payloads and the single mixed payload the fallback path uses.
type SessionSource interface {
	StemFetcher
	FetchMixed(ctx context.Context) ([]byte, error)
}

// TransportMode is the variant the engine armed at load time. It is
// selected once per Load; every transport operation dispatches on it
// and callers never probe which mode is active.
type TransportMode int

const (
	ModeNone TransportMode = iota
	ModeMultiTrack
	ModeSingleTrack
)

func (m TransportMode) String() string {
	switch m {
	case ModeMultiTrack:
		return "multi-track"
	case ModeSingleTrack:
		return "single-track"
	default:
		return "none"
	}
}

// Options tunes engine behavior. Zero values select the defaults.
type Options struct {
	SkipStep     time.Duration
	EndTolerance time.Duration
}

func (o Options) withDefaults() Options {
	if o.SkipStep == 0 {
		o.SkipStep = DefaultSkipStep
	}
	if o.EndTolerance == 0 {
		o.EndTolerance = DefaultEndTolerance
	}
	return o
}

// Engine owns one playback session: the stem bank, the mixer, and the
// transport variant selected at load time. Transport and mixer calls
// before a successful Load are no-ops; callers serialize mutating
// calls (play/pause/seek/mute/solo/load), per the UI action model.
type Engine struct {
	mu      sync.RWMutex
	device  Device
	clock   Clock
	opts    Options
	bus     *events.EventBus
	mixer   *Mixer
	mode    TransportMode
	multi   *multiTransport
	single  *singleTransport
	bank    *StemBank
	result  *api.AnalysisResult
	title   string
	loadGen int
	status  api.PlaybackStatus
}

// NewEngine creates an idle engine. Events are published on bus; pass
// nil to disable publication.
func NewEngine(device Device, bus *events.EventBus, opts Options) *Engine {
	return &Engine{
		device: device,
		clock:  NewSystemClock(),
		opts:   opts.withDefaults(),
		bus:    bus,
		mixer:  NewMixer(),
		status: api.StatusIdle,
	}
}

func (e *Engine) publish(ev api.AudioEvent) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// Load builds a new session from an analysis result and its audio
// source. Stems are fetched concurrently; if none decode, the engine
// falls back to the mixed audio. Only when the fallback also fails
// does Load return an error. A Load issued while another is in flight
// supersedes it: the stale load's results are discarded silently.
func (e *Engine) Load(ctx context.Context, src SessionSource, result *api.AnalysisResult) error {
	e.mu.Lock()
	e.loadGen++
	gen := e.loadGen
	e.teardown()
	e.status = api.StatusLoading
	e.mu.Unlock()
	e.publish(api.AudioEvent{Type: api.EventStateChange, Payload: api.StatusLoading})

	e.publish(api.AudioEvent{Type: api.EventLoadProgress, Payload: "fetching stems"})
	bank, err := LoadStems(ctx, src, api.AllStems())
	if err == nil {
		return e.armMultiTrack(gen, bank, result)
	}
	if !errors.Is(err, griderrors.ErrNoStems) {
		return e.loadFailed(gen, "load stems", err)
	}

	log.Printf("no stems decoded, falling back to mixed audio")
	e.publish(api.AudioEvent{Type: api.EventLoadProgress, Payload: "fetching mixed audio"})
	data, err := src.FetchMixed(ctx)
	if err != nil {
		return e.loadFailed(gen, "fetch mixed audio", err)
	}
	streamer, format, err := DecodeAudio(data)
	if err != nil {
		return e.loadFailed(gen, "decode mixed audio", err)
	}
	return e.armSingleTrack(gen, streamer, format, data, result)
}

// teardown discards the current session. Caller holds e.mu.
func (e *Engine) teardown() {
	if e.multi != nil {
		e.multi.Pause()
		e.multi = nil
	}
	if e.single != nil {
		e.single.Close()
		e.single = nil
	}
	e.mode = ModeNone
	e.bank = nil
	e.result = nil
	e.title = ""
}

func (e *Engine) loadFailed(gen int, op string, err error) error {
	e.mu.Lock()
	stale := gen != e.loadGen
	if !stale {
		e.status = api.StatusIdle
	}
	e.mu.Unlock()
	if stale {
		return nil
	}
	lerr := griderrors.NewLoadError(op, "", err)
	e.publish(api.AudioEvent{Type: api.EventLoadFailed, Payload: lerr})
	return lerr
}

func (e *Engine) armMultiTrack(gen int, bank *StemBank, result *api.AnalysisResult) error {
	t, err := newMultiTransport(e.device, e.clock, bank, e.mixer, e.opts.EndTolerance, e.opts.SkipStep, e.trackEnded)
	if err != nil {
		return e.loadFailed(gen, "init output", err)
	}

	e.mu.Lock()
	if gen != e.loadGen {
		e.mu.Unlock()
		return nil
	}
	e.mode = ModeMultiTrack
	e.multi = t
	e.bank = bank
	e.result = result
	e.title = result.Metadata.Title
	e.status = api.StatusPaused
	e.mu.Unlock()

	t.ApplyGains(e.mixer)
	e.publish(api.AudioEvent{Type: api.EventLoaded, Payload: bank.Stems()})
	return nil
}

func (e *Engine) armSingleTrack(gen int, streamer beep.StreamSeekCloser, format beep.Format, data []byte, result *api.AnalysisResult) error {
	t, err := newSingleTransport(e.device, streamer, format, e.opts.EndTolerance, e.opts.SkipStep, e.trackEnded)
	if err != nil {
		streamer.Close()
		return e.loadFailed(gen, "init output", err)
	}

	title := result.Metadata.Title
	if title == "" {
		if meta, err := tag.ReadFrom(bytes.NewReader(data)); err == nil {
			title = meta.Title()
		}
	}

	e.mu.Lock()
	if gen != e.loadGen {
		e.mu.Unlock()
		streamer.Close()
		return nil
	}
	e.mode = ModeSingleTrack
	e.single = t
	e.result = result
	e.title = title
	e.status = api.StatusPaused
	e.mu.Unlock()

	e.publish(api.AudioEvent{Type: api.EventLoaded, Payload: []api.StemName{}})
	return nil
}

// trackEnded is invoked by the armed transport on natural end of track.
func (e *Engine) trackEnded() {
	e.mu.Lock()
	if e.status == api.StatusPlaying {
		e.status = api.StatusPaused
	}
	e.mu.Unlock()
	e.publish(api.AudioEvent{Type: api.EventTrackEnded, Payload: nil})
}

// transport resolves the armed variant, or nil before a load.
func (e *Engine) transport() api.Transport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.mode {
	case ModeMultiTrack:
		return e.multi
	case ModeSingleTrack:
		return e.single
	default:
		return nil
	}
}

func (e *Engine) setStatus(s api.PlaybackStatus) {
	e.mu.Lock()
	changed := e.status != s
	e.status = s
	e.mu.Unlock()
	if changed {
		e.publish(api.AudioEvent{Type: api.EventStateChange, Payload: s})
	}
}

// Play starts playback. A no-op before a load completes.
func (e *Engine) Play() {
	t := e.transport()
	if t == nil {
		return
	}
	t.Play()
	e.setStatus(api.StatusPlaying)
}

// Pause pauses playback, persisting the position.
func (e *Engine) Pause() {
	t := e.transport()
	if t == nil {
		return
	}
	t.Pause()
	e.setStatus(api.StatusPaused)
}

// Toggle flips between playing and paused.
func (e *Engine) Toggle() {
	t := e.transport()
	if t == nil {
		return
	}
	t.Toggle()
	if t.IsPlaying() {
		e.setStatus(api.StatusPlaying)
	} else {
		e.setStatus(api.StatusPaused)
	}
}

// Seek moves to d, clamped to [0, Duration].
func (e *Engine) Seek(d time.Duration) {
	if t := e.transport(); t != nil {
		t.Seek(d)
	}
}

// SkipForward jumps ahead by the configured skip step.
func (e *Engine) SkipForward() {
	if t := e.transport(); t != nil {
		t.SkipForward()
	}
}

// SkipBackward jumps back by the configured skip step.
func (e *Engine) SkipBackward() {
	if t := e.transport(); t != nil {
		t.SkipBackward()
	}
}

// CurrentTime returns the logical playback position.
func (e *Engine) CurrentTime() time.Duration {
	if t := e.transport(); t != nil {
		return t.CurrentTime()
	}
	return 0
}

// Duration returns the session duration.
func (e *Engine) Duration() time.Duration {
	if t := e.transport(); t != nil {
		return t.Duration()
	}
	return 0
}

// IsPlaying reports whether playback is running.
func (e *Engine) IsPlaying() bool {
	if t := e.transport(); t != nil {
		return t.IsPlaying()
	}
	return false
}

// applyGains reapplies the mixer's gain vector to the live channels.
func (e *Engine) applyGains() {
	e.mu.RLock()
	t := e.multi
	e.mu.RUnlock()
	if t != nil {
		t.ApplyGains(e.mixer)
	}
}

// ToggleMute flips a stem's mute flag and reapplies gains.
func (e *Engine) ToggleMute(stem api.StemName) {
	e.mixer.ToggleMute(stem)
	e.applyGains()
}

// Solo solos a stem (toggle semantics) and reapplies gains.
func (e *Engine) Solo(stem api.StemName) {
	e.mixer.Solo(stem)
	e.applyGains()
}

// UnmuteAll clears all mute/solo intents and reapplies gains.
func (e *Engine) UnmuteAll() {
	e.mixer.UnmuteAll()
	e.applyGains()
}

// SetMixerState installs a saved mute/solo snapshot.
func (e *Engine) SetMixerState(muted []api.StemName, soloed api.StemName) {
	e.mixer.SetState(muted, soloed)
	e.applyGains()
}

// Mixer exposes the mixer for state queries.
func (e *Engine) Mixer() *Mixer {
	return e.mixer
}

// GridPosition resolves the current playback time on the beat grid.
func (e *Engine) GridPosition() api.GridPosition {
	e.mu.RLock()
	result := e.result
	e.mu.RUnlock()
	if result == nil {
		return api.GridPosition{BeatIndex: -1, BarIndex: -1}
	}
	return beatgrid.Position(result.Beats, result.Bars, e.CurrentTime().Seconds())
}

// Status returns the engine's coarse state.
func (e *Engine) Status() api.PlaybackStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Mode returns the transport variant armed by the last Load.
func (e *Engine) Mode() TransportMode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// Stems returns the loaded stem names; empty in single-track mode.
func (e *Engine) Stems() []api.StemName {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.bank == nil {
		return nil
	}
	return e.bank.Stems()
}

// Title returns the session's display title.
func (e *Engine) Title() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.title
}

// Result returns the immutable analysis result of the session.
func (e *Engine) Result() *api.AnalysisResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.result
}
