package audio

import (
	"sync"

	"stemgrid/api"
)

// Mixer derives the effective per-stem gain vector from mute/solo
// intents. Gain is never set directly: callers toggle intents and the
// transport reapplies the whole vector on every change.
type Mixer struct {
	mu     sync.RWMutex
	muted  map[api.StemName]bool
	soloed api.StemName // "" when nothing is soloed
}

// NewMixer creates a mixer with everything audible.
func NewMixer() *Mixer {
	return &Mixer{muted: make(map[api.StemName]bool)}
}

// EffectiveGain resolves a stem's gain. Solo takes full precedence:
// while a stem is soloed every other stem is silent regardless of its
// mute flag. Without a solo, muted stems are silent and the rest play
// at unity.
func (m *Mixer) EffectiveGain(stem api.StemName) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.soloed != "" {
		if stem == m.soloed {
			return 1.0
		}
		return 0.0
	}
	if m.muted[stem] {
		return 0.0
	}
	return 1.0
}

// ToggleMute flips a stem's mute flag.
func (m *Mixer) ToggleMute(stem api.StemName) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.muted[stem] {
		delete(m.muted, stem)
	} else {
		m.muted[stem] = true
	}
}

// Solo solos a stem, replacing any previous solo. Soloing the stem
// that is already soloed clears the solo.
func (m *Mixer) Solo(stem api.StemName) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.soloed == stem {
		m.soloed = ""
	} else {
		m.soloed = stem
	}
}

// UnmuteAll clears every mute flag and the solo.
func (m *Mixer) UnmuteAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.muted = make(map[api.StemName]bool)
	m.soloed = ""
}

// Muted reports whether the stem's individual mute flag is set. The
// flag is advisory while a solo is active.
func (m *Mixer) Muted(stem api.StemName) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.muted[stem]
}

// Soloed returns the soloed stem, or "" when there is none.
func (m *Mixer) Soloed() api.StemName {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.soloed
}

// SetState replaces the full mute/solo state, e.g. from a saved
// preference snapshot.
func (m *Mixer) SetState(muted []api.StemName, soloed api.StemName) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.muted = make(map[api.StemName]bool, len(muted))
	for _, s := range muted {
		m.muted[s] = true
	}
	m.soloed = soloed
}

// MutedStems returns the stems with an individual mute flag set.
func (m *Mixer) MutedStems() []api.StemName {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]api.StemName, 0, len(m.muted))
	for _, s := range api.AllStems() {
		if m.muted[s] {
			out = append(out, s)
		}
	}
	return out
}
