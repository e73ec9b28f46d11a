// Package beatgrid maps continuous playback time onto the precomputed
// rhythmic grid: beats, bars and the 16-slot subdivision cycle used by
// the visualization layer. All functions are pure; the beat and bar
// sequences are assumed sorted by time.
package beatgrid

import (
	"sort"

	"stemgrid/api"
)

// CycleSlots is the number of eighth-note slots per two-bar cycle.
const CycleSlots = 16

// LocateBeat returns the index of the last beat with Time <= t, or -1
// if t falls before the first beat. When several beats share a time,
// the last one wins.
func LocateBeat(beats []api.Beat, t float64) int {
	i := sort.Search(len(beats), func(i int) bool { return beats[i].Time > t })
	return i - 1
}

// LocateBar returns the index of the last bar with Start <= t, or -1
// if t falls before the first bar.
func LocateBar(bars []api.Bar, t float64) int {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Start > t })
	return i - 1
}

// BarCycle maps a bar index onto its two-bar dance cycle. Before the
// first bar the cycle is 0.
func BarCycle(barIndex int) int {
	if barIndex < 0 {
		return 0
	}
	return barIndex / 2
}

// Subdivision resolves t to one of the 16 eighth-note slots of the
// current cycle. Each beat owns two slots: the on-beat slot at
// (beat_num-1)*2 and the off-beat ("&") slot right after it. The
// off-beat applies once t reaches the midpoint between this beat and
// the next; the last beat has no following midpoint and stays on its
// on-beat slot.
func Subdivision(t float64, beats []api.Beat, beatIdx int) int {
	if beatIdx < 0 || beatIdx >= len(beats) {
		return 0
	}
	onBeatSlot := (beats[beatIdx].BeatNum - 1) * 2
	if onBeatSlot < 0 {
		return 0
	}
	slot := onBeatSlot
	if beatIdx+1 < len(beats) {
		mid := (beats[beatIdx].Time + beats[beatIdx+1].Time) / 2
		if t >= mid {
			slot = onBeatSlot + 1
		}
	}
	if slot < 0 {
		return 0
	}
	if slot >= CycleSlots {
		return CycleSlots - 1
	}
	return slot
}

// Position resolves t against both sequences in one call. Before the
// first beat/bar the indices are -1 and the derived fields are zero.
func Position(beats []api.Beat, bars []api.Bar, t float64) api.GridPosition {
	beatIdx := LocateBeat(beats, t)
	barIdx := LocateBar(bars, t)

	pos := api.GridPosition{
		BeatIndex: beatIdx,
		BarIndex:  barIdx,
		Cycle:     BarCycle(barIdx),
	}
	if beatIdx >= 0 {
		pos.BeatNum = beats[beatIdx].BeatNum
		pos.Subdivision = Subdivision(t, beats, beatIdx)
	}
	return pos
}
