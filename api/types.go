package api

import (
	"encoding/json"
	"time"
)

// StemName identifies one isolated instrument track of a song.
type StemName string

const (
	StemDrums  StemName = "drums"
	StemBass   StemName = "bass"
	StemVocals StemName = "vocals"
	StemGuitar StemName = "guitar"
	StemPiano  StemName = "piano"
	StemOther  StemName = "other"
)

// AllStems returns every stem the separation service can produce, in
// channel-strip order.
func AllStems() []StemName {
	return []StemName{StemDrums, StemBass, StemVocals, StemGuitar, StemPiano, StemOther}
}

// GenreHint narrows beat detection to a dance style.
type GenreHint string

const (
	GenreSalsa   GenreHint = "salsa"
	GenreBachata GenreHint = "bachata"
	GenreUnknown GenreHint = "unknown"
)

// JobStatus mirrors the analysis service's job state machine.
type JobStatus string

const (
	JobQueued               JobStatus = "queued"
	JobDownloading          JobStatus = "downloading"
	JobDetectingBeats       JobStatus = "detecting_beats"
	JobSeparatingStems      JobStatus = "separating_stems"
	JobAnalyzingInstruments JobStatus = "analyzing_instruments"
	JobComplete             JobStatus = "complete"
	JobFailed               JobStatus = "failed"
)

// Terminal reports whether the job can make no further progress.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// Beat is one detected rhythmic pulse. BeatNum cycles within each bar
// starting at 1; the cycle length depends on the detected grid.
type Beat struct {
	Time    float64 `json:"time"`
	BeatNum int     `json:"beat_num"`
}

// Bar is one measure delimited by start and end times.
type Bar struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	BarNum int     `json:"bar_num"`
}

// BeatCell is one instrument-grid cell with normalized onset strength
// and spectral position.
type BeatCell struct {
	Active   bool    `json:"active"`
	Velocity float64 `json:"velocity"`
	Pitch    float64 `json:"pitch"`
}

// InstrumentBeat holds one instrument's activity across a bar's
// subdivisions. The service emits either plain booleans or full cells;
// both decode into BeatCells.
type InstrumentBeat struct {
	Instrument string     `json:"instrument"`
	Beats      []BeatCell `json:"beats"`
	Confidence float64    `json:"confidence"`
}

func (ib *InstrumentBeat) UnmarshalJSON(data []byte) error {
	var raw struct {
		Instrument string            `json:"instrument"`
		Beats      []json.RawMessage `json:"beats"`
		Confidence float64           `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ib.Instrument = raw.Instrument
	ib.Confidence = raw.Confidence
	ib.Beats = make([]BeatCell, 0, len(raw.Beats))
	for _, b := range raw.Beats {
		var active bool
		if err := json.Unmarshal(b, &active); err == nil {
			ib.Beats = append(ib.Beats, BeatCell{Active: active})
			continue
		}
		var cell BeatCell
		if err := json.Unmarshal(b, &cell); err != nil {
			return err
		}
		ib.Beats = append(ib.Beats, cell)
	}
	return nil
}

// BarInstruments groups per-instrument activity for one bar.
type BarInstruments struct {
	BarNum      int              `json:"bar_num"`
	Instruments []InstrumentBeat `json:"instruments"`
}

// InstrumentGrid is the precomputed rhythmic grid for the whole song.
type InstrumentGrid struct {
	Genre          string           `json:"genre"`
	InstrumentList []string         `json:"instrument_list"`
	Subdivisions   int              `json:"subdivisions"`
	Bars           []BarInstruments `json:"bars"`
}

// Metadata describes the analyzed song.
type Metadata struct {
	Title     string    `json:"title"`
	Duration  float64   `json:"duration"`
	GenreHint GenreHint `json:"genre_hint"`
}

// AnalysisResult is the full payload of a completed analysis job.
// Immutable for the lifetime of a session.
type AnalysisResult struct {
	Metadata       Metadata       `json:"metadata"`
	Tempo          float64        `json:"tempo"`
	Beats          []Beat         `json:"beats"`
	Bars           []Bar          `json:"bars"`
	InstrumentGrid InstrumentGrid `json:"instrument_grid"`
}

// JobResponse is one poll of the analysis service.
type JobResponse struct {
	JobID    string          `json:"job_id"`
	Status   JobStatus       `json:"status"`
	Progress float64         `json:"progress"`
	Error    string          `json:"error,omitempty"`
	Result   *AnalysisResult `json:"result,omitempty"`
}

// PlaybackStatus is the engine's coarse state.
type PlaybackStatus int

const (
	StatusIdle PlaybackStatus = iota
	StatusLoading
	StatusPaused
	StatusPlaying
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	default:
		return "idle"
	}
}

// GridPosition locates a playback time on the rhythmic grid.
// BeatIndex and BarIndex are -1 before the first beat/bar; the derived
// fields are zero there.
type GridPosition struct {
	BeatIndex   int
	BeatNum     int
	BarIndex    int
	Cycle       int
	Subdivision int
}

// Transport is the uniform playback contract. The engine arms either a
// multi-stem or a single-stream implementation at load time; callers
// never see which.
type Transport interface {
	Play()
	Pause()
	Toggle()
	Seek(t time.Duration)
	SkipForward()
	SkipBackward()
	CurrentTime() time.Duration
	Duration() time.Duration
	IsPlaying() bool
}

// EventType classifies engine events.
type EventType int

const (
	EventLoadProgress EventType = iota
	EventLoaded
	EventLoadFailed
	EventStateChange
	EventTrackEnded
)

// AudioEvent is published on the engine's event bus.
type AudioEvent struct {
	Type    EventType
	Payload interface{}
}
