package audio

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"github.com/faiface/beep"

	"stemgrid/api"
)

// makeWAV builds a playable 16-bit stereo PCM WAV of the given length.
func makeWAV(dur time.Duration, sampleRate int) []byte {
	frames := int(float64(sampleRate) * dur.Seconds())
	dataLen := frames * 2 * 2 // stereo, int16

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(2)) // stereo
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2*2))
	binary.Write(&buf, binary.LittleEndian, uint16(4))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))

	return buf.Bytes()
}

// fakeDevice records dispatches instead of producing sound.
type fakeDevice struct {
	mu        sync.Mutex
	playCalls [][]beep.Streamer
	clears    int
}

func (d *fakeDevice) Init(sr beep.SampleRate, bufferSize int) error { return nil }

func (d *fakeDevice) Play(s ...beep.Streamer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playCalls = append(d.playCalls, s)
}

func (d *fakeDevice) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears++
}

func (d *fakeDevice) Lock()   { d.mu.Lock() }
func (d *fakeDevice) Unlock() { d.mu.Unlock() }

func (d *fakeDevice) dispatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.playCalls)
}

func (d *fakeDevice) lastDispatchSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.playCalls) == 0 {
		return 0
	}
	return len(d.playCalls[len(d.playCalls)-1])
}

// fakeStream is an in-memory StreamSeekCloser for single-track tests.
type fakeStream struct {
	pos    int
	length int
	closed bool
}

func (s *fakeStream) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= s.length {
		return 0, false
	}
	n := len(samples)
	if rem := s.length - s.pos; rem < n {
		n = rem
	}
	s.pos += n
	return n, true
}

func (s *fakeStream) Err() error        { return nil }
func (s *fakeStream) Len() int          { return s.length }
func (s *fakeStream) Position() int     { return s.pos }
func (s *fakeStream) Seek(p int) error  { s.pos = p; return nil }
func (s *fakeStream) Close() error      { s.closed = true; return nil }

func formatFor(sampleRate int) beep.Format {
	return beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 2, Precision: 2}
}

type stemLen struct {
	name api.StemName
	dur  time.Duration
}

// silentBank builds a StemBank of silent buffers with the given
// per-stem lengths.
func silentBank(sampleRate int, stems []stemLen) *StemBank {
	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 2, Precision: 2}
	bank := &StemBank{stems: make(map[api.StemName]*StemTrack)}
	for _, sl := range stems {
		buf := beep.NewBuffer(format)
		buf.Append(beep.Silence(format.SampleRate.N(sl.dur)))
		track := &StemTrack{
			Name:     sl.name,
			Buffer:   buf,
			Format:   format,
			Duration: format.SampleRate.D(buf.Len()),
		}
		bank.stems[sl.name] = track
		bank.order = append(bank.order, sl.name)
		if track.Duration > bank.duration {
			bank.duration = track.Duration
		}
	}
	return bank
}
