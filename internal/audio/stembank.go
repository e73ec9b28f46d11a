package audio

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/faiface/beep"

	"stemgrid/api"
	griderrors "stemgrid/pkg/errors"
)

// StemFetcher retrieves the encoded audio for one stem.
type StemFetcher interface {
	FetchStem(ctx context.Context, stem api.StemName) ([]byte, error)
}

// StemTrack is one fully decoded stem. Immutable once loaded.
type StemTrack struct {
	Name     api.StemName
	Buffer   *beep.Buffer
	Format   beep.Format
	Duration time.Duration
}

// StemBank owns the decoded stems of one session. The stem set is
// fixed between loads; a new session builds a new bank.
type StemBank struct {
	stems    map[api.StemName]*StemTrack
	order    []api.StemName
	duration time.Duration
}

type stemResult struct {
	track *StemTrack
	err   error
}

// LoadStems concurrently fetches and decodes every requested stem.
// Each stem succeeds or fails on its own; the bank waits for all of
// them to settle and keeps whatever subset succeeded. Only when zero
// stems decode does it fail, with ErrNoStems.
func LoadStems(ctx context.Context, fetcher StemFetcher, names []api.StemName) (*StemBank, error) {
	results := make(map[api.StemName]stemResult, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(name api.StemName) {
			defer wg.Done()
			track, err := loadStem(ctx, fetcher, name)
			mu.Lock()
			results[name] = stemResult{track: track, err: err}
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	bank := &StemBank{stems: make(map[api.StemName]*StemTrack)}
	for _, name := range names {
		res := results[name]
		if res.err != nil {
			log.Printf("stem %s unavailable: %v", name, res.err)
			continue
		}
		bank.stems[name] = res.track
		bank.order = append(bank.order, name)
		if res.track.Duration > bank.duration {
			bank.duration = res.track.Duration
		}
	}

	if len(bank.order) == 0 {
		return nil, griderrors.ErrNoStems
	}
	return bank, nil
}

func loadStem(ctx context.Context, fetcher StemFetcher, name api.StemName) (*StemTrack, error) {
	data, err := fetcher.FetchStem(ctx, name)
	if err != nil {
		return nil, err
	}

	streamer, format, err := DecodeAudio(data)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)

	return &StemTrack{
		Name:     name,
		Buffer:   buf,
		Format:   format,
		Duration: format.SampleRate.D(buf.Len()),
	}, nil
}

// Stems returns the loaded stem names in channel-strip order.
func (b *StemBank) Stems() []api.StemName {
	out := make([]api.StemName, len(b.order))
	copy(out, b.order)
	return out
}

// Track returns the decoded stem, or nil if it did not load.
func (b *StemBank) Track(name api.StemName) *StemTrack {
	return b.stems[name]
}

// Len returns the number of loaded stems.
func (b *StemBank) Len() int {
	return len(b.order)
}

// Duration is the session duration: the longest loaded stem. Shorter
// stems end early and are silent for the remainder.
func (b *StemBank) Duration() time.Duration {
	return b.duration
}

// Longest returns the name of the stem governing the session duration.
func (b *StemBank) Longest() api.StemName {
	if len(b.order) == 0 {
		return ""
	}
	longest := b.order[0]
	max := b.stems[longest].Duration
	for _, name := range b.order[1:] {
		if d := b.stems[name].Duration; d > max {
			longest, max = name, d
		}
	}
	return longest
}
