package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"

	griderrors "stemgrid/pkg/errors"
)

// byteSource adapts an in-memory audio payload to the ReadSeekCloser
// the beep decoders expect.
type byteSource struct {
	*bytes.Reader
}

func (byteSource) Close() error { return nil }

func newByteSource(data []byte) io.ReadSeekCloser {
	return byteSource{bytes.NewReader(data)}
}

// DetectFormat sniffs the container format from the payload's magic
// bytes. MP3 is the fallback: frames may start with an ID3 tag or a
// raw frame sync, neither of which has a single stable prefix.
func DetectFormat(data []byte) string {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("fLaC")):
		return "flac"
	default:
		return "mp3"
	}
}

// DecodeAudio decodes a fetched audio payload into a seekable streamer.
func DecodeAudio(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(data) == 0 {
		return nil, beep.Format{}, fmt.Errorf("%w: empty payload", griderrors.ErrInvalidFormat)
	}

	src := newByteSource(data)
	switch DetectFormat(data) {
	case "wav":
		return wav.Decode(src)
	case "flac":
		return flac.Decode(src)
	default:
		return mp3.Decode(src)
	}
}
