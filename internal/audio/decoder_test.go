package audio

import (
	"errors"
	"testing"
	"time"

	griderrors "stemgrid/pkg/errors"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"wav", makeWAV(10*time.Millisecond, 44100), "wav"},
		{"flac", []byte("fLaC\x00\x00\x00\x22"), "flac"},
		{"id3 tagged mp3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00"), "mp3"},
		{"unknown defaults to mp3", []byte{0xff, 0xfb, 0x90, 0x00}, "mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.data); got != tt.want {
				t.Errorf("DetectFormat = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeAudio_WAV(t *testing.T) {
	streamer, format, err := DecodeAudio(makeWAV(500*time.Millisecond, 44100))
	if err != nil {
		t.Fatalf("DecodeAudio: %v", err)
	}
	defer streamer.Close()

	if format.SampleRate != 44100 {
		t.Errorf("SampleRate = %v, want 44100", format.SampleRate)
	}
	want := 44100 / 2
	if got := streamer.Len(); got != want {
		t.Errorf("Len() = %d samples, want %d", got, want)
	}
}

func TestDecodeAudio_Empty(t *testing.T) {
	_, _, err := DecodeAudio(nil)
	if !errors.Is(err, griderrors.ErrInvalidFormat) {
		t.Errorf("DecodeAudio(nil) error = %v, want ErrInvalidFormat", err)
	}
}

func TestDecodeAudio_Garbage(t *testing.T) {
	_, _, err := DecodeAudio([]byte("definitely not audio data, not even close"))
	if err == nil {
		t.Error("DecodeAudio on garbage should fail")
	}
}
