// Package audio provides container detection and lightweight probing for the
// reference audio formats the gateway accepts.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Container identifies a supported audio container format.
type Container string

// Supported containers for reference audio uploads.
const (
	WAV  Container = "wav"
	MP3  Container = "mp3"
	OGG  Container = "ogg"
	FLAC Container = "flac"
	M4A  Container = "m4a"
)

// Size bounds for reference audio. A usable speaker reference is roughly 3 to
// 30 seconds of audio.
const (
	MinReferenceBytes            = 10 * 1024
	MaxReferenceBytes            = 50 * 1024 * 1024
	RecommendedMaxReferenceBytes = 5 * 1024 * 1024
)

// Static errors.
var (
	ErrEmptyAudio           = errors.New("audio data is empty")
	ErrUnsupportedContainer = errors.New("unsupported audio container")
	ErrNotWAV               = errors.New("data is not a RIFF/WAVE stream")
	ErrTruncatedWAV         = errors.New("WAV header is truncated")
)

const (
	minSniffLen  = 12
	wavHeaderLen = 44
	mp3SyncMask  = 0xE0
	mp3SyncByte  = 0xFF
)

// MIMEType returns the MIME type for a container.
func (c Container) MIMEType() string {
	switch c {
	case MP3:
		return "audio/mpeg"
	case OGG:
		return "audio/ogg"
	case FLAC:
		return "audio/flac"
	case M4A:
		return "audio/mp4"
	case WAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// DetectContainer sniffs the leading bytes of data and reports which supported
// container it is. Detection is by magic numbers only; a positive result means
// the data is one of the accepted formats, not that the whole stream is intact.
func DetectContainer(data []byte) (Container, error) {
	if len(data) == 0 {
		return "", ErrEmptyAudio
	}

	if len(data) < minSniffLen {
		return "", fmt.Errorf("%w: %d bytes", ErrUnsupportedContainer, len(data))
	}

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return WAV, nil
	case bytes.HasPrefix(data, []byte("OggS")):
		return OGG, nil
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FLAC, nil
	case bytes.Equal(data[4:8], []byte("ftyp")):
		return M4A, nil
	case bytes.HasPrefix(data, []byte("ID3")):
		return MP3, nil
	case data[0] == mp3SyncByte && data[1]&mp3SyncMask == mp3SyncMask:
		return MP3, nil
	default:
		return "", ErrUnsupportedContainer
	}
}

// Duration estimates the playing time of WAV or MP3 data. Other containers
// return ok=false: the gateway only needs a duration hint for the formats it
// can decode cheaply.
func Duration(data []byte) (time.Duration, bool) {
	container, err := DetectContainer(data)
	if err != nil {
		return 0, false
	}

	switch container {
	case WAV:
		d, wavErr := wavDuration(data)
		if wavErr != nil {
			return 0, false
		}

		return d, true
	case MP3:
		d, mp3Err := mp3Duration(data)
		if mp3Err != nil {
			return 0, false
		}

		return d, true
	case OGG, FLAC, M4A:
		return 0, false
	default:
		return 0, false
	}
}

// wavDuration computes duration from the RIFF header fields: data length over
// byte rate.
func wavDuration(data []byte) (time.Duration, error) {
	if len(data) < wavHeaderLen {
		return 0, ErrTruncatedWAV
	}

	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return 0, ErrNotWAV
	}

	byteRate := binary.LittleEndian.Uint32(data[28:32])
	if byteRate == 0 {
		return 0, ErrTruncatedWAV
	}

	dataLen := len(data) - wavHeaderLen
	seconds := float64(dataLen) / float64(byteRate)

	return time.Duration(seconds * float64(time.Second)), nil
}

// mp3Duration decodes the MP3 stream header and derives duration from the
// decoded PCM length. go-mp3 outputs 16-bit stereo, four bytes per sample.
func mp3Duration(data []byte) (time.Duration, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode mp3 stream: %w", err)
	}

	const bytesPerSample = 4

	samples := decoder.Length() / bytesPerSample
	seconds := float64(samples) / float64(decoder.SampleRate())

	return time.Duration(seconds * float64(time.Second)), nil
}
