// Package audio decodes narration assets and plays them on an output device.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnsupportedFormat is returned for files no decoder handles (e.g. m4a).
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// readSeekNopCloser keeps Seek available to decoders that need a ReadCloser.
type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// Decode picks a decoder from the file extension of name.
func Decode(name string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	rc := readSeekNopCloser{bytes.NewReader(data)}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch ext {
	case "mp3":
		s, format, err = mp3.Decode(rc)
	case "wav":
		s, format, err = wav.Decode(rc)
	case "ogg":
		s, format, err = vorbis.Decode(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode %s: %w", ext, err)
	}
	return s, format, nil
}

// Duration returns the playing time of an encoded asset.
func Duration(name string, data []byte) (time.Duration, error) {
	s, format, err := Decode(name, data)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return format.SampleRate.D(s.Len()), nil
}
