// Package wav reads and writes 16-bit PCM RIFF/WAVE files.
//
// Samples are exposed per channel as float64 in [-1, 1]. Only
// uncompressed PCM16 is supported; unknown chunks are skipped on read.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrFormat is returned for files that are not PCM16 RIFF/WAVE.
var ErrFormat = errors.New("wav: unsupported format")

// Audio holds decoded per-channel samples.
type Audio struct {
	SampleRate int
	Channels   [][]float64
}

// NumChannels reports the channel count.
func (a *Audio) NumChannels() int { return len(a.Channels) }

// Frames reports the number of sample frames per channel.
func (a *Audio) Frames() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Duration reports the audio length.
func (a *Audio) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(a.Frames()) * time.Second / time.Duration(a.SampleRate)
}

// Mono mixes all channels down to one by averaging.
func (a *Audio) Mono() []float64 {
	if len(a.Channels) == 1 {
		return a.Channels[0]
	}
	out := make([]float64, a.Frames())
	for _, ch := range a.Channels {
		for i, s := range ch {
			out[i] += s
		}
	}
	inv := 1.0 / float64(len(a.Channels))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// ReadFile decodes a PCM16 WAV file.
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a PCM16 WAV stream.
func Read(r io.Reader) (*Audio, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("wav: header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrFormat)
	}

	var (
		channels   int
		sampleRate int
		haveFmt    bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: missing data chunk", ErrFormat)
			}
			return nil, fmt.Errorf("wav: chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrFormat)
			}
			buf := make([]byte, size)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("wav: fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(buf[0:2])
			channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			bits := binary.LittleEndian.Uint16(buf[14:16])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("%w: format=%d bits=%d, want PCM16", ErrFormat, format, bits)
			}
			if channels < 1 || sampleRate <= 0 {
				return nil, fmt.Errorf("%w: channels=%d rate=%d", ErrFormat, channels, sampleRate)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt", ErrFormat)
			}
			raw := make([]byte, size)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("wav: data chunk: %w", err)
			}
			frames := int(size) / (2 * channels)
			out := &Audio{SampleRate: sampleRate, Channels: make([][]float64, channels)}
			for c := range out.Channels {
				out.Channels[c] = make([]float64, frames)
			}
			for i := 0; i < frames; i++ {
				for c := 0; c < channels; c++ {
					off := (i*channels + c) * 2
					s := int16(binary.LittleEndian.Uint16(raw[off : off+2]))
					out.Channels[c][i] = float64(s) / 32768.0
				}
			}
			return out, nil

		default:
			// Chunks are word-aligned.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("wav: skip %q chunk: %w", id, err)
			}
		}
	}
}

// WriteFile encodes audio as a PCM16 WAV file.
func WriteFile(path string, a *Audio) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	if err := Write(f, a); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	return nil
}

// Write encodes audio as a PCM16 WAV stream.
func Write(w io.Writer, a *Audio) error {
	channels := a.NumChannels()
	if channels == 0 || a.SampleRate <= 0 {
		return fmt.Errorf("%w: empty audio", ErrFormat)
	}
	frames := a.Frames()
	for _, ch := range a.Channels {
		if len(ch) != frames {
			return fmt.Errorf("%w: ragged channel lengths", ErrFormat)
		}
	}

	dataSize := frames * channels * 2
	blockAlign := channels * 2
	byteRate := a.SampleRate * blockAlign

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(a.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], 16)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wav: %w", err)
	}

	raw := make([]byte, dataSize)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			s := a.Channels[c][i]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			v := int16(s * 32767.0)
			off := (i*channels + c) * 2
			binary.LittleEndian.PutUint16(raw[off:off+2], uint16(v))
		}
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	return nil
}
