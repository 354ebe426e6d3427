// Package waveform decodes stored media bytes into fixed-resolution peak
// buckets for timeline rendering. WAV is parsed directly; MP3 goes
// through hajimehoshi/go-mp3. This is the only place raw media bytes are
// read outside playback.
package waveform

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	mp3 "github.com/hajimehoshi/go-mp3"
	"gonum.org/v1/gonum/floats"

	"github.com/loopdrill/loopdrill/internal/types"
)

// DefaultResolution matches the timeline strip's bar budget.
const DefaultResolution = 1000

// ErrUnsupportedFormat is returned for bytes that are neither WAV nor MP3.
var ErrUnsupportedFormat = errors.New("waveform: unsupported media format")

// Extract decodes media bytes and reduces them to resolution peak buckets
// normalized to [0,1].
func Extract(data []byte, resolution int) (types.WaveformData, error) {
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	var (
		samples    []float64
		sampleRate int
		err        error
	)
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		samples, sampleRate, err = decodeWAV(data)
	default:
		samples, sampleRate, err = decodeMP3(data)
	}
	if err != nil {
		return types.WaveformData{}, err
	}
	if len(samples) == 0 || sampleRate <= 0 {
		return types.WaveformData{}, fmt.Errorf("waveform: no audio samples decoded")
	}

	peaks := bucketPeaks(samples, resolution)
	if max := floats.Max(peaks); max > 0 {
		floats.Scale(1/max, peaks)
	}

	return types.WaveformData{
		Peaks:      peaks,
		Duration:   float64(len(samples)) / float64(sampleRate),
		Resolution: resolution,
		SampleRate: sampleRate,
	}, nil
}

// bucketPeaks reduces samples to the max |amplitude| per bucket.
func bucketPeaks(samples []float64, resolution int) []float64 {
	peaks := make([]float64, resolution)
	per := float64(len(samples)) / float64(resolution)
	for i := 0; i < resolution; i++ {
		lo := int(float64(i) * per)
		hi := int(float64(i+1) * per)
		if hi > len(samples) {
			hi = len(samples)
		}
		if lo >= hi {
			continue
		}
		peak := 0.0
		for _, s := range samples[lo:hi] {
			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
		peaks[i] = peak
	}
	return peaks
}

// decodeWAV handles PCM s16le mono or stereo RIFF/WAVE data.
func decodeWAV(data []byte) ([]float64, int, error) {
	r := bytes.NewReader(data[12:])
	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			break
		}
		size := binary.LittleEndian.Uint32(hdr[4:])
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, 0, fmt.Errorf("waveform: truncated wav chunk: %w", err)
		}
		switch string(hdr[:4]) {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("waveform: malformed fmt chunk")
			}
			format := binary.LittleEndian.Uint16(chunk[0:])
			channels = int(binary.LittleEndian.Uint16(chunk[2:]))
			sampleRate = int(binary.LittleEndian.Uint32(chunk[4:]))
			bits = int(binary.LittleEndian.Uint16(chunk[14:]))
			if format != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("waveform: only 16-bit PCM wav supported")
			}
		case "data":
			pcm = chunk
		}
		if size%2 == 1 { // chunks are word-aligned
			io.CopyN(io.Discard, r, 1)
		}
	}
	if pcm == nil || sampleRate == 0 || channels == 0 {
		return nil, 0, ErrUnsupportedFormat
	}
	return pcm16ToMono(pcm, channels), sampleRate, nil
}

// decodeMP3 decodes via go-mp3, which always emits 16-bit stereo.
func decodeMP3(data []byte) ([]float64, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, ErrUnsupportedFormat
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("waveform: mp3 decode failed: %w", err)
	}
	return pcm16ToMono(pcm, 2), dec.SampleRate(), nil
}

// pcm16ToMono converts interleaved s16le frames to mono float64 in [-1,1].
func pcm16ToMono(pcm []byte, channels int) []float64 {
	frameBytes := 2 * channels
	n := len(pcm) / frameBytes
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			off := i*frameBytes + ch*2
			sum += float64(int16(binary.LittleEndian.Uint16(pcm[off:]))) / 32768
		}
		out[i] = sum / float64(channels)
	}
	return out
}
