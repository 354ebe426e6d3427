package waveform

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV renders mono s16le samples into a minimal RIFF container.
func buildWAV(samples []int16, sampleRate int) []byte {
	var pcm bytes.Buffer
	for _, s := range samples {
		binary.Write(&pcm, binary.LittleEndian, s)
	}

	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+pcm.Len()))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&b, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint16(16))

	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(pcm.Len()))
	b.Write(pcm.Bytes())
	return b.Bytes()
}

func TestExtract_WAVSine(t *testing.T) {
	const rate = 8000
	samples := make([]int16, rate) // 1 second
	for i := range samples {
		samples[i] = int16(20000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	wf, err := Extract(buildWAV(samples, rate), 100)
	require.NoError(t, err)
	assert.Equal(t, 100, wf.Resolution)
	assert.Len(t, wf.Peaks, 100)
	assert.Equal(t, rate, wf.SampleRate)
	assert.InDelta(t, 1.0, wf.Duration, 1e-9)

	// Peaks are normalized: the loudest bucket is exactly 1.
	max := 0.0
	for _, p := range wf.Peaks {
		require.GreaterOrEqual(t, p, 0.0)
		require.LessOrEqual(t, p, 1.0)
		if p > max {
			max = p
		}
	}
	assert.InDelta(t, 1.0, max, 1e-9)
}

func TestExtract_SilenceStaysZero(t *testing.T) {
	samples := make([]int16, 4000)
	wf, err := Extract(buildWAV(samples, 8000), 50)
	require.NoError(t, err)
	for _, p := range wf.Peaks {
		assert.Equal(t, 0.0, p)
	}
}

func TestExtract_QuietAndLoudHalves(t *testing.T) {
	const rate = 8000
	samples := make([]int16, rate)
	for i := range samples {
		amp := 3000.0
		if i >= rate/2 {
			amp = 30000.0
		}
		samples[i] = int16(amp * math.Sin(2*math.Pi*100*float64(i)/rate))
	}
	wf, err := Extract(buildWAV(samples, rate), 10)
	require.NoError(t, err)
	assert.Less(t, wf.Peaks[1], 0.2)
	assert.Greater(t, wf.Peaks[8], 0.9)
}

func TestExtract_DefaultResolution(t *testing.T) {
	wf, err := Extract(buildWAV(make([]int16, 8000), 8000), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultResolution, wf.Resolution)
}

func TestExtract_GarbageRejected(t *testing.T) {
	_, err := Extract([]byte("definitely not audio data"), 100)
	assert.Error(t, err)
}

func TestExtract_NonPCMWAVRejected(t *testing.T) {
	wav := buildWAV(make([]int16, 100), 8000)
	// Flip the audio format tag to IEEE float.
	copy(wav[20:22], []byte{3, 0})
	_, err := Extract(wav, 10)
	assert.Error(t, err)
}
