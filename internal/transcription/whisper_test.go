package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhisperJSON(t *testing.T) {
	data := []byte(`{
		"text": " Hello world. Second part.",
		"language": "en",
		"segments": [
			{"id": 0, "start": 0.0, "end": 2.1, "text": " Hello world.", "avg_logprob": -0.25,
			 "words": [{"word": " Hello", "start": 0.2, "end": 0.7}, {"word": " world.", "start": 0.75, "end": 1.9}]},
			{"id": 1, "start": 2.6, "end": 4.0, "text": " Second part.", "avg_logprob": -0.4}
		]
	}`)
	res, err := ParseWhisperJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "Hello world. Second part.", res.Text)
	assert.Equal(t, "en", res.Language)
	require.Len(t, res.Segments, 2)
	assert.Equal(t, -0.25, res.Segments[0].AvgLogprob)
	require.Len(t, res.Words, 2)
	assert.Equal(t, "Hello", res.Words[0].Word)
	assert.Equal(t, 4.0, res.Duration)
}

func TestParseWhisperJSON_Malformed(t *testing.T) {
	_, err := ParseWhisperJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestSimulatedDeterministic(t *testing.T) {
	a := Simulated("m1", 30)
	b := Simulated("m1", 30)
	require.Equal(t, len(a.Segments), len(b.Segments))
	for i := range a.Segments {
		assert.Equal(t, a.Segments[i], b.Segments[i])
	}
	assert.True(t, a.Simulated)
	assert.Equal(t, 30.0, a.Segments[len(a.Segments)-1].End)
}

func TestSimulatedShortMedia(t *testing.T) {
	res := Simulated("m2", 1.5)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, 1.5, res.Segments[0].End)
}

func TestValidateAudioFormat(t *testing.T) {
	assert.True(t, ValidateAudioFormat("song.mp3"))
	assert.True(t, ValidateAudioFormat("clip.WAV"))
	assert.False(t, ValidateAudioFormat("notes.txt"))
	assert.False(t, ValidateAudioFormat("archive"))
}
