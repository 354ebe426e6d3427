package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopdrill/loopdrill/internal/types"
)

var sample = []types.TranscriptSegment{
	{ID: "seg-001", Text: "Hello world.", StartTime: 0, EndTime: 2.5},
	{ID: "seg-002", Text: "Second line.", StartTime: 2.55, EndTime: 65.2},
}

func TestText(t *testing.T) {
	got := Text(sample)
	want := "[00:00 - 00:02] Hello world.\n[00:02 - 01:05] Second line.\n"
	assert.Equal(t, want, got)
}

func TestSRT(t *testing.T) {
	got := SRT(sample)
	want := "1\n00:00:00,000 --> 00:00:02,500\nHello world.\n\n" +
		"2\n00:00:02,550 --> 00:01:05,200\nSecond line.\n\n"
	assert.Equal(t, want, got)
}

func TestVTT(t *testing.T) {
	got := VTT(sample)
	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:02.500\nHello world.\n\n" +
		"00:00:02.550 --> 00:01:05.200\nSecond line.\n\n"
	assert.Equal(t, want, got)
}

func TestHourRollover(t *testing.T) {
	segs := []types.TranscriptSegment{{Text: "late", StartTime: 3661.25, EndTime: 3662}}
	got := SRT(segs)
	assert.Contains(t, got, "01:01:01,250 --> 01:01:02,000")
}

func TestRenderDispatch(t *testing.T) {
	for _, f := range []string{FormatText, FormatSRT, FormatVTT} {
		out, err := Render(f, sample)
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	}
	_, err := Render("pdf", sample)
	assert.Error(t, err)
}
