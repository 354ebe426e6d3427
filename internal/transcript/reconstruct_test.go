package transcript

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopdrill/loopdrill/internal/types"
)

func seg(start, end float64, text string) types.RawSegment {
	return types.RawSegment{Start: start, End: end, Text: text, AvgLogprob: -0.2}
}

func TestSegmentLevel_ShortGapsClosed(t *testing.T) {
	res := types.TranscriptionResult{Segments: []types.RawSegment{
		seg(0.0, 1.8, "first"),
		seg(2.4, 4.0, "second"), // 0.6s gap
		seg(4.1, 5.0, "third"),  // 0.1s gap
	}}
	out := Reconstruct(res, 10)
	require.Len(t, out, 3)
	for i := 0; i+1 < len(out); i++ {
		gap := out[i+1].StartTime - out[i].EndTime
		assert.LessOrEqual(t, math.Max(0, gap), 0.06, "gap %d", i)
	}
}

func TestSegmentLevel_MediumGapPartiallyClosed(t *testing.T) {
	res := types.TranscriptionResult{Segments: []types.RawSegment{
		seg(0, 1, "a"),
		seg(3, 4, "b"), // 2.0s gap
	}}
	out := Reconstruct(res, 10)
	require.Len(t, out, 2)
	gap := out[1].StartTime - out[0].EndTime
	// 70-85% closed: remaining gap between 0.3 and 0.6 of the original 2s.
	assert.Greater(t, gap, 0.2)
	assert.Less(t, gap, 0.7)
}

func TestSegmentLevel_LongPausePreserved(t *testing.T) {
	res := types.TranscriptionResult{Segments: []types.RawSegment{
		seg(0, 1, "a"),
		seg(6, 7, "b"), // 5.0s pause
	}}
	out := Reconstruct(res, 10)
	require.Len(t, out, 2)
	// Bounded extension only: each side moved at most ~1.2s combined.
	assert.LessOrEqual(t, out[0].EndTime, 1.0+0.7+1e-9)
	assert.GreaterOrEqual(t, out[1].StartTime, 6.0-0.5-1e-9)
	assert.Greater(t, out[1].StartTime-out[0].EndTime, 2.5)
}

func TestSegmentLevel_NeverOverlaps(t *testing.T) {
	res := types.TranscriptionResult{Segments: []types.RawSegment{
		seg(0, 2.2, "a"),
		seg(2.0, 3.0, "b"), // raw overlap
		seg(3.05, 4.0, "c"),
	}}
	out := Reconstruct(res, 10)
	require.Len(t, out, 3)
	for i := 1; i < len(out); i++ {
		require.GreaterOrEqual(t, out[i].StartTime, out[i-1].EndTime)
		require.Greater(t, out[i].EndTime, out[i].StartTime)
	}
}

func TestWordLevel_BoundsRebuiltFromWords(t *testing.T) {
	res := types.TranscriptionResult{
		Segments: []types.RawSegment{
			seg(0.0, 2.0, "hello there"),
			seg(2.5, 5.0, "general kenobi"),
		},
		Words: []types.RawWord{
			{Word: "hello", Start: 0.30, End: 0.70},
			{Word: "there", Start: 0.75, End: 1.20},
			{Word: "general", Start: 2.80, End: 3.30},
			{Word: "kenobi", Start: 3.35, End: 3.90},
		},
	}
	out := Reconstruct(res, 10)
	require.Len(t, out, 2)
	// First segment starts at its first word, not the padded raw bound.
	assert.InDelta(t, 0.30, out[0].StartTime, 1e-9)
	// Word-rebuilt gap (1.2 -> 2.8 = 1.6s) is 75% closed.
	gap := out[1].StartTime - out[0].EndTime
	assert.Less(t, gap, 0.6)
	assert.Greater(t, out[1].EndTime, out[1].StartTime)
}

func TestWordLevel_BlankSegmentDropped(t *testing.T) {
	// Recognizers emit occasional whitespace-only or zero-length segments;
	// word assignment must survive them landing between real segments.
	res := types.TranscriptionResult{
		Segments: []types.RawSegment{
			seg(0.0, 2.0, "hola"),
			seg(2.0, 2.0, "   "),
			seg(3.0, 5.0, "mundo"),
		},
		Words: []types.RawWord{
			{Word: "hola", Start: 0.40, End: 0.90},
			{Word: "mundo", Start: 3.20, End: 3.80},
			{Word: "!", Start: 3.85, End: 4.00},
			{Word: "?", Start: 4.05, End: 4.20},
		},
	}
	out := Reconstruct(res, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "hola", out[0].Text)
	assert.Equal(t, "mundo", out[1].Text)
	assert.InDelta(t, 0.40, out[0].StartTime, 1e-9)
	assert.Greater(t, out[1].EndTime, out[1].StartTime)
}

func TestWordLevel_UnsortedRawSegments(t *testing.T) {
	res := types.TranscriptionResult{
		Segments: []types.RawSegment{
			seg(3.0, 5.0, "second"),
			seg(0.0, 2.0, "first"),
		},
		Words: []types.RawWord{
			{Word: "first", Start: 0.30, End: 0.80},
			{Word: "second", Start: 3.30, End: 3.90},
		},
	}
	out := Reconstruct(res, 10)
	require.Len(t, out, 2)
	// Words land on the segment they belong to, not the raw input position.
	assert.Equal(t, "first", out[0].Text)
	assert.InDelta(t, 0.30, out[0].StartTime, 1e-9)
	assert.Equal(t, "second", out[1].Text)
	assert.InDelta(t, 3.90, out[1].EndTime, 1e-9)
}

func TestFallback_PlainTextEvenSplit(t *testing.T) {
	res := types.TranscriptionResult{Text: "One sentence. Another one! A third?"}
	out := Reconstruct(res, 30)
	require.Len(t, out, 3)
	assert.InDelta(t, 0, out[0].StartTime, 1e-9)
	assert.InDelta(t, 10, out[0].EndTime, 1e-9)
	assert.InDelta(t, 20, out[2].StartTime, 1e-9)
	assert.InDelta(t, 30, out[2].EndTime, 1e-9)
	for _, s := range out {
		assert.Equal(t, fallbackConfidence, s.Confidence)
	}
}

func TestReconstruct_EmptyInput(t *testing.T) {
	assert.Nil(t, Reconstruct(types.TranscriptionResult{}, 10))
	assert.Nil(t, Reconstruct(types.TranscriptionResult{Text: "   "}, 10))
}

func TestConfidenceMapping(t *testing.T) {
	assert.InDelta(t, 1.0, Confidence(0), 1e-9)
	assert.InDelta(t, math.Exp(-0.5), Confidence(-0.5), 1e-9)
	assert.InDelta(t, 1.0, Confidence(0.3), 1e-9) // clamped
}

func TestClampToMediaDuration(t *testing.T) {
	res := types.TranscriptionResult{Segments: []types.RawSegment{
		seg(8.5, 9.9, "tail"),
		seg(10.2, 12.5, "past the end"),
	}}
	out := Reconstruct(res, 10)
	require.Len(t, out, 2)
	// Clamping to the media end may leave a sliver segment, but order and
	// positive duration always hold.
	for i, s := range out {
		assert.LessOrEqual(t, s.EndTime, 10.0+4*residualGap)
		assert.Greater(t, s.EndTime, s.StartTime)
		if i > 0 {
			assert.GreaterOrEqual(t, s.StartTime, out[i-1].EndTime)
		}
	}
}
