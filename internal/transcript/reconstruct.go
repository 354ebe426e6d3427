// Package transcript rebuilds raw speech-recognition output into
// continuous, non-overlapping segments. Looping a single segment must not
// cut off lead-in or lead-out audio, so silent gaps between neighbours are
// closed (fully for short gaps, partially for longer ones) while genuine
// long pauses are preserved.
package transcript

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/loopdrill/loopdrill/internal/types"
)

const (
	// residualGap is the separation left between neighbours after a
	// short gap is closed, and the push distance used to break overlaps.
	residualGap = 0.05

	// Gap tiers. Short gaps close almost fully, medium gaps mostly, and
	// anything above longPause gets a bounded extension so real pauses
	// are not absorbed into speech.
	shortGap  = 1.0
	longPause = 2.5

	mediumCloseFrac = 0.75
	maxEndExtend    = 0.7
	maxStartPull    = 0.5

	// fallbackConfidence marks segments with made-up timing.
	fallbackConfidence = 0.3
)

// Reconstruct converts recognizer output into loop-safe segments.
// Strategy is picked by data availability: word timestamps when present,
// otherwise the raw segments, otherwise an even split of the plain text
// across the media duration.
func Reconstruct(res types.TranscriptionResult, mediaDuration float64) []types.TranscriptSegment {
	switch {
	case len(res.Words) > 0 && len(res.Segments) > 0:
		return fromWords(res.Segments, res.Words, mediaDuration)
	case len(res.Segments) > 0:
		return fromSegments(res.Segments, mediaDuration)
	case strings.TrimSpace(res.Text) != "":
		return fromPlainText(res.Text, mediaDuration)
	default:
		return nil
	}
}

// fromWords rebuilds each segment's bounds from the words assigned to it,
// then closes the remaining gaps. Word boundaries are tighter than the
// recognizer's segment boundaries, so this is the preferred path.
func fromWords(raw []types.RawSegment, words []types.RawWord, mediaDuration float64) []types.TranscriptSegment {
	segs := buildSegments(raw)

	type bounds struct {
		start, end float64
		hasWords   bool
	}
	b := make([]bounds, len(segs))

	// Assign words against the filtered, sorted segments: raw input may
	// carry empty or zero-length entries that buildSegments dropped, and
	// raw order is not guaranteed.
	for _, w := range words {
		idx := nearestSegment(segs, (w.Start+w.End)/2)
		if idx < 0 {
			continue
		}
		if !b[idx].hasWords {
			b[idx] = bounds{start: w.Start, end: w.End, hasWords: true}
			continue
		}
		b[idx].start = math.Min(b[idx].start, w.Start)
		b[idx].end = math.Max(b[idx].end, w.End)
	}
	for i := range segs {
		if b[i].hasWords && b[i].end > b[i].start {
			segs[i].StartTime = b[i].start
			segs[i].EndTime = b[i].end
		}
	}

	closeGaps(segs)
	normalize(segs, mediaDuration)
	return segs
}

// fromSegments applies the tiered gap rule directly to the raw segments.
func fromSegments(raw []types.RawSegment, mediaDuration float64) []types.TranscriptSegment {
	segs := buildSegments(raw)
	closeGaps(segs)
	normalize(segs, mediaDuration)
	return segs
}

// fromPlainText splits the transcript into sentences and spreads them
// evenly across the media. Timing is approximate; confidence is fixed low
// so the UI can signal it.
func fromPlainText(text string, mediaDuration float64) []types.TranscriptSegment {
	sentences := splitSentences(text)
	if len(sentences) == 0 || mediaDuration <= 0 {
		return nil
	}
	per := mediaDuration / float64(len(sentences))
	segs := make([]types.TranscriptSegment, len(sentences))
	for i, s := range sentences {
		segs[i] = types.TranscriptSegment{
			ID:         fmt.Sprintf("seg-%03d", i+1),
			Text:       s,
			StartTime:  float64(i) * per,
			EndTime:    float64(i+1) * per,
			Confidence: fallbackConfidence,
			IsFinal:    true,
		}
	}
	return segs
}

func buildSegments(raw []types.RawSegment) []types.TranscriptSegment {
	ordered := append([]types.RawSegment(nil), raw...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	segs := make([]types.TranscriptSegment, 0, len(ordered))
	for _, r := range ordered {
		text := strings.TrimSpace(r.Text)
		if text == "" || r.End <= r.Start {
			continue
		}
		segs = append(segs, types.TranscriptSegment{
			ID:         fmt.Sprintf("seg-%03d", len(segs)+1),
			Text:       text,
			StartTime:  r.Start,
			EndTime:    r.End,
			Confidence: Confidence(r.AvgLogprob),
			IsFinal:    true,
		})
	}
	return segs
}

// closeGaps applies the tiered rule between consecutive segments:
//   - gap <= 1.0s: closed to at most the residual, split so the earlier
//     segment gains most of it as lead-out
//   - 1.0s < gap <= 2.5s: 75% closed
//   - gap > 2.5s: bounded extension only, the pause survives
func closeGaps(segs []types.TranscriptSegment) {
	for i := 0; i+1 < len(segs); i++ {
		cur, next := &segs[i], &segs[i+1]
		gap := next.StartTime - cur.EndTime
		if gap <= 0 {
			continue // overlaps handled in normalize
		}
		switch {
		case gap <= shortGap:
			closed := gap - math.Min(residualGap, gap)
			cur.EndTime += closed * 0.6
			next.StartTime -= closed * 0.4
		case gap <= longPause:
			closed := gap * mediumCloseFrac
			cur.EndTime += closed * 0.6
			next.StartTime -= closed * 0.4
		default:
			cur.EndTime += math.Min(maxEndExtend, gap/2)
			next.StartTime -= math.Min(maxStartPull, gap/2)
		}
	}
}

// normalize clamps to the media, breaks overlaps by pushing the later
// start just past the earlier end, and keeps every segment positive.
func normalize(segs []types.TranscriptSegment, mediaDuration float64) {
	for i := range segs {
		if segs[i].StartTime < 0 {
			segs[i].StartTime = 0
		}
		if mediaDuration > 0 && segs[i].EndTime > mediaDuration {
			segs[i].EndTime = mediaDuration
		}
	}
	for i := 1; i < len(segs); i++ {
		prev, cur := &segs[i-1], &segs[i]
		if cur.StartTime < prev.EndTime {
			cur.StartTime = prev.EndTime + residualGap
		}
		if cur.EndTime <= cur.StartTime {
			cur.EndTime = cur.StartTime + residualGap
		}
	}
}

// nearestSegment picks the segment containing t, else the one whose
// interval lies closest.
func nearestSegment(segs []types.TranscriptSegment, t float64) int {
	best, bestDist := -1, math.MaxFloat64
	for i, s := range segs {
		var d float64
		switch {
		case t >= s.StartTime && t <= s.EndTime:
			d = 0
		case t < s.StartTime:
			d = s.StartTime - t
		default:
			d = t - s.EndTime
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Confidence maps the recognizer's average log-probability to [0,1].
func Confidence(avgLogprob float64) float64 {
	c := math.Exp(avgLogprob)
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

// splitSentences breaks text on sentence-final punctuation.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
