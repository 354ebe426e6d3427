// Package export renders transcript segments into the interchange formats
// the practice UI offers for download. Timestamp formats are exact: SRT
// uses a comma millisecond separator, WebVTT a dot.
package export

import (
	"fmt"
	"strings"

	"github.com/loopdrill/loopdrill/internal/types"
)

// Format names accepted by the export endpoint.
const (
	FormatText = "txt"
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
)

// Render writes segments in the named format.
func Render(format string, segs []types.TranscriptSegment) (string, error) {
	switch format {
	case FormatText:
		return Text(segs), nil
	case FormatSRT:
		return SRT(segs), nil
	case FormatVTT:
		return VTT(segs), nil
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
}

// Text renders one line per segment: [mm:ss - mm:ss] text
func Text(segs []types.TranscriptSegment) string {
	var b strings.Builder
	for _, s := range segs {
		fmt.Fprintf(&b, "[%s - %s] %s\n", mmss(s.StartTime), mmss(s.EndTime), s.Text)
	}
	return b.String()
}

// SRT renders numbered blocks with HH:MM:SS,mmm timestamps.
func SRT(segs []types.TranscriptSegment) string {
	var b strings.Builder
	for i, s := range segs {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, hmsMilli(s.StartTime, ","), hmsMilli(s.EndTime, ","), s.Text)
	}
	return b.String()
}

// VTT renders a WEBVTT header followed by cues with HH:MM:SS.mmm stamps.
func VTT(segs []types.TranscriptSegment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, s := range segs {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			hmsMilli(s.StartTime, "."), hmsMilli(s.EndTime, "."), s.Text)
	}
	return b.String()
}

func mmss(t float64) string {
	if t < 0 {
		t = 0
	}
	total := int(t)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func hmsMilli(t float64, sep string) string {
	if t < 0 {
		t = 0
	}
	milli := int(t*1000 + 0.5)
	h := milli / 3600000
	m := milli % 3600000 / 60000
	s := milli % 60000 / 1000
	ms := milli % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms)
}
