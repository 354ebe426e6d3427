package transcription

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/types"
)

// WhisperTranscriber shells out to Python's OpenAI Whisper. One
// transcription runs at a time; the model is the bottleneck anyway.
type WhisperTranscriber struct {
	log       zerolog.Logger
	modelName string
	tempDir   string
	mu        sync.Mutex
}

// NewWhisperTranscriber picks the model size from the configured model
// path the way older deployments named their ggml files.
func NewWhisperTranscriber(log zerolog.Logger, modelPath, tempDir string) *WhisperTranscriber {
	modelName := "small"
	for _, name := range []string{"tiny", "base", "small", "medium", "large"} {
		if strings.Contains(modelPath, name) {
			modelName = name
			break
		}
	}
	return &WhisperTranscriber{
		log:       log.With().Str("component", "whisper").Logger(),
		modelName: modelName,
		tempDir:   tempDir,
	}
}

// Transcribe runs Whisper over an audio file and returns segments with
// word-level timestamps and per-segment avg_logprob. Callers treat a nil
// error with Simulated=false as real recognizer output.
func (wt *WhisperTranscriber) Transcribe(audioPath string) (*types.TranscriptionResult, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	outDir := filepath.Join(wt.tempDir, "whisper_output")
	os.MkdirAll(outDir, 0755)
	defer os.RemoveAll(outDir)

	absAudioPath, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	cmd := exec.Command("python", "-m", "whisper",
		absAudioPath,
		"--model", wt.modelName,
		"--output_dir", outDir,
		"--output_format", "json",
		"--word_timestamps", "True",
		"--fp16", "False",
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w\noutput: %s", err, string(output))
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonData, err := os.ReadFile(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	result, err := ParseWhisperJSON(jsonData)
	if err != nil {
		return nil, err
	}
	wt.log.Info().Int("segments", len(result.Segments)).Int("words", len(result.Words)).
		Float64("duration", result.Duration).Msg("transcription completed")
	return result, nil
}

// whisperOutput matches Python Whisper's JSON output format.
type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		ID         int     `json:"id"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Text       string  `json:"text"`
		AvgLogprob float64 `json:"avg_logprob"`
		Words      []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// ParseWhisperJSON converts Whisper's JSON into the engine's raw types.
func ParseWhisperJSON(data []byte) (*types.TranscriptionResult, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	result := &types.TranscriptionResult{
		Text:        strings.TrimSpace(out.Text),
		Language:    out.Language,
		ProcessedAt: time.Now(),
	}
	for _, seg := range out.Segments {
		result.Segments = append(result.Segments, types.RawSegment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       strings.TrimSpace(seg.Text),
			AvgLogprob: seg.AvgLogprob,
		})
		for _, w := range seg.Words {
			result.Words = append(result.Words, types.RawWord{
				Word:  strings.TrimSpace(w.Word),
				Start: w.Start,
				End:   w.End,
			})
		}
	}
	if n := len(result.Segments); n > 0 {
		result.Duration = result.Segments[n-1].End
	}
	return result, nil
}

// Simulated builds a deterministic placeholder transcript so downstream
// UI keeps working when the recognizer is unavailable. Segment count and
// spacing depend only on the duration.
func Simulated(mediaKey string, duration float64) *types.TranscriptionResult {
	if duration <= 0 {
		duration = 30
	}
	const per = 3.5
	n := int(duration / per)
	if n < 1 {
		n = 1
	}
	segs := make([]types.RawSegment, n)
	for i := range segs {
		start := float64(i) * duration / float64(n)
		end := float64(i+1) * duration / float64(n)
		segs[i] = types.RawSegment{
			Start:      start,
			End:        end - 0.3, // leave gaps for the reconstructor to close
			Text:       fmt.Sprintf("Practice segment %d.", i+1),
			AvgLogprob: -1.2,
		}
	}
	segs[n-1].End = duration
	var lines []string
	for _, s := range segs {
		lines = append(lines, s.Text)
	}
	return &types.TranscriptionResult{
		MediaKey:    mediaKey,
		Text:        strings.Join(lines, " "),
		Language:    "en",
		Duration:    duration,
		Segments:    segs,
		Simulated:   true,
		ProcessedAt: time.Now(),
	}
}
