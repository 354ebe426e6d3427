package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/bytestore"
	"github.com/loopdrill/loopdrill/internal/transcript"
	"github.com/loopdrill/loopdrill/internal/transcription"
	"github.com/loopdrill/loopdrill/internal/types"
	"github.com/loopdrill/loopdrill/internal/waveform"
)

// Transcriber is the speech-to-text contract the pool consumes.
type Transcriber interface {
	Transcribe(audioPath string) (*types.TranscriptionResult, error)
}

// Sink receives finished results. Implementations must tolerate delivery
// from worker goroutines.
type Sink interface {
	// ActiveMedia reports whether mediaKey is still the loaded media.
	// Results for anything else are discarded, never delivered: a media
	// switch mid-decode must not mutate the new media's state.
	ActiveMedia(mediaKey string) bool
	DeliverWaveform(mediaKey string, wf types.WaveformData)
	DeliverTranscript(mediaKey string, res *types.TranscriptionResult)
}

// WorkerPool processes waveform and transcription jobs off the session
// event loop.
type WorkerPool struct {
	log         zerolog.Logger
	jobQueue    chan *Job
	workerCount int
	store       bytestore.Store
	transcriber Transcriber
	sink        Sink
	tempDir     string
}

// NewWorkerPool wires the pool; Start launches the workers.
func NewWorkerPool(log zerolog.Logger, workerCount int, store bytestore.Store, transcriber Transcriber, sink Sink, tempDir string) *WorkerPool {
	return &WorkerPool{
		log:         log.With().Str("component", "queue").Logger(),
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		store:       store,
		transcriber: transcriber,
		sink:        sink,
		tempDir:     tempDir,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.log.Info().Int("workers", wp.workerCount).Msg("starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		go wp.worker(i)
	}
}

// EnqueueJob adds a job to the queue.
func (wp *WorkerPool) EnqueueJob(job *Job) {
	job.Status = types.StatusQueued
	wp.jobQueue <- job
	wp.log.Info().Str("job", job.ID).Str("kind", job.Kind).Str("media", job.MediaKey).Msg("job enqueued")
}

func (wp *WorkerPool) worker(id int) {
	for job := range wp.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					wp.log.Error().Int("worker", id).Str("job", job.ID).
						Interface("panic", r).Str("stack", string(debug.Stack())).Msg("worker panic")
					job.Status = types.StatusFailed
					job.Error = fmt.Errorf("worker panic: %v", r)
				}
			}()
			wp.processJob(id, job)
		}()
	}
}

func (wp *WorkerPool) processJob(workerID int, job *Job) {
	wp.log.Info().Int("worker", workerID).Str("job", job.ID).Str("kind", job.Kind).Msg("processing job")
	job.Status = types.StatusProcessing

	switch job.Kind {
	case types.JobWaveform:
		wp.processWaveform(job)
	case types.JobTranscribe:
		wp.processTranscribe(job)
	default:
		job.Status = types.StatusFailed
		job.Error = fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (wp *WorkerPool) processWaveform(job *Job) {
	data, err := wp.store.Retrieve(job.BlobID)
	if err != nil {
		job.Status = types.StatusFailed
		job.Error = fmt.Errorf("waveform blob read failed: %w", err)
		wp.log.Warn().Err(err).Str("job", job.ID).Msg("waveform job failed")
		return
	}
	wf, err := waveform.Extract(data, waveform.DefaultResolution)
	if err != nil {
		job.Status = types.StatusFailed
		job.Error = err
		wp.log.Warn().Err(err).Str("job", job.ID).Msg("waveform decode failed")
		return
	}
	if !wp.sink.ActiveMedia(job.MediaKey) {
		wp.log.Info().Str("job", job.ID).Str("media", job.MediaKey).Msg("media changed; waveform discarded")
		return
	}
	wp.sink.DeliverWaveform(job.MediaKey, wf)
	job.Status = types.StatusCompleted
}

func (wp *WorkerPool) processTranscribe(job *Job) {
	res, err := wp.runTranscription(job)
	if err != nil {
		// External service failure degrades to a deterministic simulated
		// transcript; the session layer surfaces the notice.
		wp.log.Warn().Err(err).Str("job", job.ID).Msg("transcription failed; using simulated transcript")
		res = transcription.Simulated(job.MediaKey, job.Duration)
	}
	res.MediaKey = job.MediaKey
	res.Reassembled = transcript.Reconstruct(*res, job.Duration)

	if !wp.sink.ActiveMedia(job.MediaKey) {
		wp.log.Info().Str("job", job.ID).Str("media", job.MediaKey).Msg("media changed; transcript discarded")
		return
	}
	wp.sink.DeliverTranscript(job.MediaKey, res)
	job.Status = types.StatusCompleted
}

func (wp *WorkerPool) runTranscription(job *Job) (*types.TranscriptionResult, error) {
	data, err := wp.store.Retrieve(job.BlobID)
	if err != nil {
		return nil, fmt.Errorf("transcribe blob read failed: %w", err)
	}

	rawPath := filepath.Join(wp.tempDir, job.ID+"_raw")
	if err := os.WriteFile(rawPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to stage audio: %w", err)
	}
	defer wp.cleanupTempFile(rawPath)

	normalizedPath, err := transcription.NormalizeAudio(rawPath, wp.tempDir)
	if err != nil {
		return nil, err
	}
	defer wp.cleanupTempFile(normalizedPath)

	return wp.transcriber.Transcribe(normalizedPath)
}

func (wp *WorkerPool) cleanupTempFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		wp.log.Warn().Err(err).Str("path", path).Msg("failed to cleanup temp file")
	}
}
