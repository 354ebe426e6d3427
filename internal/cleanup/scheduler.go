// Package cleanup removes stale staging files left behind by decode and
// transcription jobs.
package cleanup

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler periodically sweeps the temp directory for old files.
type Scheduler struct {
	log      zerolog.Logger
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	stopChan chan struct{}
}

// NewScheduler builds a scheduler; Start begins sweeping.
func NewScheduler(log zerolog.Logger, tempDir string, intervalMinutes, maxAgeHours int) *Scheduler {
	return &Scheduler{
		log:      log.With().Str("component", "cleanup").Logger(),
		tempDir:  tempDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately, then sweeps on the interval.
func (s *Scheduler) Start() {
	s.sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.Info().Dur("interval", s.interval).Dur("max_age", s.maxAge).Msg("cleanup scheduler started")
}

// Stop halts the sweep loop.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.log.Info().Msg("cleanup scheduler stopped")
}

// sweep removes files older than maxAge from the temp directory.
func (s *Scheduler) sweep() {
	now := time.Now()
	var deleted int
	var freed int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if now.Sub(info.ModTime()) <= s.maxAge {
			return nil
		}
		size := info.Size()
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("stale file not deleted")
			return nil
		}
		deleted++
		freed += size
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("cleanup walk failed")
	}
	if deleted > 0 {
		s.log.Info().Int("files", deleted).Int64("bytes", freed).Msg("cleanup sweep complete")
	}
}

// EnsureTempDirExists creates the temp directory if needed.
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
