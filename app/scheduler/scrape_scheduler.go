// Package scheduler runs background jobs that feed the reference collection
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ayatose/refbako/app/dto"
	businessflow "github.com/ayatose/refbako/business_flow"
	"github.com/ayatose/refbako/config"
	"github.com/ayatose/refbako/repository"
)

// ScrapeScheduler periodically scrapes the configured galleries and ingests
// the results into a designated account's collection.
type ScrapeScheduler struct {
	ingestionFlow businessflow.IngestionFlow
	accountRepo   repository.AccountRepository
	cfg           config.SchedulerConfig
	logger        *log.Logger

	logFile *os.File
}

func NewScrapeScheduler(
	ingestionFlow businessflow.IngestionFlow,
	accountRepo repository.AccountRepository,
	cfg config.SchedulerConfig,
) *ScrapeScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	s := &ScrapeScheduler{
		ingestionFlow: ingestionFlow,
		accountRepo:   accountRepo,
		cfg:           cfg,
	}

	// Initialize scheduler-specific logger (to stdout and persistent file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *ScrapeScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "scheduler.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log file in any candidate directory")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *ScrapeScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				s.close()
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *ScrapeScheduler) runOnce(ctx context.Context) {
	account, err := s.accountRepo.ByEmail(ctx, s.cfg.OwnerEmail)
	if err != nil {
		s.logger.Printf("scheduler: owner lookup failed: %v", err)
		return
	}
	if account == nil {
		s.logger.Printf("scheduler: owner account %q not found, skipping run", s.cfg.OwnerEmail)
		return
	}

	req := &dto.ScrapeRequest{
		Source: s.cfg.Source,
		Limit:  s.cfg.LimitPerSource,
	}

	started := time.Now()
	result, err := s.ingestionFlow.Scrape(ctx, req, account.ID)
	if err != nil {
		s.logger.Printf("scheduler: scrape run failed: %v", err)
		return
	}

	s.logger.Printf("scheduler: scrape run finished source=%s ingested=%d took=%s",
		s.cfg.Source, result.Count, time.Since(started).Round(time.Millisecond))
}

func (s *ScrapeScheduler) close() {
	if s.logFile != nil {
		s.logFile.Close()
	}
}
