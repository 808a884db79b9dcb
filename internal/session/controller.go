// Package session orchestrates a monitoring session: it runs the sampler,
// summarizes the samples once sampling stops, and hands the resulting record
// to a persister. Finalization happens however sampling ended.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Guliveer/rocemon/internal/models"
	"github.com/Guliveer/rocemon/internal/throughput"
)

// Sampler is the part of *sampler.Sampler the controller drives.
type Sampler interface {
	Run(ctx context.Context) error
	Interface() string
	StartedAt() time.Time
	Samples() []models.Sample
}

// Persister writes a record to a target, replacing what was there.
type Persister interface {
	Save(ctx context.Context, record *models.Record, target string) error
}

// TargetPersister sends http:// and https:// targets to HTTP and everything
// else to File.
type TargetPersister struct {
	File Persister
	HTTP Persister
}

// Save dispatches on the target scheme.
func (p TargetPersister) Save(ctx context.Context, record *models.Record, target string) error {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		if p.HTTP == nil {
			return fmt.Errorf("no HTTP persister configured for %s", target)
		}
		return p.HTTP.Save(ctx, record, target)
	}
	return p.File.Save(ctx, record, target)
}

// Config holds the session-level settings.
type Config struct {
	Interface  string
	Duration   time.Duration
	Target     string
	Filter     throughput.Filter
	RoCEv2Port string
}

// Controller runs a single session.
type Controller struct {
	cfg       Config
	sampler   Sampler
	persister Persister
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Controller. The logger may be nil.
func New(cfg Config, s Sampler, p Persister, logger *zap.Logger) *Controller {
	if cfg.RoCEv2Port == "" {
		cfg.RoCEv2Port = throughput.DefaultRoCEv2Port
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:       cfg,
		sampler:   s,
		persister: p,
		logger:    logger.Named("session"),
		now:       time.Now,
	}
}

// Run samples until the sampler stops, then summarizes and persists.
//
// Summarizing and persisting are attempted even if ctx was cancelled or the
// sampling loop panicked. The returned record is never nil; the error
// combines any sampling failure with any persistence failure.
func (c *Controller) Run(ctx context.Context) (*models.Record, error) {
	session := &models.Session{
		ID:                 uuid.NewString(),
		RequestedInterface: c.cfg.Interface,
		RequestedDuration:  c.cfg.Duration,
		StartedAt:          c.now(),
	}

	runErr := c.sample(ctx)

	ended := c.now()
	if started := c.sampler.StartedAt(); !started.IsZero() {
		session.StartedAt = started
	}
	session.EndedAt = &ended
	session.Interface = c.sampler.Interface()
	session.Samples = c.sampler.Samples()

	summary := c.cfg.Filter.Summarize(session.Samples, c.cfg.RoCEv2Port)
	record := models.NewRecord(session, summary)

	c.logger.Info("Session finished",
		zap.String("session_id", session.ID),
		zap.String("interface", session.Interface),
		zap.Int("samples", len(session.Samples)),
		zap.Duration("elapsed", ended.Sub(session.StartedAt)))

	var saveErr error
	if err := c.persister.Save(context.WithoutCancel(ctx), record, c.cfg.Target); err != nil {
		saveErr = fmt.Errorf("persisting session to %s: %w", c.cfg.Target, err)
		c.logger.Error("Failed to persist session", zap.Error(err))
	}

	return record, multierr.Combine(runErr, saveErr)
}

// sample runs the sampler, converting a panic into an error.
func (c *Controller) sample(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Sampling loop panicked", zap.Any("panic", r))
			err = fmt.Errorf("sampling loop panicked: %v", r)
		}
	}()
	if err := c.sampler.Run(ctx); err != nil {
		return fmt.Errorf("sampling: %w", err)
	}
	return nil
}
