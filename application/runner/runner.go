package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vid2audio/application/events"
	"vid2audio/application/registry"
	"vid2audio/domain/conversion"
)

// CompletedMessage is attached to TaskCompleted events
const CompletedMessage = "Conversion successful"

// State is the lifecycle of the most recent run
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Summary describes a finished run
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Cancelled int
	Stopped   bool
	Elapsed   time.Duration
}

// Runner executes the pending tasks of a registry through a Transcoder
type Runner struct {
	registry   *registry.Registry
	bus        *events.Bus
	transcoder conversion.Transcoder
	frames     conversion.FrameExtractor
	artwork    conversion.ArtworkPreparer
	tagger     conversion.Tagger
	logger     *slog.Logger

	now      func() time.Time
	newRunID func() string
	mkdirAll func(path string, perm os.FileMode) error
	remove   func(path string) error

	mu      sync.Mutex
	state   State
	runID   string
	cancel  context.CancelFunc
	done    chan struct{}
	summary Summary
	stopped atomic.Bool
}

// Option configures a Runner
type Option func(*Runner)

// WithFrameExtractor sets the still frame source used for cover art
func WithFrameExtractor(f conversion.FrameExtractor) Option {
	return func(r *Runner) {
		r.frames = f
	}
}

// WithArtworkPreparer sets how extracted frames become embeddable artwork
func WithArtworkPreparer(p conversion.ArtworkPreparer) Option {
	return func(r *Runner) {
		r.artwork = p
	}
}

// WithTagger sets the tag writer. Without one metadata copy and cover embedding are skipped.
func WithTagger(t conversion.Tagger) Option {
	return func(r *Runner) {
		r.tagger = t
	}
}

// WithLogger sets the logger for warnings
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithClock sets the time source (for testing)
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// New creates a runner over reg that publishes to bus
func New(reg *registry.Registry, bus *events.Bus, transcoder conversion.Transcoder, opts ...Option) *Runner {
	r := &Runner{
		registry:   reg,
		bus:        bus,
		transcoder: transcoder,
		logger:     slog.Default(),
		now:        time.Now,
		newRunID:   uuid.NewString,
		mkdirAll:   os.MkdirAll,
		remove:     os.Remove,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the state of the current or most recent run
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RunID returns the id of the current or most recent run
func (r *Runner) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Start launches a run over the registry's pending tasks and returns its id.
// It fails with conversion.ErrRunInProgress while a run is active and with
// conversion.ErrNoTasks when nothing is pending.
func (r *Runner) Start(ctx context.Context, cfg conversion.BatchConfig) (string, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRunning {
		return "", conversion.ErrRunInProgress
	}
	ids, err := r.registry.Begin()
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.state = StateRunning
	r.runID = r.newRunID()
	r.cancel = cancel
	r.done = make(chan struct{})
	r.summary = Summary{}
	r.stopped.Store(false)

	go r.execute(runCtx, r.runID, ids, cfg, r.done)
	return r.runID, nil
}

// Stop asks the active run to stop. Tasks not yet started are marked cancelled and the
// in-flight conversion is killed. Calling Stop without an active run does nothing.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRunning {
		return
	}
	r.stopped.Store(true)
	r.cancel()
}

// Wait blocks until the active run ends and returns its summary.
// Without a run it returns the summary of the previous one.
func (r *Runner) Wait() Summary {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done != nil {
		<-done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Run starts a run and waits for it to finish
func (r *Runner) Run(ctx context.Context, cfg conversion.BatchConfig) (Summary, error) {
	if _, err := r.Start(ctx, cfg); err != nil {
		return Summary{}, err
	}
	return r.Wait(), nil
}

func (r *Runner) execute(ctx context.Context, runID string, ids []conversion.TaskID, cfg conversion.BatchConfig, done chan struct{}) {
	defer close(done)

	started := r.now()
	r.publish(runID, conversion.Event{Type: conversion.EventRunStarted, Total: len(ids)})
	r.logger.Debug("run started", "run", runID, "tasks", len(ids), "workers", cfg.MaxConcurrent)

	jobs := make(chan conversion.TaskID, len(ids))
	for _, id := range ids {
		jobs <- id
	}
	close(jobs)

	workers := min(cfg.MaxConcurrent, len(ids))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				r.convertOne(ctx, runID, id, cfg)
			}
		}()
	}
	wg.Wait()

	summary := Summary{
		RunID:   runID,
		Total:   len(ids),
		Stopped: r.stopped.Load() || ctx.Err() != nil,
		Elapsed: r.now().Sub(started),
	}
	for _, id := range ids {
		task, _ := r.registry.Get(id)
		switch {
		case task.Status == conversion.StatusCompleted:
			summary.Succeeded++
		case task.ErrorMessage == conversion.CancelledMessage:
			summary.Cancelled++
			summary.Failed++
		default:
			summary.Failed++
		}
	}

	r.registry.End()

	r.mu.Lock()
	r.summary = summary
	if summary.Stopped {
		r.state = StateStopped
	} else {
		r.state = StateFinished
	}
	r.cancel()
	r.mu.Unlock()

	r.publish(runID, conversion.Event{
		Type:      conversion.EventRunFinished,
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
	})
	r.logger.Debug("run finished", "run", runID, "succeeded", summary.Succeeded, "failed", summary.Failed)
}

// convertOne takes one task from pending to a terminal state
func (r *Runner) convertOne(ctx context.Context, runID string, id conversion.TaskID, cfg conversion.BatchConfig) {
	if r.stopped.Load() || ctx.Err() != nil {
		if _, err := r.registry.Update(id, func(t *conversion.Task) error { return t.Cancel(r.now()) }); err != nil {
			r.logger.Error("cannot cancel task", "task", id, "error", err)
		}
		r.publish(runID, conversion.Event{Type: conversion.EventTaskFailed, TaskID: id, Message: conversion.CancelledMessage})
		return
	}

	task, err := r.registry.Update(id, func(t *conversion.Task) error { return t.Start(r.now()) })
	if err != nil {
		r.logger.Error("cannot start task", "task", id, "error", err)
		return
	}
	r.publish(runID, conversion.Event{Type: conversion.EventTaskStarted, TaskID: id})

	outDir := filepath.Dir(task.OutputPath)
	if err := r.mkdirAll(outDir, 0755); err != nil {
		accessErr := &conversion.FileAccessError{Path: outDir, Op: "create", Err: err}
		r.fail(runID, id, "Conversion error: "+accessErr.Error())
		return
	}

	req := conversion.NewTranscodeRequest(task, cfg)
	err = r.transcoder.Transcode(ctx, req, func(percent int) {
		r.reportProgress(runID, id, percent)
	})
	if err != nil {
		r.fail(runID, id, failureMessage(ctx, err))
		return
	}

	r.postProcess(ctx, task, cfg)

	if _, err := r.registry.Update(id, func(t *conversion.Task) error { return t.Complete(r.now()) }); err != nil {
		r.logger.Error("cannot complete task", "task", id, "error", err)
		return
	}
	r.publish(runID, conversion.Event{Type: conversion.EventTaskProgress, TaskID: id, Percent: 100})
	r.publish(runID, conversion.Event{Type: conversion.EventTaskCompleted, TaskID: id, Message: CompletedMessage})
}

func (r *Runner) reportProgress(runID string, id conversion.TaskID, percent int) {
	var changed bool
	task, _ := r.registry.Update(id, func(t *conversion.Task) error {
		changed = t.ReportProgress(percent)
		return nil
	})
	if changed {
		r.publish(runID, conversion.Event{Type: conversion.EventTaskProgress, TaskID: id, Percent: task.Progress})
	}
}

func (r *Runner) fail(runID string, id conversion.TaskID, message string) {
	if _, err := r.registry.Update(id, func(t *conversion.Task) error { return t.Fail(r.now(), message) }); err != nil {
		r.logger.Error("cannot fail task", "task", id, "error", err)
	}
	r.publish(runID, conversion.Event{Type: conversion.EventTaskFailed, TaskID: id, Message: message})
}

// failureMessage renders a transcode error for display
func failureMessage(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return conversion.CancelledMessage
	}
	var toolErr *conversion.ExternalToolError
	if errors.As(err, &toolErr) && toolErr.Launched() {
		return "FFmpeg error: " + toolErr.Diagnostic()
	}
	return "Conversion error: " + err.Error()
}

// postProcess embeds cover art and copies tags. Problems become warnings on the task.
func (r *Runner) postProcess(ctx context.Context, task conversion.Task, cfg conversion.BatchConfig) {
	if r.tagger == nil || (!cfg.ExtractCover && !cfg.PreserveMetadata) {
		return
	}
	if !cfg.Format.SupportsID3() {
		// ffmpeg already copied container metadata with -map_metadata
		if cfg.ExtractCover {
			r.warn(task.ID, fmt.Sprintf("cover art is not embedded in %s output", cfg.Format))
		}
		return
	}

	if cfg.ExtractCover && r.frames != nil && r.artwork != nil {
		if err := r.embedCover(ctx, task); err != nil {
			r.warn(task.ID, "cover art: "+err.Error())
		}
	}
	if cfg.PreserveMetadata {
		if err := r.tagger.CopyTags(task.InputPath, task.OutputPath); err != nil {
			r.warn(task.ID, "metadata: "+err.Error())
		}
	}
}

func (r *Runner) embedCover(ctx context.Context, task conversion.Task) error {
	coverPath := conversion.CoverPathFor(task.OutputPath)
	defer func() {
		if err := r.remove(coverPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("cannot remove extracted frame", "path", coverPath, "error", err)
		}
	}()

	if err := r.frames.ExtractFrame(ctx, task.InputPath, coverPath); err != nil {
		return err
	}
	art, err := r.artwork.Prepare(coverPath)
	if err != nil {
		return err
	}
	return r.tagger.EmbedCover(task.OutputPath, art)
}

func (r *Runner) warn(id conversion.TaskID, msg string) {
	r.logger.Warn("post-processing failed", "task", id, "warning", msg)
	_, _ = r.registry.Update(id, func(t *conversion.Task) error {
		t.AddWarning(msg)
		return nil
	})
}

func (r *Runner) publish(runID string, e conversion.Event) {
	e.RunID = runID
	r.bus.Publish(e)
}
