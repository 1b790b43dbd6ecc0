//go:build integration

package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"vid2audio/application/events"
	appnotify "vid2audio/application/notification"
	"vid2audio/application/registry"
	"vid2audio/application/runner"
	"vid2audio/cmd"
	"vid2audio/domain/conversion"
	"vid2audio/infrastructure/ffmpeg"
	"vid2audio/infrastructure/filesystem"

	"github.com/cucumber/godog"
)

// scriptedFFmpeg stands in for the ffmpeg binary behind ffmpeg.Transcoder
type scriptedFFmpeg struct {
	mu       sync.Mutex
	failures map[string]ffmpeg.CommandResult
	block    bool
}

func (s *scriptedFFmpeg) Run(ctx context.Context, onStdout func(line string), name string, args ...string) (ffmpeg.CommandResult, error) {
	input := ""
	if i := slices.Index(args, "-i"); i >= 0 && i+1 < len(args) {
		input = filepath.Base(args[i+1])
	}

	s.mu.Lock()
	res, fail := s.failures[input]
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ffmpeg.CommandResult{ExitCode: -1}, ctx.Err()
	}
	if fail {
		return res, fmt.Errorf("exit status %d", res.ExitCode)
	}

	for _, us := range []int{1000000, 2000000, 3000000, 4000000} {
		onStdout("out_time_us=" + strconv.Itoa(us))
		onStdout("progress=continue")
	}
	onStdout("progress=end")
	return ffmpeg.CommandResult{}, nil
}

func (s *scriptedFFmpeg) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return []byte("ffmpeg version test"), nil
}

// fourSeconds reports the same duration for every input
type fourSeconds struct{}

func (fourSeconds) Duration(ctx context.Context, path string) (time.Duration, error) {
	return 4 * time.Second, nil
}

type conversionContext struct {
	dir       string
	registry  *registry.Registry
	ffmpeg    *scriptedFFmpeg
	recorder  *events.Recorder
	summary   runner.Summary
	err       error
	cmdOutput bytes.Buffer
	cmdErr    error
}

// SharedConversionContext is reset before each scenario
var SharedConversionContext *conversionContext

func InitializeConversionScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := os.MkdirTemp("", "vid2audio-features-*")
		if err != nil {
			return c, err
		}
		SharedConversionContext = &conversionContext{
			dir:      dir,
			registry: registry.New(filesystem.NewChecker()),
			ffmpeg:   &scriptedFFmpeg{failures: make(map[string]ffmpeg.CommandResult)},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedConversionContext != nil {
			os.RemoveAll(SharedConversionContext.dir)
		}
		SharedConversionContext = nil
		return c, nil
	})

	ctx.Step(`^a video "([^"]*)" of (\d+) bytes$`, aVideoOfBytes)
	ctx.Step(`^the files are added to the task list$`, theFilesAreAddedToTheTaskList)
	ctx.Step(`^ffmpeg always succeeds$`, ffmpegAlwaysSucceeds)
	ctx.Step(`^ffmpeg fails for "([^"]*)" with exit code (\d+) and stderr "([^"]*)"$`, ffmpegFailsFor)
	ctx.Step(`^ffmpeg blocks until cancelled$`, ffmpegBlocksUntilCancelled)
	ctx.Step(`^I run the batch with bitrate "([^"]*)", preserve metadata on and cover extraction off$`, iRunTheBatch)
	ctx.Step(`^I start the batch and stop it once task (\d+) has started$`, iStartTheBatchAndStopIt)
	ctx.Step(`^the events should be:$`, theEventsShouldBe)
	ctx.Step(`^the run should finish with (\d+) succeeded and (\d+) failed$`, theRunShouldFinishWith)
	ctx.Step(`^progress for every task should never decrease and end at 100$`, progressShouldNeverDecrease)
	ctx.Step(`^task (\d+) should fail with a message containing "([^"]*)"$`, taskShouldFailWith)
	ctx.Step(`^task (\d+) should be completed$`, taskShouldBeCompleted)
	ctx.Step(`^task (\d+) should never have started$`, taskShouldNeverHaveStarted)
	ctx.Step(`^I add "([^"]*)" again$`, iAddAgain)
	ctx.Step(`^I should receive a duplicate error$`, iShouldReceiveADuplicateError)
	ctx.Step(`^the task list should contain (\d+) tasks$`, theTaskListShouldContain)
	ctx.Step(`^I run the convert command on the video directory$`, iRunTheConvertCommand)
	ctx.Step(`^the command should fail with "([^"]*)"$`, theCommandShouldFailWith)
	ctx.Step(`^the command output should contain "([^"]*)"$`, theCommandOutputShouldContain)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (c *conversionContext) path(name string) string {
	return filepath.Join(c.dir, "videos", name)
}

func (c *conversionContext) transcoder() *ffmpeg.Transcoder {
	return ffmpeg.NewTranscoder(
		ffmpeg.WithCommandRunner(c.ffmpeg),
		ffmpeg.WithProber(fourSeconds{}),
		ffmpeg.WithLogger(quietLogger()),
	)
}

func (c *conversionContext) batchConfig() conversion.BatchConfig {
	return conversion.BatchConfig{
		Format:           conversion.FormatMP3,
		Bitrate:          "192k",
		PreserveMetadata: true,
		ExtractCover:     false,
		TargetDB:         conversion.DefaultTargetDB,
		MaxConcurrent:    1,
	}
}

func (c *conversionContext) newRunner() *runner.Runner {
	bus := events.NewBus(events.DefaultHistory)
	c.recorder = &events.Recorder{}
	bus.Subscribe(c.recorder)
	return runner.New(c.registry, bus, c.transcoder(), runner.WithLogger(quietLogger()))
}

func aVideoOfBytes(name string, size int) error {
	c := SharedConversionContext
	p := c.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, make([]byte, size), 0644)
}

func theFilesAreAddedToTheTaskList() error {
	c := SharedConversionContext
	_, err := c.registry.AddFolder(filepath.Join(c.dir, "videos"))
	if err != nil {
		return err
	}
	return c.registry.ApplyOutputNaming(filepath.Join(c.dir, "out"), conversion.FormatMP3.Extension())
}

func ffmpegAlwaysSucceeds() error {
	return nil
}

func ffmpegFailsFor(name string, code int, stderr string) error {
	c := SharedConversionContext
	c.ffmpeg.failures[name] = ffmpeg.CommandResult{ExitCode: code, Stderr: stderr}
	return nil
}

func ffmpegBlocksUntilCancelled() error {
	SharedConversionContext.ffmpeg.block = true
	return nil
}

func iRunTheBatch(bitrate string) error {
	c := SharedConversionContext
	cfg := c.batchConfig()
	cfg.Bitrate = bitrate
	c.summary, c.err = c.newRunner().Run(context.Background(), cfg)
	return c.err
}

func iStartTheBatchAndStopIt(id int) error {
	c := SharedConversionContext
	r := c.newRunner()
	if _, err := r.Start(context.Background(), c.batchConfig()); err != nil {
		return err
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if task, _ := c.registry.Get(conversion.TaskID(id)); task.Status == conversion.StatusConverting {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("task %d never started", id)
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.Stop()
	c.summary = r.Wait()
	return nil
}

func theEventsShouldBe(table *godog.Table) error {
	c := SharedConversionContext

	var got []string
	for _, e := range c.recorder.Events() {
		if e.Type == conversion.EventTaskProgress {
			continue
		}
		got = append(got, describeEvent(e))
	}

	var want []string
	for _, row := range table.Rows[1:] {
		e := conversion.Event{Type: conversion.EventType(row.Cells[0].Value), Message: row.Cells[2].Value}
		if row.Cells[1].Value != "" {
			id, err := strconv.Atoi(row.Cells[1].Value)
			if err != nil {
				return err
			}
			e.TaskID = conversion.TaskID(id)
		}
		want = append(want, describeEvent(e))
	}

	if !slices.Equal(got, want) {
		return fmt.Errorf("events = %v, want %v", got, want)
	}
	return nil
}

func describeEvent(e conversion.Event) string {
	if e.IsTaskEvent() {
		return fmt.Sprintf("%s(%d,%q)", e.Type, e.TaskID, e.Message)
	}
	return string(e.Type)
}

func theRunShouldFinishWith(ok, failed int) error {
	c := SharedConversionContext
	recorded := c.recorder.Events()
	last := recorded[len(recorded)-1]
	if last.Type != conversion.EventRunFinished {
		return fmt.Errorf("last event is %s, want run_finished", last.Type)
	}
	if last.Succeeded != ok || last.Failed != failed {
		return fmt.Errorf("run finished with %d/%d, want %d/%d", last.Succeeded, last.Failed, ok, failed)
	}
	if c.summary.Succeeded != ok || c.summary.Failed != failed {
		return fmt.Errorf("summary %+v, want %d succeeded and %d failed", c.summary, ok, failed)
	}
	return nil
}

func progressShouldNeverDecrease() error {
	c := SharedConversionContext
	for _, task := range c.registry.List() {
		prev := -1
		for _, e := range c.recorder.ForTask(task.ID) {
			if e.Type != conversion.EventTaskProgress {
				continue
			}
			if e.Percent < prev {
				return fmt.Errorf("task %d progress went from %d to %d", task.ID, prev, e.Percent)
			}
			prev = e.Percent
		}
		if prev != 100 || task.Progress != 100 {
			return fmt.Errorf("task %d ended at %d%%", task.ID, task.Progress)
		}
	}
	return nil
}

func taskShouldFailWith(id int, text string) error {
	task, ok := SharedConversionContext.registry.Get(conversion.TaskID(id))
	if !ok {
		return fmt.Errorf("no task %d", id)
	}
	if task.Status != conversion.StatusFailed || !strings.Contains(task.ErrorMessage, text) {
		return fmt.Errorf("task %d is %s with message %q", id, task.Status, task.ErrorMessage)
	}
	return nil
}

func taskShouldBeCompleted(id int) error {
	task, _ := SharedConversionContext.registry.Get(conversion.TaskID(id))
	if task.Status != conversion.StatusCompleted || task.Progress != 100 {
		return fmt.Errorf("task %d is %s at %d%%", id, task.Status, task.Progress)
	}
	return nil
}

func taskShouldNeverHaveStarted(id int) error {
	for _, e := range SharedConversionContext.recorder.ForTask(conversion.TaskID(id)) {
		if e.Type == conversion.EventTaskStarted {
			return fmt.Errorf("task %d was started", id)
		}
	}
	return nil
}

func iAddAgain(name string) error {
	c := SharedConversionContext
	_, c.err = c.registry.Add(c.path(name))
	return nil
}

func iShouldReceiveADuplicateError() error {
	if !errors.Is(SharedConversionContext.err, conversion.ErrDuplicateTask) {
		return fmt.Errorf("error = %v, want duplicate", SharedConversionContext.err)
	}
	return nil
}

func theTaskListShouldContain(n int) error {
	if got := SharedConversionContext.registry.Len(); got != n {
		return fmt.Errorf("task list has %d tasks, want %d", got, n)
	}
	return nil
}

func iRunTheConvertCommand() error {
	c := SharedConversionContext
	deps := cmd.ConvertDependencies{
		Files:      filesystem.NewChecker(),
		Transcoder: c.transcoder(),
		Notifier:   appnotify.NewService(&c.cmdOutput, appnotify.WithLogger(quietLogger())),
		Logger:     quietLogger(),
	}
	opts := cmd.ConvertOptions{
		Inputs:    []string{filepath.Join(c.dir, "videos")},
		OutputDir: filepath.Join(c.dir, "cli-out"),
		Config:    c.batchConfig(),
	}
	c.cmdErr = cmd.RunConvertWithDependencies(context.Background(), deps, opts, &c.cmdOutput)
	return nil
}

func theCommandShouldFailWith(text string) error {
	c := SharedConversionContext
	if c.cmdErr == nil || !strings.Contains(c.cmdErr.Error(), text) {
		return fmt.Errorf("command error = %v, want %q", c.cmdErr, text)
	}
	return nil
}

func theCommandOutputShouldContain(text string) error {
	out := SharedConversionContext.cmdOutput.String()
	if !strings.Contains(out, text) {
		return fmt.Errorf("output %q does not contain %q", out, text)
	}
	return nil
}
