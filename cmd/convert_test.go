package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appdist "vid2audio/application/distribution"
	"vid2audio/application/registry"
	"vid2audio/domain/conversion"
	"vid2audio/domain/notification"
	"vid2audio/infrastructure/filesystem"
)

type stubTranscoder struct {
	fail map[string]bool
}

func (s *stubTranscoder) Transcode(ctx context.Context, req *conversion.TranscodeRequest, progress conversion.ProgressFunc) error {
	if s.fail[filepath.Base(req.InputPath)] {
		return &conversion.ExternalToolError{Tool: "ffmpeg", ExitCode: 1, Stderr: "codec error", Err: errors.New("exit status 1")}
	}
	progress(50)
	return os.WriteFile(req.OutputPath, []byte("audio"), 0644)
}

type stubPublisher struct {
	tasks []conversion.Task
}

func (p *stubPublisher) PublishOutputs(ctx context.Context, tasks []conversion.Task) appdist.PublishResult {
	res := appdist.PublishResult{Links: make(map[string]string), Errors: make(map[string]error)}
	for _, t := range tasks {
		if t.Status != conversion.StatusCompleted {
			continue
		}
		p.tasks = append(p.tasks, t)
		res.Links[t.OutputPath] = "https://drive.example/" + filepath.Base(t.OutputPath)
	}
	return res
}

type stubNotifier struct {
	reports []notification.RunReport
}

func (n *stubNotifier) Notify(ctx context.Context, report notification.RunReport) error {
	n.reports = append(n.reports, report)
	return nil
}

func writeVideos(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), make([]byte, 1000), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestRunConvert(t *testing.T) {
	tests := []struct {
		name          string
		fail          map[string]bool
		autoClear     bool
		wantErr       string
		wantPublished int
		wantLeft      int
	}{
		{name: "all succeed and the list is cleared", autoClear: true, wantPublished: 2, wantLeft: 0},
		{name: "all succeed without auto-clear", wantPublished: 2, wantLeft: 2},
		{name: "a failure keeps the list", fail: map[string]bool{"b.mp4": true}, autoClear: true, wantErr: "1 of 2 file(s) failed", wantPublished: 1, wantLeft: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			videos := writeVideos(t, "a.mp4", "b.mp4", "notes.txt")
			reg := registry.New(filesystem.NewChecker())
			publisher := &stubPublisher{}
			notifier := &stubNotifier{}
			deps := ConvertDependencies{
				Registry:   reg,
				Files:      filesystem.NewChecker(),
				Transcoder: &stubTranscoder{fail: tt.fail},
				Publisher:  publisher,
				Notifier:   notifier,
				Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			}
			opts := ConvertOptions{
				Inputs:    []string{videos},
				OutputDir: filepath.Join(t.TempDir(), "out"),
				Config:    conversion.BatchConfig{Format: conversion.FormatMP3, Bitrate: "128k", MaxConcurrent: 2},
				AutoClear: tt.autoClear,
			}
			var out bytes.Buffer

			err := RunConvertWithDependencies(context.Background(), deps, opts, &out)

			if tt.wantErr == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}

			if len(publisher.tasks) != tt.wantPublished {
				t.Errorf("published %d outputs, want %d", len(publisher.tasks), tt.wantPublished)
			}
			if reg.Len() != tt.wantLeft {
				t.Errorf("registry has %d tasks after the run, want %d", reg.Len(), tt.wantLeft)
			}

			if len(notifier.reports) != 1 {
				t.Fatalf("notified %d times, want 1", len(notifier.reports))
			}
			report := notifier.reports[0]
			if report.Total() != 2 || report.Succeeded != tt.wantPublished {
				t.Errorf("report = %+v", report)
			}
			for _, f := range report.Files {
				if f.Succeeded && !strings.HasPrefix(f.Link, "https://drive.example/") {
					t.Errorf("%s has no link", f.Name)
				}
			}

			if !strings.Contains(out.String(), "2 file(s) (0.0 MB)") {
				t.Errorf("output %q has no stats line", out.String())
			}
		})
	}
}

func TestRunConvert_NothingToConvert(t *testing.T) {
	deps := ConvertDependencies{Files: filesystem.NewChecker(), Transcoder: &stubTranscoder{}}
	opts := ConvertOptions{
		Inputs:    []string{writeVideos(t, "notes.txt")},
		OutputDir: t.TempDir(),
		Config:    conversion.DefaultBatchConfig(),
	}
	var out bytes.Buffer

	err := RunConvertWithDependencies(context.Background(), deps, opts, &out)
	if !errors.Is(err, conversion.ErrNoTasks) {
		t.Errorf("error = %v, want ErrNoTasks", err)
	}
	if !strings.Contains(out.String(), "No new video files found") {
		t.Errorf("output %q does not explain the empty folder", out.String())
	}
}

func TestRunConvert_InvalidConfig(t *testing.T) {
	deps := ConvertDependencies{Files: filesystem.NewChecker(), Transcoder: &stubTranscoder{}}
	opts := ConvertOptions{
		Inputs: []string{writeVideos(t, "a.mp4")},
		Config: conversion.BatchConfig{Format: conversion.FormatMP3, Bitrate: "999k", MaxConcurrent: 1},
	}
	if err := RunConvertWithDependencies(context.Background(), deps, opts, io.Discard); err == nil {
		t.Error("expected an error for an unsupported bitrate")
	}
}

func TestRunConvert_WritesEventLog(t *testing.T) {
	deps := ConvertDependencies{
		Files:      filesystem.NewChecker(),
		Transcoder: &stubTranscoder{},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	opts := ConvertOptions{
		Inputs:     []string{writeVideos(t, "a.mp4", "b.mp4")},
		OutputDir:  filepath.Join(t.TempDir(), "out"),
		Config:     conversion.BatchConfig{Format: conversion.FormatMP3, Bitrate: "128k", MaxConcurrent: 2},
		EventsFile: filepath.Join(t.TempDir(), "run.jsonl"),
	}
	var out bytes.Buffer

	if err := RunConvertWithDependencies(context.Background(), deps, opts, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := readEventLog(t, opts.EventsFile)
	if len(got) == 0 {
		t.Fatal("event log is empty")
	}
	first, last := got[0], got[len(got)-1]
	if first.Type != conversion.EventRunStarted || first.Seq != 1 || first.Total != 2 {
		t.Errorf("first event = %+v, want run_started with seq 1", first)
	}
	if last.Type != conversion.EventRunFinished || last.Succeeded != 2 || last.Seq != int64(len(got)) {
		t.Errorf("last event = %+v, want run_finished with seq %d", last, len(got))
	}
	for _, e := range got {
		if e.RunID != first.RunID {
			t.Errorf("event %d has run %q, want %q", e.Seq, e.RunID, first.RunID)
		}
	}

	// The printer has caught up before the summary is written
	text := out.String()
	finished := strings.Index(text, "Finished: 2 succeeded, 0 failed")
	if finished < 0 || finished > strings.Index(text, "Converted 2 of 2 file(s)") {
		t.Errorf("output %q does not print the run before the summary", text)
	}
}
