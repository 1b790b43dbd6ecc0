package ffmpeg

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"vid2audio/domain/conversion"
)

// mockCommandRunner records invocations and replays canned output
type mockCommandRunner struct {
	calls       [][]string
	stdoutLines []string
	result      CommandResult
	runErr      error
	output      []byte
	outputErr   error
}

func (m *mockCommandRunner) Run(ctx context.Context, onStdout func(line string), name string, args ...string) (CommandResult, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	if onStdout != nil {
		for _, line := range m.stdoutLines {
			onStdout(line)
		}
	}
	return m.result, m.runErr
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	return m.output, m.outputErr
}

// fixedProber returns a constant duration
type fixedProber struct {
	d   time.Duration
	err error
}

func (p fixedProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	return p.d, p.err
}

func TestBuildTranscodeArgs(t *testing.T) {
	tests := []struct {
		name    string
		req     conversion.TranscodeRequest
		want    []string
		wantNot []string
	}{
		{
			name: "mp3 with metadata",
			req: conversion.TranscodeRequest{
				InputPath: "/in/a.mp4", OutputPath: "/out/a.mp3",
				Format: conversion.FormatMP3, Bitrate: "192k", PreserveMetadata: true,
			},
			want:    []string{"-vn", "libmp3lame", "-b:a", "192k", "-map_metadata", "-id3v2_version"},
			wantNot: []string{"-af"},
		},
		{
			name: "flac ignores bitrate",
			req: conversion.TranscodeRequest{
				InputPath: "/in/a.mp4", OutputPath: "/out/a.flac",
				Format: conversion.FormatFLAC, Bitrate: "320k",
			},
			want:    []string{"flac"},
			wantNot: []string{"-b:a", "-map_metadata"},
		},
		{
			name: "ogg with metadata has no id3",
			req: conversion.TranscodeRequest{
				InputPath: "/in/a.mp4", OutputPath: "/out/a.ogg",
				Format: conversion.FormatOGG, Bitrate: "128k", PreserveMetadata: true,
			},
			want:    []string{"libvorbis", "-map_metadata"},
			wantNot: []string{"-id3v2_version"},
		},
		{
			name: "normalize adds volume filter",
			req: conversion.TranscodeRequest{
				InputPath: "/in/a.mp4", OutputPath: "/out/a.mp3",
				Format: conversion.FormatMP3, Bitrate: "192k", Normalize: true, TargetDB: -3,
			},
			want: []string{"-af", "volume=-3.0dB"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := BuildTranscodeArgs(&tt.req)
			for _, w := range tt.want {
				if !slices.Contains(args, w) {
					t.Errorf("args %v missing %q", args, w)
				}
			}
			for _, w := range tt.wantNot {
				if slices.Contains(args, w) {
					t.Errorf("args %v unexpectedly contain %q", args, w)
				}
			}
			if args[len(args)-1] != tt.req.OutputPath {
				t.Errorf("last arg = %q, want output path", args[len(args)-1])
			}
			i := slices.Index(args, "-i")
			if i < 0 || args[i+1] != tt.req.InputPath {
				t.Errorf("input not passed after -i: %v", args)
			}
		})
	}
}

func TestTranscoder_Transcode(t *testing.T) {
	req := &conversion.TranscodeRequest{
		InputPath: "/in/a.mp4", OutputPath: "/out/a.mp3", Format: conversion.FormatMP3, Bitrate: "192k",
	}

	t.Run("reports progress from out_time", func(t *testing.T) {
		runner := &mockCommandRunner{stdoutLines: []string{
			"out_time_us=2500000",
			"out_time=00:00:02.500000",
			"progress=continue",
			"out_time=00:00:05.000000",
			"out_time=00:00:12.000000",
			"progress=end",
		}}
		tr := NewTranscoder(WithCommandRunner(runner), WithProber(fixedProber{d: 10 * time.Second}))

		var got []int
		if err := tr.Transcode(context.Background(), req, func(p int) { got = append(got, p) }); err != nil {
			t.Fatalf("Transcode() error = %v", err)
		}
		want := []int{25, 50, 100}
		if !slices.Equal(got, want) {
			t.Errorf("progress = %v, want %v", got, want)
		}
		if runner.calls[0][0] != "ffmpeg" {
			t.Errorf("binary = %q, want ffmpeg", runner.calls[0][0])
		}
	})

	t.Run("no progress without duration", func(t *testing.T) {
		runner := &mockCommandRunner{stdoutLines: []string{"out_time=00:00:05.000000"}}
		tr := NewTranscoder(WithCommandRunner(runner), WithProber(fixedProber{err: errors.New("no duration")}))

		called := false
		if err := tr.Transcode(context.Background(), req, func(int) { called = true }); err != nil {
			t.Fatalf("Transcode() error = %v", err)
		}
		if called {
			t.Error("progress reported without a known duration")
		}
	})

	t.Run("non-zero exit becomes ExternalToolError", func(t *testing.T) {
		runner := &mockCommandRunner{
			result: CommandResult{ExitCode: 1, Stderr: "codec error\n"},
			runErr: errors.New("exit status 1"),
		}
		tr := NewTranscoder(WithCommandRunner(runner), WithFFmpegPath("/opt/ffmpeg"))

		err := tr.Transcode(context.Background(), req, nil)
		var toolErr *conversion.ExternalToolError
		if !errors.As(err, &toolErr) {
			t.Fatalf("Transcode() error = %v, want *ExternalToolError", err)
		}
		if toolErr.ExitCode != 1 || toolErr.Diagnostic() != "codec error" {
			t.Errorf("ExternalToolError = %+v", toolErr)
		}
		if runner.calls[0][0] != "/opt/ffmpeg" {
			t.Errorf("binary = %q, want /opt/ffmpeg", runner.calls[0][0])
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		runner := &mockCommandRunner{result: CommandResult{ExitCode: -1}, runErr: errors.New("signal: killed")}
		tr := NewTranscoder(WithCommandRunner(runner))

		err := tr.Transcode(ctx, req, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Transcode() error = %v, want context.Canceled", err)
		}
	})
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:05", 5 * time.Second, false},
		{"01:02:03.5", time.Hour + 2*time.Minute + 3*time.Second + 500*time.Millisecond, false},
		{"00:00:02.500000", 2500 * time.Millisecond, false},
		{"N/A", 0, true},
		{"00:61:00", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestProber_Duration(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		outErr  error
		want    time.Duration
		wantErr bool
	}{
		{"parses duration", `{"format": {"duration": "12.500000"}}`, nil, 12500 * time.Millisecond, false},
		{"missing duration", `{"format": {}}`, nil, 0, true},
		{"invalid json", `not json`, nil, 0, true},
		{"ffprobe fails", ``, errors.New("exit status 1"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockCommandRunner{output: []byte(tt.output), outputErr: tt.outErr}
			p := NewProber(WithProbeCommandRunner(runner))

			got, err := p.Duration(context.Background(), "/in/a.mp4")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Duration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameExtractor_ExtractFrame(t *testing.T) {
	runner := &mockCommandRunner{}
	f := NewFrameExtractor(WithFrameCommandRunner(runner))

	if err := f.ExtractFrame(context.Background(), "/in/a.mp4", "/out/a_cover.png"); err != nil {
		t.Fatalf("ExtractFrame() error = %v", err)
	}
	got := strings.Join(runner.calls[0], " ")
	if !strings.Contains(got, "-vframes 1") || !strings.HasSuffix(got, "/out/a_cover.png") {
		t.Errorf("command = %q", got)
	}

	runner.runErr = errors.New("exit status 1")
	runner.result = CommandResult{ExitCode: 1, Stderr: "no video stream"}
	var toolErr *conversion.ExternalToolError
	if err := f.ExtractFrame(context.Background(), "/in/a.mp4", "/out/a_cover.png"); !errors.As(err, &toolErr) {
		t.Errorf("ExtractFrame() error = %v, want *ExternalToolError", err)
	}
}

func TestVerifyInstalled(t *testing.T) {
	ok := &mockCommandRunner{output: []byte("ffmpeg version 6.1")}
	if err := NewTranscoder(WithCommandRunner(ok)).VerifyInstalled(context.Background()); err != nil {
		t.Errorf("Transcoder.VerifyInstalled() error = %v", err)
	}
	missing := &mockCommandRunner{outputErr: errors.New("executable file not found")}
	if err := NewProber(WithProbeCommandRunner(missing)).VerifyInstalled(context.Background()); err == nil {
		t.Error("Prober.VerifyInstalled() error = nil, want error")
	}
}
