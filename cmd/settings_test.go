package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"vid2audio/infrastructure/config"
)

// mockPrompter answers from maps keyed by prompt message and falls back to the default
type mockPrompter struct {
	inputs   map[string]string
	confirms map[string]bool
	selects  map[string]string
	err      error
	asked    []string
}

func (m *mockPrompter) Input(message string, defaultValue string) (string, error) {
	m.asked = append(m.asked, "input:"+message)
	if m.err != nil {
		return "", m.err
	}
	if v, ok := m.inputs[message]; ok {
		return v, nil
	}
	return defaultValue, nil
}

func (m *mockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	m.asked = append(m.asked, "confirm:"+message)
	if m.err != nil {
		return false, m.err
	}
	if v, ok := m.confirms[message]; ok {
		return v, nil
	}
	return defaultValue, nil
}

func (m *mockPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	m.asked = append(m.asked, "select:"+message)
	if m.err != nil {
		return "", m.err
	}
	if v, ok := m.selects[message]; ok {
		return v, nil
	}
	return defaultValue, nil
}

func newTestManager(t *testing.T) *config.SettingsManager {
	t.Helper()
	return config.NewSettingsManager(config.DefaultSettings(), filepath.Join(t.TempDir(), "settings.yaml"))
}

func TestRunSettingsEdit(t *testing.T) {
	mgr := newTestManager(t)
	prompter := &mockPrompter{
		inputs:   map[string]string{"max_concurrent": "9", "target_db": "-3"},
		confirms: map[string]bool{"normalize": true},
		selects:  map[string]string{"default_format": "flac"},
	}
	var out bytes.Buffer

	if err := RunSettingsEditWithDependencies(mgr, prompter, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(prompter.asked) != len(config.Keys()) {
		t.Errorf("asked %d prompts, want %d", len(prompter.asked), len(config.Keys()))
	}
	for _, want := range []string{"confirm:normalize", "select:default_format", "select:theme", "input:max_concurrent"} {
		found := false
		for _, a := range prompter.asked {
			found = found || a == want
		}
		if !found {
			t.Errorf("prompt %q not asked; got %v", want, prompter.asked)
		}
	}

	s := mgr.Settings()
	if s.DefaultFormat != "flac" || !s.Normalize || s.TargetDB != -3 {
		t.Errorf("settings not applied: %+v", s)
	}
	if s.MaxConcurrent != 2 {
		t.Errorf("MaxConcurrent = %d, want invalid answer rejected", s.MaxConcurrent)
	}
	if !strings.Contains(out.String(), "Keeping max_concurrent = 2") {
		t.Errorf("output %q does not mention the rejected value", out.String())
	}
	if !strings.Contains(out.String(), "3 setting(s) changed.") {
		t.Errorf("output %q does not count changes", out.String())
	}

	reloaded, err := config.Load(mgr.Path())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.DefaultFormat != "flac" {
		t.Errorf("reloaded DefaultFormat = %q, want flac", reloaded.DefaultFormat)
	}
}

func TestRunSettingsEdit_PromptCancelled(t *testing.T) {
	err := RunSettingsEditWithDependencies(newTestManager(t), &mockPrompter{err: errors.New("interrupt")}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "prompt cancelled") {
		t.Errorf("error = %v, want prompt cancelled", err)
	}
}

func TestRunSettingsReset(t *testing.T) {
	tests := []struct {
		name        string
		yes         bool
		confirm     bool
		wantReset   bool
		wantPrompt  bool
		wantMessage string
	}{
		{name: "confirmed", confirm: true, wantReset: true, wantPrompt: true, wantMessage: "Settings reset to defaults"},
		{name: "declined", confirm: false, wantReset: false, wantPrompt: true, wantMessage: "Reset cancelled."},
		{name: "yes flag skips the prompt", yes: true, wantReset: true, wantMessage: "Settings reset to defaults"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := newTestManager(t)
			if err := mgr.Set("default_bitrate", "320k"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			prompter := &mockPrompter{confirms: map[string]bool{"Reset every setting to its default?": tt.confirm}}
			var out bytes.Buffer

			if err := RunSettingsResetWithDependencies(mgr, prompter, tt.yes, &out); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := mgr.Settings().DefaultBitrate == "192k"; got != tt.wantReset {
				t.Errorf("reset = %v, want %v", got, tt.wantReset)
			}
			if got := len(prompter.asked) > 0; got != tt.wantPrompt {
				t.Errorf("prompted = %v, want %v", got, tt.wantPrompt)
			}
			if !strings.Contains(out.String(), tt.wantMessage) {
				t.Errorf("output %q does not contain %q", out.String(), tt.wantMessage)
			}
		})
	}
}

func TestRunSettingsShowAndGet(t *testing.T) {
	mgr := newTestManager(t)

	var out bytes.Buffer
	if err := RunSettingsShowWithDependencies(mgr, &out); err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, key := range config.Keys() {
		if !strings.Contains(out.String(), key) {
			t.Errorf("show output is missing %s", key)
		}
	}

	out.Reset()
	if err := RunSettingsGetWithDependencies(mgr, "default_bitrate", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.String() != "192k\n" {
		t.Errorf("get output = %q, want 192k", out.String())
	}

	if err := RunSettingsGetWithDependencies(mgr, "colour", &out); !errors.Is(err, config.ErrUnknownKey) {
		t.Errorf("get unknown key error = %v, want ErrUnknownKey", err)
	}
}

func TestRunSettingsSet_SaveFailureIsAWarning(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := config.Save(config.DefaultSettings(), blocker); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mgr := config.NewSettingsManager(config.DefaultSettings(), filepath.Join(blocker, "settings.yaml"))
	var out bytes.Buffer

	if err := RunSettingsSetWithDependencies(mgr, "theme", "light", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Warning: failed to save settings") {
		t.Errorf("output %q has no save warning", out.String())
	}
	if mgr.Settings().Theme != "light" {
		t.Errorf("Theme = %q, want light kept in memory", mgr.Settings().Theme)
	}
}
