//go:build integration

package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vid2audio/cmd"
	"vid2audio/infrastructure/config"

	"github.com/cucumber/godog"
)

type settingsContext struct {
	dir      string
	path     string
	settings *config.Settings
	loadErr  error
	cmdErr   error
	output   bytes.Buffer
}

// SharedSettingsContext is reset before each scenario
var SharedSettingsContext *settingsContext

func InitializeSettingsScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := os.MkdirTemp("", "vid2audio-settings-*")
		if err != nil {
			return c, err
		}
		SharedSettingsContext = &settingsContext{
			dir:  dir,
			path: filepath.Join(dir, config.AppName, config.SettingsFileName),
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedSettingsContext != nil {
			os.RemoveAll(SharedSettingsContext.dir)
		}
		SharedSettingsContext = nil
		return c, nil
	})

	ctx.Step(`^no settings file exists$`, noSettingsFileExists)
	ctx.Step(`^a settings file containing "([^"]*)"$`, aSettingsFileContaining)
	ctx.Step(`^I load the settings$`, iLoadTheSettings)
	ctx.Step(`^the setting "([^"]*)" should be "([^"]*)"$`, theSettingShouldBe)
	ctx.Step(`^no settings error should be reported$`, noSettingsErrorShouldBeReported)
	ctx.Step(`^a settings load error should be reported$`, aSettingsLoadErrorShouldBeReported)
	ctx.Step(`^I set "([^"]*)" to "([^"]*)" with the settings command$`, iSetWithTheSettingsCommand)
	ctx.Step(`^the settings command should fail with "([^"]*)"$`, theSettingsCommandShouldFailWith)
}

func noSettingsFileExists() error {
	_, err := os.Stat(SharedSettingsContext.path)
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("settings file unexpectedly present: %v", err)
	}
	return nil
}

func aSettingsFileContaining(content string) error {
	c := SharedSettingsContext
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.path, []byte(content), 0644)
}

func iLoadTheSettings() error {
	c := SharedSettingsContext
	c.settings, c.loadErr = config.Load(c.path)
	return nil
}

func theSettingShouldBe(key, want string) error {
	c := SharedSettingsContext
	got, err := config.NewSettingsManager(c.settings, c.path).Get(key)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("setting %s = %q, want %q", key, got, want)
	}
	return nil
}

func noSettingsErrorShouldBeReported() error {
	if SharedSettingsContext.loadErr != nil {
		return fmt.Errorf("unexpected settings error: %v", SharedSettingsContext.loadErr)
	}
	return nil
}

func aSettingsLoadErrorShouldBeReported() error {
	var loadErr *config.SettingsLoadError
	if !errors.As(SharedSettingsContext.loadErr, &loadErr) {
		return fmt.Errorf("error = %v, want a settings load error", SharedSettingsContext.loadErr)
	}
	return nil
}

// iSetWithTheSettingsCommand loads the file fresh each time, as a new process would
func iSetWithTheSettingsCommand(key, value string) error {
	c := SharedSettingsContext
	s, _ := config.Load(c.path)
	mgr := config.NewSettingsManager(s, c.path)
	c.cmdErr = cmd.RunSettingsSetWithDependencies(mgr, key, value, &c.output)
	return nil
}

func theSettingsCommandShouldFailWith(text string) error {
	c := SharedSettingsContext
	if c.cmdErr == nil || !strings.Contains(c.cmdErr.Error(), text) {
		return fmt.Errorf("settings command error = %v, want %q", c.cmdErr, text)
	}
	return nil
}
