package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"vid2audio/domain/conversion"
	"vid2audio/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
	Select(message string, options []string, defaultValue string) (string, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

func (p *SurveyPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Select{
		Message: message,
		Options: options,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var settingsResetYes bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change persistent settings",
	Long: `Show and change the settings stored in settings.yaml.

Examples:
  vid2audio settings show
  vid2audio settings get default_bitrate
  vid2audio settings set max_concurrent 4
  vid2audio settings reset --yes
  vid2audio settings edit`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSettingsShowWithDependencies(newSettingsManager(), DefaultOutput)
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(DefaultOutput, SettingsPath())
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSettingsGetWithDependencies(newSettingsManager(), args[0], DefaultOutput)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSettingsSetWithDependencies(newSettingsManager(), args[0], args[1], DefaultOutput)
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore every default",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSettingsResetWithDependencies(newSettingsManager(), DefaultPrompter, settingsResetYes, DefaultOutput)
	},
}

var settingsEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit settings interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSettingsEditWithDependencies(newSettingsManager(), DefaultPrompter, DefaultOutput)
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsPathCmd, settingsGetCmd, settingsSetCmd, settingsResetCmd, settingsEditCmd)
	settingsResetCmd.Flags().BoolVarP(&settingsResetYes, "yes", "y", false, "Reset without asking")
}

func newSettingsManager() *config.SettingsManager {
	return config.NewSettingsManager(GetSettings(), SettingsPath())
}

// RunSettingsShowWithDependencies prints every key and value
func RunSettingsShowWithDependencies(mgr *config.SettingsManager, out OutputWriter) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, key := range config.Keys() {
		value, err := mgr.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	return w.Flush()
}

// RunSettingsGetWithDependencies prints one value
func RunSettingsGetWithDependencies(mgr *config.SettingsManager, key string, out OutputWriter) error {
	value, err := mgr.Get(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

// RunSettingsSetWithDependencies validates and stores one value.
// A save failure is reported as a warning; the new value stays in effect for this process.
func RunSettingsSetWithDependencies(mgr *config.SettingsManager, key, value string, out OutputWriter) error {
	if err := mgr.Set(key, value); err != nil {
		var saveErr *config.SettingsSaveError
		if !errors.As(err, &saveErr) {
			return err
		}
		warnSave(out, err)
	}
	stored, _ := mgr.Get(key)
	fmt.Fprintf(out, "%s = %s\n", key, stored)
	return nil
}

// RunSettingsResetWithDependencies restores defaults after confirmation
func RunSettingsResetWithDependencies(mgr *config.SettingsManager, prompter Prompter, yes bool, out OutputWriter) error {
	if !yes {
		ok, err := prompter.Confirm("Reset every setting to its default?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !ok {
			fmt.Fprintln(out, "Reset cancelled.")
			return nil
		}
	}

	if err := mgr.Reset(); err != nil {
		warnSave(out, err)
		return nil
	}
	fmt.Fprintf(out, "Settings reset to defaults (%s)\n", mgr.Path())
	return nil
}

// settingChoices lists the closed value sets offered as menus in edit
func settingChoices() map[string][]string {
	formats := make([]string, len(conversion.Formats))
	for i, f := range conversion.Formats {
		formats[i] = string(f)
	}
	return map[string][]string{
		"default_format":  formats,
		"default_bitrate": conversion.Bitrates,
		"theme":           config.Themes,
		"cover_grabber":   config.CoverGrabbers,
	}
}

// RunSettingsEditWithDependencies walks every key, prompting with the current value.
// Changes are validated and stored as they are answered.
func RunSettingsEditWithDependencies(mgr *config.SettingsManager, prompter Prompter, out OutputWriter) error {
	choices := settingChoices()
	changed := 0

	for _, key := range config.Keys() {
		current, err := mgr.Get(key)
		if err != nil {
			return err
		}

		var answer string
		if b, err := strconv.ParseBool(current); err == nil && isBoolKey(key) {
			v, err := prompter.Confirm(key, b)
			if err != nil {
				return fmt.Errorf("prompt cancelled")
			}
			answer = strconv.FormatBool(v)
		} else if options, ok := choices[key]; ok {
			answer, err = prompter.Select(key, options, current)
			if err != nil {
				return fmt.Errorf("prompt cancelled")
			}
		} else {
			answer, err = prompter.Input(key, current)
			if err != nil {
				return fmt.Errorf("prompt cancelled")
			}
		}

		if answer == current {
			continue
		}
		if err := mgr.Set(key, answer); err != nil {
			var saveErr *config.SettingsSaveError
			if !errors.As(err, &saveErr) {
				fmt.Fprintf(out, "Keeping %s = %s: %v\n", key, current, err)
				continue
			}
			warnSave(out, err)
		}
		changed++
	}

	fmt.Fprintf(out, "%d setting(s) changed.\n", changed)
	return nil
}

func isBoolKey(key string) bool {
	switch key {
	case "preserve_metadata", "extract_cover", "normalize", "auto_clear_list", "notifications":
		return true
	}
	return false
}
