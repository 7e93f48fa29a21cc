package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lr"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage lr configuration.

Every key can also be set with an LR_ environment variable, with dots
replaced by underscores (log.level -> LR_LOG_LEVEL).

Running bare 'lr config' is the same as 'lr config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, err := configFilePath()
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, cfgPath)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configKeys lists the keys shown by 'lr config show', in display order.
var configKeys = []string{
	"state_dir",
	"db_path",
	"repo_path",
	"port",
	"log.level",
	"log.format",
	"activity.default_limit",
}

// envVarFor returns the environment variable viper reads key from.
func envVarFor(key string) string {
	return "LR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# lr configuration
# See: lr config show (for effective values and sources)

# State/data directory (default: ~/.config/lr)
# state_dir: {{ .StateDir }}

# SQLite database path (default: <state_dir>/lr.db)
# db_path: {{ .DBPath }}

# Repository reviewed when a command does not name one (default: current directory)
# repo_path: /path/to/repo

# HTTP API and web UI port for 'lr serve'
port: {{ .Port }}

# Logging
log:
  # trace, debug, info, warn or error
  level: "{{ .LogLevel }}"

  # console or json
  format: "{{ .LogFormat }}"

# Activity feed
activity:
  # Entries returned when a caller does not pass a limit
  default_limit: {{ .ActivityLimit }}
`

type configTemplateData struct {
	StateDir      string
	DBPath        string
	Port          int
	LogLevel      string
	LogFormat     string
	ActivityLimit int
}

func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func renderConfigTemplate() ([]byte, error) {
	data := configTemplateData{
		StateDir:      viper.GetString("state_dir"),
		DBPath:        viper.GetString("db_path"),
		Port:          viper.GetInt("port"),
		LogLevel:      viper.GetString("log.level"),
		LogFormat:     viper.GetString("log.format"),
		ActivityLimit: viper.GetInt("activity.default_limit"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return nil, fmt.Errorf("template parse error: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("template execute error: %w", err)
	}
	return buf.Bytes(), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	content, err := renderConfigTemplate()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintf(ui.Out, "\n%s", content)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintf(ui.Out, "\n%s", content)
	return nil
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, key := range configKeys {
		_ = table.Append([]string{
			key,
			fmt.Sprintf("%v", viper.Get(key)),
			detectSource(key, envVarFor(key), fileValues),
		})
	}
	_ = table.Render()
	return nil
}

// readConfigFileValues reads the raw YAML file and returns the dotted keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys records the leaf keys of a nested map in dot notation.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
			continue
		}
		result[fullKey] = true
	}
}

// detectSource reports whether a value comes from the environment, the file or a default.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	switch {
	case hasEnv(envVar):
		return fmt.Sprintf("(env: %s)", envVar)
	case fileValues[key]:
		return "(file)"
	default:
		return "(default)"
	}
}

func hasEnv(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return errors.New("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file not found: %s (run 'lr config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
