package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/lr/internal/output"
)

// testEnv sets up isolated config dir, viper, store and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	setDefaults()

	// Fresh store and service per test
	dataStore, reviewSvc = nil, nil
	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
		}
		dataStore, reviewSvc = nil, nil
	})

	// Initialize output
	ui = output.New()
	logger = zerolog.Nop()

	return dir
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lr configuration")
	assert.Contains(t, string(data), "default_limit: 50")
	assert.Contains(t, string(data), "port: 3001")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lr configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)

	// Create config first
	require.NoError(t, configInitRun())

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)

	// Unset EDITOR and VISUAL
	origEditor := os.Getenv("EDITOR")
	origVisual := os.Getenv("VISUAL")
	_ = os.Unsetenv("EDITOR")
	_ = os.Unsetenv("VISUAL")
	t.Cleanup(func() {
		if origEditor != "" {
			_ = os.Setenv("EDITOR", origEditor)
		}
		if origVisual != "" {
			_ = os.Setenv("VISUAL", origVisual)
		}
	})

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)

	_ = os.Setenv("EDITOR", "echo") // harmless command
	t.Cleanup(func() { _ = os.Unsetenv("EDITOR") })

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	// From env
	t.Setenv("LR_TEST_KEY", "val")
	assert.Contains(t, detectSource("test_key", "LR_TEST_KEY", fileValues), "env")

	// From file
	assert.Contains(t, detectSource("key_a", "LR_KEY_A_NONEXISTENT", fileValues), "file")

	// Default
	assert.Contains(t, detectSource("key_b", "LR_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"top": "val",
		"nested": map[string]any{
			"a": "1",
			"b": "2",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	err := configInitRun()
	require.NoError(t, err)

	// File should NOT have been created
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

func TestDefaults(t *testing.T) {
	dir := testEnv(t)

	assert.Equal(t, dir, viper.GetString("state_dir"))
	assert.Equal(t, filepath.Join(dir, "lr.db"), viper.GetString("db_path"))
	assert.Equal(t, 3001, viper.GetInt("port"))
	assert.Equal(t, "info", viper.GetString("log.level"))
	assert.Equal(t, "console", viper.GetString("log.format"))
	assert.Equal(t, 50, viper.GetInt("activity.default_limit"))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, viper.GetString("repo_path"))
}

func TestConfigShow_FileSource(t *testing.T) {
	dir := testEnv(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("port: 4000\nlog:\n  level: debug\n"), 0644))

	values := readConfigFileValues(cfgPath)
	assert.True(t, values["port"])
	assert.True(t, values["log.level"])
	assert.False(t, values["log.format"])
}

func TestEnvVarFor(t *testing.T) {
	assert.Equal(t, "LR_PORT", envVarFor("port"))
	assert.Equal(t, "LR_LOG_LEVEL", envVarFor("log.level"))
	assert.Equal(t, "LR_ACTIVITY_DEFAULT_LIMIT", envVarFor("activity.default_limit"))
}

func TestConfigShow_EnvOverride(t *testing.T) {
	testEnv(t)
	t.Setenv("LR_PORT", "4100")
	viper.SetEnvPrefix("LR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	assert.Equal(t, 4100, viper.GetInt("port"))
	assert.Contains(t, detectSource("port", envVarFor("port"), nil), "env: LR_PORT")
}
