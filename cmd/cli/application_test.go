package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/temirov/gitscan/cmd/cli/repos"
	"github.com/temirov/gitscan/internal/fetch"
	"github.com/temirov/gitscan/internal/ui"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationTemplate         = "common:\n  log_level: error\ntools:\n  status:\n    format: json\n  inventory:\n    database_path: %s\n"
)

func newTestApplication(testInstance *testing.T) (*Application, *bytes.Buffer) {
	testInstance.Helper()

	application, creationError := NewApplication()
	require.NoError(testInstance, creationError)
	var output bytes.Buffer
	application.rootCommand.SetOut(&output)
	application.rootCommand.SetErr(&bytes.Buffer{})
	return application, &output
}

func writeConfiguration(testInstance *testing.T, databasePath string) string {
	testInstance.Helper()

	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	content := []byte(fmt.Sprintf(testConfigurationTemplate, databasePath))
	require.NoError(testInstance, os.WriteFile(configurationPath, content, 0o644))
	return configurationPath
}

func TestApplicationRegistersCommands(testInstance *testing.T) {
	application, _ := newTestApplication(testInstance)

	registered := []string{}
	for _, command := range application.rootCommand.Commands() {
		registered = append(registered, command.Name())
	}
	require.Subset(testInstance, registered, []string{"search", "status", "log", "watch"})
}

func TestEmbeddedDefaultsMatchToolDefaults(testInstance *testing.T) {
	content, configurationType := EmbeddedDefaultConfiguration()
	require.Equal(testInstance, configurationTypeConstant, configurationType)

	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)
	require.NoError(testInstance, viperInstance.ReadConfig(bytes.NewReader(content)))

	var configuration ApplicationConfiguration
	require.NoError(testInstance, viperInstance.Unmarshal(&configuration, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())))

	defaults := repos.DefaultToolsConfiguration()
	require.Equal(testInstance, "info", configuration.Common.LogLevel)
	require.Equal(testInstance, defaults.Search.Root, configuration.Tools.Search.Root)
	require.Equal(testInstance, defaults.Search.Save, configuration.Tools.Search.Save)
	require.Equal(testInstance, defaults.Status.Fetch, configuration.Tools.Status.Fetch)
	require.Equal(testInstance, string(ui.FormatAuto), configuration.Tools.Status.Format)
	require.Equal(testInstance, fetch.DefaultPolicy(), configuration.Tools.Fetch)
	require.Equal(testInstance, 500*time.Millisecond, configuration.Tools.Watch.Debounce)
}

func TestApplicationAppliesConfigurationFileAndToggleValues(testInstance *testing.T) {
	databasePath := filepath.Join(testInstance.TempDir(), "inventory.db")
	configurationPath := writeConfiguration(testInstance, databasePath)
	missingRepository := filepath.Join(testInstance.TempDir(), "absent")

	application, output := newTestApplication(testInstance)
	executionError := application.Execute([]string{"--config", configurationPath, "status", "--fetch", "no", missingRepository})
	require.NoError(testInstance, executionError)

	var entries []ui.Entry
	require.NoError(testInstance, json.Unmarshal(output.Bytes(), &entries))
	require.Len(testInstance, entries, 1)
	require.Equal(testInstance, "absent", entries[0].Name)
	require.Nil(testInstance, entries[0].Status)
	require.NotEmpty(testInstance, entries[0].Failure)
	require.False(testInstance, application.configuration.Tools.Status.Fetch)
	require.Equal(testInstance, configurationPath, application.configurationMetadata.ConfigFileUsed)
}

func TestApplicationEnvironmentOverridesConfiguration(testInstance *testing.T) {
	databasePath := filepath.Join(testInstance.TempDir(), "inventory.db")
	configurationPath := writeConfiguration(testInstance, databasePath)
	testInstance.Setenv("GITSCAN_TOOLS_STATUS_FORMAT", "csv")

	application, output := newTestApplication(testInstance)
	executionError := application.Execute([]string{"--config", configurationPath, "status", "--fetch=no", filepath.Join(testInstance.TempDir(), "absent")})
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "csv", application.configuration.Tools.Status.Format)
	require.Contains(testInstance, output.String(), "NAME,BRANCH,AHEAD")
}

func TestApplicationRejectsUnsupportedLogLevel(testInstance *testing.T) {
	application, _ := newTestApplication(testInstance)
	executionError := application.Execute([]string{"--log-level", "verbose", "status", "--fetch=no", testInstance.TempDir()})
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), loggerCreationErrorMessageConstant)
}

func TestApplicationRejectsInconsistentFetchPolicy(testInstance *testing.T) {
	testInstance.Setenv("GITSCAN_TOOLS_FETCH_IDLE_TIMEOUT", "1m")
	testInstance.Setenv("GITSCAN_TOOLS_FETCH_OVERALL_TIMEOUT", "10s")
	databasePath := filepath.Join(testInstance.TempDir(), "inventory.db")

	application, _ := newTestApplication(testInstance)
	executionError := application.Execute([]string{"--config", writeConfiguration(testInstance, databasePath), "status", testInstance.TempDir()})
	require.ErrorIs(testInstance, executionError, fetch.ErrInvalidPolicy)
}
