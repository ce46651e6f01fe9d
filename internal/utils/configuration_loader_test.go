package utils_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitscan/internal/utils"
)

const (
	testEnvironmentPrefixConstant                  = "TESTGITSCAN"
	testConfigurationNameConstant                  = "config"
	testConfigurationTypeConstant                  = "yaml"
	testConfigFileNameConstant                     = "config.yaml"
	configurationLoaderSubtestNameTemplateConstant = "%d_%s"
	testLayeredConfigurationTemplateConstant       = "common:\n  log_level: %s\nfetch:\n  idle_timeout: %s\n"
)

type configurationFixture struct {
	Common configurationCommonFixture `mapstructure:"common"`
	Fetch  configurationFetchFixture  `mapstructure:"fetch"`
}

type configurationFetchFixture struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Exclude     []string      `mapstructure:"exclude"`
}

type configurationCommonFixture struct {
	LogLevel string `mapstructure:"log_level"`
}

func TestConfigurationLoaderPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name                string
		fileContent         string
		environmentLogLevel string
		expectedLogLevel    string
		expectedIdleTimeout time.Duration
	}{
		{
			name:                "embedded_only",
			expectedLogLevel:    "info",
			expectedIdleTimeout: 5 * time.Second,
		},
		{
			name:                "file_overrides_embedded",
			fileContent:         fmt.Sprintf(testLayeredConfigurationTemplateConstant, "debug", "750ms"),
			expectedLogLevel:    "debug",
			expectedIdleTimeout: 750 * time.Millisecond,
		},
		{
			name:                "environment_overrides_file",
			fileContent:         fmt.Sprintf(testLayeredConfigurationTemplateConstant, "warn", "1s"),
			environmentLogLevel: "error",
			expectedLogLevel:    "error",
			expectedIdleTimeout: time.Second,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(configurationLoaderSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			configurationFilePath := ""
			if len(testCase.fileContent) > 0 {
				configurationFilePath = filepath.Join(testInstance.TempDir(), testConfigFileNameConstant)
				require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(testCase.fileContent), 0o600))
			}
			if len(testCase.environmentLogLevel) > 0 {
				testInstance.Setenv(testEnvironmentPrefixConstant+"_COMMON_LOG_LEVEL", testCase.environmentLogLevel)
			}

			configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})
			configurationLoader.SetEmbeddedConfiguration([]byte(fmt.Sprintf(testLayeredConfigurationTemplateConstant, "info", "5s")), testConfigurationTypeConstant)

			loadedConfiguration := configurationFixture{}
			metadata, loadError := configurationLoader.LoadConfiguration(configurationFilePath, nil, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedLogLevel, loadedConfiguration.Common.LogLevel)
			require.Equal(testInstance, testCase.expectedIdleTimeout, loadedConfiguration.Fetch.IdleTimeout)
			require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
		})
	}
}

func TestConfigurationLoaderDefaultValuesFillMissingKeys(testInstance *testing.T) {
	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})

	loadedConfiguration := configurationFixture{}
	_, loadError := configurationLoader.LoadConfiguration("", map[string]any{"common.log_level": "info", "fetch.idle_timeout": "3s"}, &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "info", loadedConfiguration.Common.LogLevel)
	require.Equal(testInstance, 3*time.Second, loadedConfiguration.Fetch.IdleTimeout)
}

func TestConfigurationLoaderFindsFileInLaterSearchPath(testInstance *testing.T) {
	workingDirectoryPath := testInstance.TempDir()
	userConfigurationDirectoryPath := filepath.Join(testInstance.TempDir(), "gitscan")
	require.NoError(testInstance, os.MkdirAll(userConfigurationDirectoryPath, 0o755))

	configurationFilePath := filepath.Join(userConfigurationDirectoryPath, testConfigFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(fmt.Sprintf(testLayeredConfigurationTemplateConstant, "debug", "2s")), 0o600))

	configurationLoader := utils.NewConfigurationLoader(
		testConfigurationNameConstant,
		testConfigurationTypeConstant,
		testEnvironmentPrefixConstant,
		[]string{workingDirectoryPath, " ", userConfigurationDirectoryPath},
	)

	loadedConfiguration := configurationFixture{}
	metadata, loadError := configurationLoader.LoadConfiguration("", nil, &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "debug", loadedConfiguration.Common.LogLevel)
	require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
}

func TestConfigurationLoaderDecodesDurationsAndLists(testInstance *testing.T) {
	testCases := []struct {
		name                string
		configuration       string
		environmentExclude  string
		expectedIdleTimeout time.Duration
		expectedExclude     []string
	}{
		{
			name:                "duration_and_sequence",
			configuration:       "fetch:\n  idle_timeout: 250ms\n  exclude:\n    - /a\n    - /b\n",
			expectedIdleTimeout: 250 * time.Millisecond,
			expectedExclude:     []string{"/a", "/b"},
		},
		{
			name:                "comma_separated_environment_list",
			configuration:       "fetch:\n  idle_timeout: 2s\n  exclude: []\n",
			environmentExclude:  "/x,/y",
			expectedIdleTimeout: 2 * time.Second,
			expectedExclude:     []string{"/x", "/y"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(configurationLoaderSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			if len(testCase.environmentExclude) > 0 {
				testInstance.Setenv(testEnvironmentPrefixConstant+"_FETCH_EXCLUDE", testCase.environmentExclude)
			}

			configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})
			configurationLoader.SetEmbeddedConfiguration([]byte(testCase.configuration), testConfigurationTypeConstant)

			loadedConfiguration := configurationFixture{}
			_, loadError := configurationLoader.LoadConfiguration("", nil, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedIdleTimeout, loadedConfiguration.Fetch.IdleTimeout)
			require.Equal(testInstance, testCase.expectedExclude, loadedConfiguration.Fetch.Exclude)
		})
	}
}

func TestConfigurationLoaderRejectsMissingTarget(testInstance *testing.T) {
	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)
	_, loadError := configurationLoader.LoadConfiguration("", nil, nil)
	require.Error(testInstance, loadError)
}
