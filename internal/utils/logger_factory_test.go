package utils_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/gitscan/internal/utils"
)

const testLogMessageConstant = "scan finished"

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name               string
		level              utils.LogLevel
		format             utils.LogFormat
		expectError        bool
		expectStructured   bool
		expectDebugEmitted bool
	}{
		{name: "debug_structured", level: utils.LogLevelDebug, format: utils.LogFormatStructured, expectStructured: true, expectDebugEmitted: true},
		{name: "info_structured", level: utils.LogLevelInfo, format: utils.LogFormatStructured, expectStructured: true},
		{name: "info_console", level: utils.LogLevelInfo, format: utils.LogFormatConsole},
		{name: "unsupported_level", level: utils.LogLevel("verbose"), format: utils.LogFormatStructured, expectError: true},
		{name: "unsupported_format", level: utils.LogLevelInfo, format: utils.LogFormat("xml"), expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			logFilePath := filepath.Join(testInstance.TempDir(), "gitscan.log")
			logger, creationError := utils.NewLoggerFactoryWithOutputPaths([]string{logFilePath}).CreateLogger(testCase.level, testCase.format)
			if testCase.expectError {
				require.Error(testInstance, creationError)
				require.Nil(testInstance, logger)
				return
			}
			require.NoError(testInstance, creationError)

			logger.Debug("fetch poll")
			logger.Info(testLogMessageConstant)
			_ = logger.Sync()

			captured, readError := os.ReadFile(logFilePath)
			require.NoError(testInstance, readError)
			lines := bytes.Split(bytes.TrimSpace(captured), []byte("\n"))
			last := lines[len(lines)-1]
			require.Contains(testInstance, string(last), testLogMessageConstant)
			require.Equal(testInstance, testCase.expectStructured, json.Valid(last))
			require.Equal(testInstance, testCase.expectDebugEmitted, bytes.Contains(captured, []byte("fetch poll")))
		})
	}
}

func TestLoggerFactoryDefaultsToStandardError(testInstance *testing.T) {
	logger, creationError := utils.NewLoggerFactoryWithOutputPaths(nil).CreateLogger(utils.LogLevelError, utils.LogFormatConsole)
	require.NoError(testInstance, creationError)
	require.NotNil(testInstance, logger)
	require.True(testInstance, logger.Core().Enabled(zapcore.ErrorLevel))
	require.False(testInstance, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestLoggerFactoryWritesToConfiguredOutputPaths(testInstance *testing.T) {
	logFilePath := filepath.Join(testInstance.TempDir(), "gitscan.log")
	loggerFactory := utils.NewLoggerFactoryWithOutputPaths([]string{logFilePath})

	logger, creationError := loggerFactory.CreateLogger(utils.LogLevel(" WARN "), utils.LogFormat("Structured"))
	require.NoError(testInstance, creationError)

	logger.Info(testLogMessageConstant)
	logger.Warn(testLogMessageConstant)
	_ = logger.Sync()

	capturedOutput, readError := os.ReadFile(logFilePath)
	require.NoError(testInstance, readError)

	lines := bytes.Split(bytes.TrimSpace(capturedOutput), []byte("\n"))
	require.Len(testInstance, lines, 1)
	require.True(testInstance, json.Valid(lines[0]))
	require.Contains(testInstance, string(lines[0]), `"level":"warn"`)
}
