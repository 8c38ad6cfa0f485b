package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	cfg := &config.LoggerConfig{
		Level: config.LogLevelInfo,
	}
	log := NewLogger(cfg)
	require.NotNil(t, log)
}

func TestLogLevel_Silent(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&config.LoggerConfig{Level: config.LogLevelSilent}, &buf)

	log.Error("error message")
	log.Warn("warn message")
	log.Info("info message")
	log.Debug("debug message")
	log.Verbose("verbose message")

	// Silent level should not log anything
	require.Empty(t, buf.String())
}

func TestLogLevel_Gating(t *testing.T) {
	tests := []struct {
		level   config.LogLevel
		visible []string
		hidden  []string
	}{
		{config.LogLevelError, []string{"error message"}, []string{"warn message", "info message", "debug message", "verbose message"}},
		{config.LogLevelInfo, []string{"error message", "warn message", "info message"}, []string{"debug message", "verbose message"}},
		{config.LogLevelDebug, []string{"error message", "warn message", "info message", "debug message"}, []string{"verbose message"}},
		{config.LogLevelVerbose, []string{"error message", "warn message", "info message", "debug message", "verbose message"}, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			log := NewLoggerWithWriter(&config.LoggerConfig{Level: tt.level}, &buf)

			log.Error("error message")
			log.Warn("warn message")
			log.Info("info message")
			log.Debug("debug message")
			log.Verbose("verbose message")

			output := buf.String()
			for _, want := range tt.visible {
				require.Contains(t, output, want)
			}
			for _, unwanted := range tt.hidden {
				require.NotContains(t, output, unwanted)
			}
		})
	}
}

func newBufferLogger(t *testing.T, level config.LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&config.LoggerConfig{Level: level}, &buf)
	return log, &buf
}

func TestLogger_WithFormatting(t *testing.T) {
	log, buf := newBufferLogger(t, config.LogLevelInfo)

	log.Info("Processing %d files", 100)

	require.Contains(t, buf.String(), "Processing 100 files")
}

func TestLogger_With(t *testing.T) {
	log, buf := newBufferLogger(t, config.LogLevelInfo)

	contextLogger := log.With("component", "sweeper")
	contextLogger.Info("test message")

	output := buf.String()
	require.Contains(t, output, "component=sweeper")
	require.Contains(t, output, "test message")
}

func TestLogger_WithFields(t *testing.T) {
	log, buf := newBufferLogger(t, config.LogLevelInfo)

	contextLogger := log.WithFields(map[string]interface{}{
		"component": "store",
		"operation": "sweep",
		"count":     42,
	})
	contextLogger.Info("operation completed")

	output := buf.String()
	require.Contains(t, output, "component=store")
	require.Contains(t, output, "operation=sweep")
	require.Contains(t, output, "count=42")
	require.Contains(t, output, "operation completed")
}

func TestLogger_ChainedWith(t *testing.T) {
	log, buf := newBufferLogger(t, config.LogLevelInfo)

	contextLogger := log.With("component", "gateway").With("backend", "s3")
	contextLogger.Info("upload started")

	output := buf.String()
	require.Contains(t, output, "backend=s3")
	require.Contains(t, output, "component=gateway")
	require.Contains(t, output, "upload started")
}

func TestLogger_FieldOrderIsDeterministic(t *testing.T) {
	log, buf := newBufferLogger(t, config.LogLevelInfo)

	log.WithFields(map[string]interface{}{"b": 2, "a": 1, "c": 3}).Info("msg")

	require.Contains(t, buf.String(), "[a=1, b=2, c=3]")
}

func TestLogger_Timestamp(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&config.LoggerConfig{
		Level:      config.LogLevelInfo,
		TimeFormat: "2006-01-02 15:04:05",
	}, &buf)

	log.Info("test message")

	output := buf.String()
	require.Regexp(t, `\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`, output)
	require.Contains(t, output, "test message")
}

func TestLogger_LevelInOutput(t *testing.T) {
	log, buf := newBufferLogger(t, config.LogLevelVerbose)

	log.Error("error msg")
	log.Warn("warn msg")
	log.Info("info msg")
	log.Debug("debug msg")
	log.Verbose("verbose msg")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 5)
	require.Contains(t, lines[0], "[error]")
	require.Contains(t, lines[1], "[warn]")
	require.Contains(t, lines[2], "[info]")
	require.Contains(t, lines[3], "[debug]")
	require.Contains(t, lines[4], "[verbose]")
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	require.NotNil(t, log)

	// Should not panic
	log.Error("error")
	log.Warn("warn")
	log.Info("info")
	log.Debug("debug")
	log.Verbose("verbose")

	contextLogger := log.With("key", "value")
	require.NotNil(t, contextLogger)
	contextLogger.Info("test")

	fieldsLogger := log.WithFields(map[string]interface{}{"key": "value"})
	require.NotNil(t, fieldsLogger)
	fieldsLogger.Info("test")
}

func TestLoggerConfig_Defaults(t *testing.T) {
	cfg := &config.LoggerConfig{}
	cfg.ApplyDefaults()

	require.Equal(t, config.LogLevelInfo, cfg.Level)
	require.Equal(t, "2006-01-02 15:04:05", cfg.TimeFormat)
}

func TestLoggerConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggerConfig
		wantErr bool
	}{
		{name: "valid silent level", cfg: config.LoggerConfig{Level: config.LogLevelSilent}},
		{name: "valid error level", cfg: config.LoggerConfig{Level: config.LogLevelError}},
		{name: "valid info level", cfg: config.LoggerConfig{Level: config.LogLevelInfo}},
		{name: "valid debug level", cfg: config.LoggerConfig{Level: config.LogLevelDebug}},
		{name: "valid verbose level", cfg: config.LoggerConfig{Level: config.LogLevelVerbose}},
		{name: "empty level (will use default)", cfg: config.LoggerConfig{Level: ""}},
		{name: "invalid level", cfg: config.LoggerConfig{Level: "invalid"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
