package common

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLogLevel(tt.name); got != tt.expected {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestAppLogger_LogFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAppLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() > 0 {
		t.Error("Debug/Info messages should be filtered when level is Warn")
	}

	logger.Warn("warn message")
	if !strings.Contains(buf.String(), "[WARN]") {
		t.Error("Warn message should be logged")
	}

	buf.Reset()
	logger.Error("error message")
	if !strings.Contains(buf.String(), "[ERROR]") {
		t.Error("Error message should be logged")
	}
}

func TestAppLogger_LogFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAppLogger(&buf, LevelDebug)

	logger.Info("Service %s is %s", "home", "online")
	output := buf.String()

	if !strings.Contains(output, time.Now().Format("2006/01/02")) {
		t.Error("Log should contain date in YYYY/MM/DD format")
	}
	if !strings.Contains(output, "[INFO]") {
		t.Error("Log should contain level indicator")
	}
	if !strings.Contains(output, "logger_test.go:") {
		t.Errorf("Log should name the calling file, got %q", output)
	}
	if !strings.Contains(output, "Service home is online") {
		t.Error("Log should contain formatted message")
	}
}

func TestAppLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAppLogger(&buf, LevelDebug)

	logger.Component("reconciler").Debug("applied %d services", 3)

	output := buf.String()
	if !strings.Contains(output, "reconciler: applied 3 services") {
		t.Errorf("component prefix missing, got %q", output)
	}
	if !strings.Contains(output, "logger_test.go:") {
		t.Errorf("component logger should report the calling file, got %q", output)
	}
}

func TestLogRotation(t *testing.T) {
	tempDir := t.TempDir()
	logFile := filepath.Join(tempDir, "test.log")

	largeContent := strings.Repeat("x", 1024*1024)
	if err := os.WriteFile(logFile, []byte(largeContent), 0600); err != nil {
		t.Fatal(err)
	}

	logger := &AppLogger{
		level:       LevelInfo,
		maxFileSize: 512 * 1024,
		maxBackups:  2,
	}
	logger.rotateIfNeeded(logFile)

	if info, err := os.Stat(logFile); err == nil && info.Size() > 0 {
		t.Error("Original log file should be removed or empty after rotation")
	}

	matches, _ := filepath.Glob(filepath.Join(tempDir, "test.log.*"))
	if len(matches) == 0 {
		t.Error("Backup file should be created after rotation")
	}
}

func TestEnableFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := NewAppLogger(&bytes.Buffer{}, LevelInfo)
	logger.logDir = dir

	if err := logger.EnableFileLogging(); err != nil {
		t.Fatalf("EnableFileLogging() error = %v", err)
	}
	logger.Info("written to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file content = %q", string(data))
	}
}

func TestWrapError(t *testing.T) {
	wrapped := WrapError(ErrStaleIdentity, "connect /net/connman/service/x")

	if !strings.Contains(wrapped.Error(), "connect /net/connman/service/x") {
		t.Error("WrapError should include additional context")
	}
	if !errors.Is(wrapped, ErrStaleIdentity) {
		t.Error("WrapError should preserve the wrapped error")
	}
	if WrapError(nil, "context") != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestTransportError(t *testing.T) {
	err := &TransportError{
		Object:  "/net/connman/service/wifi_1",
		Method:  "Connect",
		Name:    "net.connman.Error.InvalidKey",
		Message: "Invalid key",
	}

	if got := err.Reason(); got != "Invalid key" {
		t.Errorf("Reason() = %q, want daemon message", got)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("non-timeout error should not match ErrTimeout")
	}

	timeout := &TransportError{Method: "Connect", Name: "org.freedesktop.DBus.Error.NoReply", Timeout: true}
	if !errors.Is(timeout, ErrTimeout) {
		t.Error("timed-out request should match ErrTimeout")
	}
	if got := ErrorReason(WrapError(timeout, "ctx")); got != "org.freedesktop.DBus.Error.NoReply" {
		t.Errorf("ErrorReason() = %q, want error name fallback", got)
	}
}

func TestStringInSlice(t *testing.T) {
	slice := []string{"ethernet", "wifi"}

	if !StringInSlice("wifi", slice) {
		t.Error("StringInSlice should return true for existing element")
	}
	if StringInSlice("wired", slice) {
		t.Error("StringInSlice should return false for non-existing element")
	}
}

func TestCopyStrings(t *testing.T) {
	src := []string{"psk", "wps"}
	dst := CopyStrings(src)
	dst[0] = "none"
	if src[0] != "psk" {
		t.Error("CopyStrings should not share storage")
	}
	if CopyStrings(nil) != nil {
		t.Error("CopyStrings(nil) should be nil")
	}
}
