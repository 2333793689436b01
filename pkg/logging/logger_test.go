package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel logrus.Level
	}{
		{"debug level", "debug", logrus.DebugLevel},
		{"info level", "info", logrus.InfoLevel},
		{"warn level", "warn", logrus.WarnLevel},
		{"error level", "error", logrus.ErrorLevel},
		{"unknown level defaults to info", "banana", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = logrus.New()
			if err := Init(tt.level, ""); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if Logger.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", Logger.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestInitWithLogFile(t *testing.T) {
	Logger = logrus.New()
	logFile := filepath.Join(t.TempDir(), "logs", "attendwatch.log")

	if err := Init("info", logFile); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Info("hello from the test")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file not readable: %v", err)
	}
	if !strings.Contains(string(data), "hello from the test") {
		t.Error("log file missing the logged message")
	}
}

func TestComponent(t *testing.T) {
	Logger = logrus.New()
	var buf bytes.Buffer
	Logger.SetOutput(&buf)

	Component("ledger").Info("flushed")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") {
		t.Errorf("output %q missing component field", out)
	}
	if !strings.Contains(out, "flushed") {
		t.Errorf("output %q missing message", out)
	}
}
