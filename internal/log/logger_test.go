package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestGetLoggerBeforeInit(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("GetLogger returned nil before Init")
	}
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := newLogrusLogger(&Config{Level: "loud"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("expected invalid log level error, got %v", err)
	}
}

func TestNewLoggerFileWithoutFilename(t *testing.T) {
	_, err := newLogrusLogger(&Config{File: FileConfig{Enabled: true}}, &bytes.Buffer{})
	if err == nil {
		t.Error("expected error for file appender without filename")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogrusLogger(&Config{Level: "warn", Pattern: "[%level] %msg\n"}, &buf)
	if err != nil {
		t.Fatalf("newLogrusLogger failed: %v", err)
	}

	l.Info("hidden")
	l.Warn("shown")

	if got := buf.String(); got != "[WARNING] shown\n" {
		t.Errorf("unexpected output %q", got)
	}
	if l.IsDebugEnabled() || l.IsInfoEnabled() {
		t.Error("debug/info should be disabled at warn level")
	}
}

func TestFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogrusLogger(&Config{Pattern: "%msg %field"}, &buf)
	if err != nil {
		t.Fatalf("newLogrusLogger failed: %v", err)
	}

	l.WithFields(map[string]interface{}{"reason": "short", "layer": "ipv4"}).
		WithError(errors.New("boom")).
		Info("malformed")

	if got := buf.String(); got != "malformed error=boom,layer=ipv4,reason=short" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestFormatterPattern(t *testing.T) {
	f := &formatter{pattern: "%time [%level] %caller: %msg", time: "15:04:05"}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.ErrorLevel,
		Message: "open failed",
		Data:    logrus.Fields{},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if string(out) != "03:04:05 [ERROR] -: open failed" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInitWithFileAppender(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tcpsniff.log")

	err := Init(&Config{
		Level: "debug",
		File:  FileConfig{Enabled: true, Filename: logPath, MaxSize: 1},
	})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() {
		mu.Lock()
		logger = nil
		mu.Unlock()
	})

	GetLogger().WithField("iface", "lo").Debug("capture started")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "capture started iface=lo") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestMultiWriterContinuesOnError(t *testing.T) {
	var buf bytes.Buffer
	w := NewMultiWriter().Add(failingWriter{}).Add(&buf)

	n, err := w.Write([]byte("line"))
	if err == nil {
		t.Error("expected error from failing appender")
	}
	if n != 4 || buf.String() != "line" {
		t.Errorf("second appender not written: n=%d buf=%q", n, buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }
