package main

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"error":   slog.LevelError,
		"WARNING": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"Debug":   slog.LevelDebug,
	} {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLogLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseLogLevel("trace"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestSetupLogger_MillisecondFields(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(slog.LevelInfo, &buf)

	logger.Info("element", "held", 61234567*time.Nanosecond)
	logger.Debug("hidden")

	out := buf.String()
	if !regexp.MustCompile(`time=\d\d:\d\d:\d\d\.\d{3} `).MatchString(out) {
		t.Fatalf("timestamp not in ms form: %s", out)
	}
	if !strings.Contains(out, "held=61ms") {
		t.Fatalf("duration not rounded: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line logged at info level")
	}
}

func TestKeyerLogger_OnlyAtDebug(t *testing.T) {
	var buf bytes.Buffer
	if keyerLogger(setupLogger(slog.LevelInfo, &buf)) != nil {
		t.Fatalf("keyer logger enabled at info")
	}
	if keyerLogger(nil) != nil {
		t.Fatalf("keyer logger from nil")
	}

	kl := keyerLogger(setupLogger(slog.LevelDebug, &buf))
	if kl == nil {
		t.Fatalf("keyer logger missing at debug")
	}
	kl.Debug("poll")
	if !strings.Contains(buf.String(), "component=keyer") {
		t.Fatalf("missing component attr: %s", buf.String())
	}
}
