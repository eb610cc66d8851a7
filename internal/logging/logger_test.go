// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"INFO", zerolog.InfoLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("key", "value").Msg("test message")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected structured field in output, got: %s", out)
	}
	if !strings.Contains(out, `"message":"test message"`) {
		t.Errorf("expected message in output, got: %s", out)
	}
	if !strings.Contains(out, `"time":`) {
		t.Errorf("expected timestamp in output, got: %s", out)
	}
}

func TestInitTimestampDefault(t *testing.T) {
	defer Init(DefaultConfig())

	// A partial literal, as main builds from config, keeps timestamps.
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})
	Info().Msg("timestamped")
	if !strings.Contains(buf.String(), `"time":`) {
		t.Errorf("expected timestamp with partial config, got: %s", buf.String())
	}

	buf.Reset()
	Init(Config{Level: "info", Format: "json", Output: &buf, NoTimestamp: true})
	Info().Msg("bare")
	if strings.Contains(buf.String(), `"time":`) {
		t.Errorf("expected no timestamp when disabled, got: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("should not appear")
	Info().Msg("should not appear either")
	Warn().Msg("warning emitted")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("debug/info message emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "warning emitted") {
		t.Errorf("warn message missing at warn level: %s", out)
	}
}

func TestSetLevelString(t *testing.T) {
	defer Init(DefaultConfig())

	SetLevelString("error")
	if got := GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("GetLevel() = %v, want %v", got, zerolog.ErrorLevel)
	}
}

func TestNewTestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)
	logger.Info().Msg("captured")

	if !strings.Contains(buf.String(), "captured") {
		t.Errorf("test logger did not write to buffer: %s", buf.String())
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	original := Logger()
	defer SetLogger(original)

	SetLogger(NewTestLogger(&buf))
	Info().Msg("through replaced logger")

	if !strings.Contains(buf.String(), "through replaced logger") {
		t.Errorf("replaced logger not used: %s", buf.String())
	}
}
