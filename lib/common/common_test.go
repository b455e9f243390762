package common

import (
	"bytes"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Errorf("Expected an error for an unknown log level")
	}
}

func TestLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerFactory(&buf)("feedstore")

	l.Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("Debug output should be filtered at the default level, got %q", buf.String())
	}

	l.Infof("store %s created", "feed")
	out := buf.String()
	if !strings.Contains(out, "INFO  | feedstore  | store feed created") {
		t.Errorf("Unexpected log line: %q", out)
	}

	buf.Reset()
	l.SetLevel(logger.DEBUG)
	l.Debugf("visible")
	if !strings.Contains(buf.String(), "DEBUG | feedstore  | visible") {
		t.Errorf("Unexpected log line: %q", buf.String())
	}

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Warningf("hidden")
	l.Errorf("failed")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "ERROR | feedstore  | failed") {
		t.Errorf("Unexpected log output at error level: %q", buf.String())
	}
}

func TestInitLoggersRejectsInvalidLevel(t *testing.T) {
	if err := InitLoggers("loud"); err == nil {
		t.Errorf("Expected an error for an invalid log level")
	}
	if err := InitLoggers("error"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	// a second call only updates the levels
	if err := InitLoggers("warn"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestStoreConfig(t *testing.T) {
	conf := DefaultStoreConfig()
	if err := conf.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	out := conf.String()
	for _, want := range []string{"FEED STORE", "Name", "feed", "LOGGING", "info"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in config output:\n%s", want, out)
		}
	}

	invalid := []*StoreConfig{
		{Name: "", MaxConcurrentReads: 1, LogLevel: "info"},
		{Name: "feed", MaxConcurrentReads: -1, LogLevel: "info"},
		{Name: "feed", MaxConcurrentReads: 1, LogLevel: "nope"},
	}
	for i, c := range invalid {
		if err := c.Validate(); err == nil {
			t.Errorf("Config %d should be invalid: %+v", i, c)
		}
	}

	auto := &StoreConfig{Name: "feed", LogLevel: "info"}
	if !strings.Contains(auto.String(), "(auto)") {
		t.Errorf("Expected auto concurrency in output:\n%s", auto.String())
	}
}
