package sysutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	for in, want := range map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		" DeBuG ":  zerolog.DebugLevel,
		"":         zerolog.InfoLevel,
		"Warning":  zerolog.WarnLevel,
		"warn":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"panic":    zerolog.PanicLevel,
		"verbose":  zerolog.InfoLevel,
		"disabled": zerolog.Disabled,
	} {
		got := SetLogLevel(in)
		if got != want || zerolog.GlobalLevel() != want {
			t.Errorf("SetLogLevel(%q) = %v (global %v); want %v", in, got, zerolog.GlobalLevel(), want)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	SetupLogger(&buf, "quickclip", false)
	log.Info().Int("timer", 60).Msg("clip created")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("JSON mode wrote %q: %v", buf.String(), err)
	}
	if line["service"] != "quickclip" || line["message"] != "clip created" || line["time"] == nil {
		t.Fatalf("unexpected fields: %v", line)
	}
	if ts, _ := line["time"].(string); !strings.HasSuffix(ts, "Z") {
		t.Fatalf("timestamp %q is not UTC", ts)
	}

	buf.Reset()
	SetupLogger(&buf, "quickclip", true)
	log.Info().Msg("pretty")
	if out := buf.String(); strings.HasPrefix(out, "{") || !strings.Contains(out, "pretty") {
		t.Fatalf("expected console output, got %q", out)
	}
}

func TestIsTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	for name, file := range map[string]*os.File{"nil": nil, "regular file": f} {
		if IsTerminal(file) {
			t.Errorf("%s reported as terminal", name)
		}
	}
}
