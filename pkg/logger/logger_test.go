package logx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestInitWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, Config{Debug: false})
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("info line missing: %s", out)
	}

	buf.Reset()
	InitWriter(&buf, Config{Debug: true})
	l := Component("router")
	l.Debug().Msg("transition")
	if !strings.Contains(buf.String(), `"component":"router"`) {
		t.Fatalf("component field missing: %s", buf.String())
	}
}
