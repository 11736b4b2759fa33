package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithOutput_JSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("relay", &buf, "debug", "JSON")
	log.WithField("session", 4).Debug("joined")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %q (%v)", buf.String(), err)
	}
	if rec["component"] != "relay" || rec["msg"] != "joined" || rec["session"] != float64(4) {
		t.Fatalf("record=%v", rec)
	}
}

func TestNewWithOutput_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("bot", &buf, "chatty", "")
	log.Debug("hidden")
	log.Info("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("output=%q", out)
	}
}
