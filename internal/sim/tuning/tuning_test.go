package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbedded_MatchesDefaults(t *testing.T) {
	got, err := Embedded()
	if err != nil {
		t.Fatalf("Embedded: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("embedded tuning.yaml drifted from Defaults():\n got=%+v\nwant=%+v", got, Defaults())
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: 20\nrelay:\n  announce_departures: true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 20 {
		t.Fatalf("tick_rate_hz=%d want 20", got.TickRateHz)
	}
	if !got.Relay.AnnounceDepartures {
		t.Fatalf("announce_departures not applied")
	}
	if got.MapSize != Defaults().MapSize || got.Relay.Port != Defaults().Relay.Port {
		t.Fatalf("unset fields lost their defaults: %+v", got)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("drops:\n  damping: 1.5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected damping validation error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
