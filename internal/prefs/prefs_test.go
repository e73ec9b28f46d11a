package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"stemgrid/api"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope", "prefs.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.PinnedStem != "" || len(p.Muted) != 0 || p.Soloed != "" {
		t.Errorf("defaults not empty: %+v", p)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stemgrid", "prefs.json")

	want := &Prefs{
		PinnedStem: api.StemPiano,
		Muted:      []api.StemName{api.StemDrums, api.StemOther},
		Soloed:     api.StemBass,
	}
	if err := Save(want, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.PinnedStem != want.PinnedStem || got.Soloed != want.Soloed {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
	if len(got.Muted) != 2 || got.Muted[0] != api.StemDrums || got.Muted[1] != api.StemOther {
		t.Errorf("Muted = %v", got.Muted)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := Save(&Prefs{}, path); err != nil {
		t.Fatal(err)
	}
	// Overwrite with junk.
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load on corrupt file should fail")
	}
}
