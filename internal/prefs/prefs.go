// Package prefs persists the user's mixer intents between sessions:
// the pinned instrument and the last mute/solo state. It is a plain
// load/save collaborator; the engine never touches it mid-playback.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"stemgrid/api"
)

// Prefs is the persisted preference snapshot.
type Prefs struct {
	PinnedStem api.StemName   `json:"pinned_stem,omitempty"`
	Muted      []api.StemName `json:"muted,omitempty"`
	Soloed     api.StemName   `json:"soloed,omitempty"`
}

// Load reads preferences from path. A missing file yields empty
// preferences, not an error.
func Load(path string) (*Prefs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Prefs{}, nil
		}
		return nil, fmt.Errorf("read prefs: %w", err)
	}

	var p Prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal prefs: %w", err)
	}
	return &p, nil
}

// Save writes preferences to path, creating parent directories as
// needed.
func Save(p *Prefs, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create prefs directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}
