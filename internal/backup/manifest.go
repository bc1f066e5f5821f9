package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const manifestName = "manifest.json"

// manifest records every backup created under the manager's directory, in
// creation order.
type manifest struct {
	Version string   `json:"version"`
	Backups []Backup `json:"backups"`
}

func (m *Manager) manifestPath() string {
	return filepath.Join(m.dir, manifestName)
}

func (m *Manager) readManifest() (*manifest, error) {
	data, err := os.ReadFile(m.manifestPath())
	if os.IsNotExist(err) {
		return &manifest{Version: "1.0"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup manifest: %w", err)
	}

	var man manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("parse backup manifest: %w", err)
	}
	return &man, nil
}

func (m *Manager) writeManifest(man *manifest) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup manifest: %w", err)
	}

	// Write to a temp file then rename so a crash never truncates the
	// manifest.
	tempPath := m.manifestPath() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write backup manifest: %w", err)
	}
	if err := os.Rename(tempPath, m.manifestPath()); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("commit backup manifest: %w", err)
	}
	return nil
}

func (m *Manager) appendManifest(b *Backup) error {
	man, err := m.readManifest()
	if err != nil {
		return err
	}
	man.Backups = append(man.Backups, *b)
	return m.writeManifest(man)
}
