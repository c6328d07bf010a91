package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type contactsFile struct {
	Contacts []Contact `json:"contacts"`
}

// SaveContacts writes all contacts to path atomically.
func (d *Directory) SaveContacts(path string) error {
	data, err := json.MarshalIndent(contactsFile{Contacts: d.Contacts()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode contacts: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create contacts directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// LoadContacts merges the contacts stored at path. A missing file is not an error.
func (d *Directory) LoadContacts(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read contacts: %w", err)
	}

	var file contactsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("decode contacts: %w", err)
	}

	loaded := 0
	for _, c := range file.Contacts {
		if _, err := d.AddContact(c); err != nil {
			continue
		}
		loaded++
	}
	return loaded, nil
}
