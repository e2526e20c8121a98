package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Load reads and indexes a profile JSON document from disk.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file JSONFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return FromJSON(file)
}

// EnsureLoaded loads a profile document and overlays it on the builtin
// snapshot. An empty path returns the builtin snapshot alone.
func EnsureLoaded(path string) (*Store, error) {
	if path == "" {
		return Builtin(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("profile path %s is a directory", path)
	}
	loaded, err := Load(path)
	if err != nil {
		return nil, err
	}
	if loaded.IsEmpty() {
		return nil, errors.New("profile document contains no messages")
	}
	return Builtin().Merge(loaded), nil
}
