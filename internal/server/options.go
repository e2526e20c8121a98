package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"example.com/fitdec/internal/fit"
	"example.com/fitdec/internal/profile"
)

// DefaultDictID names the registry built from the compiled-in profile subset.
// It is always available, even with no dictionaries configured.
const DefaultDictID = "builtin"

// ProfileDict describes a profile dictionary file bound to an identifier that
// decode requests can select.
type ProfileDict struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Path string `json:"path" yaml:"path"`
}

// Options configures server creation.
type Options struct {
	StorageDir   string
	DictManifest string
	ProfileDicts []ProfileDict
	Concurrency  int
}

// LoadDictManifest parses a manifest JSON document that enumerates the
// available profile dictionaries. Relative paths are resolved against the
// manifest's directory.
func LoadDictManifest(path string) ([]ProfileDict, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("manifest path is empty")
	}
	manifestPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest path: %w", err)
	}
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	var doc struct {
		Dicts []ProfileDict `json:"dicts"`
	}
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(doc.Dicts) == 0 {
		return nil, errors.New("manifest contains no dictionaries")
	}
	base := filepath.Dir(manifestPath)
	out := make([]ProfileDict, len(doc.Dicts))
	for i, dict := range doc.Dicts {
		resolved, err := resolveDictPaths(base, dict)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

func resolveDictPaths(base string, dict ProfileDict) (ProfileDict, error) {
	dict.ID = strings.TrimSpace(dict.ID)
	dict.Name = strings.TrimSpace(dict.Name)
	dict.Path = strings.TrimSpace(dict.Path)
	if dict.ID == "" {
		return ProfileDict{}, errors.New("manifest dictionary entry missing id")
	}
	if dict.Path == "" {
		return ProfileDict{}, fmt.Errorf("manifest dictionary %s missing path", dict.ID)
	}
	if !filepath.IsAbs(dict.Path) {
		dict.Path = filepath.Join(base, dict.Path)
	}
	return dict, nil
}

// buildRegistries loads every configured dictionary as a registry overlaid on
// the builtin profile. The builtin registry is always present.
func buildRegistries(opts Options) (map[string]fit.Registry, []string, error) {
	dicts := opts.ProfileDicts
	if len(dicts) == 0 && strings.TrimSpace(opts.DictManifest) != "" {
		var err error
		dicts, err = LoadDictManifest(opts.DictManifest)
		if err != nil {
			return nil, nil, fmt.Errorf("load dict manifest: %w", err)
		}
	}
	registries := map[string]fit.Registry{
		DefaultDictID: profile.Builtin(),
	}
	for _, dict := range dicts {
		id := strings.TrimSpace(dict.ID)
		path := strings.TrimSpace(dict.Path)
		if id == "" {
			return nil, nil, errors.New("profile dictionary missing id")
		}
		if id == DefaultDictID {
			return nil, nil, fmt.Errorf("dictionary id %s is reserved", DefaultDictID)
		}
		if path == "" {
			return nil, nil, fmt.Errorf("dictionary %s missing path", id)
		}
		if _, exists := registries[id]; exists {
			return nil, nil, fmt.Errorf("duplicate dictionary %s configured", id)
		}
		store, err := profile.EnsureLoaded(path)
		if err != nil {
			return nil, nil, fmt.Errorf("dictionary %s: %w", id, err)
		}
		registries[id] = store
	}
	ids := make([]string, 0, len(registries))
	for id := range registries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return registries, ids, nil
}
