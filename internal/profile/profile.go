package profile

import (
	"fmt"
	"strings"
)

// Component describes one bit-packed sub-field of a parent field. The value
// is extracted by shifting past the preceding components and masking Bits,
// then resolved against the target field number's name and units with the
// component's own scale and offset.
type Component struct {
	FieldNumber uint8   `json:"field"`
	Bits        uint8   `json:"bits"`
	Scale       float64 `json:"scale,omitempty"`
	Offset      float64 `json:"offset,omitempty"`
}

// FieldSchema is the profile entry for one (message, field) pair.
type FieldSchema struct {
	Number      uint8       `json:"number"`
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Scale       float64     `json:"scale,omitempty"`
	Offset      float64     `json:"offset,omitempty"`
	Units       string      `json:"units,omitempty"`
	Accumulated bool        `json:"accumulated,omitempty"`
	Components  []Component `json:"components,omitempty"`
}

type messageEntry struct {
	name   string
	fields map[uint8]FieldSchema
}

// Store is a read-only lookup table from message and field numbers to their
// profile entries. A nil Store resolves nothing.
type Store struct {
	messages map[uint16]*messageEntry
}

// JSONFile is the on-disk profile format.
type JSONFile struct {
	Messages []JSONMessage `json:"messages"`
}

type JSONMessage struct {
	Number uint16        `json:"number"`
	Name   string        `json:"name"`
	Fields []FieldSchema `json:"fields"`
}

// FromJSON validates and indexes a profile document.
func FromJSON(file JSONFile) (*Store, error) {
	store := &Store{messages: make(map[uint16]*messageEntry)}
	for i, msg := range file.Messages {
		name := strings.TrimSpace(msg.Name)
		if name == "" {
			return nil, fmt.Errorf("messages[%d]: empty name", i)
		}
		if _, exists := store.messages[msg.Number]; exists {
			return nil, fmt.Errorf("messages[%d]: duplicate message number %d", i, msg.Number)
		}
		entry := &messageEntry{name: name, fields: make(map[uint8]FieldSchema)}
		for j, f := range msg.Fields {
			if strings.TrimSpace(f.Name) == "" {
				return nil, fmt.Errorf("messages[%d].fields[%d]: empty name", i, j)
			}
			if f.Scale < 0 {
				return nil, fmt.Errorf("messages[%d].fields[%d]: negative scale", i, j)
			}
			if f.Scale == 0 {
				f.Scale = 1
			}
			for k, c := range f.Components {
				if c.Bits == 0 || c.Bits > 32 {
					return nil, fmt.Errorf("messages[%d].fields[%d].components[%d]: bits out of range", i, j, k)
				}
				if c.Scale == 0 {
					f.Components[k].Scale = 1
				}
			}
			if _, exists := entry.fields[f.Number]; exists {
				return nil, fmt.Errorf("messages[%d].fields[%d]: duplicate field number %d", i, j, f.Number)
			}
			entry.fields[f.Number] = f
		}
		store.messages[msg.Number] = entry
	}
	return store, nil
}

// MessageName resolves a global message number to its profile name.
func (s *Store) MessageName(global uint16) (string, bool) {
	if s == nil {
		return "", false
	}
	entry, ok := s.messages[global]
	if !ok {
		return "", false
	}
	return entry.name, true
}

// Field resolves a (message, field) pair to its schema.
func (s *Store) Field(global uint16, field uint8) (FieldSchema, bool) {
	if s == nil {
		return FieldSchema{}, false
	}
	entry, ok := s.messages[global]
	if !ok {
		return FieldSchema{}, false
	}
	schema, ok := entry.fields[field]
	return schema, ok
}

// Messages returns the number of message entries in the store.
func (s *Store) Messages() int {
	if s == nil {
		return 0
	}
	return len(s.messages)
}

// IsEmpty reports whether the store holds no entries.
func (s *Store) IsEmpty() bool {
	return s.Messages() == 0
}

// Merge overlays other on top of s and returns the combined store. Message
// entries in other replace whole-message entries in s; neither input is
// modified.
func (s *Store) Merge(other *Store) *Store {
	if other == nil || other.IsEmpty() {
		return s
	}
	if s == nil || s.IsEmpty() {
		return other
	}
	out := &Store{messages: make(map[uint16]*messageEntry, len(s.messages)+len(other.messages))}
	for num, entry := range s.messages {
		out.messages[num] = entry
	}
	for num, entry := range other.messages {
		out.messages[num] = entry
	}
	return out
}
