package workout

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrNoSegments = errors.New("workout has no segments")

// LoadFile reads a workout definition from a YAML file.
func LoadFile(path string) (Workout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workout{}, fmt.Errorf("reading workout file: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return Workout{}, fmt.Errorf("workout file %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes a YAML workout definition. Missing segment ids are filled in
// from the position; negative durations are kept and read back as 0.
func Parse(data []byte) (Workout, error) {
	var w Workout
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Workout{}, fmt.Errorf("parsing workout: %w", err)
	}
	if len(w.Segments) == 0 {
		return Workout{}, ErrNoSegments
	}

	seen := make(map[string]bool, len(w.Segments))
	for i := range w.Segments {
		s := &w.Segments[i]
		if !s.Kind.Valid() {
			return Workout{}, fmt.Errorf("segment %d: unknown kind %q", i+1, s.Kind)
		}
		if s.ID == "" {
			s.ID = fmt.Sprintf("seg-%d", i+1)
		}
		if seen[s.ID] {
			return Workout{}, fmt.Errorf("segment %d: duplicate id %q", i+1, s.ID)
		}
		seen[s.ID] = true
		for metric, target := range s.Targets {
			if err := target.ValidateFor(metric); err != nil {
				return Workout{}, fmt.Errorf("segment %q target %s: %w", s.ID, metric, err)
			}
		}
	}
	if w.Name == "" {
		w.Name = "Custom workout"
	}
	return w, nil
}
