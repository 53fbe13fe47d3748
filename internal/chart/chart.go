// Package chart provides the data structures for lead-sheet charts.
//
// A chart is the root aggregate: a titled, ordered list of sections, each
// holding an ordered list of 4-beat measures. Charts serialize to plain JSON
// and that JSON is the portable file format for export/import.
package chart

import (
	"encoding/json"
	"fmt"
	"os"
)

// SchemaVersion is the current chart schema version. Consumers loading
// persisted charts must compare this field before trusting the shape.
const SchemaVersion = 1

// BeatsPerMeasure is the fixed number of addressable beat slots per measure.
const BeatsPerMeasure = 4

// BeatSlot holds the harmony at one beat. Chord is a symbol with an A-G root
// optionally followed by # or b and an arbitrary quality suffix; the empty
// string means no chord at this beat.
type BeatSlot struct {
	Chord     string `json:"chord"`
	Secondary string `json:"secondary,omitempty"`
}

// Volta is a repeat-ending bracket spanning measures [From, To] within a
// section, numbered 1 or 2. At most one volta of each number per section.
type Volta struct {
	Number int `json:"number"`
	From   int `json:"from"`
	To     int `json:"to"`
}

// Measure is a fixed 4-beat harmonic unit. Missing beat slots are synthesized
// as empty on access and never fewer than 4 are persisted after a
// read-modify-write. A measure holds at most one marker.
type Measure struct {
	Beats   []BeatSlot `json:"beats"`
	Markers []Marker   `json:"markers,omitempty"`
	Volta   *Volta     `json:"volta,omitempty"`
	Notes   []string   `json:"notes,omitempty"`
}

// EnsureBeats pads the beat slice with empty slots so that exactly
// BeatsPerMeasure slots are addressable.
func (m *Measure) EnsureBeats() {
	for len(m.Beats) < BeatsPerMeasure {
		m.Beats = append(m.Beats, BeatSlot{})
	}
}

// Section is an ordered run of measures. Section order is musically
// meaningful (playback order).
type Section struct {
	Name     string    `json:"name"`
	Measures []Measure `json:"measures"`
}

// Chart is a full lead sheet.
type Chart struct {
	SchemaVersion int       `json:"schemaVersion"`
	Title         string    `json:"title"`
	Sections      []Section `json:"sections"`
}

// Empty returns the canonical empty chart.
func Empty() *Chart {
	return &Chart{
		SchemaVersion: SchemaVersion,
		Title:         "",
		Sections:      []Section{},
	}
}

// EmptyMeasure returns a measure with four empty beat slots.
func EmptyMeasure() Measure {
	return Measure{Beats: make([]BeatSlot, BeatsPerMeasure)}
}

// Clone returns a deep copy of the chart via a JSON round trip. Every
// cross-component handoff of a chart is a value copy made this way.
func (c *Chart) Clone() *Chart {
	data, err := json.Marshal(c)
	if err != nil {
		// Chart contains only plain JSON-representable fields.
		panic(fmt.Sprintf("chart: clone marshal: %v", err))
	}
	var out Chart
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("chart: clone unmarshal: %v", err))
	}
	return &out
}

// Measure returns the measure at the given section/measure indices, or nil
// when either index is out of range. The returned measure has its beat slots
// synthesized up to BeatsPerMeasure.
func (c *Chart) Measure(section, measure int) *Measure {
	if section < 0 || section >= len(c.Sections) {
		return nil
	}
	s := &c.Sections[section]
	if measure < 0 || measure >= len(s.Measures) {
		return nil
	}
	m := &s.Measures[measure]
	m.EnsureBeats()
	return m
}

// Decode parses chart JSON, checking the schema version before trusting the
// shape. Versions newer than SchemaVersion are rejected; older versions are
// accepted as-is (no migrations exist yet, but this is the seam for them).
func Decode(data []byte) (*Chart, error) {
	var probe struct {
		SchemaVersion int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse chart: %w", err)
	}
	if probe.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("unsupported chart schema version %d (current is %d)", probe.SchemaVersion, SchemaVersion)
	}
	var c Chart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse chart: %w", err)
	}
	return &c, nil
}

// Encode serializes the chart as indented JSON, the portable export format.
func (c *Chart) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chart: %w", err)
	}
	return data, nil
}

// ReadFile reads and decodes a chart JSON file.
func ReadFile(path string) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart file %s: %w", path, err)
	}
	c, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("invalid chart file %s: %w", path, err)
	}
	return c, nil
}

// WriteFile writes the chart to disk atomically via a temp file.
func (c *Chart) WriteFile(path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
