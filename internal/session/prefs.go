package session

import (
	"encoding/json"

	"chartkit/internal/chart"
)

// Every scalar preference setter follows one pattern: mutate the in-memory
// field, persist that single field under its own key, notify listeners.

func (s *Store) loadChart() *chart.Chart {
	if raw, ok := s.kv.Get(keyChart); ok {
		if c, err := chart.Decode(raw); err == nil {
			return c
		}
		s.logger.Printf("ignoring corrupt stored chart, loading demo chart")
	}
	return DemoChart()
}

func (s *Store) loadInt(key string, def int) int {
	raw, ok := s.kv.Get(key)
	if !ok {
		return def
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

func (s *Store) loadFloat(key string, def float64) float64 {
	raw, ok := s.kv.Get(key)
	if !ok {
		return def
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

func (s *Store) loadBool(key string, def bool) bool {
	raw, ok := s.kv.Get(key)
	if !ok {
		return def
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

func (s *Store) loadString(key string, def string) string {
	raw, ok := s.kv.Get(key)
	if !ok {
		return def
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

// persistField writes one preference value under its own key. Storage
// failures are logged, never raised.
func (s *Store) persistField(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("failed to marshal %s: %v", key, err)
		return
	}
	if err := s.kv.Put(key, data); err != nil {
		s.logger.Printf("failed to persist %s: %v", key, err)
	}
}

func (s *Store) setScalar(key string, v any) {
	s.persistField(key, v)
	s.notify()
}

// Tempo returns the playback tempo in BPM.
func (s *Store) Tempo() int { return s.tempo }

// SetTempo sets the playback tempo in BPM.
func (s *Store) SetTempo(bpm int) {
	s.tempo = bpm
	s.setScalar(keyTempo, bpm)
}

// MasterVolume returns the master playback volume in [0, 1].
func (s *Store) MasterVolume() float64 { return s.masterVolume }

// SetMasterVolume sets the master playback volume.
func (s *Store) SetMasterVolume(v float64) {
	s.masterVolume = v
	s.setScalar(keyMasterVolume, v)
}

// ChordVolume returns the chord playback volume in [0, 1].
func (s *Store) ChordVolume() float64 { return s.chordVolume }

// SetChordVolume sets the chord playback volume.
func (s *Store) SetChordVolume(v float64) {
	s.chordVolume = v
	s.setScalar(keyChordVolume, v)
}

// MetronomeVolume returns the metronome volume in [0, 1].
func (s *Store) MetronomeVolume() float64 { return s.metronomeVolume }

// SetMetronomeVolume sets the metronome volume.
func (s *Store) SetMetronomeVolume(v float64) {
	s.metronomeVolume = v
	s.setScalar(keyMetronomeVolume, v)
}

// WaveShape returns the synthesis wave shape.
func (s *Store) WaveShape() string { return s.waveShape }

// SetWaveShape sets the synthesis wave shape.
func (s *Store) SetWaveShape(shape string) {
	s.waveShape = shape
	s.setScalar(keyWaveShape, shape)
}

// MetronomeOn reports whether the metronome is enabled.
func (s *Store) MetronomeOn() bool { return s.metronomeOn }

// SetMetronome toggles the metronome.
func (s *Store) SetMetronome(on bool) {
	s.metronomeOn = on
	s.setScalar(keyMetronomeOn, on)
}

// Theme returns the display theme name.
func (s *Store) Theme() string { return s.theme }

// SetTheme sets the display theme name.
func (s *Store) SetTheme(theme string) {
	s.theme = theme
	s.setScalar(keyTheme, theme)
}

// FontSize returns the display font size.
func (s *Store) FontSize() int { return s.fontSize }

// SetFontSize sets the display font size.
func (s *Store) SetFontSize(size int) {
	s.fontSize = size
	s.setScalar(keyFontSize, size)
}

// ShowSecondary reports whether the secondary harmony line is displayed.
func (s *Store) ShowSecondary() bool { return s.showSecondary }

// ToggleSecondary flips the secondary harmony line display.
func (s *Store) ToggleSecondary() {
	s.showSecondary = !s.showSecondary
	s.setScalar(keyShowSecondary, s.showSecondary)
}
