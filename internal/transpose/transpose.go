// Package transpose maps chord symbols across the 12-tone circle.
//
// Both functions are total: they never fail and always return a string.
// Unrecognized input passes through unchanged, a deliberately permissive
// policy since chord text may contain non-root noise.
package transpose

import "regexp"

var sharpNotes = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
var flatNotes = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

var rootRe = regexp.MustCompile(`^([A-G](?:#|b)?)(.*)$`)

// Note maps a note name (sharp or flat spelling accepted) up or down by the
// given number of semitones, returning the sharp-table or flat-table spelling
// per preferSharps. Unrecognized notes are returned unchanged.
func Note(note string, semitones int, preferSharps bool) string {
	idx := -1
	for i := 0; i < 12; i++ {
		if sharpNotes[i] == note || flatNotes[i] == note {
			idx = i
			break
		}
	}
	if idx == -1 {
		return note
	}
	newIdx := ((idx+semitones)%12 + 12) % 12
	if preferSharps {
		return sharpNotes[newIdx]
	}
	return flatNotes[newIdx]
}

// Chord splits the leading root from the quality suffix, transposes only the
// root and reattaches the suffix unchanged. Input without a valid root is
// returned unchanged.
func Chord(chord string, semitones int, preferSharps bool) string {
	m := rootRe.FindStringSubmatch(chord)
	if m == nil {
		return chord
	}
	return Note(m[1], semitones, preferSharps) + m[2]
}
