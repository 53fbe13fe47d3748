package transpose

import "fmt"

// Instrument identifies a written-pitch convention for transposing
// instruments. The offset is the number of semitones added to concert pitch
// when rendering for that instrument.
type Instrument string

const (
	// InstrumentC is concert pitch (piano, guitar, flute).
	InstrumentC Instrument = "C"
	// InstrumentBb covers Bb instruments (trumpet, tenor sax, clarinet).
	InstrumentBb Instrument = "Bb"
	// InstrumentEb covers Eb instruments (alto and baritone sax).
	InstrumentEb Instrument = "Eb"
	// InstrumentF covers F instruments (french horn, english horn).
	InstrumentF Instrument = "F"
)

// Instruments lists the supported instrument views.
var Instruments = []Instrument{InstrumentC, InstrumentBb, InstrumentEb, InstrumentF}

var instrumentOffsets = map[Instrument]int{
	InstrumentC:  0,
	InstrumentBb: 2,
	InstrumentEb: 9,
	InstrumentF:  7,
}

// Offset returns the instrument's fixed transposition constant in semitones.
func (i Instrument) Offset() (int, bool) {
	off, ok := instrumentOffsets[i]
	return off, ok
}

// ParseInstrument validates an instrument name.
func ParseInstrument(s string) (Instrument, error) {
	i := Instrument(s)
	if _, ok := instrumentOffsets[i]; !ok {
		return "", fmt.Errorf("unknown instrument %q (want C, Bb, Eb or F)", s)
	}
	return i, nil
}
