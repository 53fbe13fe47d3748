package chart

import "fmt"

// TemplateNames lists the built-in chart templates in display order.
var TemplateNames = []string{"AABA", "Blues", "Rhythm Changes", "Intro-Tag-Out"}

func emptyMeasures(n int) []Measure {
	out := make([]Measure, n)
	for i := range out {
		out[i] = EmptyMeasure()
	}
	return out
}

func bluesSection() Section {
	chords := []string{
		"I7", "IV7", "I7", "I7",
		"IV7", "IV7", "I7", "I7",
		"V7", "IV7", "I7", "V7",
	}
	measures := emptyMeasures(len(chords))
	for i, c := range chords {
		measures[i].Beats[0].Chord = c
	}
	return Section{Name: "Blues", Measures: measures}
}

// Template returns a fresh chart built from the named template. The result is
// an independent copy: templates are never shared between callers.
func Template(name string) (*Chart, error) {
	c := &Chart{SchemaVersion: SchemaVersion}
	switch name {
	case "AABA", "Rhythm Changes":
		c.Sections = []Section{
			{Name: "A", Measures: emptyMeasures(8)},
			{Name: "A", Measures: emptyMeasures(8)},
			{Name: "B", Measures: emptyMeasures(8)},
			{Name: "A", Measures: emptyMeasures(8)},
		}
	case "Blues":
		c.Sections = []Section{bluesSection()}
	case "Intro-Tag-Out":
		c.Sections = []Section{
			{Name: "Intro", Measures: emptyMeasures(4)},
			{Name: "A", Measures: emptyMeasures(8)},
			{Name: "Tag", Measures: emptyMeasures(4)},
			{Name: "Out", Measures: emptyMeasures(4)},
		}
	default:
		return nil, fmt.Errorf("unknown template %q", name)
	}
	return c, nil
}
