package chart

// Marker is a navigation or repeat symbol attached to a measure.
type Marker string

// The closed set of valid markers.
const (
	MarkerRepeatBar   Marker = "%"
	MarkerRepeatStart Marker = "||:"
	MarkerRepeatEnd   Marker = ":||"
	MarkerSegno       Marker = "Segno"
	MarkerCoda        Marker = "Coda"
	MarkerFine        Marker = "Fine"
	MarkerDC          Marker = "D.C."
	MarkerDS          Marker = "D.S."
	MarkerToCoda      Marker = "To Coda"
)

// Markers lists every valid marker in display order.
var Markers = []Marker{
	MarkerRepeatBar,
	MarkerRepeatStart,
	MarkerRepeatEnd,
	MarkerSegno,
	MarkerCoda,
	MarkerFine,
	MarkerDC,
	MarkerDS,
	MarkerToCoda,
}

// IsValid reports whether m belongs to the closed marker set.
func (m Marker) IsValid() bool {
	for _, known := range Markers {
		if m == known {
			return true
		}
	}
	return false
}

// CheckMarker validates assigning marker m to the measure at
// (section, measure) against the chart-wide marker rules:
//
//   - at most one Segno, Coda, Fine, D.C., D.S. and To Coda per chart
//   - Fine requires an existing D.C. or D.S.
//   - D.S. requires an existing Segno
//   - To Coda requires an existing Coda
//
// The selected measure's own markers are excluded from the scan, so replacing
// a measure's marker with itself is always allowed. Returns ok plus a
// user-facing message describing the violated rule.
//
// The rules are deliberately chart-global, not section-scoped: a chart models
// one complete song with a single Segno/Coda/Fine.
func CheckMarker(c *Chart, m Marker, section, measure int) (bool, string) {
	var present []Marker
	for si := range c.Sections {
		for mi := range c.Sections[si].Measures {
			if si == section && mi == measure {
				continue
			}
			present = append(present, c.Sections[si].Measures[mi].Markers...)
		}
	}
	has := func(want Marker) bool {
		for _, got := range present {
			if got == want {
				return true
			}
		}
		return false
	}
	switch m {
	case MarkerSegno:
		if has(MarkerSegno) {
			return false, "There can only be one Segno."
		}
	case MarkerCoda:
		if has(MarkerCoda) {
			return false, "There can only be one Coda."
		}
	case MarkerFine:
		if has(MarkerFine) {
			return false, "There can only be one Fine."
		}
		if !has(MarkerDC) && !has(MarkerDS) {
			return false, "Fine requires a D.C. or D.S."
		}
	case MarkerDS:
		if has(MarkerDS) {
			return false, "There can only be one D.S."
		}
		if !has(MarkerSegno) {
			return false, "D.S. requires a Segno."
		}
	case MarkerToCoda:
		if has(MarkerToCoda) {
			return false, "There can only be one To Coda."
		}
		if !has(MarkerCoda) {
			return false, "To Coda requires a Coda."
		}
	case MarkerDC:
		if has(MarkerDC) {
			return false, "There can only be one D.C."
		}
	}
	return true, ""
}
