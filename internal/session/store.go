// Package session holds the single live chart being edited plus the user's
// playback and display preferences.
//
// The store is the only component allowed to mutate the live chart. Every
// mutation flows through one commit path that persists the chart to scalar
// storage and then notifies subscribers synchronously, in registration order,
// before the mutating call returns. Listeners therefore always observe a
// just-persisted state.
//
// The store follows the single-threaded cooperative model of the editing
// surface: it is not safe for concurrent use and expects all calls from one
// goroutine.
package session

import (
	"encoding/json"
	"log"
	"os"

	"chartkit/internal/chart"
	"chartkit/internal/kvstore"
	"chartkit/internal/transpose"
)

// Storage keys. One key per scalar preference plus one for the live chart.
const (
	keyChart           = "session.chart"
	keyShowSecondary   = "session.showSecondary"
	keyTempo           = "session.tempo"
	keyMasterVolume    = "session.masterVolume"
	keyChordVolume     = "session.chordVolume"
	keyMetronomeVolume = "session.metronomeVolume"
	keyWaveShape       = "session.waveShape"
	keyMetronomeOn     = "session.metronomeOn"
	keyTheme           = "session.theme"
	keyFontSize        = "session.fontSize"
	keyInstrument      = "session.instrument"
	keyManualTranspose = "session.manualTranspose"
)

// ChartKey is the storage key holding the live chart blob. The daemon watches
// the file behind this key to pick up edits from other processes.
const ChartKey = keyChart

// Defaults used when storage is absent or unparsable. Corrupt storage never
// fails a load; it degrades to these.
const (
	DefaultTempo           = 120
	DefaultMasterVolume    = 1.0
	DefaultChordVolume     = 0.8
	DefaultMetronomeVolume = 0.5
	DefaultWaveShape       = "sine"
	DefaultTheme           = "light"
	DefaultFontSize        = 16
	DefaultShowSecondary   = true
)

// DemoChart is the chart loaded when session storage holds none: an untitled
// single-section sheet with one empty measure.
func DemoChart() *chart.Chart {
	return &chart.Chart{
		SchemaVersion: chart.SchemaVersion,
		Title:         "Untitled",
		Sections: []chart.Section{
			{Name: "A", Measures: []chart.Measure{chart.EmptyMeasure()}},
		},
	}
}

// Listener observes committed changes.
type Listener func()

// MessageListener receives user-facing validation messages.
type MessageListener func(msg string)

type listenerEntry struct{ fn Listener }

type msgListenerEntry struct{ fn MessageListener }

// Store is the session store.
type Store struct {
	kv     kvstore.Store
	logger *log.Logger

	chart           *chart.Chart
	selectedSection int
	selectedMeasure int

	showSecondary   bool
	tempo           int
	masterVolume    float64
	chordVolume     float64
	metronomeVolume float64
	waveShape       string
	metronomeOn     bool
	theme           string
	fontSize        int
	instrument      transpose.Instrument
	manualTranspose int

	listeners    []*listenerEntry
	msgListeners []*msgListenerEntry
}

// New creates a session store backed by kv, loading the live chart and every
// preference with silent fallback to defaults. If logger is nil, a default
// logger writing to stderr is used.
func New(kv kvstore.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	s := &Store{
		kv:              kv,
		logger:          logger,
		selectedSection: -1,
		selectedMeasure: -1,
	}
	s.chart = s.loadChart()
	s.showSecondary = s.loadBool(keyShowSecondary, DefaultShowSecondary)
	s.tempo = s.loadInt(keyTempo, DefaultTempo)
	s.masterVolume = s.loadFloat(keyMasterVolume, DefaultMasterVolume)
	s.chordVolume = s.loadFloat(keyChordVolume, DefaultChordVolume)
	s.metronomeVolume = s.loadFloat(keyMetronomeVolume, DefaultMetronomeVolume)
	s.waveShape = s.loadString(keyWaveShape, DefaultWaveShape)
	s.metronomeOn = s.loadBool(keyMetronomeOn, false)
	s.theme = s.loadString(keyTheme, DefaultTheme)
	s.fontSize = s.loadInt(keyFontSize, DefaultFontSize)
	s.manualTranspose = s.loadInt(keyManualTranspose, 0)
	s.instrument = transpose.InstrumentC
	if inst, err := transpose.ParseInstrument(s.loadString(keyInstrument, string(transpose.InstrumentC))); err == nil {
		s.instrument = inst
	}
	return s
}

// Chart returns the live chart. The store owns it exclusively: callers must
// mutate it only through store methods, or subscribers will observe stale
// state. Use Chart().Clone() for any copy handed across a component boundary.
func (s *Store) Chart() *chart.Chart {
	return s.chart
}

// Subscribe registers a change listener and returns its unsubscribe function.
// Listeners fire synchronously after every committed change, in registration
// order.
func (s *Store) Subscribe(l Listener) func() {
	e := &listenerEntry{fn: l}
	s.listeners = append(s.listeners, e)
	return func() {
		for i, cur := range s.listeners {
			if cur == e {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnMessage registers a listener for user-facing validation messages and
// returns its unsubscribe function. This is a separate channel from Subscribe,
// used only for validation failures.
func (s *Store) OnMessage(l MessageListener) func() {
	e := &msgListenerEntry{fn: l}
	s.msgListeners = append(s.msgListeners, e)
	return func() {
		for i, cur := range s.msgListeners {
			if cur == e {
				s.msgListeners = append(s.msgListeners[:i], s.msgListeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify() {
	for _, e := range s.listeners {
		e.fn()
	}
}

// message delivers a validation message. Delivery never fails and never
// blocks the caller: with no listeners registered it falls back to the log,
// and a panicking listener is contained.
func (s *Store) message(msg string) {
	if len(s.msgListeners) == 0 {
		s.logger.Printf("message: %s", msg)
		return
	}
	for _, e := range s.msgListeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Printf("message listener panicked: %v", r)
				}
			}()
			e.fn(msg)
		}()
	}
}

// persistChart writes the live chart blob. Persistence failures are logged,
// never raised: the in-memory state stays authoritative for the session.
func (s *Store) persistChart() {
	data, err := json.Marshal(s.chart)
	if err != nil {
		s.logger.Printf("failed to marshal chart: %v", err)
		return
	}
	if err := s.kv.Put(keyChart, data); err != nil {
		s.logger.Printf("failed to persist chart: %v", err)
	}
}

// commit is the single persistence choke point for chart mutations: persist,
// then notify, synchronously.
func (s *Store) commit() {
	s.persistChart()
	s.notify()
}

// SetChart replaces the live chart wholesale. The store takes ownership of c.
func (s *Store) SetChart(c *chart.Chart) {
	s.chart = c
	s.commit()
}

// ExportJSON serializes the live chart in the portable indented format.
func (s *Store) ExportJSON() ([]byte, error) {
	return s.chart.Encode()
}

// ImportJSON replaces the live chart from portable chart JSON.
func (s *Store) ImportJSON(data []byte) error {
	c, err := chart.Decode(data)
	if err != nil {
		return err
	}
	s.SetChart(c)
	return nil
}

// Selection returns the current measure selection cursor.
func (s *Store) Selection() (section, measure int, ok bool) {
	if s.selectedSection < 0 || s.selectedMeasure < 0 {
		return 0, 0, false
	}
	return s.selectedSection, s.selectedMeasure, true
}

// SelectMeasure sets the selection cursor and notifies listeners. A negative
// index clears the selection. No validation against chart bounds happens
// here; operations that read the selection validate it instead.
func (s *Store) SelectMeasure(section, measure int) {
	if section < 0 || measure < 0 {
		section, measure = -1, -1
	}
	s.selectedSection = section
	s.selectedMeasure = measure
	s.notify()
}

// ClearSelection clears the selection cursor and notifies listeners.
func (s *Store) ClearSelection() {
	s.SelectMeasure(-1, -1)
}

// UpdateSelectedMeasure applies fn to the currently selected measure and
// commits. It is the choke point for measure edits: the measure's beat slots
// are synthesized to the full four before fn runs. Returns false without
// mutating when nothing valid is selected.
func (s *Store) UpdateSelectedMeasure(fn func(*chart.Measure)) bool {
	si, mi, ok := s.Selection()
	if !ok {
		return false
	}
	m := s.chart.Measure(si, mi)
	if m == nil {
		return false
	}
	fn(m)
	s.commit()
	return true
}

// SetChord sets the chord at the given beat of the selected measure.
func (s *Store) SetChord(beat int, chord string) bool {
	if beat < 0 || beat >= chart.BeatsPerMeasure {
		return false
	}
	return s.UpdateSelectedMeasure(func(m *chart.Measure) {
		m.Beats[beat].Chord = chord
	})
}

// SetSecondary sets the secondary harmony at the given beat of the selected
// measure.
func (s *Store) SetSecondary(beat int, secondary string) bool {
	if beat < 0 || beat >= chart.BeatsPerMeasure {
		return false
	}
	return s.UpdateSelectedMeasure(func(m *chart.Measure) {
		m.Beats[beat].Secondary = secondary
	})
}

// SetMarker assigns marker m to the selected measure, or clears the measure's
// marker when m is empty. Requires an active selection. The chart-wide marker
// rules are checked first; on violation the chart is left untouched, a
// user-facing message is emitted and false is returned.
func (s *Store) SetMarker(m chart.Marker) bool {
	si, mi, ok := s.Selection()
	if !ok {
		return false
	}
	measure := s.chart.Measure(si, mi)
	if measure == nil {
		return false
	}
	if m != "" {
		if !m.IsValid() {
			return false
		}
		if ok, msg := chart.CheckMarker(s.chart, m, si, mi); !ok {
			s.message(msg)
			return false
		}
		measure.Markers = []chart.Marker{m}
	} else {
		measure.Markers = nil
	}
	s.commit()
	return true
}

// SetVolta clears any existing volta of the given number in the section, then
// assigns a new one spanning [from, to] when the range is valid. An invalid
// range silently keeps just the clear; that is a documented edge case, not an
// error. Returns whether a new volta was assigned.
func (s *Store) SetVolta(section, number, from, to int) bool {
	if section < 0 || section >= len(s.chart.Sections) {
		return false
	}
	if number != 1 && number != 2 {
		return false
	}
	sec := &s.chart.Sections[section]
	for i := range sec.Measures {
		if v := sec.Measures[i].Volta; v != nil && v.Number == number {
			sec.Measures[i].Volta = nil
		}
	}
	assigned := false
	if from >= 0 && from <= to && to < len(sec.Measures) {
		sec.Measures[from].Volta = &chart.Volta{Number: number, From: from, To: to}
		assigned = true
	}
	s.commit()
	return assigned
}

// applyTranspose maps every beat's chord and secondary across the chart, in
// chart order. When track is true the offset accumulates into the
// manual-transpose counter.
func (s *Store) applyTranspose(semitones int, preferSharps, track bool) {
	for si := range s.chart.Sections {
		sec := &s.chart.Sections[si]
		for mi := range sec.Measures {
			m := &sec.Measures[mi]
			for bi := range m.Beats {
				b := &m.Beats[bi]
				if b.Chord != "" {
					b.Chord = transpose.Chord(b.Chord, semitones, preferSharps)
				}
				if b.Secondary != "" {
					b.Secondary = transpose.Chord(b.Secondary, semitones, preferSharps)
				}
			}
		}
	}
	if track {
		s.manualTranspose += semitones
		s.persistField(keyManualTranspose, s.manualTranspose)
	}
	s.commit()
}

// Transpose shifts the whole chart by the given semitones and records the
// offset in the manual-transpose counter.
func (s *Store) Transpose(semitones int, preferSharps bool) {
	s.applyTranspose(semitones, preferSharps, true)
}

// ManualTranspose returns the accumulated manual offset, independent of the
// instrument view.
func (s *Store) ManualTranspose() int {
	return s.manualTranspose
}

// Instrument returns the active instrument view.
func (s *Store) Instrument() transpose.Instrument {
	return s.instrument
}

// SetInstrument switches the instrument view, transposing the chart by the
// delta between the new and current instrument offsets. Instrument-view
// changes do not count toward the manual-transpose counter, so ResetTranspose
// only undoes manual edits.
func (s *Store) SetInstrument(inst transpose.Instrument, preferSharps bool) bool {
	newOff, ok := inst.Offset()
	if !ok {
		return false
	}
	curOff, _ := s.instrument.Offset()
	s.instrument = inst
	s.persistField(keyInstrument, string(inst))
	s.applyTranspose(newOff-curOff, preferSharps, false)
	return true
}

// ResetTranspose undoes the accumulated manual transposition, leaving any
// instrument-view transposition applied. No-op when the counter is zero.
func (s *Store) ResetTranspose() {
	if s.manualTranspose == 0 {
		return
	}
	offset := s.manualTranspose
	s.manualTranspose = 0
	s.persistField(keyManualTranspose, 0)
	s.applyTranspose(-offset, true, false)
}
