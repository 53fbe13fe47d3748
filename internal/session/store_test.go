package session

import (
	"io"
	"log"
	"testing"

	"chartkit/internal/chart"
	"chartkit/internal/kvstore"
	"chartkit/internal/transpose"
)

// newTestStore returns a store over fresh in-memory storage.
func newTestStore(t *testing.T) (*Store, *kvstore.Memory) {
	t.Helper()
	kv := kvstore.NewMemory()
	return New(kv, log.New(io.Discard, "", 0)), kv
}

// fourBarChart builds a single-section chart with four measures.
func fourBarChart() *chart.Chart {
	sec := chart.Section{Name: "A"}
	for i := 0; i < 4; i++ {
		sec.Measures = append(sec.Measures, chart.EmptyMeasure())
	}
	return &chart.Chart{
		SchemaVersion: chart.SchemaVersion,
		Title:         "Four Bars",
		Sections:      []chart.Section{sec},
	}
}

func TestNew_EmptyStorageLoadsDemoChart(t *testing.T) {
	s, _ := newTestStore(t)
	c := s.Chart()
	if c.Title != "Untitled" {
		t.Errorf("Title = %q, want Untitled", c.Title)
	}
	if len(c.Sections) != 1 || c.Sections[0].Name != "A" {
		t.Fatalf("unexpected sections: %+v", c.Sections)
	}
	if len(c.Sections[0].Measures) != 1 {
		t.Errorf("demo chart has %d measures, want 1", len(c.Sections[0].Measures))
	}
}

func TestNew_EmptyStorageLoadsDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	if s.Tempo() != DefaultTempo {
		t.Errorf("Tempo = %d, want %d", s.Tempo(), DefaultTempo)
	}
	if s.MasterVolume() != DefaultMasterVolume {
		t.Errorf("MasterVolume = %g, want %g", s.MasterVolume(), DefaultMasterVolume)
	}
	if s.WaveShape() != DefaultWaveShape {
		t.Errorf("WaveShape = %q, want %q", s.WaveShape(), DefaultWaveShape)
	}
	if !s.ShowSecondary() {
		t.Error("ShowSecondary = false, want default true")
	}
	if s.MetronomeOn() {
		t.Error("MetronomeOn = true, want default false")
	}
	if s.Instrument() != transpose.InstrumentC {
		t.Errorf("Instrument = %s, want C", s.Instrument())
	}
}

func TestNew_CorruptStorageFallsBack(t *testing.T) {
	kv := kvstore.NewMemory()
	_ = kv.Put("session.tempo", []byte("not a number"))
	_ = kv.Put("session.chart", []byte("{broken"))
	_ = kv.Put("session.instrument", []byte(`"X"`))

	s := New(kv, log.New(io.Discard, "", 0))
	if s.Tempo() != DefaultTempo {
		t.Errorf("Tempo = %d, want default after corruption", s.Tempo())
	}
	if s.Chart().Title != "Untitled" {
		t.Errorf("Chart = %q, want demo after corruption", s.Chart().Title)
	}
	if s.Instrument() != transpose.InstrumentC {
		t.Errorf("Instrument = %s, want C after corruption", s.Instrument())
	}
}

func TestPrefs_PersistAcrossStores(t *testing.T) {
	s, kv := newTestStore(t)
	s.SetTempo(88)
	s.SetTheme("dark")
	s.SetMetronome(true)
	s.ToggleSecondary()

	reloaded := New(kv, log.New(io.Discard, "", 0))
	if reloaded.Tempo() != 88 {
		t.Errorf("Tempo = %d, want 88", reloaded.Tempo())
	}
	if reloaded.Theme() != "dark" {
		t.Errorf("Theme = %q, want dark", reloaded.Theme())
	}
	if !reloaded.MetronomeOn() {
		t.Error("MetronomeOn = false, want true")
	}
	if reloaded.ShowSecondary() {
		t.Error("ShowSecondary = true, want toggled off")
	}
}

func TestSetChart_PersistsAndNotifies(t *testing.T) {
	s, kv := newTestStore(t)
	fired := 0
	defer s.Subscribe(func() { fired++ })()

	s.SetChart(fourBarChart())
	if fired != 1 {
		t.Errorf("listener fired %d times, want 1", fired)
	}
	if _, ok := kv.Get(ChartKey); !ok {
		t.Error("chart blob not persisted")
	}

	reloaded := New(kv, log.New(io.Discard, "", 0))
	if reloaded.Chart().Title != "Four Bars" {
		t.Errorf("reloaded chart = %q, want Four Bars", reloaded.Chart().Title)
	}
}

func TestSubscribe_RegistrationOrderAndUnsubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	var order []string
	unsubA := s.Subscribe(func() { order = append(order, "a") })
	defer s.Subscribe(func() { order = append(order, "b") })()

	s.SetChart(fourBarChart())
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}

	unsubA()
	order = nil
	s.SetChart(fourBarChart())
	if len(order) != 1 || order[0] != "b" {
		t.Errorf("after unsubscribe order = %v, want [b]", order)
	}
}

func TestImportExport_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())

	data, err := s.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON() failed: %v", err)
	}

	s2, _ := newTestStore(t)
	if err := s2.ImportJSON(data); err != nil {
		t.Fatalf("ImportJSON() failed: %v", err)
	}
	if s2.Chart().Title != "Four Bars" {
		t.Errorf("imported chart = %q, want Four Bars", s2.Chart().Title)
	}
}

func TestImportJSON_RejectsInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.Chart().Title
	if err := s.ImportJSON([]byte(`{"schemaVersion": 99}`)); err == nil {
		t.Fatal("ImportJSON accepted newer schema")
	}
	if s.Chart().Title != before {
		t.Error("failed import replaced the live chart")
	}
}

func TestSelection_Lifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	if _, _, ok := s.Selection(); ok {
		t.Error("fresh store has a selection")
	}

	s.SelectMeasure(0, 0)
	si, mi, ok := s.Selection()
	if !ok || si != 0 || mi != 0 {
		t.Errorf("Selection = (%d,%d,%v), want (0,0,true)", si, mi, ok)
	}

	s.ClearSelection()
	if _, _, ok := s.Selection(); ok {
		t.Error("selection survived ClearSelection")
	}

	// Negative indices clear rather than select.
	s.SelectMeasure(-1, 2)
	if _, _, ok := s.Selection(); ok {
		t.Error("negative section index produced a selection")
	}
}

func TestSetChord_RequiresSelection(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())
	if s.SetChord(0, "C") {
		t.Error("SetChord succeeded without a selection")
	}

	s.SelectMeasure(0, 1)
	if !s.SetChord(2, "G7") {
		t.Fatal("SetChord failed with a valid selection")
	}
	if got := s.Chart().Sections[0].Measures[1].Beats[2].Chord; got != "G7" {
		t.Errorf("chord = %q, want G7", got)
	}

	if s.SetChord(4, "C") {
		t.Error("SetChord accepted out-of-range beat")
	}
	if s.SetChord(-1, "C") {
		t.Error("SetChord accepted negative beat")
	}
}

func TestSetChord_OutOfRangeSelection(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())
	s.SelectMeasure(0, 99)
	if s.SetChord(0, "C") {
		t.Error("SetChord succeeded on out-of-range measure")
	}
}

func TestSetSecondary(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())
	s.SelectMeasure(0, 0)
	if !s.SetSecondary(1, "Em") {
		t.Fatal("SetSecondary failed")
	}
	if got := s.Chart().Sections[0].Measures[0].Beats[1].Secondary; got != "Em" {
		t.Errorf("secondary = %q, want Em", got)
	}
}

func TestSetMarker_SetAndClear(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())
	s.SelectMeasure(0, 0)

	if !s.SetMarker(chart.MarkerSegno) {
		t.Fatal("SetMarker(Segno) failed")
	}
	if got := s.Chart().Sections[0].Measures[0].Markers; len(got) != 1 || got[0] != chart.MarkerSegno {
		t.Errorf("markers = %v, want [Segno]", got)
	}

	if !s.SetMarker("") {
		t.Fatal("SetMarker(clear) failed")
	}
	if got := s.Chart().Sections[0].Measures[0].Markers; got != nil {
		t.Errorf("markers = %v, want nil after clear", got)
	}
}

func TestSetMarker_ViolationEmitsMessage(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())

	s.SelectMeasure(0, 0)
	if !s.SetMarker(chart.MarkerSegno) {
		t.Fatal("first Segno failed")
	}

	var msgs []string
	defer s.OnMessage(func(m string) { msgs = append(msgs, m) })()

	s.SelectMeasure(0, 1)
	if s.SetMarker(chart.MarkerSegno) {
		t.Fatal("second Segno allowed")
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if got := s.Chart().Sections[0].Measures[1].Markers; got != nil {
		t.Error("violating marker was written anyway")
	}
}

func TestSetMarker_ReplaceOwnMarker(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())
	s.SelectMeasure(0, 0)
	if !s.SetMarker(chart.MarkerCoda) {
		t.Fatal("SetMarker(Coda) failed")
	}
	// Replacing a measure's marker with itself is always allowed.
	if !s.SetMarker(chart.MarkerCoda) {
		t.Error("re-assigning own marker rejected")
	}
}

func TestSetMarker_PanickingListenerContained(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())
	s.SelectMeasure(0, 0)
	_ = s.SetMarker(chart.MarkerSegno)

	defer s.OnMessage(func(string) { panic("listener bug") })()
	heard := false
	defer s.OnMessage(func(string) { heard = true })()

	s.SelectMeasure(0, 1)
	if s.SetMarker(chart.MarkerSegno) {
		t.Fatal("second Segno allowed")
	}
	if !heard {
		t.Error("panicking listener stopped delivery to later listeners")
	}
}

func TestSetVolta_AssignsAndReplaces(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())

	if !s.SetVolta(0, 1, 0, 1) {
		t.Fatal("SetVolta failed")
	}
	if v := s.Chart().Sections[0].Measures[0].Volta; v == nil || v.To != 1 {
		t.Fatalf("volta = %+v, want span 0-1", v)
	}

	// Same number again moves the bracket.
	if !s.SetVolta(0, 1, 2, 3) {
		t.Fatal("second SetVolta failed")
	}
	if v := s.Chart().Sections[0].Measures[0].Volta; v != nil {
		t.Error("old volta not cleared")
	}
	if v := s.Chart().Sections[0].Measures[2].Volta; v == nil || v.From != 2 || v.To != 3 {
		t.Errorf("volta = %+v, want span 2-3", v)
	}

	// Number 2 coexists with number 1.
	if !s.SetVolta(0, 2, 0, 0) {
		t.Fatal("SetVolta(2) failed")
	}
	if s.Chart().Sections[0].Measures[2].Volta == nil {
		t.Error("volta 1 removed when assigning volta 2")
	}
}

func TestSetVolta_InvalidRangeKeepsClear(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())
	_ = s.SetVolta(0, 1, 0, 1)

	// Out-of-range target clears the existing bracket and assigns nothing.
	if s.SetVolta(0, 1, 2, 99) {
		t.Fatal("SetVolta assigned an out-of-range bracket")
	}
	for i, m := range s.Chart().Sections[0].Measures {
		if m.Volta != nil {
			t.Errorf("measure %d still carries a volta", i)
		}
	}
}

func TestSetVolta_InvalidInputs(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetChart(fourBarChart())
	if s.SetVolta(5, 1, 0, 1) {
		t.Error("SetVolta accepted bad section")
	}
	if s.SetVolta(0, 3, 0, 1) {
		t.Error("SetVolta accepted volta number 3")
	}
}

func TestTranspose_TracksManualOffset(t *testing.T) {
	s, _ := newTestStore(t)
	c := fourBarChart()
	c.Sections[0].Measures[0].Beats[0].Chord = "C"
	s.SetChart(c)

	s.Transpose(2, true)
	if got := s.Chart().Sections[0].Measures[0].Beats[0].Chord; got != "D" {
		t.Errorf("chord = %q, want D", got)
	}
	if s.ManualTranspose() != 2 {
		t.Errorf("ManualTranspose = %d, want 2", s.ManualTranspose())
	}

	s.Transpose(3, true)
	if s.ManualTranspose() != 5 {
		t.Errorf("ManualTranspose = %d, want 5", s.ManualTranspose())
	}
}

func TestSetInstrument_Invertible(t *testing.T) {
	s, _ := newTestStore(t)
	c := fourBarChart()
	c.Sections[0].Measures[0].Beats[0].Chord = "C"
	c.Sections[0].Measures[1].Beats[2].Chord = "F7"
	s.SetChart(c)

	if !s.SetInstrument(transpose.InstrumentBb, true) {
		t.Fatal("SetInstrument(Bb) failed")
	}
	if got := s.Chart().Sections[0].Measures[0].Beats[0].Chord; got != "D" {
		t.Errorf("chord in Bb view = %q, want D", got)
	}
	if s.ManualTranspose() != 0 {
		t.Errorf("instrument change tracked as manual: %d", s.ManualTranspose())
	}

	if !s.SetInstrument(transpose.InstrumentC, true) {
		t.Fatal("SetInstrument(C) failed")
	}
	if got := s.Chart().Sections[0].Measures[0].Beats[0].Chord; got != "C" {
		t.Errorf("chord back in C view = %q, want C", got)
	}
	if got := s.Chart().Sections[0].Measures[1].Beats[2].Chord; got != "F7" {
		t.Errorf("chord back in C view = %q, want F7", got)
	}
}

func TestSetInstrument_BetweenViews(t *testing.T) {
	s, _ := newTestStore(t)
	c := fourBarChart()
	c.Sections[0].Measures[0].Beats[0].Chord = "C"
	s.SetChart(c)

	// Bb (offset 2) to Eb (offset 9) is a delta of +7.
	_ = s.SetInstrument(transpose.InstrumentBb, true)
	_ = s.SetInstrument(transpose.InstrumentEb, true)
	if got := s.Chart().Sections[0].Measures[0].Beats[0].Chord; got != "A" {
		t.Errorf("chord in Eb view = %q, want A", got)
	}
}

func TestResetTranspose_OnlyUndoesManual(t *testing.T) {
	s, _ := newTestStore(t)
	c := fourBarChart()
	c.Sections[0].Measures[0].Beats[0].Chord = "C"
	s.SetChart(c)

	s.Transpose(1, true)
	_ = s.SetInstrument(transpose.InstrumentEb, true)

	s.ResetTranspose()
	if s.ManualTranspose() != 0 {
		t.Errorf("ManualTranspose = %d, want 0", s.ManualTranspose())
	}
	// Only the instrument offset (+9) should remain: C +9 = A.
	if got := s.Chart().Sections[0].Measures[0].Beats[0].Chord; got != "A" {
		t.Errorf("chord = %q, want A (instrument view only)", got)
	}
}

func TestResetTranspose_NoOpWhenZero(t *testing.T) {
	s, _ := newTestStore(t)
	c := fourBarChart()
	c.Sections[0].Measures[0].Beats[0].Chord = "G"
	s.SetChart(c)

	fired := 0
	defer s.Subscribe(func() { fired++ })()
	s.ResetTranspose()
	if fired != 0 {
		t.Error("ResetTranspose committed with a zero counter")
	}
	if got := s.Chart().Sections[0].Measures[0].Beats[0].Chord; got != "G" {
		t.Errorf("chord = %q, want untouched G", got)
	}
}

func TestManualTranspose_PersistsAcrossStores(t *testing.T) {
	s, kv := newTestStore(t)
	s.SetChart(fourBarChart())
	s.Transpose(4, true)
	_ = s.SetInstrument(transpose.InstrumentF, true)

	reloaded := New(kv, log.New(io.Discard, "", 0))
	if reloaded.ManualTranspose() != 4 {
		t.Errorf("ManualTranspose = %d, want 4", reloaded.ManualTranspose())
	}
	if reloaded.Instrument() != transpose.InstrumentF {
		t.Errorf("Instrument = %s, want F", reloaded.Instrument())
	}
}
