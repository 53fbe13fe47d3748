package main

import (
	"testing"

	"chartkit/internal/chart"
)

func TestCheckVoltaInput(t *testing.T) {
	c := &chart.Chart{
		SchemaVersion: chart.SchemaVersion,
		Sections: []chart.Section{
			{Name: "A", Measures: []chart.Measure{chart.EmptyMeasure()}},
		},
	}

	if err := checkVoltaInput(c, 0, 1); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}
	if err := checkVoltaInput(c, 0, 2); err != nil {
		t.Errorf("volta number 2 rejected: %v", err)
	}
	if err := checkVoltaInput(c, 0, 3); err == nil {
		t.Error("volta number 3 accepted")
	}
	if err := checkVoltaInput(c, 1, 1); err == nil {
		t.Error("out-of-range section accepted")
	}
	if err := checkVoltaInput(c, -1, 1); err == nil {
		t.Error("negative section accepted")
	}
}
