package gesture

import (
	"testing"

	"github.com/ayusman/mudra/internal/detector"
)

func TestCategoryGate_Check(t *testing.T) {
	gate := NewFistGate(0.1)

	tests := []struct {
		name     string
		gestures [][]detector.Category
		wantName string
		wantPass bool
	}{
		{"none", nil, "", false},
		{"empty hands", [][]detector.Category{{}, {}}, "", false},
		{"fist passes", [][]detector.Category{{{Name: "Closed_Fist", Score: 0.8}}}, "Closed_Fist", true},
		{"alias passes", [][]detector.Category{{{Name: "Fist_Closed", Score: 0.3}}}, "Fist_Closed", true},
		{"score at threshold", [][]detector.Category{{{Name: "Closed_Fist", Score: 0.1}}}, "Closed_Fist", true},
		{"below threshold", [][]detector.Category{{{Name: "Closed_Fist", Score: 0.05}}}, "Closed_Fist", false},
		{"other category", [][]detector.Category{{{Name: "Open_Palm", Score: 0.9}}}, "Open_Palm", false},
		{
			"top across hands wins",
			[][]detector.Category{
				{{Name: "Closed_Fist", Score: 0.4}},
				{{Name: "Victory", Score: 0.7}},
			},
			"Victory", false,
		},
		{
			"only first category per hand",
			[][]detector.Category{
				{{Name: "Open_Palm", Score: 0.5}, {Name: "Closed_Fist", Score: 0.45}},
			},
			"Open_Palm", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top, pass := gate.Check(tt.gestures)
			if top.Name != tt.wantName || pass != tt.wantPass {
				t.Errorf("Check() = %q, %v, want %q, %v", top.Name, pass, tt.wantName, tt.wantPass)
			}
		})
	}
}
