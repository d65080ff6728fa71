package capture

import "testing"

func TestChooseResolution(t *testing.T) {
	tests := []struct {
		name      string
		available []Size
		saved     Size
		want      Size
		wantOK    bool
	}{
		{
			name:      "saved size offered",
			available: []Size{{640, 480}, {1280, 720}, {1920, 1080}},
			saved:     Size{1280, 720},
			want:      Size{1280, 720},
			wantOK:    true,
		},
		{
			name:      "largest 4:3",
			available: []Size{{640, 480}, {1280, 960}, {1920, 1080}},
			saved:     Size{800, 600},
			want:      Size{1280, 960},
			wantOK:    true,
		},
		{
			name:      "no 4:3 falls back to largest",
			available: []Size{{1280, 720}, {1920, 1080}, {640, 360}},
			want:      Size{1920, 1080},
			wantOK:    true,
		},
		{
			name:      "near 4:3 within tolerance",
			available: []Size{{1000, 752}, {1920, 1080}},
			want:      Size{1000, 752},
			wantOK:    true,
		},
		{
			name:   "nothing available",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChooseResolution(tt.available, tt.saved)
			if ok != tt.wantOK {
				t.Fatalf("ChooseResolution() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ChooseResolution() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseCameraConfig(t *testing.T) {
	tests := []struct {
		name    string
		configs []Size
		want    Size
	}{
		{"first larger than VGA", []Size{{640, 480}, {1280, 720}, {1920, 1080}}, Size{1280, 720}},
		{"width alone is not enough", []Size{{800, 480}, {320, 240}}, Size{800, 480}},
		{"fallback to first", []Size{{320, 240}, {640, 480}}, Size{320, 240}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChooseCameraConfig(tt.configs)
			if !ok {
				t.Fatal("ChooseCameraConfig() ok = false")
			}
			if got != tt.want {
				t.Errorf("ChooseCameraConfig() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, ok := ChooseCameraConfig(nil); ok {
		t.Error("ChooseCameraConfig(nil) ok = true")
	}
}
