package capture

import (
	"fmt"
	"math"
)

// Size is a frame size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Area returns Width*Height.
func (s Size) Area() int {
	return s.Width * s.Height
}

// CommonResolutions are the sizes probed when the driver cannot list its
// modes.
var CommonResolutions = []Size{
	{320, 240},
	{640, 480},
	{800, 600},
	{960, 720},
	{1024, 768},
	{1280, 720},
	{1280, 960},
	{1600, 1200},
	{1920, 1080},
}

const fourByThree = 4.0 / 3.0

// ChooseResolution picks the capture size: the saved size if the device
// offers it, else the largest size within 0.02 of 4:3, else the largest.
// It returns false when available is empty.
func ChooseResolution(available []Size, saved Size) (Size, bool) {
	if len(available) == 0 {
		return Size{}, false
	}
	for _, s := range available {
		if s == saved {
			return s, true
		}
	}

	var best, largest Size
	for _, s := range available {
		if s.Area() > largest.Area() {
			largest = s
		}
		if s.Height > 0 && math.Abs(float64(s.Width)/float64(s.Height)-fourByThree) < 0.02 && s.Area() > best.Area() {
			best = s
		}
	}
	if best.Area() > 0 {
		return best, true
	}
	return largest, true
}

// ChooseCameraConfig picks the first configuration strictly larger than
// 640x480 in both dimensions, else the first one.
func ChooseCameraConfig(configs []Size) (Size, bool) {
	if len(configs) == 0 {
		return Size{}, false
	}
	for _, s := range configs {
		if s.Width > DefaultWidth && s.Height > DefaultHeight {
			return s, true
		}
	}
	return configs[0], true
}
