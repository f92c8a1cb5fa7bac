package eufy

import (
	"math"
	"testing"
)

func TestRGBToHSL(t *testing.T) {
	tests := []struct {
		name string
		rgb  RGBColors
		want HSLColors
	}{
		{"red", RGBColors{255, 0, 0}, HSLColors{0, 1, 0.5}},
		{"green", RGBColors{0, 255, 0}, HSLColors{120, 1, 0.5}},
		{"blue", RGBColors{0, 0, 255}, HSLColors{240, 1, 0.5}},
		{"white", RGBColors{255, 255, 255}, HSLColors{0, 0, 1}},
		{"black", RGBColors{0, 0, 0}, HSLColors{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rgb.ToHSL()
			if !closeTo(got.Hue, tt.want.Hue) || !closeTo(got.Saturation, tt.want.Saturation) ||
				!closeTo(got.Lightness, tt.want.Lightness) {
				t.Errorf("ToHSL() = %+v, want %+v", got, tt.want)
			}
			if back := got.ToRGB(); back != tt.rgb {
				t.Errorf("ToHSL().ToRGB() = %+v, want %+v", back, tt.rgb)
			}
		})
	}
}

func TestHSLNormalize(t *testing.T) {
	tests := []struct {
		in   HSLColors
		want HSLColors
	}{
		{HSLColors{370, 0.5, 0.5}, HSLColors{10, 0.5, 0.5}},
		{HSLColors{-90, 2, -1}, HSLColors{270, 1, 0}},
		{HSLColors{math.NaN(), math.NaN(), 0.25}, HSLColors{0, 0, 0.25}},
		{HSLColors{360, 1, 1}, HSLColors{0, 1, 1}},
	}

	for _, tt := range tests {
		got := tt.in.Normalize()
		if !closeTo(got.Hue, tt.want.Hue) || !closeTo(got.Saturation, tt.want.Saturation) ||
			!closeTo(got.Lightness, tt.want.Lightness) {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestClampPercent(t *testing.T) {
	for in, want := range map[int]int{-5: 0, 0: 0, 42: 42, 100: 100, 250: 100} {
		if got := clampPercent(in); got != want {
			t.Errorf("clampPercent(%d) = %d, want %d", in, got, want)
		}
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
