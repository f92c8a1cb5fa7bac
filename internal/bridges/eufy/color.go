package eufy

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGBColors is an 8-bit-per-channel color.
type RGBColors struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

// HSLColors is a color in hue (degrees, 0-360), saturation and lightness
// (both 0-1).
type HSLColors struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Lightness  float64 `json:"lightness"`
}

// ToHSL converts the color to HSL.
func (c RGBColors) ToHSL() HSLColors {
	h, s, l := colorful.Color{
		R: float64(c.Red) / 255,
		G: float64(c.Green) / 255,
		B: float64(c.Blue) / 255,
	}.Hsl()
	return HSLColors{Hue: h, Saturation: s, Lightness: l}
}

// ToRGB converts the color to 8-bit RGB after normalising it.
func (c HSLColors) ToRGB() RGBColors {
	n := c.Normalize()
	r, g, b := colorful.Hsl(n.Hue, n.Saturation, n.Lightness).Clamped().RGB255()
	return RGBColors{Red: r, Green: g, Blue: b}
}

// Normalize wraps hue into [0, 360) and clamps saturation and lightness
// to [0, 1]. NaN components become zero.
func (c HSLColors) Normalize() HSLColors {
	h := c.Hue
	if math.IsNaN(h) || math.IsInf(h, 0) {
		h = 0
	}
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return HSLColors{
		Hue:        h,
		Saturation: clampUnit(c.Saturation),
		Lightness:  clampUnit(c.Lightness),
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampPercent limits v to the 0-100 range used for brightness and
// color temperature.
func clampPercent(v int) int {
	return max(0, min(100, v))
}
