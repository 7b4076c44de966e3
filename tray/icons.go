package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/yllada/connman-indicator/common"
)

// IconConfig defines the configuration for icon generation.
type IconConfig struct {
	Size        int
	ActiveColor color.RGBA
	DimColor    color.RGBA
	MarkColor   color.RGBA
}

// DefaultIconConfig returns the colors used for every status icon.
func DefaultIconConfig() IconConfig {
	return IconConfig{
		Size:        common.TrayIconSize,
		ActiveColor: color.RGBA{236, 239, 241, 255}, // Near white
		DimColor:    color.RGBA{117, 117, 117, 255}, // Dark gray
		MarkColor:   color.RGBA{229, 57, 53, 255},   // Red
	}
}

// IconGenerator draws PNG status icons for the system tray.
type IconGenerator struct {
	config IconConfig
}

// NewIconGenerator creates a new icon generator with the given config.
func NewIconGenerator(config IconConfig) *IconGenerator {
	return &IconGenerator{config: config}
}

// Signal draws a wifi fan with lit arcs out of four.
func (g *IconGenerator) Signal(lit int) []byte {
	img := g.canvas()
	g.drawArcs(img, lit)
	return encode(img)
}

// Acquiring draws an unlit wifi fan with three dots underneath.
func (g *IconGenerator) Acquiring() []byte {
	img := g.canvas()
	g.drawArcs(img, 0)
	y := g.config.Size - 3
	for _, x := range []int{g.config.Size/2 - 4, g.config.Size / 2, g.config.Size/2 + 4} {
		g.fillRect(img, x-1, y-1, x+1, y+1, g.config.ActiveColor)
	}
	return encode(img)
}

// Wired draws a plug: a body with two prongs and a cable.
func (g *IconGenerator) Wired() []byte {
	img := g.canvas()
	size := g.config.Size
	c := g.config.ActiveColor
	mid := size / 2

	// Prongs
	g.fillRect(img, mid-4, 2, mid-3, 6, c)
	g.fillRect(img, mid+3, 2, mid+4, 6, c)
	// Body
	g.fillRect(img, mid-6, 7, mid+6, 13, c)
	// Cable
	g.fillRect(img, mid-1, 14, mid+1, size-2, c)
	return encode(img)
}

// Offline draws an unlit fan crossed out.
func (g *IconGenerator) Offline() []byte {
	img := g.canvas()
	g.drawArcs(img, 0)
	size := g.config.Size
	for i := 3; i < size-3; i++ {
		img.Set(i, i, g.config.MarkColor)
		img.Set(i+1, i, g.config.MarkColor)
		img.Set(size-1-i, i, g.config.MarkColor)
		img.Set(size-2-i, i, g.config.MarkColor)
	}
	return encode(img)
}

func (g *IconGenerator) canvas() *image.RGBA {
	size := g.config.Size
	return image.NewRGBA(image.Rect(0, 0, size, size))
}

// drawArcs draws four concentric quarter arcs opening upwards from the
// bottom center; the innermost lit arcs use the active color.
func (g *IconGenerator) drawArcs(img *image.RGBA, lit int) {
	size := g.config.Size
	cx := float64(size) / 2
	cy := float64(size) - 2
	step := (float64(size) - 4) / 4

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			dx, dy := fx-cx, cy-fy
			if dy < 0 || math.Abs(dx) > dy {
				continue
			}
			r := math.Hypot(dx, dy)
			for ring := 0; ring < 4; ring++ {
				outer := step * float64(ring+1)
				inner := outer - step*0.6
				if ring == 0 {
					inner = 0
				}
				if r >= inner && r <= outer {
					if ring < lit {
						img.Set(x, y, g.config.ActiveColor)
					} else {
						img.Set(x, y, g.config.DimColor)
					}
					break
				}
			}
		}
	}
}

func (g *IconGenerator) fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if x >= 0 && x < g.config.Size && y >= 0 && y < g.config.Size {
				img.Set(x, y, c)
			}
		}
	}
}

func encode(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		common.LogError("Failed to encode tray icon: %v", err)
	}
	return buf.Bytes()
}

// iconSet holds one pre-rendered PNG per status icon name.
type iconSet map[string][]byte

func newIconSet(g *IconGenerator) iconSet {
	return iconSet{
		"network-offline":                   g.Offline(),
		"network-wired":                     g.Wired(),
		"network-wireless-acquiring":        g.Acquiring(),
		"network-wireless-signal-none":      g.Signal(0),
		"network-wireless-signal-weak":      g.Signal(1),
		"network-wireless-signal-ok":        g.Signal(2),
		"network-wireless-signal-good":      g.Signal(3),
		"network-wireless-signal-excellent": g.Signal(4),
	}
}

// lookup returns the icon for name, falling back to the offline icon.
func (s iconSet) lookup(name string) []byte {
	if icon, ok := s[name]; ok {
		return icon
	}
	return s["network-offline"]
}
