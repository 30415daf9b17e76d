// Package avatar renders initials avatars for participants.
package avatar

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image/color"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

const DefaultSize = 256

var defaultPalette = []color.NRGBA{
	{R: 0x1E, G: 0x88, B: 0xE5, A: 0xFF},
	{R: 0x43, G: 0xA0, B: 0x47, A: 0xFF},
	{R: 0xE5, G: 0x39, B: 0x35, A: 0xFF},
	{R: 0x8E, G: 0x24, B: 0xAA, A: 0xFF},
	{R: 0xFB, G: 0x8C, B: 0x00, A: 0xFF},
	{R: 0x00, G: 0x89, B: 0x7B, A: 0xFF},
	{R: 0x5E, G: 0x35, B: 0xB1, A: 0xFF},
	{R: 0x6D, G: 0x4C, B: 0x41, A: 0xFF},
}

type Renderer struct {
	size    int
	face    font.Face
	palette []color.NRGBA
}

// NewRenderer loads the embedded Go Bold face sized for the canvas.
func NewRenderer(size int) (*Renderer, error) {
	if size <= 0 {
		size = DefaultSize
	}
	parsed, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	face := truetype.NewFace(parsed, &truetype.Options{
		Size:    float64(size) * 0.4,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	return &Renderer{size: size, face: face, palette: defaultPalette}, nil
}

// Render draws the initials of name in white on a circle whose colour is
// derived from the name, so the same participant always gets the same avatar.
func (r *Renderer) Render(name string) ([]byte, error) {
	size := float64(r.size)
	dc := gg.NewContext(r.size, r.size)

	dc.DrawCircle(size/2, size/2, size/2)
	dc.Clip()
	dc.SetColor(r.ColorFor(name))
	dc.DrawRectangle(0, 0, size, size)
	dc.Fill()

	dc.SetFontFace(r.face)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(Initials(name), size/2, size/2, 0.5, 0.35)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) ColorFor(name string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return r.palette[h.Sum32()%uint32(len(r.palette))]
}

// Initials takes the first letter of the first two words, upper-cased.
func Initials(name string) string {
	words := strings.FieldsFunc(name, func(c rune) bool {
		return unicode.IsSpace(c) || c == '-' || c == '_' || c == '.'
	})
	var out []rune
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if r == utf8.RuneError {
			continue
		}
		out = append(out, unicode.ToUpper(r))
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}
