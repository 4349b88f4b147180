package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png" // register PNG decoding for source images

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
)

const (
	textMargin  = 20
	textPadding = 15
	lineHeight  = 16
)

// Composer overlays a station's measurements as a text block on a source
// image and re-encodes the result as JPEG.
type Composer struct {
	jpegQuality int
}

func NewComposer() *Composer {
	return &Composer{jpegQuality: 90}
}

func (c *Composer) Compose(src []byte, station model.WeatherStation) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding source image: %v", common.ErrProcessingFailed, err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	lines := weatherLines(station)
	face := basicfont.Face7x13

	// Size the backdrop from the widest line.
	maxWidth := 0
	for _, line := range lines {
		if w := font.MeasureString(face, line).Ceil(); w > maxWidth {
			maxWidth = w
		}
	}
	backdrop := image.Rect(
		bounds.Min.X+textMargin-textPadding,
		bounds.Min.Y+textMargin-textPadding,
		bounds.Min.X+textMargin+maxWidth+textPadding,
		bounds.Min.Y+textMargin+len(lines)*lineHeight+textPadding,
	).Intersect(bounds)
	draw.Draw(canvas, backdrop, image.NewUniform(color.RGBA{0, 0, 0, 180}), image.Point{}, draw.Over)

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(bounds.Min.X+textMargin, bounds.Min.Y+textMargin+(i+1)*lineHeight-4)
		drawer.DrawString(line)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: c.jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: encoding composed image: %v", common.ErrProcessingFailed, err)
	}
	return buf.Bytes(), nil
}

func weatherLines(station model.WeatherStation) []string {
	lines := []string{
		"Station: " + orNA(station.StationName),
		"Region: " + orNA(station.RegionName),
		"Temperature: " + formatFloat(station.Temperature, "%.1f") + " C",
		"Humidity: " + formatInt(station.Humidity) + "%",
		fmt.Sprintf("Wind: %s m/s %s", formatFloat(station.WindSpeed, "%.1f"), station.WindDirection),
	}
	if station.WeatherDescription != "" {
		lines = append(lines, station.WeatherDescription)
	}
	return lines
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatFloat(v *float64, layout string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(layout, *v)
}

func formatInt(v *int) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *v)
}
