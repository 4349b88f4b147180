package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
)

func sourceJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 60, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func testStation() model.WeatherStation {
	temp := 18.4
	humidity := 71
	wind := 3.6
	return model.WeatherStation{
		StationID:          6260,
		StationName:        "Meetstation De Bilt",
		RegionName:         "Utrecht",
		Temperature:        &temp,
		Humidity:           &humidity,
		WindSpeed:          &wind,
		WindDirection:      "ZW",
		WeatherDescription: "Zwaar bewolkt",
	}
}

func TestComposeProducesValidJPEG(t *testing.T) {
	src := sourceJPEG(t, 640, 480)

	out, err := NewComposer().Compose(src, testStation())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding composed image: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("format = %s, want jpeg", format)
	}
	if decoded.Bounds() != image.Rect(0, 0, 640, 480) {
		t.Fatalf("bounds = %v, want source bounds preserved", decoded.Bounds())
	}
}

func TestComposeChangesPixelsUnderOverlay(t *testing.T) {
	src := sourceJPEG(t, 640, 480)

	out, err := NewComposer().Compose(src, testStation())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	original, _, _ := image.Decode(bytes.NewReader(src))
	composed, _, _ := image.Decode(bytes.NewReader(out))

	// The backdrop darkens the top-left corner where the text block sits.
	or, og, ob, _ := original.At(textMargin, textMargin).RGBA()
	cr, cg, cb, _ := composed.At(textMargin, textMargin).RGBA()
	if cr >= or && cg >= og && cb >= ob {
		t.Fatal("overlay region not darkened")
	}
}

func TestComposeMissingMeasurements(t *testing.T) {
	src := sourceJPEG(t, 200, 150)

	out, err := NewComposer().Compose(src, model.WeatherStation{StationID: 9})
	if err != nil {
		t.Fatalf("Compose with sparse station: %v", err)
	}
	if _, _, err := image.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("decoding composed image: %v", err)
	}
}

func TestComposeRejectsGarbage(t *testing.T) {
	_, err := NewComposer().Compose([]byte("not an image"), testStation())
	if !errors.Is(err, common.ErrProcessingFailed) {
		t.Fatalf("Compose(garbage) = %v, want ErrProcessingFailed", err)
	}
}

func TestWeatherLines(t *testing.T) {
	lines := weatherLines(testStation())
	if len(lines) != 6 {
		t.Fatalf("len(lines) = %d, want 6 with a description present", len(lines))
	}
	if lines[0] != "Station: Meetstation De Bilt" {
		t.Fatalf("lines[0] = %q", lines[0])
	}
	if lines[2] != "Temperature: 18.4 C" {
		t.Fatalf("lines[2] = %q", lines[2])
	}

	sparse := weatherLines(model.WeatherStation{})
	if len(sparse) != 5 {
		t.Fatalf("len(sparse) = %d, want 5 without a description", len(sparse))
	}
	if sparse[2] != "Temperature: N/A C" {
		t.Fatalf("sparse[2] = %q", sparse[2])
	}
}
