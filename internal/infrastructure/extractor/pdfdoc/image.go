package pdfdoc

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/ledongthuc/pdf"
)

var ErrUnsupportedImage = errors.New("unsupported image encoding")

// passthroughFilters carry encoded image formats that ledongthuc/pdf cannot decode.
var passthroughFilters = map[string]bool{
	"DCTDecode":      true,
	"JPXDecode":      true,
	"CCITTFaxDecode": true,
	"JBIG2Decode":    true,
}

// Decode rebuilds the raster of an 8-bit gray, RGB or CMYK image XObject.
// Other encodings return ErrUnsupportedImage so callers can fall back to
// cropping a rendered page.
func (pl ImagePlacement) Decode() (img image.Image, err error) {
	defer recoverInto(&err, "decode image "+pl.Name)

	for _, name := range filterNames(pl.stream.Key("Filter")) {
		if passthroughFilters[name] {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, name)
		}
	}
	if bpc := pl.stream.Key("BitsPerComponent").Int64(); bpc != 8 {
		return nil, fmt.Errorf("%w: %d bits per component", ErrUnsupportedImage, bpc)
	}
	components := colorComponents(pl.stream.Key("ColorSpace"))
	if components != 1 && components != 3 && components != 4 {
		return nil, fmt.Errorf("%w: color space", ErrUnsupportedImage)
	}
	if pl.Width <= 0 || pl.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrUnsupportedImage, pl.Width, pl.Height)
	}

	rc := pl.stream.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read image stream: %w", err)
	}
	need := pl.Width * pl.Height * components
	if len(data) < need {
		return nil, fmt.Errorf("image stream too short: %d < %d bytes", len(data), need)
	}

	rect := image.Rect(0, 0, pl.Width, pl.Height)
	switch components {
	case 1:
		gray := image.NewGray(rect)
		copy(gray.Pix, data[:need])
		return gray, nil
	case 3:
		rgba := image.NewRGBA(rect)
		for i := 0; i < pl.Width*pl.Height; i++ {
			rgba.Pix[i*4] = data[i*3]
			rgba.Pix[i*4+1] = data[i*3+1]
			rgba.Pix[i*4+2] = data[i*3+2]
			rgba.Pix[i*4+3] = 0xff
		}
		return rgba, nil
	default:
		cmyk := image.NewCMYK(rect)
		copy(cmyk.Pix, data[:need])
		return cmyk, nil
	}
}

func filterNames(v pdf.Value) []string {
	switch v.Kind() {
	case pdf.Name:
		return []string{v.Name()}
	case pdf.Array:
		names := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			names = append(names, v.Index(i).Name())
		}
		return names
	default:
		return nil
	}
}

func colorComponents(cs pdf.Value) int {
	name := cs.Name()
	if cs.Kind() == pdf.Array && cs.Len() > 0 {
		name = cs.Index(0).Name()
		if name == "ICCBased" && cs.Len() > 1 {
			return int(cs.Index(1).Key("N").Int64())
		}
	}
	switch name {
	case "DeviceGray", "CalGray":
		return 1
	case "DeviceRGB", "CalRGB":
		return 3
	case "DeviceCMYK":
		return 4
	default:
		return 0
	}
}
