// Package decode validates uploaded bytes and decodes them into an image.
package decode

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"strings"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/crimson-sun/pilar/internal/errs"
)

// Limits bounds what an upload may contain.
type Limits struct {
	MinSide  int
	MaxSide  int
	MaxBytes int64
}

// DefaultLimits accepts 16x16 to 4096x4096 images up to 10 MB.
var DefaultLimits = Limits{MinSide: 16, MaxSide: 4096, MaxBytes: 10 << 20}

// Input is a validated, decoded upload.
type Input struct {
	Data   []byte
	Image  image.Image
	Format string
	Width  int
	Height int
	Digest string // hex SHA-256 of Data
}

var allowedTypes = map[string]bool{
	"image/jpeg":               true,
	"image/jpg":                true,
	"image/png":                true,
	"image/bmp":                true,
	"image/webp":               true,
	"image/gif":                true,
	"image/x-ms-bmp":           true,
	"application/octet-stream": true,
}

// AllowedContentType reports whether an upload's declared media type is
// accepted. Parameters such as charset are ignored.
func AllowedContentType(ct string) bool {
	ct, _, _ = strings.Cut(ct, ";")
	return allowedTypes[strings.ToLower(strings.TrimSpace(ct))]
}

// Decode checks size and dimensions against lim, reading only the header
// before committing to a full decode.
func Decode(data []byte, lim Limits) (*Input, error) {
	if len(data) == 0 {
		return nil, errs.E(errs.InvalidInput, "decode", errors.New("empty image payload"))
	}
	if lim.MaxBytes > 0 && int64(len(data)) > lim.MaxBytes {
		return nil, errs.Errorf(errs.InvalidInput, "decode", "image is %d bytes, limit is %d", len(data), lim.MaxBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Errorf(errs.InvalidInput, "decode", "unrecognised or corrupt image: %v", err)
	}
	if err := lim.check(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Errorf(errs.InvalidInput, "decode", "corrupt %s image: %v", format, err)
	}
	b := img.Bounds()
	if err := lim.check(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return &Input{
		Data:   data,
		Image:  img,
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}

func (lim Limits) check(w, h int) error {
	if w < lim.MinSide || h < lim.MinSide {
		return errs.Errorf(errs.InvalidInput, "decode", "image %dx%d is smaller than %dx%d", w, h, lim.MinSide, lim.MinSide)
	}
	if lim.MaxSide > 0 && (w > lim.MaxSide || h > lim.MaxSide) {
		return errs.Errorf(errs.InvalidInput, "decode", "image %dx%d is larger than %dx%d", w, h, lim.MaxSide, lim.MaxSide)
	}
	return nil
}
