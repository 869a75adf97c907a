// Package imageproc provides the downsize operation: shrinking an image so its
// decoded 32bpp footprint fits a byte budget, then re-encoding it with the
// requested quality in the format it arrived in.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

const (
	DefaultTargetBytes = 100000
	DefaultQuality     = 90
)

var (
	ErrBadQuality     = errors.New("quality must be within [0,100]")
	ErrBadTarget      = errors.New("target size must be a positive byte count")
	ErrNoInput        = errors.New("no input image: provide a file path or raw bytes")
	ErrAmbiguousInput = errors.New("ambiguous input: file path and raw bytes are mutually exclusive")
)

// Downsizer decodes the image from r, fits it into targetBytes (see
// FitDimensions) and re-encodes it in the given format. The source is always
// redrawn onto a fresh canvas, so even an under-budget image gets recompressed
// at the requested quality.
func Downsizer(r io.Reader, targetBytes, quality int, format imaging.Format) (io.Reader, int64, error) {
	if r == nil {
		return nil, 0, errors.New("nil-reader baseIMG provided to Downsizer")
	}
	if quality < 0 || quality > 100 {
		return nil, 0, ErrBadQuality
	}
	if targetBytes <= 0 {
		return nil, 0, ErrBadTarget
	}

	img, err := imaging.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to DEcode baseIMG in Downsizer: %w", err)
	}

	newW, newH := FitDimensions(img.Bounds().Dx(), img.Bounds().Dy(), targetBytes)

	// CatmullRom - бикубический фильтр, рисует на новом канвасе даже при тех же размерах
	canvas := imaging.Resize(img, newW, newH, imaging.CatmullRom)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, 0, fmt.Errorf("failed to ENcode resultIMG in Downsizer: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}

// DetectFormat sniffs the codec from the image header. The output format
// always follows the detected input codec, never the file name.
func DetectFormat(data []byte) (imaging.Format, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return -1, fmt.Errorf("failed to detect image format: %w", err)
	}

	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return -1, fmt.Errorf("no encoder for format %q: %w", name, err)
	}
	return format, nil
}
