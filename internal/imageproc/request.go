package imageproc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Request describes a single one-shot downsize call. Exactly one of InputFile
// and ImageBytes must be set. Nil TargetBytes/Quality fall back to the
// defaults; quality 0 stays distinguishable from "not set".
type Request struct {
	InputFile   string
	ImageBytes  []byte
	OutputFile  string
	TargetBytes *int
	Quality     *int
}

var formatExt = map[imaging.Format]string{
	imaging.JPEG: ".jpg",
	imaging.PNG:  ".png",
	imaging.GIF:  ".gif",
	imaging.TIFF: ".tif",
	imaging.BMP:  ".bmp",
}

// Process runs the whole call path: pick input, detect the codec, downsize,
// then either write OutputFile (extension corrected to the detected format,
// nil bytes returned) or hand the encoded buffer back.
func Process(req Request) ([]byte, error) {
	// параметры валидируем до любого декодирования
	quality := DefaultQuality
	if req.Quality != nil {
		quality = *req.Quality
	}
	if quality < 0 || quality > 100 {
		return nil, ErrBadQuality
	}

	target := DefaultTargetBytes
	if req.TargetBytes != nil {
		target = *req.TargetBytes
	}
	if target <= 0 {
		return nil, ErrBadTarget
	}

	if req.InputFile != "" && len(req.ImageBytes) > 0 {
		return nil, ErrAmbiguousInput
	}

	var data []byte
	switch {
	case req.InputFile != "":
		var err error
		data, err = os.ReadFile(req.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
	case len(req.ImageBytes) > 0:
		data = req.ImageBytes
	default:
		return nil, ErrNoInput
	}

	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}

	result, _, err := Downsizer(bytes.NewReader(data), target, quality, format)
	if err != nil {
		return nil, err
	}

	out, err := io.ReadAll(result)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoded result: %w", err)
	}

	if req.OutputFile != "" {
		path := matchExtension(req.OutputFile, format)
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write output file: %w", err)
		}
		return nil, nil
	}

	return out, nil
}

// matchExtension swaps the file extension for the detected format's one.
// An extension that already maps to the same codec (".jpeg" for JPEG) stays.
func matchExtension(path string, format imaging.Format) string {
	ext := filepath.Ext(path)
	if f, err := imaging.FormatFromExtension(ext); err == nil && f == format {
		return path
	}
	return strings.TrimSuffix(path, ext) + formatExt[format]
}
