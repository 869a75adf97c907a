package imageproc

import "math"

// FitDimensions returns dimensions whose uncompressed 32bpp bitmap fits into
// targetBytes. The image is never upscaled: anything already under the pixel
// budget keeps its original size. Aspect ratio is preserved by splitting the
// budget as newW = sqrt(maxPixels*r), newH = sqrt(maxPixels/r) with r = w/h.
func FitDimensions(w, h, targetBytes int) (int, int) {
	maxPixels := math.Round(float64(targetBytes) / 4) // 4 байта на пиксель в несжатом виде

	if float64(w)*float64(h) <= maxPixels {
		return w, h
	}

	r := float64(w) / float64(h)
	newW := int(math.Round(math.Sqrt(maxPixels * r)))
	newH := int(math.Round(math.Sqrt(maxPixels / r)))

	// на экстремальных ратио округление может дать ноль
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	return newW, newH
}
