package preprocess

import "image"

// MorphologicalOp represents the type of morphological operation to perform.
type MorphologicalOp int

const (
	MorphDilate MorphologicalOp = iota
	MorphErode
	MorphOpening // erode then dilate, removes specks
	MorphClosing // dilate then erode, fills gaps in strokes
)

// Morph applies op with a square kernel. Iterations repeat each primitive, so
// closing with two iterations is dilate, dilate, erode, erode.
func Morph(src *image.Gray, op MorphologicalOp, kernelSize, iterations int) *image.Gray {
	out := cloneGray(src)
	if kernelSize <= 1 || iterations <= 0 {
		return out
	}

	repeat := func(img *image.Gray, f func(*image.Gray, int) *image.Gray) *image.Gray {
		for range iterations {
			img = f(img, kernelSize)
		}
		return img
	}

	switch op {
	case MorphDilate:
		out = repeat(out, dilate)
	case MorphErode:
		out = repeat(out, erode)
	case MorphOpening:
		out = repeat(repeat(out, erode), dilate)
	case MorphClosing:
		out = repeat(repeat(out, dilate), erode)
	}
	return out
}

// dilate takes the maximum over the kernel window. Out-of-bounds neighbours
// are ignored.
func dilate(src *image.Gray, kernelSize int) *image.Gray {
	return rankFilter(src, kernelSize, func(a, b uint8) bool { return b > a }, 0)
}

// erode takes the minimum over the kernel window.
func erode(src *image.Gray, kernelSize int) *image.Gray {
	return rankFilter(src, kernelSize, func(a, b uint8) bool { return b < a }, 255)
}

func rankFilter(src *image.Gray, kernelSize int, better func(cur, cand uint8) bool, init uint8) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	half := kernelSize / 2

	for y := range h {
		for x := range w {
			v := init
			for ky := -half; ky <= half; ky++ {
				ny := y + ky
				if ny < 0 || ny >= h {
					continue
				}
				row := src.Pix[ny*src.Stride:]
				for kx := -half; kx <= half; kx++ {
					nx := x + kx
					if nx < 0 || nx >= w {
						continue
					}
					if better(v, row[nx]) {
						v = row[nx]
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = v
		}
	}
	return dst
}

func cloneGray(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y):])
	}
	return dst
}
