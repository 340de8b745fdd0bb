package preprocess

import (
	"image"

	"github.com/disintegration/imaging"
)

// toGray copies the first channel of an imaging result into a Gray buffer.
// imaging keeps grayscale data replicated across R, G and B.
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		srow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		drow := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := range w {
			drow[x] = srow[x*4]
		}
	}
	return dst
}

// Grayscale converts img to a single-channel luminance image.
func Grayscale(img image.Image) *image.Gray {
	return toGray(imaging.Grayscale(img))
}

// GaussianBlur smooths a gray image with a Gaussian of the given window size.
func GaussianBlur(gray *image.Gray, ksize int) *image.Gray {
	return toGray(imaging.Blur(gray, gaussianSigma(ksize)))
}

// AdaptiveThreshold binarizes gray against a Gaussian-weighted local mean:
// a pixel becomes white when it is brighter than mean-c, black otherwise.
func AdaptiveThreshold(gray *image.Gray, blockSize int, c float64) *image.Gray {
	src := cloneGray(gray)
	mean := GaussianBlur(src, blockSize)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	for y := range h {
		srow := src.Pix[y*src.Stride:]
		mrow := mean.Pix[y*mean.Stride:]
		drow := dst.Pix[y*dst.Stride:]
		for x := range w {
			if float64(srow[x])-float64(mrow[x]) > -c {
				drow[x] = 255
			}
		}
	}
	return dst
}
