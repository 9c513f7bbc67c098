package embeddings

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Input is a preprocessed image ready to be sent to an encoder.
type Input struct {
	// Image is the resized, center-cropped RGB image.
	Image *image.RGBA
	// Shape is the tensor shape [1, 3, H, W]; nil when the encoder consumes Image.
	Shape []int64
	// Tensor holds normalized pixel values in CHW order.
	Tensor []float32
}

// Preprocessor turns a decoded image into encoder input.
type Preprocessor func(img image.Image) (*Input, error)

// PreprocessSpec describes the input transform an encoder expects.
type PreprocessSpec struct {
	Size int
	Mean [3]float32
	Std  [3]float32
}

// CLIPPreprocess returns the OpenAI/OpenCLIP image transform at the given input size.
func CLIPPreprocess(size int) PreprocessSpec {
	return PreprocessSpec{
		Size: size,
		Mean: [3]float32{0.48145466, 0.4578275, 0.40821073},
		Std:  [3]float32{0.26862954, 0.26130258, 0.27577711},
	}
}

// TensorPreprocessor resizes, crops and normalizes into an FP32 CHW tensor.
func (s PreprocessSpec) TensorPreprocessor() Preprocessor {
	return func(img image.Image) (*Input, error) {
		rgb, err := ResizeCrop(img, s.Size)
		if err != nil {
			return nil, err
		}
		return &Input{
			Image:  rgb,
			Shape:  []int64{1, 3, int64(s.Size), int64(s.Size)},
			Tensor: s.normalize(rgb),
		}, nil
	}
}

// ImagePreprocessor only resizes and crops; normalization is left to the backend.
func (s PreprocessSpec) ImagePreprocessor() Preprocessor {
	return func(img image.Image) (*Input, error) {
		rgb, err := ResizeCrop(img, s.Size)
		if err != nil {
			return nil, err
		}
		return &Input{Image: rgb}, nil
	}
}

func (s PreprocessSpec) normalize(img *image.RGBA) []float32 {
	n := s.Size * s.Size
	out := make([]float32, 3*n)
	for y := 0; y < s.Size; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < s.Size; x++ {
			px := row[x*4 : x*4+3]
			for c := 0; c < 3; c++ {
				v := float32(px[c]) / 255
				out[c*n+y*s.Size+x] = (v - s.Mean[c]) / s.Std[c]
			}
		}
	}
	return out
}

// ResizeCrop scales img so its shorter side equals size using a Catmull-Rom
// kernel, then center-crops to size x size.
func ResizeCrop(img image.Image, size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid input size %d", size)
	}
	src := ToRGB(img)
	if b := src.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w (zero-sized image)", ErrUndecodable)
	}

	filled := imaging.Fill(src, size, size, imaging.Center, imaging.CatmullRom)
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), filled, filled.Bounds().Min, draw.Src)
	return out, nil
}
