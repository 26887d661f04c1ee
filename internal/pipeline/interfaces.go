package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/faceswap/internal/detector"
	"github.com/dudu/faceswap/internal/swap"
)

// FaceDetector finds faces and their five-point landmarks in an image.
type FaceDetector interface {
	Detect(img gocv.Mat) ([]detector.Face, error)
	Close() error
}

// FaceEncoder extracts a unit identity vector from an aligned 112 crop.
type FaceEncoder interface {
	Embed(crop gocv.Mat) (*swap.Embedding, error)
	Close() error
}

// FaceGenerator produces a swapped face from an aligned 128 crop and a
// source identity vector.
type FaceGenerator interface {
	Generate(crop gocv.Mat, identity *swap.Embedding) (gocv.Mat, error)
	Close() error
}
