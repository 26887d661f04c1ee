// Package swap implements the face swap core: alignment to the canonical
// pose, identity embedding, generation, post-processing, and paste-back
// compositing.
package swap

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/dudu/faceswap/internal/detector"
	"github.com/dudu/faceswap/internal/domain"
)

// Crop sizes of the two canonical frames: the embedding model consumes the
// 112 crop, the generator the 128 crop.
const (
	CropEmbed = 112
	CropSwap  = 128
)

// Canonical ArcFace landmark layout for the 112x112 crop, in the fixed
// semantic order left eye, right eye, nose, left mouth, right mouth.
var referencePose112 = [5]detector.Point{
	{X: 38.2946, Y: 51.6963},
	{X: 73.5318, Y: 51.5014},
	{X: 56.0252, Y: 71.7366},
	{X: 41.5493, Y: 92.3655},
	{X: 70.7299, Y: 92.2041},
}

// ReferencePose returns the canonical five-point layout scaled to cropSize.
func ReferencePose(cropSize int) [5]detector.Point {
	scale := float32(cropSize) / float32(CropEmbed)
	var pose [5]detector.Point
	for i, p := range referencePose112 {
		pose[i] = detector.Point{X: p.X * scale, Y: p.Y * scale}
	}
	return pose
}

// Aligner estimates the similarity transform from detected landmarks to the
// canonical pose and resamples the face into a fixed-size crop.
type Aligner struct{}

// NewAligner creates a face aligner.
func NewAligner() *Aligner {
	return &Aligner{}
}

// AlignResult holds an aligned crop together with the transform that
// produced it, so the crop can later be warped back.
type AlignResult struct {
	Crop      gocv.Mat // cropSize x cropSize aligned face
	Transform gocv.Mat // 2x3 CV64F matrix, image -> crop coordinates
}

// Close releases the result's Mats.
func (r *AlignResult) Close() {
	r.Crop.Close()
	r.Transform.Close()
}

// Align warps img so that landmarks land on the canonical pose scaled to
// cropSize. Area outside the source image is filled with black. cropSize
// must be one of the two canonical sizes and landmarks must contain exactly
// five points.
func (a *Aligner) Align(img gocv.Mat, landmarks []detector.Point, cropSize int) (*AlignResult, error) {
	if cropSize != CropEmbed && cropSize != CropSwap {
		return nil, fmt.Errorf("%w: unsupported crop size %d", domain.ErrInvalidInput, cropSize)
	}
	if len(landmarks) != len(referencePose112) {
		return nil, fmt.Errorf("%w: expected %d landmarks, got %d",
			domain.ErrInvalidInput, len(referencePose112), len(landmarks))
	}

	pose := ReferencePose(cropSize)
	sim, err := fitSimilarityLMedS(landmarks, pose[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	transform := sim.mat()
	crop := gocv.NewMat()
	gocv.WarpAffine(img, &crop, transform, image.Pt(cropSize, cropSize))

	return &AlignResult{Crop: crop, Transform: transform}, nil
}

// similarity is a 2D similarity transform: rotation plus uniform scale plus
// translation. A point p maps to (a*x - b*y + tx, b*x + a*y + ty).
type similarity struct {
	a, b, tx, ty float64
}

func (s similarity) apply(p detector.Point) (float64, float64) {
	x := float64(p.X)
	y := float64(p.Y)
	return s.a*x - s.b*y + s.tx, s.b*x + s.a*y + s.ty
}

// residual returns the squared distance between the mapped source point and
// its destination.
func (s similarity) residual(src, dst detector.Point) float64 {
	x, y := s.apply(src)
	dx := x - float64(dst.X)
	dy := y - float64(dst.Y)
	return dx*dx + dy*dy
}

func (s similarity) mat() gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	m.SetDoubleAt(0, 0, s.a)
	m.SetDoubleAt(0, 1, -s.b)
	m.SetDoubleAt(0, 2, s.tx)
	m.SetDoubleAt(1, 0, s.b)
	m.SetDoubleAt(1, 1, s.a)
	m.SetDoubleAt(1, 2, s.ty)
	return m
}

// fitSimilarityLMedS estimates the similarity transform mapping src onto
// dst with a least-median-of-squares fit: every two-point exact fit is
// scored by its median squared residual over all points, and the winner is
// refined by a least-squares fit over its inliers. Candidate enumeration is
// exhaustive, so the estimate is fully deterministic.
func fitSimilarityLMedS(src, dst []detector.Point) (similarity, error) {
	n := len(src)

	var best similarity
	bestMedian := math.Inf(1)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			cand, ok := twoPointFit(src[i], src[j], dst[i], dst[j])
			if !ok {
				continue
			}
			med := medianResidual(cand, src, dst)
			if med < bestMedian {
				bestMedian = med
				best = cand
			}
		}
	}
	if math.IsInf(bestMedian, 1) {
		// All source point pairs coincident; fall back to a plain fit.
		return fitSimilarityLS(src, dst)
	}

	// Robust scale estimate and 2.5-sigma inlier cut, then refit.
	sigma := 1.4826 * (1 + 5.0/float64(n-2)) * math.Sqrt(bestMedian)
	threshold := 2.5 * sigma

	var inSrc, inDst []detector.Point
	for i := range src {
		if math.Sqrt(best.residual(src[i], dst[i])) <= threshold {
			inSrc = append(inSrc, src[i])
			inDst = append(inDst, dst[i])
		}
	}
	if len(inSrc) < 2 {
		return best, nil
	}

	refined, err := fitSimilarityLS(inSrc, inDst)
	if err != nil {
		return best, nil
	}
	return refined, nil
}

// fitSimilarityLS is the closed-form least-squares similarity fit.
func fitSimilarityLS(src, dst []detector.Point) (similarity, error) {
	n := float64(len(src))

	var sCx, sCy, dCx, dCy float64
	for i := range src {
		sCx += float64(src[i].X)
		sCy += float64(src[i].Y)
		dCx += float64(dst[i].X)
		dCy += float64(dst[i].Y)
	}
	sCx /= n
	sCy /= n
	dCx /= n
	dCy /= n

	var numA, numB, den float64
	for i := range src {
		sx := float64(src[i].X) - sCx
		sy := float64(src[i].Y) - sCy
		dx := float64(dst[i].X) - dCx
		dy := float64(dst[i].Y) - dCy

		numA += sx*dx + sy*dy
		numB += sx*dy - sy*dx
		den += sx*sx + sy*sy
	}
	if den < 1e-12 {
		return similarity{}, fmt.Errorf("degenerate landmark configuration")
	}

	a := numA / den
	b := numB / den
	return similarity{
		a:  a,
		b:  b,
		tx: dCx - (a*sCx - b*sCy),
		ty: dCy - (b*sCx + a*sCy),
	}, nil
}

// twoPointFit solves the similarity exactly determined by two point
// correspondences. Returns ok=false when the source points coincide.
func twoPointFit(s1, s2, d1, d2 detector.Point) (similarity, bool) {
	sx := float64(s2.X - s1.X)
	sy := float64(s2.Y - s1.Y)
	den := sx*sx + sy*sy
	if den < 1e-12 {
		return similarity{}, false
	}

	dx := float64(d2.X - d1.X)
	dy := float64(d2.Y - d1.Y)

	a := (dx*sx + dy*sy) / den
	b := (dy*sx - dx*sy) / den

	return similarity{
		a:  a,
		b:  b,
		tx: float64(d1.X) - (a*float64(s1.X) - b*float64(s1.Y)),
		ty: float64(d1.Y) - (b*float64(s1.X) + a*float64(s1.Y)),
	}, true
}

func medianResidual(s similarity, src, dst []detector.Point) float64 {
	residuals := make([]float64, len(src))
	for i := range src {
		residuals[i] = s.residual(src[i], dst[i])
	}
	sort.Float64s(residuals)
	return residuals[len(residuals)/2]
}
