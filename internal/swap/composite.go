package swap

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/faceswap/internal/domain"
)

// Compositor pastes a refined crop back into the original target frame:
// inverse warp, soft edge mask, per-pixel alpha blend.
type Compositor struct {
	maskBorder int // border band forced to zero opacity, in crop pixels
	maskBlur   int // Gaussian kernel for the mask falloff, odd
}

// NewCompositor creates a compositor with the standard soft-mask geometry.
func NewCompositor() *Compositor {
	return &Compositor{
		maskBorder: 10,
		maskBlur:   15,
	}
}

// BuildMask creates the blend mask in crop space: full opacity with the
// border band zeroed, then blurred so opacity falls off smoothly toward the
// crop edge. Single channel, cropSize x cropSize.
func (c *Compositor) BuildMask(cropSize int) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0),
		cropSize, cropSize, gocv.MatTypeCV8U)

	gocv.Rectangle(&mask, image.Rect(0, 0, cropSize, cropSize),
		color.RGBA{}, c.maskBorder)
	gocv.GaussianBlur(mask, &mask, image.Pt(c.maskBlur, c.maskBlur), 0, 0, gocv.BorderDefault)

	return mask
}

// Composite warps refined and the blend mask from crop space back into the
// target frame through the inverse of transform, then alpha-blends:
// final = face*alpha + target*(1-alpha). The result always has the target's
// dimensions, and pixels with zero mask opacity are byte-identical to the
// target. Neither input Mat is modified.
func (c *Compositor) Composite(refined, target gocv.Mat, transform gocv.Mat, cropSize int) (gocv.Mat, error) {
	if refined.Rows() != cropSize || refined.Cols() != cropSize {
		return gocv.NewMat(), fmt.Errorf("%w: expected %dx%d crop, got %dx%d",
			domain.ErrInvalidInput, cropSize, cropSize, refined.Cols(), refined.Rows())
	}

	invTransform := gocv.NewMat()
	gocv.InvertAffineTransform(transform, &invTransform)
	defer invTransform.Close()

	targetSize := image.Pt(target.Cols(), target.Rows())

	warpedFace := gocv.NewMat()
	gocv.WarpAffine(refined, &warpedFace, invTransform, targetSize)
	defer warpedFace.Close()

	mask := c.BuildMask(cropSize)
	defer mask.Close()

	warpedMask := gocv.NewMat()
	gocv.WarpAffine(mask, &warpedMask, invTransform, targetSize)
	defer warpedMask.Close()

	return blend(warpedFace, target, warpedMask), nil
}

// blend mixes face over target weighted by the single-channel mask.
func blend(face, target, mask gocv.Mat) gocv.Mat {
	rows := target.Rows()
	cols := target.Cols()
	out := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m := mask.GetUCharAt(y, x)
			if m == 0 {
				out.SetUCharAt(y, x*3+0, target.GetUCharAt(y, x*3+0))
				out.SetUCharAt(y, x*3+1, target.GetUCharAt(y, x*3+1))
				out.SetUCharAt(y, x*3+2, target.GetUCharAt(y, x*3+2))
				continue
			}

			alpha := float32(m) / 255.0
			for ch := 0; ch < 3; ch++ {
				f := float32(face.GetUCharAt(y, x*3+ch))
				t := float32(target.GetUCharAt(y, x*3+ch))
				out.SetUCharAt(y, x*3+ch, clampByte(f*alpha+t*(1-alpha)+0.5))
			}
		}
	}

	return out
}
