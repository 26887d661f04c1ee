package swap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/faceswap/internal/domain"
)

func TestBuildMaskSoftEdges(t *testing.T) {
	c := NewCompositor()
	mask := c.BuildMask(CropSwap)
	defer mask.Close()

	require.Equal(t, CropSwap, mask.Rows())
	require.Equal(t, CropSwap, mask.Cols())

	center := mask.GetUCharAt(CropSwap/2, CropSwap/2)
	corners := []uint8{
		mask.GetUCharAt(0, 0),
		mask.GetUCharAt(0, CropSwap-1),
		mask.GetUCharAt(CropSwap-1, 0),
		mask.GetUCharAt(CropSwap-1, CropSwap-1),
	}

	assert.EqualValues(t, 255, center)
	for i, corner := range corners {
		assert.Less(t, corner, center, "corner %d should be darker than center", i)
	}

	// The blur must leave a gradual falloff, not a hard step: some pixel in
	// the border band carries an intermediate value.
	intermediate := false
	for x := 0; x < CropSwap; x++ {
		v := mask.GetUCharAt(12, x)
		if v > 16 && v < 240 {
			intermediate = true
			break
		}
	}
	assert.True(t, intermediate, "mask edge has no soft falloff")
}

func TestBlendZeroAlphaLeavesTargetUntouched(t *testing.T) {
	face := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 40, 50, gocv.MatTypeCV8UC3)
	defer face.Close()
	target := gradientMat(40, 50)
	defer target.Close()
	mask := gocv.NewMatWithSize(40, 50, gocv.MatTypeCV8U) // all zero
	defer mask.Close()

	out := blend(face, target, mask)
	defer out.Close()

	assert.Equal(t, 0, maxAbsDiff(out, target), "alpha=0 pixels must be byte-identical")
}

func TestBlendFullAlphaTakesFace(t *testing.T) {
	face := gradientMat(40, 50)
	defer face.Close()
	target := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 40, 50, gocv.MatTypeCV8UC3)
	defer target.Close()
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 40, 50, gocv.MatTypeCV8U)
	defer mask.Close()

	out := blend(face, target, mask)
	defer out.Close()

	assert.LessOrEqual(t, maxAbsDiff(out, face), 1)
}

func TestCompositeOutputMatchesTargetDimensions(t *testing.T) {
	refined := gradientMat(CropSwap, CropSwap)
	defer refined.Close()
	target := gradientMat(240, 320)
	defer target.Close()

	// Identity-like placement: the crop maps straight into the top-left
	// corner of the target.
	transform := similarity{a: 1, b: 0, tx: 0, ty: 0}.mat()
	defer transform.Close()

	c := NewCompositor()
	out, err := c.Composite(refined, target, transform, CropSwap)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, target.Rows(), out.Rows())
	assert.Equal(t, target.Cols(), out.Cols())

	// Far outside the pasted crop the mask is zero, so the output equals
	// the target exactly.
	y, x := 200, 300
	for ch := 0; ch < 3; ch++ {
		assert.Equal(t, target.GetUCharAt(y, x*3+ch), out.GetUCharAt(y, x*3+ch))
	}
}

func TestCompositeRejectsWrongCropSize(t *testing.T) {
	refined := gradientMat(64, 64)
	defer refined.Close()
	target := gradientMat(240, 320)
	defer target.Close()
	transform := similarity{a: 1}.mat()
	defer transform.Close()

	c := NewCompositor()
	_, err := c.Composite(refined, target, transform, CropSwap)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
