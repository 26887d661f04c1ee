package swap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/faceswap/internal/detector"
	"github.com/dudu/faceswap/internal/domain"
)

// groundTruth is an arbitrary similarity used to synthesize landmark sets:
// rotation 30 degrees, scale 1.7, translation (40, -12).
func groundTruth() similarity {
	theta := 30.0 * math.Pi / 180.0
	scale := 1.7
	return similarity{
		a:  scale * math.Cos(theta),
		b:  scale * math.Sin(theta),
		tx: 40,
		ty: -12,
	}
}

// invert returns the inverse similarity, for round-trip checks.
func invert(s similarity) similarity {
	den := s.a*s.a + s.b*s.b
	ia := s.a / den
	ib := -s.b / den
	return similarity{
		a:  ia,
		b:  ib,
		tx: -(ia*s.tx - ib*s.ty),
		ty: -(ib*s.tx + ia*s.ty),
	}
}

// synthLandmarks maps the canonical pose through the inverse of gt, so that
// fitting landmarks -> pose should recover gt.
func synthLandmarks(gt similarity) []detector.Point {
	inv := invert(gt)
	pose := ReferencePose(CropEmbed)
	pts := make([]detector.Point, len(pose))
	for i, p := range pose {
		x, y := inv.apply(p)
		pts[i] = detector.Point{X: float32(x), Y: float32(y)}
	}
	return pts
}

func TestFitSimilarityExactRecovery(t *testing.T) {
	gt := groundTruth()
	src := synthLandmarks(gt)
	pose := ReferencePose(CropEmbed)

	got, err := fitSimilarityLMedS(src, pose[:])
	require.NoError(t, err)

	assert.InDelta(t, gt.a, got.a, 1e-3)
	assert.InDelta(t, gt.b, got.b, 1e-3)
	assert.InDelta(t, gt.tx, got.tx, 1e-2)
	assert.InDelta(t, gt.ty, got.ty, 1e-2)
}

func TestFitSimilarityIgnoresSingleOutlier(t *testing.T) {
	gt := groundTruth()
	src := synthLandmarks(gt)
	pose := ReferencePose(CropEmbed)

	// Knock the nose far off; the robust fit should still map the other
	// four points onto the pose.
	src[2].X += 300
	src[2].Y -= 250

	got, err := fitSimilarityLMedS(src, pose[:])
	require.NoError(t, err)

	for i, p := range src {
		if i == 2 {
			continue
		}
		r := math.Sqrt(got.residual(p, pose[i]))
		assert.Less(t, r, 0.05, "inlier %d residual too large", i)
	}
}

func TestFitSimilarityDeterministic(t *testing.T) {
	gt := groundTruth()
	src := synthLandmarks(gt)
	src[4].X += 17 // some noise so the fit is not trivially exact
	pose := ReferencePose(CropEmbed)

	first, err := fitSimilarityLMedS(src, pose[:])
	require.NoError(t, err)
	second, err := fitSimilarityLMedS(src, pose[:])
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTransformRoundTrip(t *testing.T) {
	gt := groundTruth()
	src := synthLandmarks(gt)
	pose := ReferencePose(CropSwap)

	sim, err := fitSimilarityLMedS(src, pose[:])
	require.NoError(t, err)
	inv := invert(sim)

	corners := []detector.Point{
		{X: 0, Y: 0},
		{X: CropSwap, Y: 0},
		{X: 0, Y: CropSwap},
		{X: CropSwap, Y: CropSwap},
	}
	for _, c := range corners {
		fx, fy := sim.apply(c)
		bx, by := inv.apply(detector.Point{X: float32(fx), Y: float32(fy)})
		assert.InDelta(t, float64(c.X), bx, 1e-2)
		assert.InDelta(t, float64(c.Y), by, 1e-2)
	}
}

func TestReferencePoseScaling(t *testing.T) {
	p112 := ReferencePose(CropEmbed)
	p128 := ReferencePose(CropSwap)

	scale := float32(CropSwap) / float32(CropEmbed)
	for i := range p112 {
		assert.InDelta(t, float64(p112[i].X*scale), float64(p128[i].X), 1e-4)
		assert.InDelta(t, float64(p112[i].Y*scale), float64(p128[i].Y), 1e-4)
	}
}

func TestAlignRejectsBadInput(t *testing.T) {
	img := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	defer img.Close()
	aligner := NewAligner()

	_, err := aligner.Align(img, []detector.Point{{X: 1, Y: 1}}, CropEmbed)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	pose := ReferencePose(CropEmbed)
	_, err = aligner.Align(img, pose[:], 99)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAlignProducesCropAndTransform(t *testing.T) {
	img := gocv.NewMatWithSize(300, 300, gocv.MatTypeCV8UC3)
	defer img.Close()

	gt := groundTruth()
	landmarks := synthLandmarks(gt)

	aligner := NewAligner()
	res, err := aligner.Align(img, landmarks, CropEmbed)
	require.NoError(t, err)
	defer res.Close()

	assert.Equal(t, CropEmbed, res.Crop.Rows())
	assert.Equal(t, CropEmbed, res.Crop.Cols())
	assert.Equal(t, 2, res.Transform.Rows())
	assert.Equal(t, 3, res.Transform.Cols())
}
