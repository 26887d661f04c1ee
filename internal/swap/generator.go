package swap

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/faceswap/internal/domain"
	"github.com/dudu/faceswap/internal/inference"
)

// Inswapper generates a face in the 128 canonical frame carrying the source
// identity, conditioned on the aligned target crop.
type Inswapper struct {
	session *inference.Session
	emap    *Emap
}

// NewInswapper creates the generator from an ONNX model file. emapPath may
// be empty or missing, in which case the unit embedding is fed to the model
// directly instead of being projected through the emap first.
func NewInswapper(modelPath, emapPath string, accelerated bool) (*Inswapper, error) {
	inputNames := []string{"target", "source"}
	outputNames := []string{"output"}

	session, err := inference.NewSession(modelPath, inputNames, outputNames, accelerated)
	if err != nil {
		return nil, fmt.Errorf("create Inswapper session: %w", err)
	}

	var emap *Emap
	if emapPath != "" {
		emap, err = LoadEmap(emapPath)
		if err != nil {
			session.Destroy()
			return nil, fmt.Errorf("%w: %v", domain.ErrModelInference, err)
		}
	} else {
		zap.L().Sugar().Debug("no emap sidecar configured, feeding embedding directly")
	}

	return &Inswapper{session: session, emap: emap}, nil
}

// Generate produces the swapped face for an aligned 128x128 target crop and
// a unit source identity vector. The result is a fresh 128x128 BGR image.
func (s *Inswapper) Generate(crop gocv.Mat, identity *Embedding) (gocv.Mat, error) {
	if crop.Rows() != CropSwap || crop.Cols() != CropSwap {
		return gocv.NewMat(), fmt.Errorf("%w: expected %dx%d crop, got %dx%d",
			domain.ErrInvalidInput, CropSwap, CropSwap, crop.Cols(), crop.Rows())
	}

	latent := identity
	if s.emap != nil {
		var err error
		latent, err = s.emap.Latent(identity)
		if err != nil {
			return gocv.NewMat(), fmt.Errorf("%w: %v", domain.ErrModelInference, err)
		}
	}

	targetData := preprocessSwap(crop)

	targetTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, CropSwap, CropSwap),
		targetData,
	)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: create target tensor: %v", domain.ErrModelInference, err)
	}
	defer targetTensor.Destroy()

	sourceTensor, err := ort.NewTensor(
		ort.NewShape(1, EmbeddingSize),
		latent[:],
	)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: create source tensor: %v", domain.ErrModelInference, err)
	}
	defer sourceTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 3, CropSwap, CropSwap})
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: create output tensor: %v", domain.ErrModelInference, err)
	}
	defer outputTensor.Destroy()

	err = s.session.Run(
		[]ort.Value{targetTensor, sourceTensor},
		[]ort.Value{outputTensor},
	)
	if err != nil {
		return gocv.NewMat(), err
	}

	return postprocessSwap(outputTensor.GetData()), nil
}

// Close releases generator resources.
func (s *Inswapper) Close() error {
	return s.session.Destroy()
}

// preprocessSwap converts the BGR crop to the generator's input blob: RGB,
// plane-major NCHW, scaled to [0, 1].
func preprocessSwap(img gocv.Mat) []float32 {
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(CropSwap, CropSwap),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	return bytesToFloat32Slice(blob.ToBytes())
}

// postprocessSwap converts NCHW [0,1] model output back to a BGR byte image.
func postprocessSwap(data []float32) gocv.Mat {
	result := gocv.NewMatWithSize(CropSwap, CropSwap, gocv.MatTypeCV8UC3)

	for y := 0; y < CropSwap; y++ {
		for x := 0; x < CropSwap; x++ {
			rIdx := 0*CropSwap*CropSwap + y*CropSwap + x
			gIdx := 1*CropSwap*CropSwap + y*CropSwap + x
			bIdx := 2*CropSwap*CropSwap + y*CropSwap + x

			r := clampByte(data[rIdx] * 255.0)
			g := clampByte(data[gIdx] * 255.0)
			b := clampByte(data[bIdx] * 255.0)

			result.SetUCharAt(y, x*3+0, b)
			result.SetUCharAt(y, x*3+1, g)
			result.SetUCharAt(y, x*3+2, r)
		}
	}

	return result
}

func clampByte(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
