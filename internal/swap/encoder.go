package swap

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/faceswap/internal/domain"
	"github.com/dudu/faceswap/internal/inference"
)

// EmbeddingSize is the dimensionality of the identity vector.
const EmbeddingSize = 512

// Embedding is a fixed-length face identity vector, always L2-normalized
// before use.
type Embedding [EmbeddingSize]float32

// ArcFaceEncoder extracts identity embeddings from aligned 112x112 crops
// using the ArcFace recognition model.
type ArcFaceEncoder struct {
	session *inference.Session
}

// NewArcFaceEncoder creates an ArcFace encoder from an ONNX model file.
func NewArcFaceEncoder(modelPath string, accelerated bool) (*ArcFaceEncoder, error) {
	inputNames := []string{"input.1"}
	outputNames := []string{"683"} // output node name from the model

	session, err := inference.NewSession(modelPath, inputNames, outputNames, accelerated)
	if err != nil {
		return nil, fmt.Errorf("create ArcFace session: %w", err)
	}

	return &ArcFaceEncoder{session: session}, nil
}

// Embed computes the unit-length identity vector of an aligned face. The
// crop must already be in the 112 canonical frame; only dimensions are
// re-validated here.
func (e *ArcFaceEncoder) Embed(crop gocv.Mat) (*Embedding, error) {
	if crop.Rows() != CropEmbed || crop.Cols() != CropEmbed {
		return nil, fmt.Errorf("%w: expected %dx%d crop, got %dx%d",
			domain.ErrInvalidInput, CropEmbed, CropEmbed, crop.Cols(), crop.Rows())
	}

	inputData := preprocessEmbed(crop)

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, CropEmbed, CropEmbed),
		inputData,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create input tensor: %v", domain.ErrModelInference, err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, EmbeddingSize})
	if err != nil {
		return nil, fmt.Errorf("%w: create output tensor: %v", domain.ErrModelInference, err)
	}
	defer outputTensor.Destroy()

	if err := e.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, err
	}

	return normalizeEmbedding(outputTensor.GetData()), nil
}

// Close releases encoder resources.
func (e *ArcFaceEncoder) Close() error {
	return e.session.Destroy()
}

// preprocessEmbed converts a BGR crop to the model's input blob: RGB,
// plane-major NCHW, scaled as (v - 127.5) / 128.
func preprocessEmbed(img gocv.Mat) []float32 {
	blob := gocv.BlobFromImage(img, 1.0/128.0, image.Pt(CropEmbed, CropEmbed),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	return bytesToFloat32Slice(blob.ToBytes())
}

// normalizeEmbedding L2-normalizes raw model output into an Embedding.
func normalizeEmbedding(data []float32) *Embedding {
	var embedding Embedding

	var norm float64
	for _, v := range data[:EmbeddingSize] {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)

	if norm < 1e-10 {
		norm = 1
	}

	for i := 0; i < EmbeddingSize; i++ {
		embedding[i] = data[i] / float32(norm)
	}

	return &embedding
}

// Norm returns the L2 length of the embedding.
func (e *Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity computes cosine similarity between two embeddings.
// Since embeddings are unit length, this is the plain dot product.
func CosineSimilarity(a, b *Embedding) float32 {
	var dot float32
	for i := 0; i < EmbeddingSize; i++ {
		dot += a[i] * b[i]
	}
	return dot
}

func bytesToFloat32Slice(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}
