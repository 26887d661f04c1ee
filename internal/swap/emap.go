package swap

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"gorgonia.org/tensor"
)

// Emap is the 512x512 matrix that projects an ArcFace embedding into the
// latent space the generator was trained on. It ships as a little-endian
// float32 sidecar next to the generator model.
type Emap struct {
	// Stored transposed so the projection is a plain matrix-vector product.
	m *tensor.Dense
}

// LoadEmap reads the emap matrix from a binary sidecar file.
func LoadEmap(path string) (*Emap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read emap file: %w", err)
	}

	expectedSize := EmbeddingSize * EmbeddingSize * 4
	if len(data) != expectedSize {
		return nil, fmt.Errorf("emap file size mismatch: expected %d bytes, got %d", expectedSize, len(data))
	}

	backing := make([]float32, EmbeddingSize*EmbeddingSize)
	for i := 0; i < EmbeddingSize; i++ {
		for j := 0; j < EmbeddingSize; j++ {
			offset := (i*EmbeddingSize + j) * 4
			bits := binary.LittleEndian.Uint32(data[offset : offset+4])
			backing[j*EmbeddingSize+i] = math.Float32frombits(bits)
		}
	}

	return &Emap{
		m: tensor.New(
			tensor.WithShape(EmbeddingSize, EmbeddingSize),
			tensor.WithBacking(backing),
		),
	}, nil
}

// Latent projects the embedding through the emap and re-normalizes:
// latent = normalize(embedding @ emap).
func (e *Emap) Latent(embedding *Embedding) (*Embedding, error) {
	vec := tensor.New(
		tensor.WithShape(EmbeddingSize),
		tensor.WithBacking(append([]float32(nil), embedding[:]...)),
	)

	out, err := e.m.MatVecMul(vec)
	if err != nil {
		return nil, fmt.Errorf("emap projection: %w", err)
	}

	return normalizeEmbedding(out.Data().([]float32)), nil
}
