// Package pipeline orchestrates the face swap: detection, alignment,
// identity embedding, generation, refinement, and paste-back.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/faceswap/internal/detector"
	"github.com/dudu/faceswap/internal/domain"
	"github.com/dudu/faceswap/internal/swap"
)

// Config holds pipeline configuration. Model sessions are loaded once in
// New and shared read-only across SwapImage calls.
type Config struct {
	DetectorModelPath  string
	EncoderModelPath   string
	GeneratorModelPath string
	EmapPath           string // optional sidecar; empty feeds the embedding directly
	DetectionSize      int
	ConfThreshold      float32
	NMSThreshold       float32
	Accelerated        bool
}

// Pipeline performs face swaps between still images. A Pipeline may be
// shared across goroutines for different images; a single SwapImage call
// runs its stages strictly in sequence.
type Pipeline struct {
	cfg Config
	log *zap.SugaredLogger

	detector  FaceDetector
	encoder   FaceEncoder
	generator FaceGenerator

	aligner    *swap.Aligner
	refiner    *swap.Refiner
	compositor *swap.Compositor
}

// New loads all model sessions and assembles the pipeline. The inference
// runtime must already be initialized.
func New(cfg Config, log *zap.SugaredLogger) (*Pipeline, error) {
	det, err := detector.NewSCRFD(
		cfg.DetectorModelPath,
		cfg.DetectionSize,
		cfg.ConfThreshold,
		cfg.NMSThreshold,
		cfg.Accelerated,
	)
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}

	enc, err := swap.NewArcFaceEncoder(cfg.EncoderModelPath, cfg.Accelerated)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("create encoder: %w", err)
	}

	gen, err := swap.NewInswapper(cfg.GeneratorModelPath, cfg.EmapPath, cfg.Accelerated)
	if err != nil {
		det.Close()
		enc.Close()
		return nil, fmt.Errorf("create generator: %w", err)
	}

	return &Pipeline{
		cfg:        cfg,
		log:        log,
		detector:   det,
		encoder:    enc,
		generator:  gen,
		aligner:    swap.NewAligner(),
		refiner:    swap.NewRefiner(),
		compositor: swap.NewCompositor(),
	}, nil
}

// SwapImage swaps the identity of the first face in the source image onto
// every face of the target image and writes the composited result to
// outputPath. Nothing is written unless the full composite succeeds.
func (p *Pipeline) SwapImage(sourcePath, targetPath, outputPath string) error {
	src := gocv.IMRead(sourcePath, gocv.IMReadColor)
	if src.Empty() {
		return fmt.Errorf("%w: source %q", domain.ErrImageLoad, sourcePath)
	}
	defer src.Close()

	tgt := gocv.IMRead(targetPath, gocv.IMReadColor)
	if tgt.Empty() {
		return fmt.Errorf("%w: target %q", domain.ErrImageLoad, targetPath)
	}
	defer tgt.Close()

	detectStart := time.Now()
	srcFaces, err := p.detector.Detect(src)
	if err != nil {
		return fmt.Errorf("detect source faces: %w", err)
	}
	if len(srcFaces) == 0 {
		return fmt.Errorf("%w: source %q", domain.ErrNoFaceDetected, sourcePath)
	}

	tgtFaces, err := p.detector.Detect(tgt)
	if err != nil {
		return fmt.Errorf("detect target faces: %w", err)
	}
	if len(tgtFaces) == 0 {
		return fmt.Errorf("%w: target %q", domain.ErrNoFaceDetected, targetPath)
	}
	p.log.Infow("faces detected",
		"source", len(srcFaces),
		"target", len(tgtFaces),
		"took", time.Since(detectStart))

	// The source identity is computed once and reused for every target face.
	identity, err := p.sourceIdentity(src, srcFaces[0])
	if err != nil {
		return err
	}

	result := tgt.Clone()
	for i, face := range tgtFaces {
		swapStart := time.Now()
		next, err := p.swapFace(result, face, identity)
		if err != nil {
			result.Close()
			return fmt.Errorf("swap target face %d: %w", i, err)
		}
		result.Close()
		result = next
		p.log.Debugw("face swapped", "index", i, "took", time.Since(swapStart))
	}
	defer result.Close()

	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if ok := gocv.IMWrite(outputPath, result); !ok {
		return fmt.Errorf("write output image %q", outputPath)
	}

	p.log.Infow("output written", "path", outputPath, "faces", len(tgtFaces))
	return nil
}

// sourceIdentity aligns the source face to the 112 frame and embeds it.
func (p *Pipeline) sourceIdentity(img gocv.Mat, face detector.Face) (*swap.Embedding, error) {
	aligned, err := p.aligner.Align(img, face.Landmarks.Points(), swap.CropEmbed)
	if err != nil {
		return nil, fmt.Errorf("align source face: %w", err)
	}
	defer aligned.Close()

	identity, err := p.encoder.Embed(aligned.Crop)
	if err != nil {
		return nil, fmt.Errorf("embed source face: %w", err)
	}
	return identity, nil
}

// swapFace replaces one face in frame, returning a new composited frame.
func (p *Pipeline) swapFace(frame gocv.Mat, face detector.Face, identity *swap.Embedding) (gocv.Mat, error) {
	aligned, err := p.aligner.Align(frame, face.Landmarks.Points(), swap.CropSwap)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer aligned.Close()

	generated, err := p.generator.Generate(aligned.Crop, identity)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer generated.Close()

	refined := p.refiner.Refine(generated, aligned.Crop)
	defer refined.Close()

	return p.compositor.Composite(refined, frame, aligned.Transform, swap.CropSwap)
}

// Close releases all model sessions.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range []interface{ Close() error }{p.detector, p.encoder, p.generator} {
		if c != nil {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
