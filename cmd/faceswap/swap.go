package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dudu/faceswap/internal/inference"
	"github.com/dudu/faceswap/internal/models"
	"github.com/dudu/faceswap/internal/pipeline"
)

var swapOpts struct {
	SourcePath string
	TargetPath string
	OutputPath string
	CPUOnly    bool
}

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Swap the source face onto every face in the target image",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSwap()
	},
}

func init() {
	swapCmd.Flags().StringVarP(&swapOpts.SourcePath, "source", "s", "", "image providing the face identity")
	swapCmd.Flags().StringVarP(&swapOpts.TargetPath, "target", "t", "", "image whose faces are replaced")
	swapCmd.Flags().StringVarP(&swapOpts.OutputPath, "output", "o", "", "path for the composited result")
	swapCmd.Flags().BoolVar(&swapOpts.CPUOnly, "cpu", false, "force CPU inference")

	swapCmd.MarkFlagRequired("source")
	swapCmd.MarkFlagRequired("target")
	swapCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(swapCmd)
}

func runSwap() error {
	log := zap.L().Sugar()

	if missing := models.Verify(cfg.ModelDir); len(missing) > 0 {
		return fmt.Errorf("missing model files in %s: %s (run `faceswap download` first)",
			cfg.ModelDir, strings.Join(missing, ", "))
	}

	if err := inference.Init(cfg.OrtLibrary); err != nil {
		return fmt.Errorf("initialize inference runtime: %w", err)
	}
	defer inference.Shutdown()

	accelerated := !cfg.CPUOnly && !swapOpts.CPUOnly

	pipeCfg := pipeline.Config{
		DetectorModelPath:  cfg.ModelPath("scrfd_10g.onnx"),
		EncoderModelPath:   cfg.ModelPath("w600k_r50.onnx"),
		GeneratorModelPath: cfg.ModelPath("inswapper_128.onnx"),
		EmapPath:           optionalEmapPath(),
		DetectionSize:      cfg.DetectionSize,
		ConfThreshold:      cfg.ConfThreshold,
		NMSThreshold:       cfg.NMSThreshold,
		Accelerated:        accelerated,
	}

	p, err := pipeline.New(pipeCfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	start := time.Now()
	if err := p.SwapImage(swapOpts.SourcePath, swapOpts.TargetPath, swapOpts.OutputPath); err != nil {
		return err
	}
	log.Infow("swap complete", "output", swapOpts.OutputPath, "took", time.Since(start))
	return nil
}

// optionalEmapPath returns the latent projection sidecar if one is
// present next to the models, or empty to feed the embedding directly.
func optionalEmapPath() string {
	path := cfg.ModelPath("emap.bin")
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path
	}
	return ""
}
