// Package models manages the ONNX model artifacts the pipeline needs:
// a manifest of known files, verification against a local directory, and
// download with progress reporting.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Artifact names one model file and where to fetch it from.
type Artifact struct {
	Name string
	URL  string
}

// Manifest lists every model artifact the pipeline loads.
var Manifest = []Artifact{
	{
		Name: "scrfd_10g.onnx",
		URL:  "https://huggingface.co/Aitrepreneur/insightface/resolve/main/models/buffalo_l/scrfd_10g_bnkps.onnx",
	},
	{
		Name: "w600k_r50.onnx",
		URL:  "https://huggingface.co/ezioruan/inswapper_128.onnx/resolve/main/w600k_r50.onnx",
	},
	{
		Name: "inswapper_128.onnx",
		URL:  "https://huggingface.co/ezioruan/inswapper_128.onnx/resolve/main/inswapper_128.onnx",
	},
}

// Verify reports which manifest artifacts are missing from dir.
func Verify(dir string) []string {
	var missing []string
	for _, a := range Manifest {
		info, err := os.Stat(filepath.Join(dir, a.Name))
		if err != nil || info.Size() == 0 {
			missing = append(missing, a.Name)
		}
	}
	return missing
}

// Download fetches every missing manifest artifact into dir, streaming
// each file to disk with a progress bar on stderr. A partially written
// file is removed on failure.
func Download(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	log := zap.L().Sugar()
	for _, a := range Manifest {
		dest := filepath.Join(dir, a.Name)
		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			log.Debugw("model already present", "name", a.Name)
			continue
		}
		if err := downloadArtifact(ctx, a, dest); err != nil {
			return fmt.Errorf("download %s: %w", a.Name, err)
		}
		log.Infow("model downloaded", "name", a.Name)
	}
	return nil
}

func downloadArtifact(ctx context.Context, a Artifact, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetDescription(a.Name),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)

	_, err = io.Copy(io.MultiWriter(out, bar), resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
