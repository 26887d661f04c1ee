// Package domain holds the error taxonomy shared by every pipeline stage.
package domain

import "errors"

var (
	// ErrImageLoad indicates an input image path is missing or unreadable.
	ErrImageLoad = errors.New("image could not be loaded")

	// ErrNoFaceDetected indicates zero faces were found in an input image.
	// This is a normal user-facing outcome, not an internal fault.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrInvalidInput indicates a contract violation between components,
	// such as a malformed landmark count or an unsupported crop size.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelInference indicates the underlying model invocation failed:
	// missing or corrupt weights, a shape mismatch, or a runtime fault.
	// Never retried; model state does not change between attempts.
	ErrModelInference = errors.New("model inference failed")
)
