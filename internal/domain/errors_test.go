package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{ErrImageLoad, ErrNoFaceDetected, ErrInvalidInput, ErrModelInference}
	for i, a := range all {
		for j, b := range all {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}

func TestWrappedErrorsMatch(t *testing.T) {
	err := fmt.Errorf("source image %q: %w", "missing.jpg", ErrImageLoad)
	assert.True(t, errors.Is(err, ErrImageLoad))
	assert.False(t, errors.Is(err, ErrNoFaceDetected))
}
