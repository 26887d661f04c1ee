package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x1, y1, x2, y2 float32) BoundingBox {
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b BoundingBox
		want float32
	}{
		{"identical", box(0, 0, 10, 10), box(0, 0, 10, 10), 1.0},
		{"disjoint", box(0, 0, 10, 10), box(20, 20, 30, 30), 0.0},
		{"touching edges", box(0, 0, 10, 10), box(10, 0, 20, 10), 0.0},
		{"half overlap", box(0, 0, 10, 10), box(5, 0, 15, 10), 50.0 / 150.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, iou(tt.a, tt.b), 1e-6)
		})
	}
}

func TestNMSSuppressesOverlaps(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(0, 0, 100, 100), Score: 0.9},
		{BoundingBox: box(5, 5, 105, 105), Score: 0.8}, // heavy overlap with first
		{BoundingBox: box(300, 300, 400, 400), Score: 0.7},
	}

	kept := nms(faces, 0.4)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Score)
	assert.Equal(t, float32(0.7), kept[1].Score)
}

func TestNMSKeepsHighestScoreFirst(t *testing.T) {
	faces := []Face{
		{BoundingBox: box(300, 300, 400, 400), Score: 0.6},
		{BoundingBox: box(0, 0, 100, 100), Score: 0.95},
	}

	kept := nms(faces, 0.4)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.95), kept[0].Score)
}

func TestNMSEmpty(t *testing.T) {
	assert.Empty(t, nms(nil, 0.4))
}

func TestLandmarksPointsOrder(t *testing.T) {
	lm := Landmarks{
		LeftEye:    Point{1, 2},
		RightEye:   Point{3, 4},
		Nose:       Point{5, 6},
		LeftMouth:  Point{7, 8},
		RightMouth: Point{9, 10},
	}

	pts := lm.Points()
	require.Len(t, pts, 5)
	assert.Equal(t, Point{1, 2}, pts[0])
	assert.Equal(t, Point{9, 10}, pts[4])
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, lm.AsSlice())
}
