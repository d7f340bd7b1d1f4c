// Package orb finds ORB keypoints with OpenCV and returns their binary
// descriptors for the bag-of-visual-words extractor.
package orb

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/crimson-sun/pilar/internal/engine/imgproc"
)

// DescriptorSize is the byte length of one ORB descriptor.
const DescriptorSize = 32

// DefaultFeatures is the keypoint budget used when none is configured.
const DefaultFeatures = 500

// Detector wraps a gocv ORB instance. OpenCV feature detectors are not
// safe for concurrent use, so calls are serialized.
type Detector struct {
	mu       sync.Mutex
	orb      gocv.ORB
	features int
	closed   bool
}

// New creates a detector that keeps at most features keypoints per image.
// Remaining parameters match OpenCV's ORB defaults.
func New(features int) *Detector {
	if features <= 0 {
		features = DefaultFeatures
	}
	return &Detector{
		orb:      gocv.NewORBWithParams(features, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20),
		features: features,
	}
}

// Features returns the keypoint budget.
func (d *Detector) Features() int { return d.features }

// Descriptors detects keypoints on g and returns one 32-byte descriptor per
// keypoint. An image without keypoints yields nil and no error.
func (d *Detector) Descriptors(g *imgproc.Gray) ([][]byte, error) {
	if g == nil || g.W == 0 || g.H == 0 {
		return nil, nil
	}
	mat, err := gocv.NewMatFromBytes(g.H, g.W, gocv.MatTypeCV8UC1, g.Pix)
	if err != nil {
		return nil, fmt.Errorf("orb: wrapping raster: %w", err)
	}
	defer mat.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("orb: detector closed")
	}
	kps, desc := d.orb.DetectAndCompute(mat, mask)
	d.mu.Unlock()
	defer desc.Close()

	if len(kps) == 0 || desc.Empty() {
		return nil, nil
	}
	if desc.Cols() != DescriptorSize {
		return nil, fmt.Errorf("orb: descriptor width %d, want %d", desc.Cols(), DescriptorSize)
	}
	raw := desc.ToBytes()
	rows := desc.Rows()
	out := make([][]byte, rows)
	for i := 0; i < rows; i++ {
		row := make([]byte, DescriptorSize)
		copy(row, raw[i*DescriptorSize:(i+1)*DescriptorSize])
		out[i] = row
	}
	return out, nil
}

// Close releases the OpenCV detector.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.orb.Close()
}
