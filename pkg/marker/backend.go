package marker

import "context"

// QuadDetector finds marker-shaped quads in an image, and decodes their IDs
type QuadDetector interface {
	DetectQuads(img *GrayImage) ([]RawCandidate, error)
}

// PoseSolver estimates the camera-relative pose of a square marker from its 4 corners.
// It returns zero, one, or two solutions.
type PoseSolver interface {
	Solve(corners Quad) []PoseSolution
}

// SolverFactory builds a PoseSolver for a camera with the given focal length (in pixels),
// principal point, and marker edge length (in millimeters).
type SolverFactory func(focalPx, cx, cy, markerSizeMM float64) PoseSolver

// Backend is a source of raw candidates. The camera backend runs a real detector
// on captured frames, and the mock backend synthesizes its own.
type Backend interface {
	// Detect candidates in the frame. The frame may be nil for backends that do
	// not consume images.
	Detect(ctx context.Context, frame *Frame, observer *ObserverPose) ([]RawCandidate, error)
	// Returns the pixel dimensions of the images that candidates refer to
	ImageSize() (width, height int)
	Close()
}

// FrameSource produces the frames that are fed to a Backend
type FrameSource interface {
	NextFrame(ctx context.Context) (*Frame, error)
}
