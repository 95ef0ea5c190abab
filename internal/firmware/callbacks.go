package firmware

import "time"

// Phase names a step of the programming sequence.
type Phase string

const (
	PhaseEntering   Phase = "entering"
	PhaseReading    Phase = "reading"
	PhaseWriting    Phase = "writing"
	PhaseActivating Phase = "activating"
	PhaseExiting    Phase = "exiting"
	PhaseComplete   Phase = "complete"
)

// Progress is passed to the ProgressCallback as programming advances.
type Progress struct {
	Phase Phase

	// CurrentBlock is the number of blocks written so far.
	CurrentBlock int
	TotalBlocks  int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	BytesWritten int
	Retries      int
	ElapsedTime  time.Duration
}

// ProgressCallback is called synchronously from Program. Implementations
// should return quickly.
type ProgressCallback func(Progress)
