package pipeline

import "fmt"

// Stage names used in StageError.
const (
	StageOpen      = "open"
	StageDetect    = "detect"
	StageSelect    = "select"
	StageGapFill   = "gapfill"
	StageSmooth    = "smooth"
	StageNormalize = "normalize"
	StagePacket    = "packet"
	StageWrite     = "write"
)

// StageError identifies the video and stage at which processing failed.
type StageError struct {
	VideoID string
	Stage   string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("video %s: %s: %v", e.VideoID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(videoID, stage string, err error) error {
	return &StageError{VideoID: videoID, Stage: stage, Err: err}
}
