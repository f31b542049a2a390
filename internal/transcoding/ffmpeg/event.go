package ffmpeg

// Event subprocess event, one of Start, CodecData, Progress, End, Failure
type Event interface {
	event()
}

// Start the subprocess was spawned
type Start struct {
	CommandLine string
}

// CodecData input metadata reported by ffmpeg before transcoding starts
type CodecData struct {
	Format       string   `json:"format"`
	Audio        string   `json:"audio"`
	AudioDetails []string `json:"audio_details"`
	Video        string   `json:"video"`
	VideoDetails []string `json:"video_details"`
	Duration     string   `json:"duration"`
}

// Progress one ffmpeg status line
type Progress struct {
	Frames     int64   `json:"frames"`
	FPS        float64 `json:"currentFps"`
	Kbps       float64 `json:"currentKbps"`
	TargetSize int64   `json:"targetSize"`
	Timemark   string  `json:"timemark"`
}

// End the subprocess exited with status 0
type End struct{}

// Failure the subprocess could not run or exited nonzero
type Failure struct {
	Err      error
	ExitCode int
	// Stderr last lines written by the subprocess
	Stderr string
}

func (Start) event()     {}
func (CodecData) event() {}
func (Progress) event()  {}
func (End) event()       {}
func (Failure) event()   {}
