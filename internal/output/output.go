// Package output contains the places rendered audio can go to.
package output

// Sink receives rendered samples and asks for more when it runs low.
type Sink interface {
	// Play starts or resumes output.
	Play() error

	// Pause stops output; buffered samples are kept.
	Pause() error

	// AddSamples appends one rendered buffer pass.
	AddSamples(left, right []float32) error

	// Seek tells the sink playback jumps to positionMs. Buffered samples
	// from before the jump are dropped.
	Seek(positionMs float64)

	// SetPlaybackSpeed tells the sink the samples that follow are rendered
	// at a new speed factor.
	SetPlaybackSpeed(speed float64)

	// SequencerFinished tells the sink no more samples will come unless
	// playback is started again.
	SequencerFinished()

	// SampleRequests delivers a value whenever the sink wants another buffer pass.
	SampleRequests() <-chan struct{}

	Close() error
}

// requester is embedded by sinks to signal sample requests without blocking.
type requester struct {
	requests chan struct{}
}

func newRequester() requester {
	return requester{requests: make(chan struct{}, 1)}
}

func (r requester) request() {
	select {
	case r.requests <- struct{}{}:
	default:
	}
}

// drain drops a pending request.
func (r requester) drain() {
	select {
	case <-r.requests:
	default:
	}
}

func (r requester) SampleRequests() <-chan struct{} {
	return r.requests
}
