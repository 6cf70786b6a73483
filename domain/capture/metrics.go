package capture

import "time"

// ProducerStats summarises producer behaviour for instrumentation.
type ProducerStats struct {
	Captures     uint64
	EncodeErrors uint64
	Sequence     uint64
	LastCapture  time.Time
	Ready        bool
	Running      bool
}
