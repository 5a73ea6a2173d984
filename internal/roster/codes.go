package roster

import (
	"fmt"
	"sync/atomic"
	"time"
)

const synthesizedCodePrefix = "NAME"

// CodeProvider issues synthesized guest codes for entries that arrive
// without one. Issued codes must never repeat within the process.
type CodeProvider interface {
	NewCode() string
}

type sequenceCodeProvider struct {
	clock    func() time.Time
	sequence atomic.Int64
}

// NewSequenceCodeProvider constructs a CodeProvider that combines a unix
// timestamp with a process-wide monotonic sequence, so codes synthesized in
// the same instant (or the same import batch) never collide.
func NewSequenceCodeProvider(clock func() time.Time) CodeProvider {
	if clock == nil {
		clock = time.Now
	}
	return &sequenceCodeProvider{clock: clock}
}

func (p *sequenceCodeProvider) NewCode() string {
	return fmt.Sprintf("%s-%d-%d", synthesizedCodePrefix, p.clock().Unix(), p.sequence.Add(1))
}
