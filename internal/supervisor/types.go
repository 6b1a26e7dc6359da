// internal/supervisor/types.go
package supervisor

import (
	"time"

	"github.com/tamzrod/fusa-sm/internal/dispatch"
	"github.com/tamzrod/fusa-sm/internal/status"
)

// PollResult is a snapshot produced by one supervision cycle.
type PollResult struct {
	At time.Time

	// Dispatch is the outcome of the polled fault dispatch.
	Dispatch dispatch.Result

	// ErrorCode is the status code of Err; 0 means success.
	ErrorCode uint16

	// Snapshots holds one entry per published LM, in LM order.
	Snapshots []status.Snapshot
	Err       error // non-nil means part of the cycle failed
}
