package fetcher

import (
	"context"
	"fmt"

	"inbox2itsm/internal/model"
)

// Fetcher produces a snapshot of the currently-unread messages in the
// configured mailbox. Fetching never marks messages read.
type Fetcher interface {
	FetchUnread(ctx context.Context) ([]model.Message, error)
	Close() error
}

// TransientFetchError wraps a mailbox fetch failure. It is fatal for
// the current run; the external scheduler provides the retry cadence.
type TransientFetchError struct {
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient mailbox fetch error: %v", e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}
