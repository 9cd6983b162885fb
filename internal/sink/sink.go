package sink

import (
	"context"

	"alertbridge/internal/signal"
)

// Sink receives translated signals. Send returns nil only once the
// destination has accepted the signal.
type Sink interface {
	Name() string
	Send(ctx context.Context, sig signal.Signal) error
}
