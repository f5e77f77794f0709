package contract

import (
	"context"
)

// Delivery is one frame received on a live subscription.
// Err is set when the transport reported a failure instead of a payload.
type Delivery struct {
	Body []byte
	Err  error
}

type LiveSubscription interface {
	// Deliveries is closed once the subscription or its connection ends
	Deliveries() <-chan Delivery
	Unsubscribe() error
}

type LiveConnection interface {
	Subscribe(destination string) (LiveSubscription, error)
	Disconnect() error
}

type Dialer interface {
	Dial(ctx context.Context) (LiveConnection, error)
}
