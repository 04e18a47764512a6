// Package messaging delivers outbound replies for ArogyaMitra.
//
// A Notifier offloads each gateway call to its own goroutine; a Router picks the
// gateway for a destination.
package messaging

import (
	"context"
	"errors"
)

// ErrServiceStopped is returned by sends attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// Sender is a gateway capable of sending one text message.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}
