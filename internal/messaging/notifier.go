package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Notifier sends replies through a Sender, running each blocking gateway call on its own
// goroutine so the caller can give up on ctx without leaking the call's result.
type Notifier struct {
	sender  Sender
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewNotifier creates a Notifier over sender.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Send delivers body to to. Errors are logged and returned; nothing is retried.
func (n *Notifier) Send(ctx context.Context, to string, body string) error {
	n.mu.RLock()
	if n.stopped {
		n.mu.RUnlock()
		return ErrServiceStopped
	}
	n.wg.Add(1)
	n.mu.RUnlock()

	done := make(chan error, 1)
	go func() {
		defer n.wg.Done()
		done <- n.sender.SendMessage(ctx, to, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("Notifier.Send: delivery failed", "to", to, "error", err)
			return fmt.Errorf("send to %s failed: %w", to, err)
		}
		slog.Info("Notifier.Send: message sent", "to", to, "body_length", len(body))
		return nil
	case <-ctx.Done():
		slog.Warn("Notifier.Send: gave up waiting for gateway", "to", to, "error", ctx.Err())
		return ctx.Err()
	}
}

// Stop rejects further sends and waits for in-flight gateway calls to return.
func (n *Notifier) Stop() error {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return nil
	}
	n.stopped = true
	n.mu.Unlock()

	n.wg.Wait()
	slog.Info("Notifier stopped")
	return nil
}
