package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/ArogyaMitra/internal/twiliosms"
)

// blockingSender blocks until release is closed.
type blockingSender struct {
	release chan struct{}
}

func (b *blockingSender) SendMessage(ctx context.Context, to string, body string) error {
	<-b.release
	return nil
}

func TestNotifierSend(t *testing.T) {
	mock := twiliosms.NewMockClient()
	n := NewNotifier(mock)
	if err := n.Send(context.Background(), "+919876543210", "Stay hydrated"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].To != "+919876543210" || sent[0].Body != "Stay hydrated" {
		t.Errorf("unexpected sent messages: %+v", sent)
	}
}

func TestNotifierSendReturnsGatewayError(t *testing.T) {
	mock := twiliosms.NewMockClient()
	mock.Err = errors.New("gateway down")
	n := NewNotifier(mock)
	err := n.Send(context.Background(), "+1", "hi")
	if !errors.Is(err, mock.Err) {
		t.Errorf("expected wrapped gateway error, got %v", err)
	}
}

func TestNotifierSendHonoursContext(t *testing.T) {
	b := &blockingSender{release: make(chan struct{})}
	n := NewNotifier(b)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := n.Send(ctx, "+1", "hi"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(b.release)
	if err := n.Stop(); err != nil {
		t.Errorf("unexpected stop error: %v", err)
	}
}

func TestNotifierStop(t *testing.T) {
	mock := twiliosms.NewMockClient()
	n := NewNotifier(mock)
	if err := n.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.Stop(); err != nil {
		t.Errorf("second stop should be a no-op, got %v", err)
	}
	if err := n.Send(context.Background(), "+1", "hi"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	if len(mock.Sent()) != 0 {
		t.Error("no message should be sent after stop")
	}
}

func TestRouter(t *testing.T) {
	sms := twiliosms.NewMockClient()
	wa := twiliosms.NewMockClient()
	r := NewRouter(sms, wa)
	ctx := context.Background()

	if err := r.SendMessage(ctx, "+911234567890", "sms"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.SendMessage(ctx, "whatsapp:+911234567890", "wa"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sms.Sent()) != 1 || sms.Sent()[0].Body != "sms" {
		t.Errorf("unexpected sms messages: %+v", sms.Sent())
	}
	if len(wa.Sent()) != 1 || wa.Sent()[0].To != "whatsapp:+911234567890" {
		t.Errorf("unexpected whatsapp messages: %+v", wa.Sent())
	}
}

func TestRouterWithoutWhatsApp(t *testing.T) {
	sms := twiliosms.NewMockClient()
	r := NewRouter(sms, nil)
	if err := r.SendMessage(context.Background(), "whatsapp:+911234567890", "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sms.Sent()) != 1 {
		t.Errorf("expected whatsapp destination to fall back to default gateway")
	}

	if err := NewRouter(nil, nil).SendMessage(context.Background(), "+1", "hi"); err == nil {
		t.Error("expected error without any gateway")
	}
}
