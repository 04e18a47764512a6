package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// WhatsAppPrefix marks destinations reachable over WhatsApp.
const WhatsAppPrefix = "whatsapp:"

// Router sends "whatsapp:" destinations through the direct WhatsApp client when one is
// configured, and everything else through the default gateway.
type Router struct {
	fallback Sender
	whatsapp Sender
}

// NewRouter creates a Router. whatsapp may be nil.
func NewRouter(fallback Sender, whatsapp Sender) *Router {
	return &Router{fallback: fallback, whatsapp: whatsapp}
}

// SendMessage implements Sender.
func (r *Router) SendMessage(ctx context.Context, to string, body string) error {
	if r.whatsapp != nil && strings.HasPrefix(to, WhatsAppPrefix) {
		slog.Debug("Router.SendMessage: using direct WhatsApp", "to", to)
		return r.whatsapp.SendMessage(ctx, to, body)
	}
	if r.fallback == nil {
		return fmt.Errorf("no gateway configured for %s", to)
	}
	return r.fallback.SendMessage(ctx, to, body)
}
