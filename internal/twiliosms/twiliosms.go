// Package twiliosms wraps the Twilio Messaging API for ArogyaMitra.
//
// Destinations carrying the "whatsapp:" prefix are sent from the configured WhatsApp
// sender; all others go out as plain SMS.
package twiliosms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
)

// WhatsAppPrefix marks a Twilio WhatsApp address.
const WhatsAppPrefix = "whatsapp:"

// Sender sends a single text message.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// messageCreator is the part of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio client.
type Opts struct {
	AccountSID     string
	AuthToken      string
	FromNumber     string  // SMS sender, E.164
	WhatsAppNumber string  // optional WhatsApp sender, E.164 without prefix
	SendRate       float64 // messages per second, <= 0 means unlimited
}

// Option defines a configuration option for the Twilio client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token, also used to validate webhook signatures.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the SMS sender number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// WithWhatsAppNumber sets the sender used for "whatsapp:" destinations.
func WithWhatsAppNumber(from string) Option {
	return func(o *Opts) { o.WhatsAppNumber = from }
}

// WithSendRate limits outbound sends to perSecond messages per second.
func WithSendRate(perSecond float64) Option {
	return func(o *Opts) { o.SendRate = perSecond }
}

// Client wraps the Twilio REST API.
type Client struct {
	api            messageCreator
	validator      twilioclient.RequestValidator
	fromNumber     string
	whatsAppNumber string
	limiter        *rate.Limiter
}

// NewClient creates a Twilio client from the given options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "",
		"WhatsAppNumber_set", cfg.WhatsAppNumber != "",
		"SendRate", cfg.SendRate)

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newClient(rest.Api, cfg), nil
}

func newClient(api messageCreator, cfg Opts) *Client {
	return &Client{
		api:            api,
		validator:      twilioclient.NewRequestValidator(cfg.AuthToken),
		fromNumber:     cfg.FromNumber,
		whatsAppNumber: strings.TrimPrefix(cfg.WhatsAppNumber, WhatsAppPrefix),
		limiter:        newLimiter(cfg.SendRate),
	}
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// senderFor picks the sender identity for a destination.
func (c *Client) senderFor(to string) (string, error) {
	if !strings.HasPrefix(to, WhatsAppPrefix) {
		return c.fromNumber, nil
	}
	if c.whatsAppNumber == "" {
		return "", fmt.Errorf("no WhatsApp sender configured for %s", to)
	}
	return WhatsAppPrefix + c.whatsAppNumber, nil
}

// SendMessage sends body to the destination, waiting for the send limiter first.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	from, err := c.senderFor(to)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send to %s not attempted: %w", to, err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}

	var sid string
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("Twilio message sent", "to", to, "sid", sid)
	return nil
}

// ValidateSignature checks the X-Twilio-Signature of a webhook request. url is the full
// public URL Twilio called and params the posted form values.
func (c *Client) ValidateSignature(url string, params map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	return c.validator.Validate(url, params, signature)
}

// MockClient records sent messages for tests.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Err          error
}

// SentMessage is one message recorded by MockClient.
type SentMessage struct {
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}
