// Package whatsapp wraps the Whatsmeow client as an optional direct WhatsApp channel.
//
// Inbound one-to-one text messages are handed to a callback keyed as
// "whatsapp:+<digits>", the same form Twilio uses, so profiles and history are shared
// across both transports.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
	"github.com/BTreeMap/ArogyaMitra/internal/store"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// Constants for WhatsApp client configuration
const (
	// DefaultDBFileName is the whatsmeow device database created in the state directory.
	DefaultDBFileName = "whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users
	JIDSuffix = types.DefaultUserServer
	// AddressPrefix is prepended to sender numbers to form correlation keys.
	AddressPrefix = "whatsapp:+"
)

// InboundHandler receives text messages sent to the linked account.
type InboundHandler func(ctx context.Context, msg models.InboundMessage)

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // WhatsApp/whatsmeow database connection string
	QRPath      string // path to write login QR code
	NumericCode bool   // print the raw pairing code instead of a QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the WhatsApp/whatsmeow database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput instructs the WhatsApp client to write the login QR code to the specified path.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode prints the pairing code as text instead of rendering a QR code.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// Client wraps the Whatsmeow client.
type Client struct {
	waClient *whatsmeow.Client
}

// dbDriver picks the database/sql driver whatsmeow should use for dsn.
func dbDriver(dsn string) string {
	if store.DetectDSNType(dsn) == "postgres" {
		return "postgres"
	}
	return "sqlite3"
}

func foreignKeysEnabled(dsn string) bool {
	return strings.Contains(dsn, "foreign_keys")
}

// NewClient opens the device store, logs in (printing a QR code on first use) and connects.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("WhatsApp NewClient options set", "DBDSN_set", cfg.DBDSN != "", "QRPath_set", cfg.QRPath != "", "NumericCode", cfg.NumericCode)

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("whatsapp database DSN not set")
	}
	driver := dbDriver(cfg.DBDSN)
	if driver == "sqlite3" && !foreignKeysEnabled(cfg.DBDSN) {
		slog.Warn("SQLite database for WhatsApp does not appear to have foreign keys enabled. "+
			"Consider adding '?_foreign_keys=on' to your connection string.",
			"dsn_example", "file:"+cfg.DBDSN+"?_foreign_keys=on")
	}

	container, err := sqlstore.New(ctx, driver, cfg.DBDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		slog.Error("Failed to initialize WhatsApp DB store", "error", err)
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		slog.Error("Failed to get first device from store", "error", err)
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	if waClient.Store.ID == nil {
		if err := login(ctx, waClient, cfg); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("WhatsApp already logged in, connecting to server")
		if err := waClient.Connect(); err != nil {
			slog.Error("Failed to connect to WhatsApp server", "error", err)
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
	}
	slog.Info("WhatsApp client connected successfully")
	return &Client{waClient: waClient}, nil
}

// login runs the QR pairing flow until whatsmeow closes the channel.
func login(ctx context.Context, waClient *whatsmeow.Client, cfg Opts) error {
	slog.Info("WhatsApp login required; starting QR code flow")
	qrChan, err := waClient.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get WhatsApp QR channel: %w", err)
	}
	if err := waClient.Connect(); err != nil {
		slog.Error("Failed to connect to WhatsApp during login", "error", err)
		return fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
	}

	writer := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			slog.Error("Failed to create QR file", "error", err)
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}
	for evt := range qrChan {
		if evt.Event == "code" {
			if cfg.NumericCode {
				fmt.Fprintln(writer, evt.Code)
			} else {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
			}
			continue
		}
		slog.Info("WhatsApp login event", "event", evt.Event)
	}
	return nil
}

// OnMessage forwards inbound text messages to handler.
func (c *Client) OnMessage(ctx context.Context, handler InboundHandler) {
	c.waClient.AddEventHandler(func(evt interface{}) {
		msg, ok := evt.(*events.Message)
		if !ok {
			return
		}
		in, ok := inboundFromEvent(msg)
		if !ok {
			return
		}
		slog.Debug("WhatsApp inbound message", "from", in.From, "body_length", len(in.Body))
		handler(ctx, in)
	})
}

// inboundFromEvent extracts a direct text message. Group chats, own messages,
// non-phone senders and non-text payloads are ignored.
func inboundFromEvent(evt *events.Message) (models.InboundMessage, bool) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return models.InboundMessage{}, false
	}
	sender := evt.Info.Sender.ToNonAD()
	if sender.Server != types.DefaultUserServer || sender.User == "" {
		slog.Debug("WhatsApp ignoring message from non-phone sender", "sender", sender.String())
		return models.InboundMessage{}, false
	}

	text := evt.Message.GetConversation()
	if text == "" {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	if strings.TrimSpace(text) == "" {
		return models.InboundMessage{}, false
	}

	received := evt.Info.Timestamp
	if received.IsZero() {
		received = time.Now()
	}
	return models.InboundMessage{From: AddressPrefix + sender.User, Body: text, ReceivedAt: received}, true
}

// recipientJID turns "whatsapp:+9198...", "+9198..." or "9198..." into a user JID.
func recipientJID(to string) (types.JID, error) {
	user := strings.TrimPrefix(strings.TrimPrefix(to, "whatsapp:"), "+")
	if user == "" {
		return types.JID{}, fmt.Errorf("recipient cannot be empty")
	}
	for _, r := range user {
		if r < '0' || r > '9' {
			return types.JID{}, fmt.Errorf("invalid recipient %q: only digits allowed", to)
		}
	}
	return types.NewJID(user, JIDSuffix), nil
}

// SendMessage sends a text message to the specified recipient.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if c.waClient == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}
	jid, err := recipientJID(to)
	if err != nil {
		return err
	}

	slog.Debug("Sending WhatsApp message", "to", jid.String(), "body_length", len(body))
	msg := &waE2E.Message{Conversation: &body}
	if _, err := c.waClient.SendMessage(ctx, jid, msg); err != nil {
		slog.Error("Failed to send WhatsApp message", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("WhatsApp message sent successfully", "to", to)
	return nil
}

// Disconnect closes the connection to WhatsApp.
func (c *Client) Disconnect() {
	if c.waClient != nil {
		c.waClient.Disconnect()
		slog.Info("WhatsApp client disconnected")
	}
}
