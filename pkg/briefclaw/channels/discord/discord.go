// Package discord implements the Discord channel for BriefClaw using discordgo.
// It is the alternate delivery platform: briefings go to one text channel and
// commands are read from the same gateway connection.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels"
)

// MaxMessageLength is Discord's per-message content limit.
const MaxMessageLength = 2000

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// AllowedChannels restricts which channel IDs the bot listens in.
	// Empty means every channel the bot can read.
	AllowedChannels []string `yaml:"allowed_channels"`
}

// Discord implements channels.Channel and channels.PresenceChannel.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	messages chan *channels.IncomingMessage

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64
}

// New creates a new Discord channel instance.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		messages: make(chan *channels.IncomingMessage, 256),
	}
}

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// MaxMessageLength returns Discord's content limit.
func (d *Discord) MaxMessageLength() int { return MaxMessageLength }

// Connect opens the Discord gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}
	if d.connected.Load() {
		return nil
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	session.AddHandler(d.onMessageCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.session = session
	d.connected.Store(true)
	if user := session.State.User; user != nil {
		d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)
	}
	return nil
}

// Disconnect closes the Discord gateway connection.
func (d *Discord) Disconnect() error {
	if d.session != nil {
		d.session.Close()
	}
	d.connected.Store(false)
	d.logger.Info("discord: disconnected")
	return nil
}

// Send posts a message to the given channel ID. Discord renders Markdown
// natively, so Plain only matters for content that was already stripped.
func (d *Discord) Send(ctx context.Context, to string, message *channels.OutgoingMessage) error {
	if d.session == nil {
		return channels.ErrChannelDisconnected
	}
	msgSend := &discordgo.MessageSend{Content: message.Content}
	if message.DisablePreview {
		msgSend.Flags = discordgo.MessageFlagsSuppressEmbeds
	}
	if _, err := d.session.ChannelMessageSendComplex(to, msgSend, discordgo.WithContext(ctx)); err != nil {
		d.errorCount.Add(1)
		return fmt.Errorf("discord: send: %w: %w", err, channels.ErrSendFailed)
	}
	return nil
}

// SendTyping triggers the typing indicator in a channel.
func (d *Discord) SendTyping(ctx context.Context, to string) error {
	if d.session == nil {
		return nil
	}
	return d.session.ChannelTyping(to, discordgo.WithContext(ctx))
}

// Receive returns the incoming messages channel.
func (d *Discord) Receive() <-chan *channels.IncomingMessage {
	return d.messages
}

// IsConnected returns true if the gateway is open.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
	}
}

func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if !d.channelAllowed(m.ChannelID) {
		return
	}
	d.push(&channels.IncomingMessage{
		ID:        m.ID,
		Channel:   "discord",
		From:      m.Author.ID,
		FromName:  m.Author.Username,
		ChatID:    m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	})
}

func (d *Discord) channelAllowed(channelID string) bool {
	if len(d.cfg.AllowedChannels) == 0 {
		return true
	}
	for _, id := range d.cfg.AllowedChannels {
		if id == channelID {
			return true
		}
	}
	return false
}

func (d *Discord) push(incoming *channels.IncomingMessage) {
	if incoming.Content == "" {
		return
	}
	d.lastMsg.Store(time.Now())
	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

var (
	_ channels.Channel         = (*Discord)(nil)
	_ channels.PresenceChannel = (*Discord)(nil)
)
