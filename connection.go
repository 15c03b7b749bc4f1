package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// session is an internal interface that abstracts the discordgo.Session methods
// used by the bridge. This allows mocking the session in tests.
// *discordgo.Session satisfies this interface.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberNickname(guildID, userID, nickname string, options ...discordgo.RequestOption) error
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
}

var _ session = (*discordgo.Session)(nil)

// sessionFactory creates an unopened session for the given bot token.
type sessionFactory func(token string, intents discordgo.Intent) (session, error)

func newDiscordSession(token string, intents discordgo.Intent) (session, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	s.Identify.Intents = intents
	s.StateEnabled = true

	return s, nil
}

// ConnectionState is the lifecycle stage of a BotConnection.
type ConnectionState int

const (
	// StateConnecting means the handshake is in flight and the entry is a placeholder.
	StateConnecting ConnectionState = iota
	// StateConnected means the session is open and usable.
	StateConnected
	// StateDisconnected means the entry was removed from its Registry.
	StateDisconnected
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// BotConnection is a named Discord bot session owned by a Registry.
type BotConnection struct {
	id          string
	state       ConnectionState
	session     session
	connectedAt time.Time
	userID      string
}

// ID returns the normalized bot identifier.
func (c *BotConnection) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *BotConnection) State() ConnectionState {
	return c.state
}

// ConnectedAt returns when the handshake finished. It is zero until then.
func (c *BotConnection) ConnectedAt() time.Time {
	return c.connectedAt
}

// UserID returns the bot's own Discord user ID once the gateway reported it ready.
func (c *BotConnection) UserID() string {
	return c.userID
}

// NormalizeID returns the canonical form of a bot identifier.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
