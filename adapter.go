package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"
)

const (
	// DISCORD is a designated sarah.BotType for Discord integration.
	DISCORD sarah.BotType = "discord"
)

// ChannelID represents a Discord channel as sarah.OutputDestination.
type ChannelID int64

var _ sarah.OutputDestination = ChannelID(0)

// AdapterOption defines a function signature for Adapter's functional options.
type AdapterOption func(adapter *Adapter)

// WithBotType overrides the sarah.BotType of the Adapter.
// Use this when more than one bridged bot runs as a go-sarah bot, because go-sarah requires unique types.
func WithBotType(botType sarah.BotType) AdapterOption {
	return func(adapter *Adapter) {
		adapter.botType = botType
	}
}

// Adapter is a sarah.Adapter implementation that runs on top of one bot connected through a Bridge.
// The connection itself is managed by script instructions; the Adapter only consumes its messages.
type Adapter struct {
	bridge  *Bridge
	bot     string
	botType sarah.BotType
}

var _ sarah.Adapter = (*Adapter)(nil)

// NewAdapter creates a new Adapter for the given bot identifier.
func NewAdapter(bridge *Bridge, bot string, options ...AdapterOption) (*Adapter, error) {
	bot = NormalizeID(bot)
	if bot == "" {
		return nil, fmt.Errorf("%w: bot identifier", ErrMissingArgument)
	}

	adapter := &Adapter{
		bridge:  bridge,
		bot:     bot,
		botType: DISCORD,
	}

	for _, opt := range options {
		opt(adapter)
	}

	return adapter, nil
}

// BotType returns a designated BotType for Discord integration.
func (a *Adapter) BotType() sarah.BotType {
	return a.botType
}

// Run subscribes to the bot's received messages and blocks until the context is canceled.
func (a *Adapter) Run(ctx context.Context, enqueueInput func(sarah.Input) error, notifyErr func(error)) {
	unsubscribe, err := a.bridge.Subscribe(ctx, EventMessageReceived, a.bot, func(event *Event) {
		a.handleEvent(event, enqueueInput)
	})
	if err != nil {
		notifyErr(sarah.NewBotNonContinuableError(fmt.Sprintf("failed to subscribe to bot %s: %s", a.bot, err.Error())))
		return
	}

	// Block until the context is canceled.
	<-ctx.Done()

	unsubscribe()
}

// handleEvent runs on the Host loop and routes a received message to enqueueInput.
func (a *Adapter) handleEvent(event *Event, enqueueInput func(sarah.Input) error) {
	input, err := EventToInput(event)
	if err != nil {
		logger.Debugf("Skipping message: %+v", err)
		return
	}

	// Ignore messages from the bot itself.
	if conn, err := a.bridge.Registry.Get(a.bot); err == nil && conn.UserID() != "" {
		if authorID, _ := event.Context.Get(KeyAuthorID); authorID == conn.UserID() {
			return
		}
	}

	config := a.bridge.Config()
	var enqueueErr error
	trimmed := strings.TrimSpace(input.Message())
	if config.HelpCommand != "" && trimmed == config.HelpCommand {
		enqueueErr = enqueueInput(sarah.NewHelpInput(input))
	} else if config.AbortCommand != "" && trimmed == config.AbortCommand {
		enqueueErr = enqueueInput(sarah.NewAbortInput(input))
	} else {
		enqueueErr = enqueueInput(input)
	}
	if enqueueErr != nil {
		logger.Errorf("Failed to enqueue input: %+v", enqueueErr)
	}
}

// SendMessage sends the given message through the bridged bot and waits for the result.
func (a *Adapter) SendMessage(ctx context.Context, output sarah.Output) {
	destination, ok := output.Destination().(ChannelID)
	if !ok {
		logger.Errorf("Destination is not instance of ChannelID. %#v.", output.Destination())
		return
	}

	ins := &Instruction{
		Action:  ActionMessage,
		ID:      a.bot,
		Channel: &ChannelRef{Bot: a.bot, ID: int64(destination)},
	}

	switch content := output.Content().(type) {
	case string:
		ins.Value = content

	case *discordgo.MessageSend:
		ins.Complex = content

	case *sarah.CommandHelps:
		lines := make([]string, 0, len(*content))
		for _, h := range *content {
			lines = append(lines, fmt.Sprintf("**%s**: %s", h.Identifier, h.Instruction))
		}
		ins.Value = strings.Join(lines, "\n")

	default:
		logger.Warnf("Unexpected output %#v", output)
		return

	}

	if err := a.bridge.Dispatch(ctx, ins).Wait(ctx); err != nil {
		logger.Errorf("Failed to send message to %d: %+v", destination, err)
	}
}

// Input is the sarah.Input view of a message_received Event.
type Input struct {
	Event *Event
}

var _ sarah.Input = (*Input)(nil)

// SenderKey identifies the author within the channel, so conversations in different channels stay apart.
func (i *Input) SenderKey() string {
	return fmt.Sprintf("%d_%d", i.Event.Message.ChannelID, i.Event.Message.AuthorID)
}

// Message returns the raw message content.
func (i *Input) Message() string {
	return i.Event.Message.Content
}

// SentAt returns the Discord timestamp of the message.
func (i *Input) SentAt() time.Time {
	return i.Event.Message.Timestamp
}

// ReplyTo returns the channel the message arrived in.
func (i *Input) ReplyTo() sarah.OutputDestination {
	return ChannelID(i.Event.Message.ChannelID)
}

// Context returns the projected event context, e.g. KeyAuthorName or KeyChannelName.
func (i *Input) Context() Context {
	return i.Event.Context
}

// EventToInput wraps a message event. Events without a message snapshot or author are rejected with ErrNoAuthor.
func EventToInput(event *Event) (*Input, error) {
	if event.Message == nil || event.Message.AuthorID == 0 {
		return nil, ErrNoAuthor
	}
	return &Input{Event: event}, nil
}

// NewResponse builds a *sarah.CommandResponse replying to a bridged message.
// content is either a string or a *discordgo.MessageSend; SendMessage handles both.
func NewResponse(input sarah.Input, content interface{}, options ...RespOption) (*sarah.CommandResponse, error) {
	if _, ok := input.(*Input); !ok {
		return nil, fmt.Errorf("%w: %T is not a *discord.Input", ErrInvalidArgument, input)
	}

	switch content.(type) {
	case string, *discordgo.MessageSend:
	default:
		return nil, fmt.Errorf("%w: unsupported response content %T", ErrInvalidArgument, content)
	}

	resp := &sarah.CommandResponse{Content: content}
	for _, opt := range options {
		opt(resp)
	}
	return resp, nil
}

// RespOption customizes the response built by NewResponse.
type RespOption func(*sarah.CommandResponse)

// RespWithNext hands the author's next message to fnc instead of the regular command matching.
func RespWithNext(fnc sarah.ContextualFunc) RespOption {
	return func(resp *sarah.CommandResponse) {
		resp.UserContext = &sarah.UserContext{Next: fnc}
	}
}

// RespWithNextSerializable is RespWithNext for storages that persist the conversation state.
func RespWithNextSerializable(arg *sarah.SerializableArgument) RespOption {
	return func(resp *sarah.CommandResponse) {
		resp.UserContext = &sarah.UserContext{Serializable: arg}
	}
}
