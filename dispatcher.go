package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/patrickmn/go-cache"
)

// selfUserID is how Discord's REST API refers to the authenticated bot itself.
const selfUserID = "@me"

// Dispatcher executes Instructions against the Registry.
// Execute must be called on the Host loop; the Discord round trip runs on its own goroutine.
type Dispatcher struct {
	host           *Host
	registry       *Registry
	config         *Config
	directChannels *cache.Cache
}

// NewDispatcher creates a Dispatcher acting through the given Registry.
func NewDispatcher(host *Host, registry *Registry, config *Config) *Dispatcher {
	return &Dispatcher{
		host:           host,
		registry:       registry,
		config:         config,
		directChannels: cache.New(config.DirectChannelTTL, 0),
	}
}

// Execute starts the given instruction. The returned Pending completes exactly once, on the Host.
func (d *Dispatcher) Execute(ctx context.Context, ins *Instruction) *Pending {
	pending := newPending(ins.Action)
	d.run(ctx, ins, pending)
	return pending
}

// run starts ins on behalf of an already issued pending.
func (d *Dispatcher) run(ctx context.Context, ins *Instruction, pending *Pending) {
	if err := ins.Validate(); err != nil {
		d.host.complete(pending, err)
		return
	}

	switch ins.Action {
	case ActionConnect:
		d.registry.connect(ctx, ins.ID, ins.Token, pending)
		return

	case ActionDisconnect:
		d.host.complete(pending, d.registry.Disconnect(ins.ID))
		return

	}

	conn, err := d.resolve(ins)
	if err != nil {
		d.host.complete(pending, err)
		return
	}

	if conn.State() != StateConnected {
		d.host.complete(pending, fmt.Errorf("%w: %s is %s", ErrNotConnected, conn.ID(), conn.State()))
		return
	}

	bot := conn.ID()
	s := conn.session
	logger.Debugf("Instruction %s (%s) dispatched through bot %s", pending.ID, ins.Action, bot)

	go func() {
		d.host.complete(pending, d.perform(ctx, bot, s, ins))
	}()
}

func (d *Dispatcher) resolve(ins *Instruction) (*BotConnection, error) {
	if ins.ID != "" {
		return d.registry.Get(ins.ID)
	}
	return d.registry.ResolveFromContext(ins.refs()...)
}

func (d *Dispatcher) perform(ctx context.Context, bot string, s session, ins *Instruction) error {
	if d.config.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ActionTimeout)
		defer cancel()
	}
	opt := discordgo.WithContext(ctx)

	var err error
	switch ins.Action {
	case ActionMessage:
		err = d.sendMessage(ctx, bot, s, ins)

	case ActionAddRole:
		err = s.GuildMemberRoleAdd(idString(ins.Group.ID), idString(ins.User.ID), idString(ins.Role.ID), opt)
		err = targetError(err, "member, group or role")

	case ActionRemoveRole:
		err = s.GuildMemberRoleRemove(idString(ins.Group.ID), idString(ins.User.ID), idString(ins.Role.ID), opt)
		err = targetError(err, "member, group or role")

	case ActionRename:
		userID := selfUserID
		if ins.User != nil {
			userID = idString(ins.User.ID)
		}
		err = s.GuildMemberNickname(idString(ins.Group.ID), userID, ins.Value, opt)
		err = targetError(err, "member or group")

	case ActionStatus:
		err = s.UpdateStatusComplex(statusData(ins))

	default:
		err = fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, ins.Action)

	}

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, ins.Action, err)
	}
	return err
}

func (d *Dispatcher) sendMessage(ctx context.Context, bot string, s session, ins *Instruction) error {
	opt := discordgo.WithContext(ctx)

	var channelID string
	if ins.Channel != nil {
		channelID = idString(ins.Channel.ID)
	} else {
		var err error
		channelID, err = d.directChannel(ctx, bot, s, ins.User.ID)
		if err != nil {
			return err
		}
	}

	var err error
	if ins.Complex != nil {
		_, err = s.ChannelMessageSendComplex(channelID, ins.Complex, opt)
	} else {
		_, err = s.ChannelMessageSend(channelID, ins.Value, opt)
	}
	if err != nil {
		return targetError(fmt.Errorf("failed to send message to %s: %w", channelID, err), "channel")
	}

	return nil
}

// directChannel returns the private channel with the given user, opening it when not cached.
func (d *Dispatcher) directChannel(ctx context.Context, bot string, s session, userID int64) (string, error) {
	key := bot + ":" + idString(userID)
	if channelID, ok := d.directChannels.Get(key); ok {
		return channelID.(string), nil
	}

	channel, err := s.UserChannelCreate(idString(userID), discordgo.WithContext(ctx))
	if err != nil {
		return "", targetError(fmt.Errorf("failed to open private channel with %d: %w", userID, err), "user")
	}

	// No janitor goroutine runs, so expired entries are swept here.
	d.directChannels.DeleteExpired()
	d.directChannels.SetDefault(key, channel.ID)
	return channel.ID, nil
}

func statusData(ins *Instruction) discordgo.UpdateStatusData {
	status := ins.Status
	if status == "" {
		status = StatusOnline
	}

	data := discordgo.UpdateStatusData{
		Status: string(status),
	}

	if ins.Value != "" || ins.Activity != "" {
		data.Activities = []*discordgo.Activity{
			{
				Name: ins.Value,
				Type: ins.Activity.discordType(),
				URL:  ins.URL,
			},
		}
	}

	return data
}

// targetError marks Discord's "404 Not Found" responses as ErrTargetNotFound.
func targetError(err error, target string) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %w", ErrTargetNotFound, target, err)
	}
	return err
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
