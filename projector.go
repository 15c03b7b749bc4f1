package discord

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
)

// listSeparator joins multi-valued context entries.
const listSeparator = "|"

var mentionPattern = regexp.MustCompile(`<(@[!&]?|#)\d+>`)

// Projector turns discordgo events into Events, keeping the ChannelCache up to date on the way.
type Projector struct {
	host     *Host
	registry *Registry
	cache    *ChannelCache
	bus      *EventBus
}

// NewProjector creates a Projector that fires through bus.
func NewProjector(host *Host, registry *Registry, cache *ChannelCache, bus *EventBus) *Projector {
	return &Projector{
		host:     host,
		registry: registry,
		cache:    cache,
		bus:      bus,
	}
}

// Bind attaches event handlers to a session of the given bot.
// Handlers run on discordgo's goroutines and only hand the event over to the Host.
func (p *Projector) Bind(bot string, s session) {
	s.AddHandler(func(ds *discordgo.Session, r *discordgo.Ready) {
		p.host.Post(func() { p.ready(bot, r) })
	})
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.MessageCreate) {
		state := stateOf(ds)
		p.host.Post(func() { p.messageCreated(bot, state, m) })
	})
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.MessageUpdate) {
		state := stateOf(ds)
		p.host.Post(func() { p.messageUpdated(bot, state, m) })
	})
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.MessageDelete) {
		state := stateOf(ds)
		p.host.Post(func() { p.messageDeleted(bot, state, m) })
	})
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.GuildMemberAdd) {
		state := stateOf(ds)
		p.host.Post(func() { p.memberAdded(bot, state, m) })
	})
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.GuildMemberRemove) {
		state := stateOf(ds)
		p.host.Post(func() { p.memberRemoved(bot, state, m) })
	})
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.GuildMemberUpdate) {
		state := stateOf(ds)
		p.host.Post(func() { p.memberUpdated(bot, state, m) })
	})
}

func stateOf(s *discordgo.Session) *discordgo.State {
	if s == nil {
		return nil
	}
	return s.State
}

// live reports whether bot is still registered. Events still in flight after a disconnect are dropped.
func (p *Projector) live(bot string) bool {
	_, err := p.registry.Get(bot)
	return err == nil
}

func (p *Projector) ready(bot string, r *discordgo.Ready) {
	conn, err := p.registry.Get(bot)
	if err != nil || r.User == nil {
		return
	}
	conn.userID = r.User.ID
	logger.Infof("Bot %s is ready as %s", bot, r.User.Username)
}

func (p *Projector) messageCreated(bot string, state *discordgo.State, m *discordgo.MessageCreate) {
	if m.Message == nil || !p.live(bot) {
		return
	}

	msg := NewCachedMessage(m.Message)
	p.cache.RecordReceived(msg.ChannelID, msg)

	ctx := newContext(bot)
	locate(ctx, state, m.ChannelID, m.GuildID)
	ctx[KeyMessageID] = m.ID
	ctx[KeyMessage] = m.Content
	ctx[KeyFormattedMessage] = m.ContentWithMentionsReplaced()
	ctx[KeyNoMentionMessage] = stripMentions(m.Content)
	author(ctx, msg)
	if len(msg.MentionIDs) > 0 {
		ctx[KeyMentions] = joinIDs(msg.MentionIDs)
	}

	p.bus.Fire(&Event{Name: EventMessageReceived, Bot: bot, Context: ctx, Message: &msg})
}

func (p *Projector) messageUpdated(bot string, state *discordgo.State, m *discordgo.MessageUpdate) {
	if m.Message == nil || !p.live(bot) {
		return
	}

	msg := NewCachedMessage(m.Message)
	old, err := p.cache.Lookup(msg.ChannelID, msg.ID)
	found := err == nil
	if !found && m.BeforeUpdate != nil {
		old, found = NewCachedMessage(m.BeforeUpdate), true
	}

	if found {
		// Partial updates leave these out.
		if msg.AuthorID == 0 {
			msg.AuthorID, msg.AuthorName = old.AuthorID, old.AuthorName
		}
		if msg.GuildID == 0 {
			msg.GuildID = old.GuildID
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = old.Timestamp
		}
	}
	p.cache.RecordUpdated(msg.ChannelID, msg)

	ctx := newContext(bot)
	locate(ctx, state, m.ChannelID, formatID(msg.GuildID))
	ctx[KeyMessageID] = m.ID
	ctx[KeyMessage] = m.Content
	ctx[KeyNewMessage] = m.Content
	ctx[KeyFormattedMessage] = m.ContentWithMentionsReplaced()
	ctx[KeyNoMentionMessage] = stripMentions(m.Content)
	author(ctx, msg)
	if found {
		ctx[KeyOldMessage] = old.Content
	}

	p.bus.Fire(&Event{Name: EventMessageModified, Bot: bot, Context: ctx, Message: &msg})
}

func (p *Projector) messageDeleted(bot string, state *discordgo.State, m *discordgo.MessageDelete) {
	if m.Message == nil || !p.live(bot) {
		return
	}

	ctx := newContext(bot)
	ctx[KeyMessageID] = m.ID

	old, err := p.cache.Lookup(snowflake(m.ChannelID), snowflake(m.ID))
	found := err == nil
	if !found && m.BeforeDelete != nil {
		old, found = NewCachedMessage(m.BeforeDelete), true
	}

	guildID := m.GuildID
	var snapshot *CachedMessage
	if found {
		ctx[KeyOldMessage] = old.Content
		author(ctx, old)
		if guildID == "" {
			guildID = formatID(old.GuildID)
		}
		snapshot = &old
	}
	locate(ctx, state, m.ChannelID, guildID)

	p.bus.Fire(&Event{Name: EventMessageDeleted, Bot: bot, Context: ctx, Message: snapshot})
}

func (p *Projector) memberAdded(bot string, state *discordgo.State, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || !p.live(bot) {
		return
	}
	p.bus.Fire(&Event{Name: EventUserJoins, Bot: bot, Context: memberContext(bot, state, m.Member)})
}

func (p *Projector) memberRemoved(bot string, state *discordgo.State, m *discordgo.GuildMemberRemove) {
	if m.Member == nil || !p.live(bot) {
		return
	}
	p.bus.Fire(&Event{Name: EventUserLeaves, Bot: bot, Context: memberContext(bot, state, m.Member)})
}

func (p *Projector) memberUpdated(bot string, state *discordgo.State, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || !p.live(bot) {
		return
	}

	ctx := memberContext(bot, state, m.Member)
	ctx[KeyNewRoles] = strings.Join(m.Roles, listSeparator)

	if m.BeforeUpdate != nil {
		added := difference(m.Roles, m.BeforeUpdate.Roles)
		removed := difference(m.BeforeUpdate.Roles, m.Roles)
		if len(added) == 0 && len(removed) == 0 {
			// Nickname or avatar change.
			return
		}
		ctx[KeyOldRoles] = strings.Join(m.BeforeUpdate.Roles, listSeparator)
		ctx[KeyAddedRoles] = strings.Join(added, listSeparator)
		ctx[KeyRemovedRoles] = strings.Join(removed, listSeparator)
	}

	p.bus.Fire(&Event{Name: EventUserRoleChanges, Bot: bot, Context: ctx})
}

func newContext(bot string) Context {
	return Context{KeyBot: bot}
}

// locate sets channel and group keys. Group keys are left out for private channels.
func locate(ctx Context, state *discordgo.State, channelID, guildID string) {
	if channelID != "" {
		ctx[KeyChannel] = channelID
		if state != nil {
			if ch, err := state.Channel(channelID); err == nil && ch.Name != "" {
				ctx[KeyChannelName] = ch.Name
			}
		}
	}

	if guildID == "" {
		ctx[KeyIsDirect] = "true"
		return
	}

	ctx[KeyIsDirect] = "false"
	group(ctx, state, guildID)
}

func group(ctx Context, state *discordgo.State, guildID string) {
	ctx[KeyGroup] = guildID
	if state != nil {
		if g, err := state.Guild(guildID); err == nil && g.Name != "" {
			ctx[KeyGroupName] = g.Name
		}
	}
}

func author(ctx Context, msg CachedMessage) {
	if msg.AuthorID == 0 {
		return
	}
	ctx[KeyAuthorID] = formatID(msg.AuthorID)
	if msg.AuthorName != "" {
		ctx[KeyAuthorName] = msg.AuthorName
	}
}

func memberContext(bot string, state *discordgo.State, member *discordgo.Member) Context {
	ctx := newContext(bot)
	if member.GuildID != "" {
		group(ctx, state, member.GuildID)
	}
	if member.User != nil {
		ctx[KeyUserID] = member.User.ID
		ctx[KeyUserName] = member.User.Username
	}
	return ctx
}

func stripMentions(content string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(content, ""))
}

func joinIDs(ids []int64) string {
	s := make([]string, 0, len(ids))
	for _, id := range ids {
		s = append(s, formatID(id))
	}
	return strings.Join(s, listSeparator)
}

// formatID is the inverse of snowflake; 0 becomes the empty string.
func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// difference returns the elements of a missing from b, in a's order.
func difference(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, v := range b {
		seen[v] = struct{}{}
	}

	var diff []string
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			diff = append(diff, v)
		}
	}
	return diff
}
