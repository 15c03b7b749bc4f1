package discord

import (
	"fmt"
	"strconv"
	"strings"
)

// BotScoped is implemented by every script-side object that may belong to a specific bot.
type BotScoped interface {
	// OwningBot returns the identifier of the bot this object was obtained through.
	OwningBot() (string, bool)
}

func owningBot(bot string) (string, bool) {
	bot = NormalizeID(bot)
	return bot, bot != ""
}

// ChannelRef points to a Discord text channel.
type ChannelRef struct {
	Bot string
	ID  int64
}

// OwningBot implements BotScoped.
func (r *ChannelRef) OwningBot() (string, bool) {
	if r == nil {
		return "", false
	}
	return owningBot(r.Bot)
}

// UserRef points to a Discord user.
type UserRef struct {
	Bot string
	ID  int64
}

// OwningBot implements BotScoped.
func (r *UserRef) OwningBot() (string, bool) {
	if r == nil {
		return "", false
	}
	return owningBot(r.Bot)
}

// GroupRef points to a Discord guild.
type GroupRef struct {
	Bot string
	ID  int64
}

// OwningBot implements BotScoped.
func (r *GroupRef) OwningBot() (string, bool) {
	if r == nil {
		return "", false
	}
	return owningBot(r.Bot)
}

// RoleRef points to a role of a guild.
type RoleRef struct {
	Bot string
	ID  int64
}

// OwningBot implements BotScoped.
func (r *RoleRef) OwningBot() (string, bool) {
	if r == nil {
		return "", false
	}
	return owningBot(r.Bot)
}

// RefList is a script-side list whose elements may carry a bot.
// Its owning bot is the first one found among its elements, nested lists included.
type RefList []BotScoped

// OwningBot implements BotScoped.
func (l RefList) OwningBot() (string, bool) {
	for _, item := range l {
		if item == nil {
			continue
		}
		if bot, ok := item.OwningBot(); ok {
			return bot, true
		}
	}
	return "", false
}

// parseRef reads "123", "bot,123" or "<objectPrefix>@bot,123".
func parseRef(value, objectPrefix string) (string, int64, error) {
	raw := value
	if i := strings.Index(value, "@"); i >= 0 {
		if !strings.EqualFold(value[:i], objectPrefix) {
			return "", 0, fmt.Errorf("%w: %q is not a %s", ErrInvalidArgument, raw, objectPrefix)
		}
		value = value[i+1:]
	}

	bot := ""
	if i := strings.LastIndex(value, ","); i >= 0 {
		bot = value[:i]
		value = value[i+1:]
	}

	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: %q is not a valid %s", ErrInvalidArgument, raw, objectPrefix)
	}

	return NormalizeID(bot), id, nil
}
