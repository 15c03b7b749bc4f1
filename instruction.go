package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Action is the verb of an Instruction.
type Action string

const (
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
	ActionMessage    Action = "message"
	ActionAddRole    Action = "addrole"
	ActionRemoveRole Action = "removerole"
	ActionRename     Action = "rename"
	ActionStatus     Action = "status"
)

var actionAliases = map[string]Action{
	"connect":     ActionConnect,
	"disconnect":  ActionDisconnect,
	"message":     ActionMessage,
	"addrole":     ActionAddRole,
	"add_role":    ActionAddRole,
	"removerole":  ActionRemoveRole,
	"remove_role": ActionRemoveRole,
	"rename":      ActionRename,
	"status":      ActionStatus,
}

// Status is the online status a bot presents.
type Status string

const (
	StatusOnline       = Status(discordgo.StatusOnline)
	StatusIdle         = Status(discordgo.StatusIdle)
	StatusDoNotDisturb = Status(discordgo.StatusDoNotDisturb)
	StatusInvisible    = Status(discordgo.StatusInvisible)
	StatusOffline      = Status(discordgo.StatusOffline)
)

var statusAliases = map[string]Status{
	"online":         StatusOnline,
	"idle":           StatusIdle,
	"dnd":            StatusDoNotDisturb,
	"do_not_disturb": StatusDoNotDisturb,
	"donotdisturb":   StatusDoNotDisturb,
	"invisible":      StatusInvisible,
	"offline":        StatusOffline,
}

// Activity is the kind of activity shown next to a bot's status.
type Activity string

const (
	ActivityPlaying   Activity = "playing"
	ActivityStreaming Activity = "streaming"
	ActivityListening Activity = "listening"
	ActivityWatching  Activity = "watching"
)

func (a Activity) discordType() discordgo.ActivityType {
	switch a {
	case ActivityStreaming:
		return discordgo.ActivityTypeStreaming
	case ActivityListening:
		return discordgo.ActivityTypeListening
	case ActivityWatching:
		return discordgo.ActivityTypeWatching
	default:
		return discordgo.ActivityTypeGame
	}
}

// Instruction is a parsed discord script command.
type Instruction struct {
	Action Action

	// ID is the explicit bot identifier. When empty, the bot is inferred from the refs below.
	ID    string
	Token string

	Channel *ChannelRef
	User    *UserRef
	Group   *GroupRef
	Role    *RoleRef

	// Value is the message text, the new nickname or the activity text, depending on Action.
	Value string

	// Complex is an alternative rich payload for ActionMessage.
	Complex *discordgo.MessageSend

	Status   Status
	Activity Activity
	URL      string
}

// refs lists the objects a bot may be inferred from, most specific first.
func (ins *Instruction) refs() []BotScoped {
	return []BotScoped{ins.Channel, ins.User, ins.Group, ins.Role}
}

// Validate checks that every argument required by Action is present.
func (ins *Instruction) Validate() error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s requires %s", ErrMissingArgument, ins.Action, name)
	}

	switch ins.Action {
	case ActionConnect:
		if NormalizeID(ins.ID) == "" {
			return missing("id")
		}
		if ins.Token == "" {
			return missing("code")
		}

	case ActionDisconnect:
		if NormalizeID(ins.ID) == "" {
			return missing("id")
		}

	case ActionMessage:
		if ins.Channel == nil && ins.User == nil {
			return missing("channel or user")
		}
		if ins.Value == "" && ins.Complex == nil {
			return missing("message text")
		}

	case ActionAddRole, ActionRemoveRole:
		if ins.User == nil {
			return missing("user")
		}
		if ins.Group == nil {
			return missing("group")
		}
		if ins.Role == nil {
			return missing("role")
		}

	case ActionRename:
		if ins.Group == nil {
			return missing("group")
		}
		if ins.Value == "" {
			return missing("new name")
		}

	case ActionStatus:
		// Everything is optional.

	case "":
		return fmt.Errorf("%w: action", ErrMissingArgument)

	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, ins.Action)

	}

	return nil
}

// ParseInstruction builds an Instruction from script arguments such as
//
//	id:mybot message channel:123 "Hello world!"
//
// Arguments are either prefix:value pairs or bare words. The first bare word that names an
// action is the action; the remaining bare words form the value.
// Every argument is interpreted; use ParseLine to keep quoted words as plain text.
func ParseInstruction(args []string) (*Instruction, error) {
	words := make([]word, 0, len(args))
	for _, arg := range args {
		words = append(words, word{text: arg})
	}
	return parseWords(words)
}

// ParseLine splits a script line and builds an Instruction from it.
// A word that starts with a quote, as in "status: ok", is always part of the value.
func ParseLine(line string) (*Instruction, error) {
	words, err := splitWords(line)
	if err != nil {
		return nil, err
	}
	return parseWords(words)
}

func parseWords(words []word) (*Instruction, error) {
	ins := &Instruction{}
	var values []string

	for _, w := range words {
		if w.literal {
			values = append(values, w.text)
			continue
		}

		prefix, value, hasPrefix := strings.Cut(w.text, ":")
		if hasPrefix && !strings.ContainsAny(prefix, " \t") {
			known, err := ins.apply(strings.ToLower(prefix), value)
			if err != nil {
				return nil, err
			}
			if known {
				continue
			}
		}

		if action, ok := actionAliases[strings.ToLower(w.text)]; ok && ins.Action == "" {
			ins.Action = action
			continue
		}

		values = append(values, w.text)
	}

	ins.Value = strings.Join(values, " ")

	if err := ins.Validate(); err != nil {
		return nil, err
	}

	return ins, nil
}

// apply stores a prefix:value argument. Unknown prefixes are reported as not known so that
// text such as "note:hello" is kept as part of the value.
func (ins *Instruction) apply(prefix, value string) (bool, error) {
	switch prefix {
	case "id":
		ins.ID = NormalizeID(value)

	case "code", "token":
		ins.Token = value

	case "channel":
		bot, id, err := parseRef(value, "discordchannel")
		if err != nil {
			return true, err
		}
		ins.Channel = &ChannelRef{Bot: bot, ID: id}

	case "user":
		bot, id, err := parseRef(value, "discorduser")
		if err != nil {
			return true, err
		}
		ins.User = &UserRef{Bot: bot, ID: id}

	case "group":
		bot, id, err := parseRef(value, "discordgroup")
		if err != nil {
			return true, err
		}
		ins.Group = &GroupRef{Bot: bot, ID: id}

	case "role":
		bot, id, err := parseRef(value, "discordrole")
		if err != nil {
			return true, err
		}
		ins.Role = &RoleRef{Bot: bot, ID: id}

	case "status":
		status, ok := statusAliases[strings.ToLower(value)]
		if !ok {
			return true, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, value)
		}
		ins.Status = status

	case "activity":
		activity := Activity(strings.ToLower(value))
		switch activity {
		case ActivityPlaying, ActivityStreaming, ActivityListening, ActivityWatching:
			ins.Activity = activity
		default:
			return true, fmt.Errorf("%w: unknown activity %q", ErrInvalidArgument, value)
		}

	case "url":
		ins.URL = value

	default:
		return false, nil

	}

	return true, nil
}

// word is one argument of a script line. literal marks words that started with a quote.
type word struct {
	text    string
	literal bool
}

// SplitArgs splits a script line on whitespace. A double or single quote at the start of a word,
// or right after a prefix colon as in code:"abc def", groups words until the matching quote.
func SplitArgs(line string) ([]string, error) {
	words, err := splitWords(line)
	if err != nil {
		return nil, err
	}

	var args []string
	for _, w := range words {
		args = append(args, w.text)
	}
	return args, nil
}

func splitWords(line string) ([]word, error) {
	var words []word
	var current strings.Builder
	var quote, prev rune
	inArg, literal := false, false

	for _, c := range line {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				current.WriteRune(c)
			}

		case (c == '"' || c == '\'') && (!inArg || prev == ':'):
			quote = c
			if !inArg {
				literal = true
			}
			inArg = true

		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if inArg {
				words = append(words, word{text: current.String(), literal: literal})
				current.Reset()
				inArg, literal = false, false
			}

		default:
			current.WriteRune(c)
			inArg = true

		}
		prev = c
	}

	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrInvalidArgument, line)
	}

	if inArg {
		words = append(words, word{text: current.String(), literal: literal})
	}

	return words, nil
}
