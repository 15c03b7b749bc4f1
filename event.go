package discord

import "sort"

// EventName identifies a kind of projected Discord event.
type EventName string

const (
	EventMessageReceived EventName = "message_received"
	EventMessageModified EventName = "message_modified"
	EventMessageDeleted  EventName = "message_deleted"
	EventUserJoins       EventName = "user_joins"
	EventUserLeaves      EventName = "user_leaves"
	EventUserRoleChanges EventName = "user_role_changes"
)

// Context keys set by the Projector. Keys are omitted when the source event lacks the data.
const (
	KeyBot              = "bot"
	KeyChannel          = "channel"
	KeyChannelName      = "channel_name"
	KeyGroup            = "group"
	KeyGroupName        = "group_name"
	KeyIsDirect         = "is_direct"
	KeyMessageID        = "message_id"
	KeyMessage          = "message"
	KeyFormattedMessage = "formatted_message"
	KeyNoMentionMessage = "no_mention_message"
	KeyAuthorID         = "author_id"
	KeyAuthorName       = "author_name"
	KeyMentions         = "mentions"
	KeyOldMessage       = "old_message"
	KeyNewMessage       = "new_message"
	KeyUserID           = "user_id"
	KeyUserName         = "user_name"
	KeyOldRoles         = "old_roles"
	KeyNewRoles         = "new_roles"
	KeyAddedRoles       = "added_roles"
	KeyRemovedRoles     = "removed_roles"
)

// Context holds the read-only values a script handler may refer to.
type Context map[string]string

// Get returns the value of key and whether it is set.
func (c Context) Get(key string) (string, bool) {
	v, ok := c[key]
	return v, ok
}

// Keys returns the set keys in sorted order.
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Event is a projected Discord event.
type Event struct {
	Name    EventName `json:"name"`
	Bot     string    `json:"bot"`
	Context Context   `json:"context"`

	// Message is the snapshot behind message events, if any.
	Message *CachedMessage `json:"-"`
}

// Handler reacts to an Event on the Host loop.
type Handler func(event *Event)

type subscription struct {
	id   int
	name EventName
	bot  string
	fn   Handler
}

// EventBus delivers Events to subscribed Handlers. It must only be used on the Host loop.
type EventBus struct {
	nextID        int
	subscriptions []*subscription
}

// NewEventBus creates an EventBus without subscribers.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for events called name. A non-empty bot restricts fn to events of that bot.
// The returned function removes the subscription.
func (b *EventBus) Subscribe(name EventName, bot string, fn Handler) func() {
	b.nextID++
	sub := &subscription{
		id:   b.nextID,
		name: name,
		bot:  NormalizeID(bot),
		fn:   fn,
	}
	b.subscriptions = append(b.subscriptions, sub)

	return func() {
		for i, s := range b.subscriptions {
			if s.id == sub.id {
				b.subscriptions = append(b.subscriptions[:i:i], b.subscriptions[i+1:]...)
				return
			}
		}
	}
}

// Fire hands the event to every matching subscriber in subscription order.
func (b *EventBus) Fire(event *Event) {
	// Handlers may subscribe or unsubscribe while being called.
	subscriptions := make([]*subscription, len(b.subscriptions))
	copy(subscriptions, b.subscriptions)

	for _, sub := range subscriptions {
		if sub.name != event.Name {
			continue
		}
		if sub.bot != "" && sub.bot != event.Bot {
			continue
		}
		sub.fn(event)
	}
}
