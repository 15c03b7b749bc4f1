package discord

import (
	"container/list"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
)

// CachedMessage is a snapshot of a message taken when it was received or last edited.
type CachedMessage struct {
	ID         int64
	ChannelID  int64
	GuildID    int64
	Content    string
	AuthorID   int64
	AuthorName string
	Timestamp  time.Time
	MentionIDs []int64
}

// NewCachedMessage takes a snapshot of the given message.
func NewCachedMessage(m *discordgo.Message) CachedMessage {
	msg := CachedMessage{
		ID:        snowflake(m.ID),
		ChannelID: snowflake(m.ChannelID),
		GuildID:   snowflake(m.GuildID),
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}

	if m.Author != nil {
		msg.AuthorID = snowflake(m.Author.ID)
		msg.AuthorName = m.Author.Username
	}

	for _, u := range m.Mentions {
		if u == nil {
			continue
		}
		msg.MentionIDs = append(msg.MentionIDs, snowflake(u.ID))
	}

	return msg
}

// snowflake converts a discordgo string ID to its numeric form. Empty or malformed IDs yield 0.
func snowflake(id string) int64 {
	if id == "" {
		return 0
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// MessageRing keeps the most recent messages of one channel in insertion order.
type MessageRing struct {
	channelID int64
	capacity  int
	order     *list.List
	index     map[int64]*list.Element
}

func newMessageRing(channelID int64, capacity int) *MessageRing {
	return &MessageRing{
		channelID: channelID,
		capacity:  capacity,
		order:     list.New(),
		index:     make(map[int64]*list.Element),
	}
}

// Len returns the number of cached messages.
func (r *MessageRing) Len() int {
	return r.order.Len()
}

// IDs returns cached message IDs, oldest first.
func (r *MessageRing) IDs() []int64 {
	ids := make([]int64, 0, r.order.Len())
	for e := r.order.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(CachedMessage).ID)
	}
	return ids
}

func (r *MessageRing) put(msg CachedMessage) {
	if r.capacity <= 0 {
		return
	}

	if e, ok := r.index[msg.ID]; ok {
		// A re-delivered message keeps its original position.
		e.Value = msg
		return
	}

	r.index[msg.ID] = r.order.PushBack(msg)
	for r.order.Len() > r.capacity {
		oldest := r.order.Front()
		r.order.Remove(oldest)
		delete(r.index, oldest.Value.(CachedMessage).ID)
	}
}

func (r *MessageRing) replace(msg CachedMessage) bool {
	e, ok := r.index[msg.ID]
	if !ok {
		return false
	}
	e.Value = msg
	return true
}

func (r *MessageRing) get(messageID int64) (CachedMessage, bool) {
	e, ok := r.index[messageID]
	if !ok {
		return CachedMessage{}, false
	}
	return e.Value.(CachedMessage), true
}

// ChannelCache maps channel IDs to their MessageRing.
// It is not safe for concurrent use; the Bridge only touches it from the Host loop.
type ChannelCache struct {
	capacity int
	rings    map[int64]*MessageRing
}

// NewChannelCache creates an empty cache that keeps up to capacity messages per channel.
func NewChannelCache(capacity int) *ChannelCache {
	if capacity < 0 {
		capacity = 0
	}
	return &ChannelCache{
		capacity: capacity,
		rings:    make(map[int64]*MessageRing),
	}
}

// Capacity returns the per-channel capacity.
func (c *ChannelCache) Capacity() int {
	return c.capacity
}

func (c *ChannelCache) ring(channelID int64) *MessageRing {
	r, ok := c.rings[channelID]
	if !ok {
		r = newMessageRing(channelID, c.capacity)
		c.rings[channelID] = r
	}
	return r
}

// Ring returns the MessageRing of the given channel, if one was ever created.
func (c *ChannelCache) Ring(channelID int64) (*MessageRing, bool) {
	r, ok := c.rings[channelID]
	return r, ok
}

// RecordReceived stores a newly received message, evicting the oldest entry when the ring is full.
func (c *ChannelCache) RecordReceived(channelID int64, msg CachedMessage) {
	c.ring(channelID).put(msg)
}

// RecordUpdated replaces an already cached message in place.
// It reports whether the message was cached; an uncached message is not added.
func (c *ChannelCache) RecordUpdated(channelID int64, msg CachedMessage) bool {
	return c.ring(channelID).replace(msg)
}

// Lookup returns the cached snapshot of the given message, or ErrNotFound.
func (c *ChannelCache) Lookup(channelID, messageID int64) (CachedMessage, error) {
	r, ok := c.rings[channelID]
	if !ok {
		return CachedMessage{}, ErrNotFound
	}

	msg, ok := r.get(messageID)
	if !ok {
		return CachedMessage{}, ErrNotFound
	}
	return msg, nil
}
