package discord

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

// mockSession implements the session interface for testing.
type mockSession struct {
	mu       sync.Mutex
	handlers []interface{}

	openFunc                      func() error
	closeFunc                     func() error
	channelMessageSendFunc        func(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	channelMessageSendComplexFunc func(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	userChannelCreateFunc         func(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	guildMemberRoleAddFunc        func(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	guildMemberRoleRemoveFunc     func(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	guildMemberNicknameFunc       func(guildID, userID, nickname string, options ...discordgo.RequestOption) error
	updateStatusComplexFunc       func(usd discordgo.UpdateStatusData) error
}

var _ session = (*mockSession)(nil)

func (m *mockSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
	return func() {}
}

func (m *mockSession) handlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

func (m *mockSession) Open() error {
	if m.openFunc != nil {
		return m.openFunc()
	}
	return nil
}

func (m *mockSession) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.channelMessageSendFunc != nil {
		return m.channelMessageSendFunc(channelID, content, options...)
	}
	return &discordgo.Message{}, nil
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.channelMessageSendComplexFunc != nil {
		return m.channelMessageSendComplexFunc(channelID, data, options...)
	}
	return &discordgo.Message{}, nil
}

func (m *mockSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if m.userChannelCreateFunc != nil {
		return m.userChannelCreateFunc(recipientID, options...)
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (m *mockSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	if m.guildMemberRoleAddFunc != nil {
		return m.guildMemberRoleAddFunc(guildID, userID, roleID, options...)
	}
	return nil
}

func (m *mockSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	if m.guildMemberRoleRemoveFunc != nil {
		return m.guildMemberRoleRemoveFunc(guildID, userID, roleID, options...)
	}
	return nil
}

func (m *mockSession) GuildMemberNickname(guildID, userID, nickname string, options ...discordgo.RequestOption) error {
	if m.guildMemberNicknameFunc != nil {
		return m.guildMemberNicknameFunc(guildID, userID, nickname, options...)
	}
	return nil
}

func (m *mockSession) UpdateStatusComplex(usd discordgo.UpdateStatusData) error {
	if m.updateStatusComplexFunc != nil {
		return m.updateStatusComplexFunc(usd)
	}
	return nil
}

// factoryOf returns a session factory that always hands out the given mock.
func factoryOf(mock *mockSession) sessionFactory {
	return func(token string, intents discordgo.Intent) (session, error) {
		return mock, nil
	}
}

// startBridge builds a Bridge around the given mock and runs its Host loop until the test ends.
func startBridge(t *testing.T, config *Config, mock *mockSession) *Bridge {
	t.Helper()

	bridge := NewBridge(config, WithRegistryOptions(withSessionFactory(factoryOf(mock))))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bridge.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return bridge
}

// onHost runs fn on the bridge's Host loop and waits for it.
func onHost(t *testing.T, bridge *Bridge, fn func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := bridge.Host.Do(ctx, fn); err != nil {
		t.Fatalf("Host did not run the task: %+v", err)
	}
}

// wait blocks until pending completes and returns its error.
func wait(t *testing.T, pending *Pending) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	select {
	case <-pending.Done():
		return pending.Err()
	case <-ctx.Done():
		t.Fatalf("Instruction %s (%s) did not complete", pending.ID, pending.Action)
		return nil
	}
}

// execute runs a script line through the bridge and waits for its completion.
func execute(t *testing.T, bridge *Bridge, line string) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	pending, err := bridge.Execute(ctx, line)
	if err != nil {
		return err
	}
	return wait(t, pending)
}

// connectBot connects a bot and fails the test when it does not succeed.
func connectBot(t *testing.T, bridge *Bridge, bot string) {
	t.Helper()

	if err := execute(t, bridge, "id:"+bot+" connect code:token"); err != nil {
		t.Fatalf("Unexpected error on connect: %+v", err)
	}
}
