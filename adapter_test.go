package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-sarah/v4"
)

func TestBotTypeValue(t *testing.T) {
	if DISCORD != sarah.BotType("discord") {
		t.Errorf("Expected DISCORD to be %q, got %q", "discord", DISCORD)
	}
}

func TestNewAdapter(t *testing.T) {
	t.Run("with bot identifier", func(t *testing.T) {
		bridge := NewBridge(NewConfig())

		adapter, err := NewAdapter(bridge, " MyBot ")
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}

		if adapter.bridge != bridge {
			t.Error("Bridge not set correctly")
		}

		if adapter.bot != "mybot" {
			t.Errorf("Expected normalized bot identifier %q, got %q", "mybot", adapter.bot)
		}

		if adapter.BotType() != DISCORD {
			t.Errorf("Expected BotType to be %q, got %q", DISCORD, adapter.BotType())
		}
	})

	t.Run("without bot identifier", func(t *testing.T) {
		_, err := NewAdapter(NewBridge(NewConfig()), "  ")
		if !errors.Is(err, ErrMissingArgument) {
			t.Errorf("Expected ErrMissingArgument, got %+v", err)
		}
	})

	t.Run("with bot type", func(t *testing.T) {
		adapter, err := NewAdapter(NewBridge(NewConfig()), "mybot", WithBotType("second"))
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}

		if adapter.BotType() != sarah.BotType("second") {
			t.Errorf("Expected BotType to be %q, got %q", "second", adapter.BotType())
		}
	})
}

func TestAdapter_Run(t *testing.T) {
	t.Run("subscription fails", func(t *testing.T) {
		// The Host never runs, so the subscription cannot be installed.
		adapter, _ := NewAdapter(NewBridge(NewConfig()), "mybot")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var notifiedErr error
		adapter.Run(ctx, func(input sarah.Input) error { return nil }, func(err error) {
			notifiedErr = err
		})

		if notifiedErr == nil {
			t.Fatal("Expected notifyErr to be called when subscription fails")
		}

		if !strings.Contains(notifiedErr.Error(), "mybot") {
			t.Errorf("Expected error to mention the bot, got %q", notifiedErr.Error())
		}
	})

	t.Run("received messages are enqueued until canceled", func(t *testing.T) {
		bridge := startBridge(t, NewConfig(), &mockSession{})
		connectBot(t, bridge, "myBot")
		adapter, _ := NewAdapter(bridge, "myBot")

		received := make(chan sarah.Input, 1)
		enqueue := func(input sarah.Input) error {
			received <- input
			return nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			adapter.Run(ctx, enqueue, func(err error) { t.Errorf("Unexpected error: %+v", err) })
			close(done)
		}()

		waitForSubscribers(t, bridge, 1)

		onHost(t, bridge, func() {
			bridge.Events.Fire(messageEvent("mybot", 1, "hello"))
			bridge.Events.Fire(messageEvent("otherbot", 1, "not mine"))
		})

		select {
		case input := <-received:
			if input.Message() != "hello" {
				t.Errorf("Expected message %q, got %q", "hello", input.Message())
			}
		case <-time.After(time.Second):
			t.Fatal("Expected input to be enqueued")
		}

		cancel()
		<-done

		// Unsubscribing is posted to the Host.
		waitForSubscribers(t, bridge, 0)
	})
}

func waitForSubscribers(t *testing.T, bridge *Bridge, expected int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		var count int
		onHost(t, bridge, func() { count = len(bridge.Events.subscriptions) })
		if count == expected {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d subscribers", expected)
}

func messageEvent(bot string, authorID int64, content string) *Event {
	return &Event{
		Name: EventMessageReceived,
		Bot:  bot,
		Context: Context{
			KeyBot:      bot,
			KeyMessage:  content,
			KeyAuthorID: fmt.Sprint(authorID),
		},
		Message: &CachedMessage{
			ID:        100,
			ChannelID: 200,
			Content:   content,
			AuthorID:  authorID,
			Timestamp: time.Now(),
		},
	}
}

func TestAdapter_handleEvent(t *testing.T) {
	bridge := startBridge(t, NewConfig(), &mockSession{})
	connectBot(t, bridge, "myBot")
	onHost(t, bridge, func() {
		conn, _ := bridge.Registry.Get("mybot")
		conn.userID = "999"
	})
	adapter, _ := NewAdapter(bridge, "myBot")

	handle := func(event *Event) sarah.Input {
		var received sarah.Input
		enqueue := func(input sarah.Input) error {
			received = input
			return nil
		}
		onHost(t, bridge, func() { adapter.handleEvent(event, enqueue) })
		return received
	}

	t.Run("regular message is enqueued as Input", func(t *testing.T) {
		received := handle(messageEvent("mybot", 1, "hello"))
		if received == nil {
			t.Fatal("Expected input to be enqueued")
		}

		if _, ok := received.(*Input); !ok {
			t.Errorf("Expected *Input, got %T", received)
		}

		if received.Message() != "hello" {
			t.Errorf("Expected message %q, got %q", "hello", received.Message())
		}
	})

	t.Run("help command is wrapped as HelpInput", func(t *testing.T) {
		received := handle(messageEvent("mybot", 1, " .help "))
		if _, ok := received.(*sarah.HelpInput); !ok {
			t.Errorf("Expected *sarah.HelpInput, got %T", received)
		}
	})

	t.Run("abort command is wrapped as AbortInput", func(t *testing.T) {
		received := handle(messageEvent("mybot", 1, ".abort"))
		if _, ok := received.(*sarah.AbortInput); !ok {
			t.Errorf("Expected *sarah.AbortInput, got %T", received)
		}
	})

	t.Run("message from the bot itself is ignored", func(t *testing.T) {
		received := handle(messageEvent("mybot", 999, "echo"))
		if received != nil {
			t.Errorf("Expected own message to be ignored, got %#v", received)
		}
	})

	t.Run("message without author is ignored", func(t *testing.T) {
		event := messageEvent("mybot", 0, "system")
		received := handle(event)
		if received != nil {
			t.Errorf("Expected message without author to be ignored, got %#v", received)
		}
	})

	t.Run("enqueue error is handled gracefully", func(t *testing.T) {
		onHost(t, bridge, func() {
			adapter.handleEvent(messageEvent("mybot", 1, "hello"), func(sarah.Input) error {
				return errors.New("queue is full")
			})
		})
	})
}

func TestAdapter_SendMessage(t *testing.T) {
	t.Run("string content", func(t *testing.T) {
		var gotChannelID, gotContent string
		mock := &mockSession{
			channelMessageSendFunc: func(channelID, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
				gotChannelID = channelID
				gotContent = content
				return &discordgo.Message{}, nil
			},
		}
		bridge := startBridge(t, NewConfig(), mock)
		connectBot(t, bridge, "myBot")
		adapter, _ := NewAdapter(bridge, "myBot")

		output := sarah.NewOutputMessage(ChannelID(123), "hello world")
		adapter.SendMessage(context.Background(), output)

		if gotChannelID != "123" {
			t.Errorf("Expected channelID %q, got %q", "123", gotChannelID)
		}
		if gotContent != "hello world" {
			t.Errorf("Expected content %q, got %q", "hello world", gotContent)
		}
	})

	t.Run("string content with send error", func(t *testing.T) {
		mock := &mockSession{
			channelMessageSendFunc: func(channelID, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
				return nil, fmt.Errorf("send failed")
			},
		}
		bridge := startBridge(t, NewConfig(), mock)
		connectBot(t, bridge, "myBot")
		adapter, _ := NewAdapter(bridge, "myBot")

		// Should not panic, just log the error
		adapter.SendMessage(context.Background(), sarah.NewOutputMessage(ChannelID(1), "hello"))
	})

	t.Run("MessageSend content", func(t *testing.T) {
		var gotChannelID string
		var gotData *discordgo.MessageSend
		mock := &mockSession{
			channelMessageSendComplexFunc: func(channelID string, data *discordgo.MessageSend, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
				gotChannelID = channelID
				gotData = data
				return &discordgo.Message{}, nil
			},
		}
		bridge := startBridge(t, NewConfig(), mock)
		connectBot(t, bridge, "myBot")
		adapter, _ := NewAdapter(bridge, "myBot")

		msg := &discordgo.MessageSend{Content: "complex msg"}
		adapter.SendMessage(context.Background(), sarah.NewOutputMessage(ChannelID(456), msg))

		if gotChannelID != "456" {
			t.Errorf("Expected channelID %q, got %q", "456", gotChannelID)
		}
		if gotData == nil || gotData.Content != "complex msg" {
			t.Error("Expected MessageSend to be passed through")
		}
	})

	t.Run("CommandHelps content", func(t *testing.T) {
		var gotContent string
		mock := &mockSession{
			channelMessageSendFunc: func(channelID, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
				gotContent = content
				return &discordgo.Message{}, nil
			},
		}
		bridge := startBridge(t, NewConfig(), mock)
		connectBot(t, bridge, "myBot")
		adapter, _ := NewAdapter(bridge, "myBot")

		helps := &sarah.CommandHelps{
			{Identifier: "echo", Instruction: "Input .echo to echo back"},
			{Identifier: "hello", Instruction: "Input .hello to greet"},
		}
		adapter.SendMessage(context.Background(), sarah.NewOutputMessage(ChannelID(789), helps))

		if !strings.Contains(gotContent, "**echo**: Input .echo to echo back") {
			t.Errorf("Expected help text to contain echo, got %q", gotContent)
		}
		if !strings.Contains(gotContent, "**hello**: Input .hello to greet") {
			t.Errorf("Expected help text to contain hello, got %q", gotContent)
		}
	})

	t.Run("bot not connected", func(t *testing.T) {
		mock := &mockSession{
			channelMessageSendFunc: func(channelID, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
				t.Error("ChannelMessageSend should not be called without a connection")
				return nil, nil
			},
		}
		bridge := startBridge(t, NewConfig(), mock)
		adapter, _ := NewAdapter(bridge, "myBot")

		adapter.SendMessage(context.Background(), sarah.NewOutputMessage(ChannelID(1), "hello"))
	})

	t.Run("invalid destination type", func(t *testing.T) {
		mock := &mockSession{
			channelMessageSendFunc: func(channelID, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
				t.Error("ChannelMessageSend should not be called for invalid destination")
				return nil, nil
			},
		}
		bridge := startBridge(t, NewConfig(), mock)
		connectBot(t, bridge, "myBot")
		adapter, _ := NewAdapter(bridge, "myBot")

		adapter.SendMessage(context.Background(), sarah.NewOutputMessage("not-a-channel-id", "hello"))
	})

	t.Run("unexpected content type", func(t *testing.T) {
		mock := &mockSession{
			channelMessageSendFunc: func(channelID, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
				t.Error("ChannelMessageSend should not be called for unexpected content")
				return nil, nil
			},
			channelMessageSendComplexFunc: func(channelID string, data *discordgo.MessageSend, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
				t.Error("ChannelMessageSendComplex should not be called for unexpected content")
				return nil, nil
			},
		}
		bridge := startBridge(t, NewConfig(), mock)
		connectBot(t, bridge, "myBot")
		adapter, _ := NewAdapter(bridge, "myBot")

		adapter.SendMessage(context.Background(), sarah.NewOutputMessage(ChannelID(1), 12345))
	})
}

func TestEventToInput_NoAuthor(t *testing.T) {
	t.Run("without message", func(t *testing.T) {
		_, err := EventToInput(&Event{Name: EventMessageReceived, Context: Context{}})
		if !errors.Is(err, ErrNoAuthor) {
			t.Errorf("Expected ErrNoAuthor, got %+v", err)
		}
	})

	t.Run("without author", func(t *testing.T) {
		_, err := EventToInput(messageEvent("mybot", 0, "hello"))
		if !errors.Is(err, ErrNoAuthor) {
			t.Errorf("Expected ErrNoAuthor, got %+v", err)
		}
	})
}

func TestEventToInput(t *testing.T) {
	event := messageEvent("mybot", 456, "hello world")

	input, err := EventToInput(event)
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}

	t.Run("SenderKey", func(t *testing.T) {
		expected := "200_456"
		if input.SenderKey() != expected {
			t.Errorf("Expected SenderKey %q, got %q", expected, input.SenderKey())
		}
	})

	t.Run("Message", func(t *testing.T) {
		if input.Message() != "hello world" {
			t.Errorf("Expected Message %q, got %q", "hello world", input.Message())
		}
	})

	t.Run("SentAt", func(t *testing.T) {
		if !input.SentAt().Equal(event.Message.Timestamp) {
			t.Errorf("Expected SentAt %v, got %v", event.Message.Timestamp, input.SentAt())
		}
	})

	t.Run("ReplyTo", func(t *testing.T) {
		dest, ok := input.ReplyTo().(ChannelID)
		if !ok {
			t.Fatal("ReplyTo should return ChannelID")
		}
		if dest != ChannelID(200) {
			t.Errorf("Expected ReplyTo %d, got %d", 200, dest)
		}
	})

	t.Run("Event preserved", func(t *testing.T) {
		if input.Event != event {
			t.Error("Original event should be preserved in Input")
		}
	})
}

func TestNewResponse(t *testing.T) {
	input := &Input{Event: messageEvent("mybot", 456, ".start")}

	t.Run("simple response", func(t *testing.T) {
		resp, err := NewResponse(input, "hello")
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}

		if resp.Content != "hello" {
			t.Errorf("Expected content %q, got %v", "hello", resp.Content)
		}

		if resp.UserContext != nil {
			t.Error("Expected nil UserContext for simple response")
		}
	})

	t.Run("response with next", func(t *testing.T) {
		nextFunc := func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			return &sarah.CommandResponse{Content: "next step"}, nil
		}

		resp, err := NewResponse(input, "step 1", RespWithNext(nextFunc))
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}

		if resp.UserContext == nil || resp.UserContext.Next == nil {
			t.Fatal("Expected non-nil UserContext.Next")
		}
	})

	t.Run("response with serializable next", func(t *testing.T) {
		arg := &sarah.SerializableArgument{
			FuncIdentifier: "myFunc",
			Argument:       "arg",
		}

		resp, err := NewResponse(input, "step 1", RespWithNextSerializable(arg))
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}

		if resp.UserContext == nil || resp.UserContext.Serializable == nil {
			t.Fatal("Expected non-nil UserContext.Serializable")
		}

		if resp.UserContext.Serializable.FuncIdentifier != "myFunc" {
			t.Errorf("Expected FuncIdentifier %q, got %q", "myFunc", resp.UserContext.Serializable.FuncIdentifier)
		}
	})

	t.Run("rich response", func(t *testing.T) {
		msg := &discordgo.MessageSend{Content: "rich"}

		resp, err := NewResponse(input, msg)
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}

		if resp.Content != msg {
			t.Errorf("Expected the MessageSend to be the content, got %#v", resp.Content)
		}
	})

	t.Run("unsupported content", func(t *testing.T) {
		_, err := NewResponse(input, 12345)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %+v", err)
		}
	})

	t.Run("non-discord input returns error", func(t *testing.T) {
		_, err := NewResponse(sarah.NewHelpInput(input), "should fail")
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %+v", err)
		}
	})
}

func TestInput_Context(t *testing.T) {
	input, err := EventToInput(messageEvent("mybot", 456, "hello"))
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}

	if author, _ := input.Context().Get(KeyAuthorID); author != "456" {
		t.Errorf("Expected author_id %q, got %q", "456", author)
	}
}
