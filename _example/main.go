// This is an example bot that runs go-sarah commands on top of a bridged Discord connection.
// Its commands read the bridge's projected event context and message cache, and one of them
// issues a script instruction of its own.
//
// Usage:
//
//	export DISCORD_TOKEN="your-bot-token"
//	go run .
//
// Then, in a Discord channel where the bot is present, type:
//
//	.whoami
//	.where
//	.playing chess
//	.recent
//	.help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/oklahomer/go-kasumi/logger"
	"github.com/oklahomer/go-sarah/v4"

	"github.com/oklahomer/go-discord-bridge"
)

const botName = "mybot"

func main() {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "DISCORD_TOKEN environment variable is required")
		os.Exit(1)
	}

	// Set up a context that cancels on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The bridge owns the connection. Its Host loop runs until shutdown.
	bridge := discord.NewBridge(discord.NewConfig())
	stopped := make(chan struct{})
	go func() {
		bridge.Run(ctx)
		close(stopped)
	}()

	err := bridge.Dispatch(ctx, &discord.Instruction{
		Action: discord.ActionConnect,
		ID:     botName,
		Token:  token,
	}).Wait(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %s\n", err)
		os.Exit(1)
	}

	// Create the adapter for the bridged bot.
	adapter, err := discord.NewAdapter(bridge, botName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create adapter: %s\n", err)
		os.Exit(1)
	}

	// Create a Bot with the adapter and an in-memory user context storage
	// for conversational state management.
	storage := sarah.NewUserContextStorage(sarah.NewCacheConfig())
	bot := sarah.NewBot(adapter, sarah.BotWithStorage(storage))

	// Register the bot with go-sarah.
	sarah.RegisterBot(bot)

	// Register example commands.
	registerWhoamiCommand()
	registerWhereCommand()
	registerPlayingCommand(bridge)
	registerRecentCommand(bridge)

	// Start go-sarah's lifecycle management.
	err = sarah.Run(ctx, sarah.NewConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run: %s\n", err)
		os.Exit(1)
	}

	logger.Infof("Bot is running. Press Ctrl+C to stop.")

	// Block until shutdown signal.
	<-ctx.Done()

	logger.Infof("Shutting down...")
	<-stopped
}

func registerWhoamiCommand() {
	props := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("whoami").
		MatchPattern(regexp.MustCompile(`^\.whoami`)).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			c := input.(*discord.Input).Context()
			name, _ := c.Get(discord.KeyAuthorName)
			id, _ := c.Get(discord.KeyAuthorID)
			return discord.NewResponse(input, fmt.Sprintf("You are %s (%s).", name, id))
		}).
		Instruction("Input .whoami to see how the bridge identifies you.").
		MustBuild()

	sarah.RegisterCommandProps(props)
}

func registerWhereCommand() {
	props := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("where").
		MatchPattern(regexp.MustCompile(`^\.where`)).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			c := input.(*discord.Input).Context()
			if direct, _ := c.Get(discord.KeyIsDirect); direct == "true" {
				return discord.NewResponse(input, "We are in a direct message.")
			}

			channel, _ := c.Get(discord.KeyChannelName)
			group, _ := c.Get(discord.KeyGroupName)
			return discord.NewResponse(input, fmt.Sprintf("We are in #%s on %s.", channel, group))
		}).
		Instruction("Input .where to see the channel and server of this conversation.").
		MustBuild()

	sarah.RegisterCommandProps(props)
}

var playingPattern = regexp.MustCompile(`^\.playing`)

func registerPlayingCommand(bridge *discord.Bridge) {
	props := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("playing").
		MatchPattern(playingPattern).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			game := sarah.StripMessage(playingPattern, input.Message())
			if game == "" {
				return discord.NewResponse(input, "Usage: .playing <game>")
			}

			err := bridge.Dispatch(ctx, &discord.Instruction{
				Action:   discord.ActionStatus,
				ID:       botName,
				Status:   discord.StatusOnline,
				Activity: discord.ActivityPlaying,
				Value:    game,
			}).Wait(ctx)
			if err != nil {
				return nil, err
			}
			return discord.NewResponse(input, fmt.Sprintf("Now playing %s.", game))
		}).
		Instruction("Input .playing <game> to change the bot's activity.").
		MustBuild()

	sarah.RegisterCommandProps(props)
}

func registerRecentCommand(bridge *discord.Bridge) {
	props := sarah.NewCommandPropsBuilder().
		BotType(discord.DISCORD).
		Identifier("recent").
		MatchPattern(regexp.MustCompile(`^\.recent`)).
		Func(func(ctx context.Context, input sarah.Input) (*sarah.CommandResponse, error) {
			channelID := int64(input.ReplyTo().(discord.ChannelID))

			// The cache belongs to the Host loop.
			var fields []*discordgo.MessageEmbedField
			err := bridge.Host.Do(ctx, func() {
				ring, ok := bridge.Cache.Ring(channelID)
				if !ok {
					return
				}
				for _, id := range ring.IDs() {
					msg, err := bridge.Cache.Lookup(channelID, id)
					if err != nil || msg.Content == "" {
						continue
					}
					fields = append(fields, &discordgo.MessageEmbedField{
						Name:  msg.AuthorName,
						Value: msg.Content,
					})
				}
			})
			if err != nil {
				return nil, err
			}

			return discord.NewResponse(input, &discordgo.MessageSend{
				Embeds: []*discordgo.MessageEmbed{
					{
						Title:       "Recent messages",
						Description: fmt.Sprintf("%d messages cached for this channel.", len(fields)),
						Color:       0x5865F2,
						Fields:      fields,
					},
				},
			})
		}).
		Instruction("Input .recent to list the messages the bridge has cached for this channel.").
		MustBuild()

	sarah.RegisterCommandProps(props)
}
