// Package discord bridges a scripting host with one or more Discord bot connections.
//
// A Bridge owns every piece of mutable state: the Registry of named bot connections,
// the ChannelCache of recently seen messages and the EventBus that delivers projected
// events to script handlers. All of them are touched only from the Host loop.
// discordgo callbacks and outbound REST calls run on their own goroutines and hand
// their results back through Host.Post.
//
// Adapter additionally exposes a bridged bot as a sarah.Adapter so go-sarah commands
// can run on top of the same connection.
package discord
