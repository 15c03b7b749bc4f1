package discord

import "errors"

// ErrEmptyToken indicates that no token was provided for a connect instruction.
var ErrEmptyToken = errors.New("token must be set")

// ErrNoAuthor indicates that the given message has no author.
var ErrNoAuthor = errors.New("message has no author")

var (
	// ErrDuplicateIdentifier is returned when connecting with an identifier that is already registered.
	ErrDuplicateIdentifier = errors.New("bot identifier already in use")

	// ErrUnknownIdentifier is returned when no connection is registered under the given identifier.
	ErrUnknownIdentifier = errors.New("unknown bot identifier")

	// ErrAmbiguousOrMissingBot is returned when no bot could be inferred from the given arguments.
	ErrAmbiguousOrMissingBot = errors.New("no bot could be inferred from arguments")

	// ErrTargetNotFound is returned when Discord does not know the given user, channel, guild or role.
	ErrTargetNotFound = errors.New("target not found")

	// ErrAuthenticationFailure is returned when the connection handshake is rejected.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrMissingArgument is returned when an instruction lacks a required argument.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrInvalidArgument is returned when an instruction argument can not be parsed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotConnected is returned when the bot exists but its handshake has not finished yet.
	ErrNotConnected = errors.New("bot is not connected")

	// ErrTimeout is returned when a connect attempt or an outbound action exceeds its deadline.
	ErrTimeout = errors.New("timed out")

	// ErrClosed is returned when the Bridge has shut down and no longer accepts work.
	ErrClosed = errors.New("bridge is shut down")

	// ErrNotFound is returned by ChannelCache.Lookup when no cached message matches.
	ErrNotFound = errors.New("message not cached")
)
