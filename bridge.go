package discord

import (
	"context"
	"fmt"
)

// BridgeOption defines a function signature for Bridge's functional options.
type BridgeOption func(*bridgeOptions)

type bridgeOptions struct {
	registryOptions []RegistryOption
}

// WithRegistryOptions passes the given options to the Bridge's Registry.
func WithRegistryOptions(options ...RegistryOption) BridgeOption {
	return func(o *bridgeOptions) {
		o.registryOptions = append(o.registryOptions, options...)
	}
}

// Bridge owns the state shared by script commands and Discord events.
type Bridge struct {
	Host       *Host
	Registry   *Registry
	Cache      *ChannelCache
	Events     *EventBus
	Projector  *Projector
	Dispatcher *Dispatcher

	config *Config
}

// NewBridge wires a Registry, ChannelCache, EventBus, Projector and Dispatcher around one Host.
func NewBridge(config *Config, options ...BridgeOption) *Bridge {
	opts := &bridgeOptions{}
	for _, opt := range options {
		opt(opts)
	}

	host := NewHost()
	bridge := &Bridge{
		Host:   host,
		Cache:  NewChannelCache(config.CacheSize),
		Events: NewEventBus(),
		config: config,
	}

	// The Projector is bound to every session the Registry creates.
	registryOptions := append([]RegistryOption{
		WithSessionBinder(func(bot string, s session) {
			bridge.Projector.Bind(bot, s)
		}),
	}, opts.registryOptions...)

	bridge.Registry = NewRegistry(host, config, registryOptions...)
	bridge.Projector = NewProjector(host, bridge.Registry, bridge.Cache, bridge.Events)
	bridge.Dispatcher = NewDispatcher(host, bridge.Registry, config)

	return bridge
}

// Config returns the Config the Bridge was built with.
func (b *Bridge) Config() *Config {
	return b.config
}

// Run drives the Host loop until ctx is canceled, then disconnects every bot.
func (b *Bridge) Run(ctx context.Context) {
	_ = b.Host.Run(ctx)

	// The loop has stopped, so this goroutine is now the only one touching bridge state.
	b.Registry.Close()
	b.Host.Drain()
	b.Registry.Shutdown()

	// Handshakes finishing from now on close their own sessions.
	b.Host.Close()
	b.Host.Drain()
}

// Execute parses a script line and queues it on the Host.
// Only parse errors are returned; everything else is reported through the Pending.
func (b *Bridge) Execute(ctx context.Context, line string) (*Pending, error) {
	ins, err := ParseLine(line)
	if err != nil {
		return nil, err
	}

	return b.Dispatch(ctx, ins), nil
}

// Dispatch queues an already built Instruction on the Host and returns its Pending right away.
// It never blocks, so Handlers running on the Host loop may call it too.
// An instruction whose ctx is done before the Host gets to it is skipped and completes with ctx's error.
func (b *Bridge) Dispatch(ctx context.Context, ins *Instruction) *Pending {
	pending := newPending(ins.Action)

	posted := b.Host.Post(func() {
		if err := ctx.Err(); err != nil {
			pending.complete(fmt.Errorf("%s skipped: %w", ins.Action, err))
			return
		}
		b.Dispatcher.run(ctx, ins, pending)
	})
	if !posted {
		pending.complete(fmt.Errorf("%w: %s", ErrClosed, ins.Action))
	}

	return pending
}

// Subscribe registers a handler from outside the Host loop and waits until it is in place.
// Handlers that subscribe further handlers use Events directly.
func (b *Bridge) Subscribe(ctx context.Context, name EventName, bot string, fn Handler) (func(), error) {
	var unsubscribe func()
	if err := b.Host.Do(ctx, func() {
		unsubscribe = b.Events.Subscribe(name, bot, fn)
	}); err != nil {
		return nil, err
	}

	return func() {
		b.Host.Post(unsubscribe)
	}, nil
}
