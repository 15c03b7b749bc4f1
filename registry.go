package discord

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklahomer/go-kasumi/logger"
)

// RegistryOption defines a function signature for Registry's functional options.
type RegistryOption func(registry *Registry)

// withSessionFactory replaces how sessions are created. Tests use it to inject mock sessions.
func withSessionFactory(factory sessionFactory) RegistryOption {
	return func(registry *Registry) {
		registry.newSession = factory
	}
}

// WithSessionBinder registers a function that is called with every new session before it is opened.
// Event handlers are attached this way.
func WithSessionBinder(binder func(bot string, s session)) RegistryOption {
	return func(registry *Registry) {
		registry.binders = append(registry.binders, binder)
	}
}

// Registry maps bot identifiers to their connections.
// Every method must be called on the Host loop.
type Registry struct {
	host        *Host
	config      *Config
	newSession  sessionFactory
	binders     []func(bot string, s session)
	connections map[string]*BotConnection
	closed      bool
}

// NewRegistry creates an empty Registry that reports completions through the given Host.
func NewRegistry(host *Host, config *Config, options ...RegistryOption) *Registry {
	registry := &Registry{
		host:        host,
		config:      config,
		newSession:  newDiscordSession,
		connections: make(map[string]*BotConnection),
	}

	for _, opt := range options {
		opt(registry)
	}

	return registry
}

// Connect registers a placeholder for id and performs the handshake in the background.
// The returned Pending completes on the Host once the connection is usable or has failed.
func (r *Registry) Connect(ctx context.Context, id string, token string) *Pending {
	pending := newPending(ActionConnect)
	r.connect(ctx, id, token, pending)
	return pending
}

func (r *Registry) connect(ctx context.Context, id string, token string, pending *Pending) {
	id = NormalizeID(id)
	switch {
	case r.closed:
		r.fail(pending, fmt.Errorf("%w: connecting bot %s", ErrClosed, id))
		return

	case id == "":
		r.fail(pending, fmt.Errorf("%w: id", ErrMissingArgument))
		return

	case token == "":
		r.fail(pending, fmt.Errorf("%w: code: %w", ErrMissingArgument, ErrEmptyToken))
		return

	}

	if _, ok := r.connections[id]; ok {
		r.fail(pending, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, id))
		return
	}

	conn := &BotConnection{
		id:    id,
		state: StateConnecting,
	}
	r.connections[id] = conn
	logger.Infof("Connecting bot %s", id)

	go r.open(ctx, conn, token, pending)
}

func (r *Registry) open(ctx context.Context, conn *BotConnection, token string, pending *Pending) {
	if r.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ConnectTimeout)
		defer cancel()
	}

	s, err := r.newSession(token, r.config.Intents)
	if err == nil {
		for _, bind := range r.binders {
			bind(conn.id, s)
		}
		err = openSession(ctx, s)
	}

	if !r.host.Post(func() { r.opened(conn, s, err, pending) }) {
		// The Bridge has shut down and nobody will install the session.
		if err == nil {
			if closeErr := s.Close(); closeErr != nil {
				logger.Warnf("Error while closing Discord session of bot %s: %+v", conn.id, closeErr)
			}
		}
		pending.complete(fmt.Errorf("%w: connecting bot %s", ErrClosed, conn.id))
	}
}

func (r *Registry) opened(conn *BotConnection, s session, err error, pending *Pending) {
	if err != nil {
		if current, ok := r.connections[conn.id]; ok && current == conn {
			delete(r.connections, conn.id)
		}
		conn.state = StateDisconnected

		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: connecting bot %s: %w", ErrTimeout, conn.id, err)
		} else {
			err = fmt.Errorf("%w: connecting bot %s: %w", ErrAuthenticationFailure, conn.id, err)
		}
		logger.Errorf("Failed to connect bot %s: %+v", conn.id, err)
		pending.complete(err)
		return
	}

	if current, ok := r.connections[conn.id]; !ok || current != conn {
		// Disconnected while the handshake was in flight.
		if closeErr := s.Close(); closeErr != nil {
			logger.Errorf("Failed to close Discord session of bot %s: %+v", conn.id, closeErr)
		}
		pending.complete(fmt.Errorf("%w: bot %s was disconnected before the handshake finished", ErrUnknownIdentifier, conn.id))
		return
	}

	conn.session = s
	conn.state = StateConnected
	conn.connectedAt = time.Now()
	logger.Infof("Bot %s connected", conn.id)
	pending.complete(nil)
}

// openSession runs the blocking Open call and gives up when ctx is done.
// A session that opens after the deadline is closed right away.
func openSession(ctx context.Context, s session) error {
	result := make(chan error, 1)
	go func() {
		result <- s.Open()
	}()

	select {
	case err := <-result:
		return err

	case <-ctx.Done():
		go func() {
			if err := <-result; err == nil {
				_ = s.Close()
			}
		}()
		return ctx.Err()

	}
}

func (r *Registry) fail(pending *Pending, err error) {
	r.host.complete(pending, err)
}

// Disconnect closes the session of id and removes its entry in one Host task.
// A connection still in its handshake is removed too; its late session is closed on arrival.
func (r *Registry) Disconnect(id string) error {
	id = NormalizeID(id)
	conn, ok := r.connections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentifier, id)
	}

	delete(r.connections, id)
	conn.state = StateDisconnected

	if conn.session != nil {
		if err := conn.session.Close(); err != nil {
			// The gateway is torn down regardless, so the entry stays removed.
			logger.Warnf("Error while closing Discord session of bot %s: %+v", id, err)
		}
	}
	logger.Infof("Bot %s disconnected", id)

	return nil
}

// Get returns the connection registered under id.
func (r *Registry) Get(id string) (*BotConnection, error) {
	id = NormalizeID(id)
	conn, ok := r.connections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, id)
	}
	return conn, nil
}

// IDs returns every registered identifier in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.connections))
	for id := range r.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveFromContext returns the first registered connection named by any candidate.
func (r *Registry) ResolveFromContext(candidates ...BotScoped) (*BotConnection, error) {
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}

		bot, ok := candidate.OwningBot()
		if !ok {
			continue
		}

		if conn, ok := r.connections[bot]; ok {
			return conn, nil
		}
	}

	return nil, ErrAmbiguousOrMissingBot
}

// Close makes every later Connect fail with ErrClosed. Registered bots stay until Shutdown.
func (r *Registry) Close() {
	r.closed = true
}

// Shutdown disconnects every registered bot.
func (r *Registry) Shutdown() {
	for _, id := range r.IDs() {
		_ = r.Disconnect(id)
	}
}
