package rabbit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/queueworks/amqpdispatch/router"
)

const (
	backlogSampleInterval = 10 * time.Second
	stopTimeout           = 30 * time.Second
)

var errShuttingDown = errors.New("system is shutting down")

// System connects a handler registry to a RabbitMQ topic exchange. It
// owns the connection lifecycle: queue and binding declaration derived
// from the registry, consumption, dispatching, publishing with broker
// confirmation, and automatic reconnection on transient failures.
//
// A System is single-use: once stopped it cannot be started again.
type System struct {
	settings   ConnectionSettings
	router     *router.Router
	appContext map[string]interface{}
	providers  map[string]Provider
	log        Logger
	observer   Observer

	state    atomic.Int32
	fatal    chan error
	shutdown chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex // guards conn and channel across reconnects
	conn    *amqp.Connection
	channel *amqp.Channel
	pubMu   sync.Mutex // serializes channel operations that await broker replies

	loops    sync.WaitGroup // consume loops, connection watcher, backlog sampler
	handlers sync.WaitGroup // in-flight handler invocations

	queues []queueSpec
}

// queueSpec is one declared queue together with the registry bindings
// it feeds.
type queueSpec struct {
	name     string
	bindings []router.Binding
	patterns []string
}

// Option customizes a System.
type Option func(*System)

// WithLogger injects a logger. The default discards everything.
func WithLogger(log Logger) Option {
	return func(s *System) {
		s.log = log
	}
}

// WithObserver injects an instrumentation observer, typically
// *metrics.Metrics.
func WithObserver(observer Observer) Option {
	return func(s *System) {
		s.observer = observer
	}
}

// WithContext attaches shared application values made available to
// every handler through Message.Context.
func WithContext(values map[string]interface{}) Option {
	return func(s *System) {
		for key, value := range values {
			s.appContext[key] = value
		}
	}
}

// NewSystem builds a System over the given handler registry. No
// connection is made until Start.
func NewSystem(settings ConnectionSettings, registry *router.Router, opts ...Option) *System {
	if registry == nil {
		registry = router.New()
	}
	s := &System{
		settings:   settings,
		router:     registry,
		appContext: map[string]interface{}{},
		providers:  map[string]Provider{},
		log:        nopLogger{},
		observer:   nopObserver{},
		fatal:      make(chan error, 1),
		shutdown:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the handler registry the system dispatches from.
func (s *System) Router() *router.Router {
	return s.router
}

// State returns the current lifecycle state.
func (s *System) State() State {
	return State(s.state.Load())
}

// Healthy reports whether the system is started with an open connection
// and channel.
func (s *System) Healthy() bool {
	if s.State() != Started {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil && !s.conn.IsClosed() &&
		s.channel != nil && !s.channel.IsClosed()
}

// Start validates the settings, connects to the broker, declares the
// exchange, queues and bindings derived from the registry, and begins
// consuming. Transient connection failures are retried until the
// context deadline or ConnectionTimeout; configuration and access
// errors fail immediately.
func (s *System) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Unstarted), int32(Connecting)) {
		return ErrAlreadyStarted
	}
	s.settings.setDefaults()

	if err := s.settings.Validate(); err != nil {
		s.fail(err)
		return err
	}
	if len(s.router.Bindings()) > 0 && s.settings.QueuePrefix == "" {
		err := fmt.Errorf("%w: queue prefix is required when handlers are registered", ErrConfiguration)
		s.fail(err)
		return err
	}
	s.queues = s.buildQueueSpecs()

	dialCtx, cancel := context.WithTimeout(ctx, s.settings.ConnectionTimeout)
	defer cancel()
	if err := s.connect(dialCtx); err != nil {
		s.fail(err)
		return err
	}
	if err := s.declareTopology(); err != nil {
		s.closeConnection()
		s.fail(err)
		return err
	}
	if err := s.startConsumers(); err != nil {
		s.closeConnection()
		s.fail(err)
		return err
	}

	s.observer.ConnectionEstablished()
	for _, binding := range s.router.Bindings() {
		s.observer.CallbackRegistered(binding.Pattern)
		s.observer.RouteBound(binding.Name)
		s.log.Info("Handler bound", nil, map[string]interface{}{
			"handler": binding.Name,
			"pattern": binding.Pattern,
		})
	}

	s.loops.Add(2)
	go s.watchConnection()
	go s.sampleBacklog()

	s.state.Store(int32(Started))
	s.log.Info("AMQP system started", nil, map[string]interface{}{
		"exchange": s.settings.Exchange,
		"queues":   len(s.queues),
	})
	return nil
}

// Stop cancels consumption, waits for in-flight handlers to finish, and
// closes the channel and connection. Messages delivered but not yet
// dispatched are returned to their queues by the broker.
func (s *System) Stop(ctx context.Context) error {
	switch s.State() {
	case Unstarted:
		return ErrNotStarted
	case Stopped:
		return nil
	}
	s.state.Store(int32(Stopping))
	s.stopOnce.Do(func() { close(s.shutdown) })
	s.log.Info("Stopping AMQP system", nil)

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.closeConnection()
		s.state.Store(int32(Stopped))
		return fmt.Errorf("stop interrupted: %w", ctx.Err())
	}

	s.closeConnection()
	s.state.Store(int32(Stopped))
	s.log.Info("AMQP system stopped", nil)
	return nil
}

// Run starts the system and blocks until the context is cancelled or
// the connection fails unrecoverably, then stops it.
func (s *System) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-s.fatal:
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

// WithConnection runs fn within a started system and stops the system
// when fn returns, even when fn panics.
func (s *System) WithConnection(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	var fnErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				fnErr = fmt.Errorf("panic in connection scope: %v", r)
			}
		}()
		fnErr = fn(ctx)
	}()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return errors.Join(fnErr, s.Stop(stopCtx))
}

// connect dials the broker and opens the channel, retrying transient
// failures until the context expires. On success the connection and
// channel are swapped in under the lock.
func (s *System) connect(ctx context.Context) error {
	amqpURL, err := s.settings.AmqpURL()
	if err != nil {
		return err
	}
	for {
		conn, dialErr := amqp.DialConfig(amqpURL, amqp.Config{
			Heartbeat: defaultHeartbeat,
			Properties: amqp.Table{
				"connection_name": s.settings.AppName,
			},
		})
		if dialErr == nil {
			ch, chErr := s.openChannel(conn)
			if chErr == nil {
				s.mu.Lock()
				s.conn = conn
				s.channel = ch
				s.mu.Unlock()
				return nil
			}
			_ = conn.Close()
			dialErr = chErr
		}
		if isFatal(dialErr) {
			return fmt.Errorf("%w: %v", ErrConnectionFailed, dialErr)
		}
		s.log.Warn("Broker not reachable, retrying", dialErr, map[string]interface{}{
			"delay": s.settings.ReconnectDelay.String(),
		})
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrConnectionFailed, dialErr)
		case <-s.shutdown:
			return errShuttingDown
		case <-time.After(s.settings.ReconnectDelay):
		}
	}
}

func (s *System) openChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, err
	}
	if err := ch.Qos(s.settings.PrefetchCount, 0, false); err != nil {
		return nil, err
	}
	return ch, nil
}

// declareTopology declares the exchange and all queues with their
// bindings. Queues are set up in parallel on short-lived channels so a
// failed quorum declaration does not take down the consuming channel.
func (s *System) declareTopology() error {
	s.mu.RLock()
	conn, ch := s.conn, s.channel
	s.mu.RUnlock()

	if err := ch.ExchangeDeclare(s.settings.Exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	group := new(errgroup.Group)
	for _, spec := range s.queues {
		group.Go(func() error {
			return s.setupQueue(conn, spec)
		})
	}
	return group.Wait()
}

// setupQueue declares one durable queue and binds its patterns. Queues
// are declared as quorum queues unless ClassicQueues is set; when a
// classic queue of the same name already exists, the quorum declaration
// is rejected and the existing queue is kept.
func (s *System) setupQueue(conn *amqp.Connection, spec queueSpec) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	var args amqp.Table
	if !s.settings.ClassicQueues {
		args = amqp.Table{"x-queue-type": "quorum"}
	}
	if _, err := ch.QueueDeclare(spec.name, true, false, false, false, args); err != nil {
		if s.settings.ClassicQueues || !isPreconditionFailed(err) {
			return err
		}
		// The precondition failure closed the channel.
		ch, err = conn.Channel()
		if err != nil {
			return err
		}
		if _, err := ch.QueueDeclare(spec.name, true, false, false, false, nil); err != nil {
			return err
		}
		s.log.Warn("Quorum declaration rejected, keeping existing classic queue", nil, map[string]interface{}{
			"queue": spec.name,
		})
	}

	for _, pattern := range spec.patterns {
		if err := ch.QueueBind(spec.name, pattern, s.settings.Exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}

// startConsumers opens one consumer per queue on the main channel, so
// the prefetch window is shared across all queues, and spawns the
// consume loops.
func (s *System) startConsumers() error {
	s.mu.RLock()
	ch := s.channel
	s.mu.RUnlock()

	for _, spec := range s.queues {
		tag := fmt.Sprintf("%s-%s-%s", s.settings.AppName, spec.name, uuid.NewString()[:8])
		deliveries, err := ch.Consume(spec.name, tag, false, false, false, false, nil)
		if err != nil {
			return err
		}
		s.loops.Add(1)
		go s.consumeLoop(spec, deliveries)
	}
	return nil
}

func (s *System) consumeLoop(spec queueSpec, deliveries <-chan amqp.Delivery) {
	defer s.loops.Done()
	for {
		select {
		case <-s.shutdown:
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			s.handlers.Add(1)
			go func() {
				defer s.handlers.Done()
				s.onMessage(spec, delivery)
			}()
		}
	}
}

// watchConnection reconnects after transient connection or channel
// closures and fails the system on unrecoverable ones.
func (s *System) watchConnection() {
	defer s.loops.Done()
	for {
		s.mu.RLock()
		conn, ch := s.conn, s.channel
		s.mu.RUnlock()

		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

		var closeErr *amqp.Error
		select {
		case <-s.shutdown:
			return
		case closeErr = <-connClosed:
		case closeErr = <-chClosed:
		}
		if closeErr == nil {
			// Graceful close during shutdown.
			return
		}

		s.observer.ConnectionLost()
		s.state.Store(int32(Connecting))
		s.log.Warn("Connection lost, reconnecting", closeErr, nil)
		s.closeConnection()

		if err := s.reconnect(); err != nil {
			if !errors.Is(err, errShuttingDown) {
				s.fail(err)
			}
			return
		}
		s.observer.ConnectionReestablished()
		s.state.Store(int32(Started))
		s.log.Info("Connection reestablished", nil)
	}
}

// reconnect redials and rebuilds the topology and consumers, retrying
// transient failures indefinitely.
func (s *System) reconnect() error {
	for {
		if err := s.connect(context.Background()); err != nil {
			return err
		}
		err := s.declareTopology()
		if err == nil {
			err = s.startConsumers()
		}
		if err == nil {
			return nil
		}
		if isFatal(err) {
			return err
		}
		s.log.Warn("Topology setup failed, retrying", err, nil)
		s.closeConnection()
		select {
		case <-s.shutdown:
			return errShuttingDown
		case <-time.After(s.settings.ReconnectDelay):
		}
	}
}

// sampleBacklog periodically reads the message count of every declared
// queue through a passive declare.
func (s *System) sampleBacklog() {
	defer s.loops.Done()
	ticker := time.NewTicker(backlogSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			if s.State() != Started {
				continue
			}
			s.mu.RLock()
			ch := s.channel
			s.mu.RUnlock()
			for _, spec := range s.queues {
				s.pubMu.Lock()
				queue, err := ch.QueueDeclarePassive(spec.name, true, false, false, false, nil)
				s.pubMu.Unlock()
				if err != nil {
					break
				}
				s.observer.QueueBacklog(spec.name, queue.Messages)
			}
		}
	}
}

func (s *System) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil && !s.channel.IsClosed() {
		_ = s.channel.Close()
	}
	if s.conn != nil && !s.conn.IsClosed() {
		_ = s.conn.Close()
	}
}

func (s *System) fail(err error) {
	s.state.Store(int32(Failed))
	s.log.Error("AMQP system failed", err)
	select {
	case s.fatal <- err:
	default:
	}
}

// buildQueueSpecs derives the queue topology from the registry. In
// per-handler mode bindings are grouped by handler name, each group
// getting its own "{prefix}_{handler}" queue; in shared mode one queue
// named after the prefix carries every pattern.
func (s *System) buildQueueSpecs() []queueSpec {
	bindings := s.router.Bindings()
	if len(bindings) == 0 {
		return nil
	}

	if s.settings.QueueMode == QueueModeShared {
		return []queueSpec{{
			name:     sanitizeQueueName(s.settings.QueuePrefix),
			bindings: bindings,
			patterns: s.router.Patterns(),
		}}
	}

	var order []string
	groups := map[string]*queueSpec{}
	for _, binding := range bindings {
		spec, ok := groups[binding.Name]
		if !ok {
			spec = &queueSpec{
				name: sanitizeQueueName(fmt.Sprintf("%s_%s", s.settings.QueuePrefix, binding.Name)),
			}
			groups[binding.Name] = spec
			order = append(order, binding.Name)
		}
		spec.bindings = append(spec.bindings, binding)
		if !slices.Contains(spec.patterns, binding.Pattern) {
			spec.patterns = append(spec.patterns, binding.Pattern)
		}
	}

	specs := make([]queueSpec, 0, len(order))
	for _, name := range order {
		specs = append(specs, *groups[name])
	}
	return specs
}
