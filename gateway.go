package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/zeebo/xxh3"

	"github.com/crawlkit/gateway/internal/kvutil"
	"github.com/crawlkit/gateway/internal/ledger"
	"github.com/crawlkit/gateway/internal/logging"
	"github.com/crawlkit/gateway/internal/metrics"
	"github.com/crawlkit/gateway/internal/registry"
	"github.com/crawlkit/gateway/types"
)

// Gateway is the composition root of the crawl gateway.
//
// It accepts work requests from clients over persistent bidirectional
// connections, delegates execution to workers via a JetStream stream, and
// delivers results back to the originating client, including clients that
// were offline when the result arrived.
//
// One Gateway instance per process; the connection registry is not shared
// across instances. The request ledger (a JetStream KV bucket) is the
// durable source of truth surviving restarts, while the registry starts
// empty on every restart because all connections are, by definition, gone.
//
// Lifecycle:
//   - Create with New()
//   - Call Start() to provision the stream, ledger bucket, and result
//     consumer, and to begin consuming worker responses
//   - Hand each accepted connection to HandleConnection()
//   - Call Stop() for graceful shutdown
type Gateway struct {
	cfg  Config
	conn *nats.Conn
	js   jetstream.JetStream

	registry *registry.Registry
	ledger   *ledger.Store
	logger   types.Logger
	metrics  types.MetricsCollector
	newID    func() string

	consumer jetstream.Consumer

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates a new Gateway instance with the provided configuration.
//
// Returns a concrete *Gateway struct following the "accept interfaces,
// return structs" principle; consumers can define their own interfaces
// for testing if needed.
//
// Parameters:
//   - cfg: Runtime configuration (defaults applied for zero fields)
//   - conn: NATS connection for the broker hop and the ledger bucket
//   - opts: Optional configuration (logger, metrics, id generator)
//
// Example:
//
//	cfg := gateway.Config{StreamName: "CRAWL"}
//	gw, err := gateway.New(&cfg, natsConn, gateway.WithLogger(logger))
func New(cfg *Config, conn *nats.Conn, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if conn == nil {
		return nil, ErrNATSConnectionRequired
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &gatewayOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Safe defaults for optional dependencies avoid nil checks everywhere.
	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	newID := options.newID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Gateway{
		cfg:      *cfg,
		conn:     conn,
		registry: registry.New(loggerInstance, metricsCollector),
		logger:   loggerInstance,
		metrics:  metricsCollector,
		newID:    newID,
	}, nil
}

// Start provisions broker-side resources and begins consuming worker
// responses.
//
// It creates (or updates) the stream, the ledger KV bucket, and the
// durable result consumer, then launches the result pull loop. Start
// returns once provisioning completes; consumption runs in the
// background until Stop.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ctx != nil {
		return ErrAlreadyStarted
	}

	js, err := jetstream.New(g.conn)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	g.js = js

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     g.cfg.StreamName,
		Subjects: []string{g.cfg.TaskSubjectPrefix + ".>", g.cfg.ResultSubject},
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", g.cfg.StreamName, err)
	}

	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket: g.cfg.LedgerBucket,
	}, 3)
	if err != nil {
		return fmt.Errorf("failed to create ledger bucket %s: %w", g.cfg.LedgerBucket, err)
	}
	g.ledger = ledger.New(kv, g.logger)

	consumer, err := js.CreateOrUpdateConsumer(ctx, g.cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       g.cfg.ConsumerName,
		FilterSubject: g.cfg.ResultSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       g.cfg.AckWait,
	})
	if err != nil {
		return fmt.Errorf("failed to create result consumer %s: %w", g.cfg.ConsumerName, err)
	}
	g.consumer = consumer

	g.ctx, g.cancel = context.WithCancel(context.Background())

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.runResultLoop(g.ctx)
	}()

	g.logger.Info("gateway started",
		"stream", g.cfg.StreamName,
		"resultSubject", g.cfg.ResultSubject,
		"ledgerBucket", g.cfg.LedgerBucket,
	)

	return nil
}

// Stop shuts the gateway down: it stops the result pull loop, waits for
// it to drain, and closes every live connection with a going-away code.
//
// In-flight worker responses that were not acked are redelivered after
// restart; the ledger's terminal-state guard makes that harmless.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ctx == nil {
		return ErrNotStarted
	}

	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		g.logger.Warn("stop context cancelled before result loop drained")

		return ctx.Err()
	case <-done:
	}

	g.registry.CloseAll(types.CloseGoingAway, "gateway shutting down")
	g.ctx, g.cancel = nil, nil

	g.logger.Info("gateway stopped")

	return nil
}

// Connections returns the number of currently bound client connections.
func (g *Gateway) Connections() int {
	return g.registry.Len()
}

// taskSubject maps a user identity to its work item subject.
//
// Identities are hashed into a bounded set of partition tokens, so all
// requests from one user land on one subject: a worker consuming that
// subject processes a single user's requests in submission order, while
// different users proceed independently.
func (g *Gateway) taskSubject(identity string) string {
	partition := xxh3.HashString(identity) % uint64(g.cfg.TaskPartitions)

	return fmt.Sprintf("%s.%d", g.cfg.TaskSubjectPrefix, partition)
}
