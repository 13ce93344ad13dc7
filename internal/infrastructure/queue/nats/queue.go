package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/infrastructure/resilience"
)

const workerGroup = "workers"

type Queue struct {
	conn         *nats.Conn
	subject      string
	executor     *resilience.Executor
	drainTimeout time.Duration
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ClientName           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// DrainTimeout bounds how long shutdown waits for buffered and in-flight
	// messages.
	DrainTimeout time.Duration
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	clientName := strings.TrimSpace(options.ClientName)
	if clientName == "" {
		clientName = "document-enricher"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	drainTimeout := options.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name(clientName),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DrainTimeout(drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:         conn,
		subject:      subject,
		executor:     options.ResilienceExecutor,
		drainTimeout: drainTimeout,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishEnrichmentRequested(ctx context.Context, req domain.EnrichmentRequest) error {
	data, err := encodeRequest(req)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return publishError(err)
	}
	return nil
}

// SubscribeEnrichmentRequested blocks until ctx is done, then drains the
// subscription so in-flight and already buffered messages finish. Handlers
// do not inherit ctx cancellation; the caller bounds them with its own
// per-message timeout.
func (q *Queue) SubscribeEnrichmentRequested(ctx context.Context, handler func(context.Context, domain.EnrichmentRequest) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		handleMessage(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := waitDrained(sub.IsValid, q.drainTimeout, 50*time.Millisecond); err != nil {
		return err
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// waitDrained polls until the drained subscription is closed. Drain itself
// returns before pending messages are processed.
func waitDrained(active func() bool, limit, poll time.Duration) error {
	deadline := time.Now().Add(limit)
	for active() {
		if time.Now().After(deadline) {
			return fmt.Errorf("nats drain subscription: still active after %s", limit)
		}
		time.Sleep(poll)
	}
	return nil
}

func handleMessage(ctx context.Context, data []byte, handler func(context.Context, domain.EnrichmentRequest) error) {
	req, err := decodeRequest(data)
	if err != nil {
		slog.Warn("enrichment_message_rejected", "error", err)
		return
	}

	// Shutdown drains the subscription; a started enrichment runs to completion.
	handlerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	if err := handler(handlerCtx, req); err != nil {
		slog.Warn("worker_handler_failed", "document_id", req.DocumentID, "error", err)
	}
}

type requestMessage struct {
	DocumentID string                   `json:"document_id"`
	ModelID    string                   `json:"model_id,omitempty"`
	Options    domain.EnrichmentOptions `json:"options"`
	EnqueuedAt time.Time                `json:"enqueued_at"`
}

func encodeRequest(req domain.EnrichmentRequest) ([]byte, error) {
	data, err := json.Marshal(requestMessage{
		DocumentID: req.DocumentID,
		ModelID:    req.ModelID,
		Options:    req.Options,
		EnqueuedAt: req.EnqueuedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal enrichment request: %w", err)
	}
	return data, nil
}

func decodeRequest(data []byte) (domain.EnrichmentRequest, error) {
	var msg requestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.EnrichmentRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode enrichment request", err)
	}
	if strings.TrimSpace(msg.DocumentID) == "" {
		return domain.EnrichmentRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode enrichment request", errors.New("document_id is empty"))
	}
	return domain.EnrichmentRequest{
		DocumentID: msg.DocumentID,
		ModelID:    msg.ModelID,
		Options:    msg.Options,
		EnqueuedAt: msg.EnqueuedAt,
	}, nil
}
