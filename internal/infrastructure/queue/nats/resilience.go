package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/infrastructure/resilience"
)

// connectionErrors mean the broker is unreachable right now; the request
// itself was fine.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
	nats.ErrReconnectBufExceeded,
}

// classifyNATSError counts broker outages on the breaker. A payload the broker
// refuses (oversized, bad subject) is a bug in the request and is not recorded.
func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isConnectionError(err):
		return resilience.ErrorClassification{Temporary: true, RecordFailure: true}
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return resilience.ErrorClassification{}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func isConnectionError(err error) bool {
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// publishError reports a failed enqueue as ExternalService, plus Temporary
// when the broker is only unreachable for now.
func publishError(err error) error {
	const op = "nats publish"
	if classifyNATSError(err).Temporary && !domain.IsKind(err, domain.ErrTemporary) {
		err = domain.WrapError(domain.ErrTemporary, op, err)
	}
	return domain.WrapError(domain.ErrExternalService, op, err)
}
