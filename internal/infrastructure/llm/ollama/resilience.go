package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/infrastructure/resilience"
)

// StatusError is a non-2xx reply from a model endpoint.
type StatusError struct {
	Model      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("model %q answered %d", e.Model, e.StatusCode)
	}
	return fmt.Sprintf("model %q answered %d: %s", e.Model, e.StatusCode, e.Body)
}

// overloadStatuses are replies after which the same prompt may succeed.
var overloadStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// classifyGenerateError records only endpoint health signals on the breaker:
// overload replies, transport failures and the per-call deadline. Caller
// cancellation and rejected prompts (4xx) leave the breaker alone.
func classifyGenerateError(err error) resilience.ErrorClassification {
	var statusErr *StatusError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return resilience.ErrorClassification{}
	case errors.As(err, &statusErr):
		overloaded := overloadStatuses[statusErr.StatusCode]
		return resilience.ErrorClassification{Temporary: overloaded, RecordFailure: overloaded}
	case errors.Is(err, context.DeadlineExceeded), resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Temporary: true, RecordFailure: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Temporary: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// generateError marks every failed call as ExternalService, plus Temporary
// when a later attempt may succeed.
func generateError(err error) error {
	const op = "ollama generate"
	if classifyGenerateError(err).Temporary && !domain.IsKind(err, domain.ErrTemporary) {
		err = domain.WrapError(domain.ErrTemporary, op, err)
	}
	if !domain.IsKind(err, domain.ErrExternalService) {
		err = domain.WrapError(domain.ErrExternalService, op, err)
	}
	return err
}
