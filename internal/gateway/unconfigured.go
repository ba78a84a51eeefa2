package gateway

import (
	"context"
	"errors"
)

// ErrUnconfigured is returned when no gateway URL has been configured.
var ErrUnconfigured = errors.New("completion gateway not configured")

// Unconfigured is a Completer for deployments without a gateway URL. Every
// call fails, which routes each submission through the fallback reply.
type Unconfigured struct{}

// Complete always returns ErrUnconfigured.
func (Unconfigured) Complete(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return nil, ErrUnconfigured
}

var _ Completer = Unconfigured{}
