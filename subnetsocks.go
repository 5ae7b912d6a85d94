// Package subnetsocks implements a SOCKS5 CONNECT proxy that can restrict
// targets to the subnet of the interface it listens on.
package subnetsocks

import (
	"context"

	"go.uber.org/zap"
)

// Version is the current version of subnet-socks.
const Version = "1.0.0"

// Service is the common service abstraction in this module.
type Service interface {
	// ZapField returns a [zap.Field] that identifies the service.
	ZapField() zap.Field

	// Start starts the service.
	Start(ctx context.Context) error

	// Stop stops the service.
	Stop() error
}
