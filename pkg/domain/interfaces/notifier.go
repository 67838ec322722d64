package interfaces

import (
	"context"
)

// Notifier defines the interface for optional operator notifications.
// Implementations must be safe to call when notifications are not
// configured.
type Notifier interface {
	Post(ctx context.Context, message string) error
}
