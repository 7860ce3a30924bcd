package ports

import "context"

// Watchable defines an interface for sources that can notify about changes.
// It is used to hot-reload rails during development and in long-running servers.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying files change.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
