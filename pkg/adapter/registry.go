package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapconn/pkg/core"
)

// Constructor builds a disconnected Connection from an argument bag.
// It decodes args into the backend's typed config and validates them.
type Constructor func(args map[string]any, logger *slog.Logger) (Connection, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register adds a constructor to the registry, replacing any previous one
// under the same token. Called by backends in their init() functions.
func Register(token string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[token] = ctor
}

// Get retrieves a constructor by token.
func Get(token string) (Constructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[token]
	return c, ok
}

// NewConnection creates a disconnected Connection for token.
// The logger is passed to the constructor (nil uses a discard logger).
func NewConnection(token string, args map[string]any, logger *slog.Logger) (Connection, error) {
	if token == "" {
		return nil, core.NewValidationError(core.CodeUnknownBackend, "backend type not specified")
	}

	ctor, ok := Get(token)
	if !ok {
		return nil, &core.ValidationError{
			Code:    core.CodeUnknownBackend,
			Message: fmt.Sprintf("unsupported database type %q", token),
			Err:     &UnknownAdapterError{Type: token, Available: ListAdapters()},
		}
	}
	if args == nil {
		args = map[string]any{}
	}
	return ctor(args, logger)
}

// ListAdapters returns all registered tokens (sorted).
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a token is registered.
func IsRegistered(token string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[token]
	return ok
}

// UnknownAdapterError is returned when an unknown backend token is requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown backend %q, available backends: %v", e.Type, e.Available)
}
