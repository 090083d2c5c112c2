package adapter

import (
	"context"
	"log/slog"
)

// WithConnection connects conn, runs fn and always disconnects.
// If fn fails, any pending transaction is rolled back before the error is
// returned. A disconnect failure is returned only when fn succeeded;
// otherwise it is logged and fn's error wins.
func WithConnection(ctx context.Context, conn Connection, fn func(Connection) error) (err error) {
	if err := conn.Connect(ctx); err != nil {
		return err
	}

	defer func() {
		if err != nil && conn.InTransaction() {
			if rbErr := conn.Rollback(); rbErr != nil {
				slog.Warn("rollback after failure", "backend", conn.Backend(), "error", rbErr)
			}
		}
		if dErr := conn.Disconnect(); dErr != nil {
			if err == nil {
				err = dErr
				return
			}
			slog.Warn("disconnect after failure", "backend", conn.Backend(), "error", dErr)
		}
	}()

	return fn(conn)
}

// Use builds a connection for token with the factory and runs fn inside
// WithConnection.
func Use(ctx context.Context, token string, args map[string]any, logger *slog.Logger, fn func(Connection) error) error {
	conn, err := NewConnection(token, args, logger)
	if err != nil {
		return err
	}
	return WithConnection(ctx, conn, fn)
}
