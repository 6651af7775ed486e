package logging

import "context"

// NopLogger discards everything. Handy default for tests and for components
// constructed without an explicit logger.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (*NopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (*NopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (*NopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (n *NopLogger) With(args ...any) Logger                          { return n }
