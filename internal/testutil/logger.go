package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/dtroode/prakriti-server/internal/logger"
)

func MakeNoopLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))}
}

// Clock is a settable time source for tests.
type Clock struct {
	T time.Time
}

// NewClock returns a Clock fixed at t.
func NewClock(t time.Time) *Clock {
	return &Clock{T: t}
}

func (c *Clock) Now() time.Time {
	return c.T
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}
