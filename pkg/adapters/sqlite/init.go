package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/leapgold/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(l *slog.Logger) adapter.Source { return New(l) })
}
