package csv

import (
	"log/slog"

	"github.com/leapstack-labs/leapgold/pkg/adapter"
)

func init() {
	adapter.Register("csv", func(l *slog.Logger) adapter.Source { return New(l) })
}
