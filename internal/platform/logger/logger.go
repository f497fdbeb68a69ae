package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so audit-tagged lines are
// machine-parseable alongside the ledger.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
