package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/pgkit/internal/logging"
)

// gooseLogger routes goose output through logging.Logger.
type gooseLogger struct {
	ctx context.Context
	l   logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Info(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf keeps goose's contract: the process exits.
func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Error(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}
