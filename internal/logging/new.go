package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported backends.
const (
	BackendSlog    = "slog"
	BackendZap     = "zap"
	BackendZerolog = "zerolog"
	BackendLogrus  = "logrus"
)

// Options selects and configures a backend.
type Options struct {
	Backend string    // slog (default), zap, zerolog, logrus
	Level   string    // debug, info (default), warn, error
	Format  string    // json (default) or text
	Output  io.Writer // defaults to os.Stdout
}

// New builds a Logger for the configured backend.
func New(opts Options) (Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	level := strings.ToLower(strings.TrimSpace(opts.Level))
	if level == "" {
		level = "info"
	}
	text := strings.EqualFold(opts.Format, "text")

	switch strings.ToLower(opts.Backend) {
	case "", BackendSlog:
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("slog level %q: %w", level, err)
		}
		ho := &slog.HandlerOptions{Level: lvl}
		var h slog.Handler = slog.NewJSONHandler(out, ho)
		if text {
			h = slog.NewTextHandler(out, ho)
		}
		return NewSlogLogger(slog.New(h)), nil

	case BackendZap:
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("zap level %q: %w", level, err)
		}
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		var enc zapcore.Encoder = zapcore.NewJSONEncoder(ec)
		if text {
			enc = zapcore.NewConsoleEncoder(ec)
		}
		core := zapcore.NewCore(enc, zapcore.AddSync(out), lvl)
		return NewZapLogger(zap.New(core)), nil

	case BackendZerolog:
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("zerolog level %q: %w", level, err)
		}
		w := out
		if text {
			w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
		}
		return NewZerologLogger(zerolog.New(w).Level(lvl).With().Timestamp().Logger()), nil

	case BackendLogrus:
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logrus level %q: %w", level, err)
		}
		l := logrus.New()
		l.SetOutput(out)
		l.SetLevel(lvl)
		if text {
			l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		} else {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
		return NewLogrusLogger(l), nil
	}

	return nil, fmt.Errorf("unknown log backend %q", opts.Backend)
}
