package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"mediawatch/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level string
	// Format selects the stdout handler: "console", "json", or "auto" (console
	// on a terminal, JSON otherwise).
	Format string
	// File, when set, receives a JSON copy of every record. The caller owns
	// it and closes it after the logger is no longer used.
	File io.Writer
	// Stdout overrides os.Stdout, mainly for tests.
	Stdout      io.Writer
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var primary slog.Handler
	switch format := resolveFormat(opts.Format, stdout); format {
	case "json":
		primary = newJSONHandler(stdout, levelVar, addSource)
	case "console":
		primary = newPrettyHandler(stdout, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if opts.File == nil {
		return slog.New(primary), nil
	}
	return slog.New(newTeeHandler(primary, newJSONHandler(opts.File, levelVar, addSource))), nil
}

// NewFromConfig creates a logger that writes to stdout and to the daily log
// file in the configured log directory. The returned file is nil when no log
// directory is configured; Close on a nil *DailyFile is a no-op.
func NewFromConfig(cfg *config.Config) (*slog.Logger, *DailyFile, error) {
	if cfg == nil {
		logger, err := New(Options{Level: "info", Format: "console"})
		return logger, nil, err
	}
	opts := Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	var file *DailyFile
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		var err error
		if file, err = OpenDailyFile(dir); err != nil {
			return nil, nil, err
		}
		opts.File = file
	}
	logger, err := New(opts)
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	return logger, file, nil
}

func resolveFormat(format string, w io.Writer) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", "auto":
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return "console"
		}
		if format == "" {
			return "console"
		}
		return "json"
	default:
		return format
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	})
}
