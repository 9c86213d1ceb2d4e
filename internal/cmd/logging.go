package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"charm.land/log/v2"
	"github.com/mcfsalla/sqlregexp/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging installs the default slog logger: a charm log handler on
// stderr, or on a rotated file when opts.LogFile is set. The returned func
// closes the file.
func setupLogging(opts config.Options, stderr io.Writer) (func(), error) {
	level, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	w := stderr
	closeFn := func() {}
	if opts.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		w = rotator
		closeFn = func() {
			if err := rotator.Close(); err != nil {
				slog.Warn("Failed to close log file", "path", opts.LogFile, "error", err)
			}
		}
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: opts.LogFile != "",
		Prefix:          "sqlregexp",
	})
	if opts.LogFile != "" {
		logger.SetFormatter(log.LogfmtFormatter)
	}
	slog.SetDefault(slog.New(logger))
	return closeFn, nil
}
