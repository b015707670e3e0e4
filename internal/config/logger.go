package config

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// NewLogger builds the process logger writing to w. Level is one of
// debug, info, warn or error; Format is text or json.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, errors.Wrapf(err, "log level %q", l.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, errors.Errorf("unknown log format %q", l.Format)
}
