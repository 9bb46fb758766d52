package log

import (
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
)

// SetupLogger applies the configured log.level to the provider and installs a
// JSON slog default on stderr. The slog records use "severity" and "message"
// keys to line up with the zerolog output.
func SetupLogger(loglevel string) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}
	rename := map[string]string{slog.LevelKey: "severity", slog.MessageKey: "message"}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.Level(level),
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if k, ok := rename[attr.Key]; ok {
				attr.Key = k
			}
			return attr
		},
	})
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))
	SetLevel(level)
	return nil
}

// ParseLevel maps debug, info, warn and error to a Level. The empty string
// means info.
func ParseLevel(level string) (Level, error) {
	switch level {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, errors.Newf("invalid log level %q", level)
}

// ErrAttr wraps err for slog so ErrFmtHandler can find it.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
