package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"

	nycerrors "github.com/YuminosukeSato/nycprice/pkg/errors"
)

// ErrFmtHandler decorates records carrying an error attribute with the
// cockroachdb/errors stack trace, the concrete error type and, for pipeline
// failures, the step that failed.
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler with an ErrFmtHandler.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{handler: handler}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var found error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		found, _ = attr.Value.Any().(error)
		return false
	})
	if found != nil {
		r.AddAttrs(errorAttrs(found)...)
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

func errorAttrs(err error) []slog.Attr {
	var attrs []slog.Attr
	cause := err
	var stepErr *nycerrors.StepError
	if errors.As(err, &stepErr) {
		attrs = append(attrs, slog.String(StepKey, stepErr.Step))
		cause = stepErr.Err
	}
	st := extractStacktrace(err)
	if st == "" {
		st = extractStacktrace(cause)
	}
	if st != "" {
		attrs = append(attrs, slog.String(StacktraceAttrKey, st))
	}
	return append(attrs, slog.String(ErrorTypeKey, fmt.Sprintf("%T", errors.UnwrapAll(cause))))
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
