package log

import (
	"context"
	"log/slog"

	cerrors "github.com/cockroachdb/errors"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// ErrFmtHandler wraps a slog handler. For a record carrying an "error"
// attribute it adds the cockroachdb stacktrace and, for trial and search
// failures, the configuration, fold, phase and policy as top-level
// attributes so they can be filtered on.
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler with an ErrFmtHandler.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{
		handler: handler,
	}
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
	if found == nil {
		return eh.handler.Handle(ctx, r)
	}

	if st := extractStacktrace(found); st != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, st))
	}
	r.AddAttrs(searchAttrs(found)...)
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

// searchAttrs lifts the fields of a TrialFailedError or SearchFailedError
// found anywhere in the chain.
func searchAttrs(err error) []slog.Attr {
	var attrs []slog.Attr
	var sf *errors.SearchFailedError
	if errors.As(err, &sf) {
		attrs = append(attrs, slog.String(PolicyKey, sf.Policy))
	}
	var tf *errors.TrialFailedError
	if errors.As(err, &tf) {
		attrs = append(attrs,
			slog.String(ConfigKey, tf.Config),
			slog.Int(ConfigIndexKey, tf.ConfigIndex),
			slog.Int(FoldKey, tf.Fold),
			slog.String(PhaseKey, tf.Phase),
		)
	}
	return attrs
}

func extractStacktrace(err error) string {
	safeDetails := cerrors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
