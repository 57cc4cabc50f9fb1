package core

import (
	"context"
	"log/slog"
)

// ImportOrigin identifies who started an import. It travels on the
// request context into StartImport and is logged with the job id.
type ImportOrigin struct {
	IP        string
	UserAgent string
}

type originKey struct{}

// WithImportOrigin attaches o to ctx.
func WithImportOrigin(ctx context.Context, o ImportOrigin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// ImportOriginFrom returns the origin on ctx, or the zero value when the
// import was not started through a transport that records one.
func ImportOriginFrom(ctx context.Context) ImportOrigin {
	o, _ := ctx.Value(originKey{}).(ImportOrigin)
	return o
}

// LogValue groups the non-empty origin fields under one log key.
func (o ImportOrigin) LogValue() slog.Value {
	var attrs []slog.Attr
	if o.IP != "" {
		attrs = append(attrs, slog.String("ip", o.IP))
	}
	if o.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", o.UserAgent))
	}
	return slog.GroupValue(attrs...)
}
