package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/kwimport/internal/core"
)

// clientIP is RemoteAddr without the port. TrustedRealIP has already
// replaced it with the forwarded client where that is trusted.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// withRequestMetadata records who started an import so the pipeline logs
// can name them.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.WithImportOrigin(ctx, core.ImportOrigin{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
}
