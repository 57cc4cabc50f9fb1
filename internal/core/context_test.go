package core

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestImportOrigin(t *testing.T) {
	if got := ImportOriginFrom(context.Background()); got != (ImportOrigin{}) {
		t.Errorf("ImportOriginFrom(empty) = %+v, want zero", got)
	}

	want := ImportOrigin{IP: "203.0.113.7", UserAgent: "curl/8.0"}
	ctx := WithImportOrigin(context.Background(), want)
	if got := ImportOriginFrom(ctx); got != want {
		t.Errorf("ImportOriginFrom() = %+v, want %+v", got, want)
	}
}

func TestImportOrigin_LogValue(t *testing.T) {
	tests := []struct {
		name   string
		origin ImportOrigin
		want   []string
		absent []string
	}{
		{"full", ImportOrigin{IP: "10.0.0.1", UserAgent: "ua"}, []string{"origin.ip=10.0.0.1", "origin.user_agent=ua"}, nil},
		{"cli", ImportOrigin{UserAgent: "kwimport-cli"}, []string{"origin.user_agent=kwimport-cli"}, []string{"origin.ip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			slog.New(slog.NewTextHandler(&buf, nil)).Info("import started", "origin", tt.origin)
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("log %q missing %q", out, w)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(out, a) {
					t.Errorf("log %q has %q", out, a)
				}
			}
		})
	}
}
