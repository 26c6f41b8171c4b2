package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ModeAPIKey enables key checking.
const ModeAPIKey = "apikey"

// Guard validates API keys presented on HTTP requests and gRPC calls.
type Guard struct {
	enabled bool
	header  string
	key     []byte
	open    map[string]bool
}

// New returns a Guard. header is matched case-insensitively. HTTP paths and
// gRPC full method names listed in open skip the check.
func New(mode, header, key string, open ...string) *Guard {
	g := &Guard{
		enabled: mode == ModeAPIKey && key != "",
		header:  strings.ToLower(header),
		key:     []byte(key),
		open:    make(map[string]bool, len(open)),
	}
	for _, p := range open {
		g.open[p] = true
	}
	return g
}

// Enabled reports whether keys are checked at all.
func (g *Guard) Enabled() bool { return g.enabled }

// Allowed reports whether got matches the expected key.
func (g *Guard) Allowed(got string) bool {
	if !g.enabled {
		return true
	}
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), g.key) == 1
}

// UnaryInterceptor returns a gRPC UnaryServerInterceptor that reads the key
// from the incoming metadata. A missing or wrong key yields
// codes.Unauthenticated.
func (g *Guard) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !g.enabled || g.open[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		vals := md.Get(g.header)
		if len(vals) == 0 || !g.Allowed(vals[0]) {
			slog.Debug("auth: rejected grpc call", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}

// Middleware wraps next with the HTTP key check. Rejected requests get 401.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.enabled || g.open[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if !g.Allowed(r.Header.Get(g.header)) {
			slog.Debug("auth: rejected http request", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
