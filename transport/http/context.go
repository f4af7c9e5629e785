package http

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
)

// requestKey namespaces the context values this package attaches to every
// inbound request, so a structured logger can pull them into every log line
// without the handler threading them through explicitly.
type requestKey string

const (
	RequestKeyRequestID requestKey = "request_id"
	RequestKeyRemoteIP  requestKey = "client_remote_addr"
)

func withRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, RequestKeyRequestID, uuid.NewString())
}

func withRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, RequestKeyRemoteIP, ip)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
