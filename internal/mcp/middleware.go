package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

const sessionIDKey contextKey = iota

// getSessionID returns the session id stored by sessionMiddleware, or "".
func getSessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// sessionMiddleware stores the caller's session id in the context so tool
// handlers and traffic logs can attribute timer and record changes. HTTP
// sessions have a transport id; stdio clients may pass one in _meta.
func sessionMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if id := requestSessionID(req); id != "" {
				ctx = context.WithValue(ctx, sessionIDKey, id)
			}
			return next(ctx, method, req)
		}
	}
}

func requestSessionID(req sdkmcp.Request) (id string) {
	if req == nil {
		return ""
	}
	// Some requests carry typed-nil params or sessions.
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()

	if extra := req.GetExtra(); extra != nil && extra.Header != nil {
		if id = extra.Header.Get("Mcp-Session-Id"); id != "" {
			return id
		}
	}
	if session := req.GetSession(); session != nil {
		if id = session.ID(); id != "" {
			return id
		}
	}
	if params := req.GetParams(); params != nil {
		if meta := params.GetMeta(); meta != nil {
			id, _ = meta["session_id"].(string)
		}
	}
	return id
}
