package middleware

import (
	"context"
	"net/http"
	"strings"

	"workspacemgr/pkg/logger"
	"workspacemgr/pkg/model"
)

const CallerKey contextKey = "caller"

const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
	HeaderRoles    = "X-Roles"
)

// BindCaller extracts the authenticated identity the gateway attached to the
// request and stores it in the context. Token validation happens upstream;
// this core trusts the headers as given. Requests without a tenant and user
// are rejected before they reach any handler.
func BindCaller(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := strings.TrimSpace(r.Header.Get(HeaderTenantID))
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))

			if tenantID == "" || userID == "" {
				log.Warn("Request without caller identity",
					"request_id", RequestID(r.Context()),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Missing caller identity"}`))
				return
			}

			caller := model.Caller{
				TenantID: tenantID,
				UserID:   userID,
				Roles:    parseRoles(r.Header.Get(HeaderRoles)),
			}

			ctx := context.WithValue(r.Context(), CallerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseRoles(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if role := strings.TrimSpace(p); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// CallerFrom returns the identity bound by BindCaller.
func CallerFrom(ctx context.Context) (model.Caller, bool) {
	caller, ok := ctx.Value(CallerKey).(model.Caller)
	return caller, ok
}
