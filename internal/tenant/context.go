// Package tenant resolves the gateway-injected tenant identity and exposes
// read-only tenant configuration to the kernel modules.
package tenant

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/solvent-hq/solvent/internal/platform/httpx"
)

const (
	// HeaderTenantID carries the tenant identity injected by the gateway.
	HeaderTenantID = "X-Tenant-ID"
	// HeaderActorID carries the acting user identity.
	HeaderActorID = "X-Actor-ID"
)

type identityContextKey struct{}

// Identity carries the gateway-authenticated tenant and actor.
type Identity struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// Middleware resolves tenant and actor headers into the request context.
// Requests without a valid tenant never reach the handlers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := uuid.Parse(r.Header.Get(HeaderTenantID))
		if err != nil || tenantID == uuid.Nil {
			httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "valid X-Tenant-ID header required")
			return
		}
		id := Identity{TenantID: tenantID}
		if raw := r.Header.Get(HeaderActorID); raw != "" {
			if actorID, err := uuid.Parse(raw); err == nil {
				id.ActorID = actorID
			}
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}
