package handler

import (
	"net/http"

	"go-office-trash/internal/middleware"
	"go-office-trash/internal/model"
)

// actorFromRequest identifies who is acting for audit records and trash
// ownership. Unauthenticated requests carry only the client address.
func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = claims.UserID
	actor.Username = claims.Username
	actor.Role = claims.Role

	return actor
}
