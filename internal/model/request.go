package model

import "encoding/json"

type CaptureRequest struct {
	EntityType   EntityType
	OriginalID   string
	EntityData   json.RawMessage
	Collection   string
	DeletedBy    AuditActor
	DeleteReason string
	// Destructive marks a deletion whose dependents were also hard-deleted.
	Destructive  bool
	RelatedItems []RelatedItem
}

type DeleteEntityRequest struct {
	Reason string `json:"reason"`
	Hard   bool   `json:"hard"`
}

type RestoreRequest struct {
	Reason string `json:"reason"`
}

type BulkRequest struct {
	IDs    []string `json:"ids"`
	Reason string   `json:"reason,omitempty"`
}

type BulkResponse struct {
	Requested int `json:"requested"`
	Succeeded int `json:"succeeded_count"`
	Failed    int `json:"failed_count"`
	BulkResult
}

type ExpireRequest struct {
	// Now overrides the sweep time; empty means the server clock.
	Now string `json:"now,omitempty"`
}

type AuditActor struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	IP       string `json:"ip,omitempty"`
}

type AuditEntry struct {
	ID         string     `json:"id"`
	Action     string     `json:"action"`
	OccurredAt string     `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Before     any        `json:"before,omitempty"`
	After      any        `json:"after,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Action   string
	ActorID  string
	Status   string
	Resource string
	From     string
	To       string
	Page     int
	Limit    int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
