package domain

import "time"

// AuditLog records an admin action against the knowledge base.
type AuditLog struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Details   string    `json:"details"` // JSON blob
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit action constants.
const (
	AuditActionUpload     = "document_upload"
	AuditActionDelete     = "document_delete"
	AuditActionDeleteAll  = "document_delete_all"
	AuditActionAdminLogin = "admin_login"
	AuditActionRequest    = "http_request"
)
