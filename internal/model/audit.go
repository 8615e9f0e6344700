package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateAsset   = "CREATE_ASSET"
	ActionUpdateAsset   = "UPDATE_ASSET"
	ActionDeleteAsset   = "DELETE_ASSET"
	ActionReassignAsset = "REASSIGN_ASSET"

	ActionCreateRequestType = "CREATE_REQUEST_TYPE"
	ActionUpdateRequestType = "UPDATE_REQUEST_TYPE"
	ActionDeleteRequestType = "DELETE_REQUEST_TYPE"

	// Workflow actions
	ActionCreateRequest  = "CREATE_REQUEST"
	ActionApproveRequest = "APPROVE_REQUEST"
	ActionRejectRequest  = "REJECT_REQUEST"
	ActionCancelRequest  = "CANCEL_REQUEST"

	ActionRecordMaintenance = "RECORD_MAINTENANCE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
