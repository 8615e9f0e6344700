package model

import (
	"time"

	"github.com/google/uuid"
)

// Request status enum constants — shared by AssetRequest and RequestApproval
const (
	RequestStatusPending   = "PENDING"
	RequestStatusApproved  = "APPROVED"
	RequestStatusRejected  = "REJECTED"
	RequestStatusCancelled = "CANCELLED"
	RequestStatusCompleted = "COMPLETED"
)

// Request priority enum constants
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// RequestType defines a category of asset requests: whether it needs
// approval and how many sequential sign-off levels are required.
type RequestType struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name             string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Code             string    `gorm:"type:varchar(10);uniqueIndex;not null" json:"code"` // Generated when absent, e.g. REQ4K7TQ2
	Description      string    `gorm:"type:text" json:"description"`
	RequiresApproval bool      `gorm:"not null;default:true" json:"requires_approval"`
	ApprovalLevels   int       `gorm:"not null;default:1" json:"approval_levels"`
	Active           bool      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AssetRequest is a workflow request raised by an employee, resolved through
// its ordered RequestApproval chain. Status is mutated only by the workflow
// service — never written directly by other code paths.
type AssetRequest struct {
	ID             uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID      string            `gorm:"type:varchar(20);uniqueIndex;not null" json:"request_id"` // Business code, e.g. REQ7H2WQ9
	RequestTypeID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"request_type_id"`
	RequestType    *RequestType      `gorm:"foreignKey:RequestTypeID" json:"request_type,omitempty"`
	RequesterID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"requester_id"`
	Requester      *User             `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	AssetID        *uuid.UUID        `gorm:"type:uuid;index" json:"asset_id"`
	Asset          *Asset            `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	Title          string            `gorm:"type:varchar(200);not null" json:"title"`
	Description    string            `gorm:"type:text;not null" json:"description"`
	Priority       string            `gorm:"type:varchar(10);not null;default:'MEDIUM';index" json:"priority"`
	Status         string            `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	DesiredDate    *time.Time        `gorm:"type:date;index" json:"desired_date"`
	CompletionDate *time.Time        `json:"completion_date"` // Set only when the request reaches APPROVED
	Attachment     string            `gorm:"type:varchar(255)" json:"attachment"`
	Active         bool              `gorm:"not null;default:true;index" json:"active"` // Soft deactivation, orthogonal to workflow status
	Approvals      []RequestApproval `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE;" json:"approvals,omitempty"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// RequestApproval is one slot in a request's sequential sign-off chain.
// All slots are created PENDING with a nil approver when the request is
// created; each resolves to APPROVED or REJECTED exactly once.
type RequestApproval struct {
	ID            uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID     uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:uq_request_approver_level" json:"request_id"`
	Request       *AssetRequest `gorm:"foreignKey:RequestID" json:"-"`
	ApproverID    *uuid.UUID    `gorm:"type:uuid;uniqueIndex:uq_request_approver_level" json:"approver_id"`
	Approver      *User         `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	ApprovalLevel int           `gorm:"not null;index;uniqueIndex:uq_request_approver_level" json:"approval_level"`
	Status        string        `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Comments      string        `gorm:"type:text" json:"comments"`
	ApprovalDate  *time.Time    `json:"approval_date"` // Null until the slot is resolved
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// Resolved reports whether the approval slot has reached a terminal decision
func (a *RequestApproval) Resolved() bool {
	return a.Status == RequestStatusApproved || a.Status == RequestStatusRejected
}
