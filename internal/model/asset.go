package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Asset status enum constants
const (
	AssetStatusAvailable   = "AVAILABLE"
	AssetStatusAssigned    = "ASSIGNED"
	AssetStatusMaintenance = "MAINTENANCE"
	AssetStatusRetired     = "RETIRED"
)

// Maintenance type enum constants
const (
	MaintenancePreventive  = "PREVENTIVE"
	MaintenanceCorrective  = "CORRECTIVE"
	MaintenanceInspection  = "INSPECTION"
	MaintenanceCalibration = "CALIBRATION"
	MaintenanceOther       = "OTHER"
)

// Asset represents a physical organization asset tracked through its lifecycle
type Asset struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AssetID        string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"asset_id"` // Business code, e.g. AST4K7TQ2
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Description    string          `gorm:"type:text" json:"description"`
	Category       string          `gorm:"type:varchar(100);index" json:"category"`
	DepartmentID   *uuid.UUID      `gorm:"type:uuid;index" json:"department_id"`
	Department     *Department     `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	AssignedToID   *uuid.UUID      `gorm:"type:uuid;index" json:"assigned_to_id"`
	AssignedTo     *User           `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	PurchaseDate   *time.Time      `gorm:"type:date" json:"purchase_date"`
	PurchasePrice  decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"purchase_price"`
	Status         string          `gorm:"type:varchar(20);not null;default:'AVAILABLE';index" json:"status"`
	Manufacturer   string          `gorm:"type:varchar(100)" json:"manufacturer"`
	ModelNumber    string          `gorm:"type:varchar(50)" json:"model_number"`
	SerialNumber   string          `gorm:"type:varchar(50)" json:"serial_number"`
	WarrantyExpiry *time.Time      `gorm:"type:date" json:"warranty_expiry"`
	Location       string          `gorm:"type:varchar(100)" json:"location"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

// AssetMaintenance records one maintenance event performed on an asset
type AssetMaintenance struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MaintenanceID       string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"maintenance_id"` // Business code, e.g. MNT09XBM1
	AssetID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"asset_id"`
	Asset               *Asset          `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE;" json:"asset,omitempty"`
	MaintenanceType     string          `gorm:"type:varchar(20);not null;default:'PREVENTIVE';index" json:"maintenance_type"`
	MaintenanceDate     time.Time       `gorm:"not null;index" json:"maintenance_date"`
	Description         string          `gorm:"type:text;not null" json:"description"`
	Cost                decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"cost"`
	PerformedByID       *uuid.UUID      `gorm:"type:uuid" json:"performed_by_id"`
	PerformedBy         *User           `gorm:"foreignKey:PerformedByID" json:"performed_by,omitempty"`
	NextMaintenanceDate *time.Time      `gorm:"type:date" json:"next_maintenance_date"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
