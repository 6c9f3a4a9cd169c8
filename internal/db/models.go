package db

import (
	"time"
)

// TxRecord is one submitted transaction and how it ended.
type TxRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Action      string    `gorm:"not null;index" json:"action"`
	Contract    string    `gorm:"not null" json:"contract"`
	Method      string    `gorm:"not null" json:"method"`
	Value       string    `gorm:"not null" json:"value"` // wei
	Fingerprint string    `gorm:"not null" json:"fingerprint"`
	TxHash      string    `gorm:"index" json:"tx_hash"`
	Status      string    `gorm:"not null" json:"status"` // "pending", "mined", "reverted", "failed"
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}
