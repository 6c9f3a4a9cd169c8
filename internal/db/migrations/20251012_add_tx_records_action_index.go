package migrations

import (
	"gorm.io/gorm"
)

// AddTxRecordActionIndex indexes the journal for per-action history, newest first.
func AddTxRecordActionIndex(tx *gorm.DB) error {
	return tx.Exec("CREATE INDEX IF NOT EXISTS tx_records_action_created_index ON tx_records (action, created_at DESC)").Error
}
