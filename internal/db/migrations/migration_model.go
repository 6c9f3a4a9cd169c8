package migrations

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration is an applied migration, one row per name.
type Migration struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

type MigrationManager struct {
	db *gorm.DB
}

func NewMigrationManager(db *gorm.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

func (m *MigrationManager) EnsureMigrationTable() error {
	if !m.db.Migrator().HasTable(&Migration{}) {
		log.Debugf("Creating migrations table")
		return m.db.AutoMigrate(&Migration{})
	}
	return nil
}

func (m *MigrationManager) HasMigration(name string) bool {
	return applied(m.db, name)
}

func applied(tx *gorm.DB, name string) bool {
	var count int64
	err := tx.Model(&Migration{}).Where("name = ?", name).Count(&count).Error
	return err == nil && count > 0
}

// RunMigration applies migrationFn and records it in one transaction, once per name.
func (m *MigrationManager) RunMigration(name string, migrationFn func(*gorm.DB) error) error {
	if m.HasMigration(name) {
		log.Debugf("Migration %s has already been applied, skipping", name)
		return nil
	}

	log.Debugf("Running migration: %s", name)
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if applied(tx, name) {
			return nil
		}
		if err := migrationFn(tx); err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		if err := tx.Create(&Migration{Name: name, AppliedAt: time.Now()}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to run migration %s: %w", name, err)
	}

	log.Debugf("Successfully completed migration: %s", name)
	return nil
}
