package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/memecoin2016/meme-desk/internal/config"
	"github.com/memecoin2016/meme-desk/internal/db/migrations"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const journalFile = "tx_journal.db"

type DatabaseManager struct {
	journalDb *gorm.DB
}

// NewDatabaseManager opens the databases under the configured DB_DIR and exits on failure.
func NewDatabaseManager() *DatabaseManager {
	dm, err := OpenDatabaseManager(config.AppConfig.DbDir)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	return dm
}

func OpenDatabaseManager(dbDir string) (*DatabaseManager, error) {
	if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	journalPath := filepath.Join(dbDir, journalFile)
	journalDb, err := gorm.Open(sqlite.Open(journalPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to journal database: %w", err)
	}
	log.Debugf("Journal database connected successfully, path: %s", journalPath)

	dm := &DatabaseManager{journalDb: journalDb}
	if err := dm.autoMigrate(); err != nil {
		return nil, err
	}
	log.Debugf("Database migration completed successfully")
	return dm, nil
}

func (dm *DatabaseManager) autoMigrate() error {
	if err := dm.journalDb.AutoMigrate(&TxRecord{}); err != nil {
		return fmt.Errorf("migrate journal database: %w", err)
	}
	mm := migrations.NewMigrationManager(dm.journalDb)
	if err := mm.EnsureMigrationTable(); err != nil {
		return err
	}
	return mm.RunMigration("20251012_add_tx_records_action_index", migrations.AddTxRecordActionIndex)
}

func (dm *DatabaseManager) GetJournalDB() *gorm.DB {
	return dm.journalDb
}

func (dm *DatabaseManager) Close() error {
	sqlDb, err := dm.journalDb.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}
