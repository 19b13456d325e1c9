package history

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/robottwo/neurodx/internal/session"
	"gorm.io/gorm"
)

// HistoryManager keeps a log of completed predictions.
type HistoryManager struct {
	db *gorm.DB
}

type PredictionEntry struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	SubmissionID string `gorm:"uniqueIndex"`
	Kind         string `gorm:"index"`
	Input        string
	Disease      string
	Failed       bool
}

func NewHistoryManager(dbFilePath string) (*HistoryManager, error) {
	// - busy_timeout(5000): wait for a concurrent writer instead of failing
	// - synchronous(1): NORMAL mode for durability/performance balance
	// - temp_store(2): MEMORY
	connectionString := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=synchronous(1)&_pragma=temp_store(2)", dbFilePath)

	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("error opening prediction log %s: %w", dbFilePath, err)
	}

	if err := db.AutoMigrate(&PredictionEntry{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// SQLite serializes writes anyway
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &HistoryManager{
		db: db,
	}, nil
}

// Close closes the database connection.
func (historyManager *HistoryManager) Close() error {
	sqlDB, err := historyManager.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record implements session.Recorder.
func (historyManager *HistoryManager) Record(ctx context.Context, record session.Record) error {
	entry := PredictionEntry{
		SubmissionID: record.SubmissionID.String(),
		Kind:         string(record.Kind),
		Input:        record.Input,
		Disease:      record.Disease,
		Failed:       record.Failed,
	}

	result := historyManager.db.WithContext(ctx).Create(&entry)
	return result.Error
}

// GetRecentEntries returns up to limit entries, newest first.
func (historyManager *HistoryManager) GetRecentEntries(limit int) ([]PredictionEntry, error) {
	var entries []PredictionEntry
	result := historyManager.db.Order("created_at desc").Order("id desc").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

// GetRecentEntriesByKind is GetRecentEntries restricted to one kind of submission.
func (historyManager *HistoryManager) GetRecentEntriesByKind(kind session.Kind, limit int) ([]PredictionEntry, error) {
	var entries []PredictionEntry
	result := historyManager.db.Where("kind = ?", string(kind)).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

func (historyManager *HistoryManager) DeleteEntry(id uint) error {
	result := historyManager.db.Delete(&PredictionEntry{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no prediction entry found with id %d", id)
	}

	return nil
}

func (historyManager *HistoryManager) ResetHistory() error {
	result := historyManager.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&PredictionEntry{})
	return result.Error
}

func (historyManager *HistoryManager) GetTotalCount() (int64, error) {
	var count int64
	result := historyManager.db.Model(&PredictionEntry{}).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}
