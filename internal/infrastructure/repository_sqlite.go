package infrastructure

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/media-queue-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteHistoryRepository implements domain.HistoryRepository using SQLite
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository opens (or creates) the history database
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.HistoryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// sqlite allows one writer; serialise access instead of surfacing SQLITE_BUSY
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &SQLiteHistoryRepository{db: db}, nil
}

// newestFirst orders by date, then by id so equal timestamps keep insertion order reversed
var newestFirst = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "download_date"}, Desc: true},
	{Column: clause.Column{Name: "id"}, Desc: true},
}}

// Create stores a new record
func (r *SQLiteHistoryRepository) Create(record *domain.HistoryRecord) error {
	if record.DownloadDate.IsZero() {
		record.DownloadDate = time.Now()
	}
	if err := r.db.Create(record).Error; err != nil {
		return &domain.StoreError{Op: "create", Err: err}
	}
	record.PlatformIcon = domain.PlatformIcon(record.Platform)
	return nil
}

// List returns records matching the filter, newest first
func (r *SQLiteHistoryRepository) List(filter domain.HistoryFilter) ([]*domain.HistoryRecord, error) {
	records := []*domain.HistoryRecord{}
	query := r.db.Model(&domain.HistoryRecord{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Format != "" {
		query = query.Where("format = ?", filter.Format)
	}

	if err := query.Clauses(newestFirst).Find(&records).Error; err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	return records, nil
}

// Search matches the query case-insensitively against title, url and platform.
// Case is folded in Go since sqlite's LOWER only handles ASCII.
func (r *SQLiteHistoryRepository) Search(query string) ([]*domain.HistoryRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.List(domain.HistoryFilter{})
	}

	records := []*domain.HistoryRecord{}
	if err := r.db.Clauses(newestFirst).Find(&records).Error; err != nil {
		return nil, &domain.StoreError{Op: "search", Err: err}
	}

	needle := strings.ToLower(query)
	matched := make([]*domain.HistoryRecord, 0, len(records))
	for _, rec := range records {
		if containsFold(rec.Title, needle) || containsFold(rec.URL, needle) || containsFold(rec.Platform, needle) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

// Delete deletes a record by id
func (r *SQLiteHistoryRepository) Delete(id int64) error {
	result := r.db.Delete(&domain.HistoryRecord{}, id)
	if result.Error != nil {
		return &domain.StoreError{Op: "delete", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return domain.ErrHistoryNotFound
	}
	return nil
}

// DeleteAll removes every record
func (r *SQLiteHistoryRepository) DeleteAll() (int64, error) {
	result := r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.HistoryRecord{})
	if result.Error != nil {
		return 0, &domain.StoreError{Op: "clear", Err: result.Error}
	}
	return result.RowsAffected, nil
}

// GetStats returns history statistics
func (r *SQLiteHistoryRepository) GetStats() (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{}

	if err := r.db.Model(&domain.HistoryRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, &domain.StoreError{Op: "stats", Err: err}
	}

	statusCounts := []struct {
		Status domain.HistoryStatus
		Count  int64
	}{}
	if err := r.db.Model(&domain.HistoryRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, &domain.StoreError{Op: "stats", Err: err}
	}
	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.HistorySuccess:
			stats.Success = sc.Count
		case domain.HistoryFailed:
			stats.Failed = sc.Count
		}
	}

	formatCounts := []struct {
		Format domain.Format
		Count  int64
	}{}
	if err := r.db.Model(&domain.HistoryRecord{}).
		Select("format, count(*) as count").
		Group("format").
		Scan(&formatCounts).Error; err != nil {
		return nil, &domain.StoreError{Op: "stats", Err: err}
	}
	for _, fc := range formatCounts {
		switch fc.Format {
		case domain.FormatMP4:
			stats.MP4 = fc.Count
		case domain.FormatMP3:
			stats.MP3 = fc.Count
		case domain.FormatAuto:
			stats.Auto = fc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
