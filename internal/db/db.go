package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balkashynov/jornada/internal/apperr"
	"github.com/balkashynov/jornada/internal/lifecycle"
	"github.com/balkashynov/jornada/internal/models"
)

// Store is the sqlite-backed persistence for work sessions and their pauses
type Store struct {
	db         *gorm.DB
	maxSession time.Duration
}

var _ lifecycle.Store = (*Store)(nil)

// Open sets up the database connection and runs migrations.
// maxSession caps end_time - start_time of completed sessions; zero disables the cap.
func Open(dbPath string, maxSession time.Duration) (*Store, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create jornada directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // Quiet by default
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, maxSession: maxSession}
	if err := s.runMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// runMigrations creates/updates the database schema
func (s *Store) runMigrations() error {
	if err := s.db.AutoMigrate(
		&models.WorkSession{},
		&models.WorkPause{},
	); err != nil {
		return err
	}

	// At most one open session per owner and one open pause per session
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_work_sessions_one_open
			ON work_sessions(owner_id) WHERE status IN ('active', 'paused')`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_work_pauses_one_open
			ON work_pauses(session_id) WHERE pause_end IS NULL`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn against a Store bound to a single database transaction
func (s *Store) Transaction(ctx context.Context, fn func(tx lifecycle.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, maxSession: s.maxSession})
	})
}

// classify maps a gorm error onto the lifecycle error kinds
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperr.Kind(err) != nil {
		return errors.Wrap(err, op)
	}

	msg := err.Error()
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(apperr.ErrNotFound, op)
	case errors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(msg, "UNIQUE constraint failed"):
		return errors.Wrap(apperr.Constraint("an open session or pause already exists"), op)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"), strings.Contains(msg, "CHECK constraint failed"):
		return errors.Wrap(apperr.Constraint(msg), op)
	default:
		return apperr.Transient(err, op)
	}
}
