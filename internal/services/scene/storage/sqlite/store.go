// Package sqlite provides a SQLite-backed scene gateway.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/selight/designo/internal/platform/storage/sqlitemigrate"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/services/scene/storage"
	"github.com/selight/designo/internal/services/scene/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists scene documents in SQLite, one row per project.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite scene store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	applied, err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, "")
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	for _, name := range applied {
		log.Printf("scenestore: applied migration %s", name)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the stored document for projectID.
func (s *Store) Load(ctx context.Context, projectID string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Document{}, fmt.Errorf("storage is not configured")
	}
	projectID, err := storage.NormalizeProjectID(projectID)
	if err != nil {
		return domain.Document{}, err
	}
	doc, found, err := loadScene(ctx, s.sqlDB, projectID)
	if err != nil {
		return domain.Document{}, err
	}
	if !found {
		return domain.Document{}, storage.ErrNotFound
	}
	return doc, nil
}

// Save merges patch into the stored document inside one transaction.
func (s *Store) Save(ctx context.Context, projectID string, patch storage.Patch) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Document{}, fmt.Errorf("storage is not configured")
	}
	projectID, err := storage.NormalizeProjectID(projectID)
	if err != nil {
		return domain.Document{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, classify("begin save", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, found, err := loadScene(ctx, tx, projectID)
	if err != nil {
		return domain.Document{}, err
	}
	next, _, err := storage.Apply(current, found, projectID, patch, s.now())
	if err != nil {
		return domain.Document{}, err
	}

	objectsJSON, err := json.Marshal(next.Objects)
	if err != nil {
		return domain.Document{}, fmt.Errorf("encode objects: %w", err)
	}
	var cameraJSON sql.NullString
	if next.Camera != nil {
		payload, err := json.Marshal(next.Camera)
		if err != nil {
			return domain.Document{}, fmt.Errorf("encode camera: %w", err)
		}
		cameraJSON = sql.NullString{String: string(payload), Valid: true}
	}

	updatedAt := toMillis(next.UpdatedAt)
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO scenes (project_id, title, objects_json, camera_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET
		   title = excluded.title,
		   objects_json = excluded.objects_json,
		   camera_json = excluded.camera_json,
		   updated_at = excluded.updated_at`,
		projectID,
		next.Title,
		string(objectsJSON),
		cameraJSON,
		updatedAt,
		updatedAt,
	)
	if err != nil {
		return domain.Document{}, classify("save scene", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, classify("commit save", err)
	}
	return next, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadScene(ctx context.Context, q queryer, projectID string) (domain.Document, bool, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT project_id, title, objects_json, camera_json, updated_at
		   FROM scenes
		  WHERE project_id = ?`,
		projectID,
	)

	var doc domain.Document
	var objectsJSON string
	var cameraJSON sql.NullString
	var updatedAt int64
	if err := row.Scan(&doc.ID, &doc.Title, &objectsJSON, &cameraJSON, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, fmt.Errorf("get scene: %w", err)
	}
	if err := json.Unmarshal([]byte(objectsJSON), &doc.Objects); err != nil {
		return domain.Document{}, false, fmt.Errorf("decode objects: %w", err)
	}
	if doc.Objects == nil {
		doc.Objects = []domain.Object{}
	}
	if cameraJSON.Valid {
		var camera domain.Camera
		if err := json.Unmarshal([]byte(cameraJSON.String), &camera); err != nil {
			return domain.Document{}, false, fmt.Errorf("decode camera: %w", err)
		}
		doc.Camera = &camera
	}
	doc.UpdatedAt = fromMillis(updatedAt)
	return doc, true, nil
}

// classify marks lock contention as ErrUnavailable so callers can retry.
func classify(op string, err error) error {
	if isBusy(err) {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

var _ storage.Gateway = (*Store)(nil)
