package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"garpconnect/internal/services"
)

const itemColumns = `id, file_name, source_path, status, attempts,
	COALESCE(error_kind, ''), COALESCE(error_message, ''), COALESCE(final_path, ''),
	created_at, updated_at`

// Store records processing history in SQLite. The filesystem stays the
// system of record for claims; the journal exists for the status and
// history commands and for troubleshooting.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the journal database location under the log
// directory.
func DefaultPath(logDir string) string {
	return filepath.Join(logDir, "journal.db")
}

// Open initializes or connects to the journal database.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewItem records a freshly claimed file.
func (s *Store) NewItem(ctx context.Context, fileName, sourcePath string) (*WorkItem, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO work_items (file_name, source_path, status, attempts, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		fileName, sourcePath, StatusClaimed, timestamp, timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert work item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a work item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*WorkItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "journal", "get item",
			fmt.Sprintf("no work item with id %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

// Transition moves an item to a new status, enforcing the lifecycle.
func (s *Store) Transition(ctx context.Context, id int64, next Status) error {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !item.Status.CanTransition(next) {
		return services.Wrap(services.ErrValidation, "journal", "transition",
			fmt.Sprintf("cannot move item %d from %s to %s", id, item.Status, next), nil)
	}
	return s.update(ctx, id, `status = ?`, string(next))
}

// IncrementAttempts bumps the submission attempt counter.
func (s *Store) IncrementAttempts(ctx context.Context, id int64) error {
	return s.update(ctx, id, `attempts = attempts + 1`)
}

// MarkCompleted finalizes an item that reached the done directory.
func (s *Store) MarkCompleted(ctx context.Context, id int64, finalPath string) error {
	if err := s.Transition(ctx, id, StatusCompleted); err != nil {
		return err
	}
	return s.update(ctx, id, `final_path = ?`, finalPath)
}

// MarkFailed finalizes an item that landed in the error directory.
func (s *Store) MarkFailed(ctx context.Context, id int64, kind, message, finalPath string) error {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !item.Status.CanTransition(StatusFailed) {
		return services.Wrap(services.ErrValidation, "journal", "mark failed",
			fmt.Sprintf("cannot fail item %d in status %s", id, item.Status), nil)
	}
	return s.update(ctx, id,
		`status = ?, error_kind = ?, error_message = ?, final_path = ?`,
		string(StatusFailed), kind, message, finalPath)
}

// RecordShipment stores a booked shipment for an item.
func (s *Store) RecordShipment(ctx context.Context, rec ShipmentRecord) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO shipments (item_id, order_no, carrier, shipment_id, tracking_number, label_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ItemID, rec.OrderNo, rec.Carrier, rec.ShipmentID, rec.TrackingNumber, rec.LabelPath, timestamp)
	if err != nil {
		return 0, fmt.Errorf("insert shipment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns the most recent work items, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*WorkItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM work_items ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []*WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ShipmentsForItem returns the shipments booked for one file.
func (s *Store) ShipmentsForItem(ctx context.Context, itemID int64) ([]*ShipmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, order_no, carrier,
			COALESCE(shipment_id, ''), COALESCE(tracking_number, ''), COALESCE(label_path, ''), created_at
		 FROM shipments WHERE item_id = ? ORDER BY id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()
	return scanShipments(rows)
}

// RecentShipments returns the latest booked shipments, newest first.
func (s *Store) RecentShipments(ctx context.Context, limit int) ([]*ShipmentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, order_no, carrier,
			COALESCE(shipment_id, ''), COALESCE(tracking_number, ''), COALESCE(label_path, ''), created_at
		 FROM shipments ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent shipments: %w", err)
	}
	defer rows.Close()
	return scanShipments(rows)
}

// Stats returns a count per status for the status command.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM work_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count statuses: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

func (s *Store) update(ctx context.Context, id int64, setClause string, args ...any) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	args = append(args, timestamp, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE work_items SET `+setClause+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "journal", "update item",
			fmt.Sprintf("no work item with id %d", id), nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*WorkItem, error) {
	var item WorkItem
	var status, createdAt, updatedAt string
	if err := row.Scan(&item.ID, &item.FileName, &item.SourcePath, &status, &item.Attempts,
		&item.ErrorKind, &item.ErrorMessage, &item.FinalPath, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.Status = Status(status)
	item.CreatedAt = parseTimestamp(createdAt)
	item.UpdatedAt = parseTimestamp(updatedAt)
	return &item, nil
}

func scanShipments(rows *sql.Rows) ([]*ShipmentRecord, error) {
	var records []*ShipmentRecord
	for rows.Next() {
		var rec ShipmentRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.ItemID, &rec.OrderNo, &rec.Carrier,
			&rec.ShipmentID, &rec.TrackingNumber, &rec.LabelPath, &createdAt); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		rec.CreatedAt = parseTimestamp(createdAt)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
