package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

const uniqueViolation = "23505"

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, booking_code, package_id, selected_date, participant_count, unit_price, total_price,
	status, contact_name, contact_email, contact_phone, special_requests, customer_id,
	capacity_released, created_at, updated_at, version
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var status string
	err := row.Scan(
		&b.ID,
		&b.BookingCode,
		&b.PackageID,
		&b.SelectedDate,
		&b.ParticipantCount,
		&b.UnitPrice,
		&b.TotalPrice,
		&status,
		&b.ContactInfo.Name,
		&b.ContactInfo.Email,
		&b.ContactInfo.Phone,
		&b.SpecialRequests,
		&b.CustomerID,
		&b.CapacityReleased,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}

	b.Status = domain.BookingStatus(status)
	b.SelectedDate = domain.TruncateDate(b.SelectedDate)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func (r *BookingRepository) CreateWithAudit(ctx context.Context, booking *domain.Booking, entry *domain.AuditLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	query := `
	INSERT INTO bookings (` + bookingColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = tx.ExecContext(ctx, query,
		booking.ID,
		booking.BookingCode,
		booking.PackageID,
		booking.SelectedDate.Format(domain.DateLayout),
		booking.ParticipantCount,
		booking.UnitPrice,
		booking.TotalPrice,
		string(booking.Status),
		booking.ContactInfo.Name,
		booking.ContactInfo.Email,
		booking.ContactInfo.Phone,
		booking.SpecialRequests,
		booking.CustomerID,
		booking.CapacityReleased,
		booking.CreatedAt,
		booking.UpdatedAt,
		booking.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "bookings_booking_code_key" {
			return domain.ErrDuplicateBookingCode
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *BookingRepository) UpdateWithAudit(ctx context.Context, booking *domain.Booking, expectedVersion int, entry *domain.AuditLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	query := `
	UPDATE bookings
	SET status = $1,
		contact_name = $2,
		contact_email = $3,
		contact_phone = $4,
		special_requests = $5,
		capacity_released = $6,
		updated_at = $7,
		version = version + 1
	WHERE id = $8 AND version = $9
	`

	result, err := tx.ExecContext(ctx, query,
		string(booking.Status),
		booking.ContactInfo.Name,
		booking.ContactInfo.Email,
		booking.ContactInfo.Phone,
		booking.SpecialRequests,
		booking.CapacityReleased,
		booking.UpdatedAt,
		booking.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, booking.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrBookingNotFound
		}
		return domain.ErrVersionConflict
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	booking.Version = expectedVersion + 1
	return nil
}

// AppendAudit takes the booking row lock so that entries written by
// concurrent notes and transitions are timestamped in commit order.
func (r *BookingRepository) AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	var id uuid.UUID
	err = tx.QueryRowContext(ctx, `SELECT id FROM bookings WHERE id = $1 FOR UPDATE`, entry.BookingID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrBookingNotFound
		}
		return err
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// insertAudit never lets an entry's timestamp fall behind the latest one
// already stored for the booking.
func insertAudit(ctx context.Context, tx *sql.Tx, entry *domain.AuditLogEntry) error {
	query := `
	INSERT INTO booking_audit_log (id, booking_id, booking_code, action, message, actor_id, created_at)
	SELECT $1, $2, $3, $4, $5, $6, GREATEST($7::timestamptz, COALESCE(MAX(created_at), $7::timestamptz))
	FROM booking_audit_log
	WHERE booking_id = $2
	RETURNING created_at
	`

	var createdAt time.Time
	err := tx.QueryRowContext(ctx, query,
		entry.ID,
		entry.BookingID,
		entry.BookingCode,
		string(entry.Action),
		entry.Message,
		entry.ActorID,
		entry.CreatedAt,
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	entry.CreatedAt = createdAt.UTC()
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRowContext(ctx, query, id))
}

func (r *BookingRepository) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_code = $1`
	return scanBooking(r.db.QueryRowContext(ctx, query, code))
}

func (r *BookingRepository) ListAudit(ctx context.Context, bookingID uuid.UUID) ([]domain.AuditLogEntry, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, bookingID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrBookingNotFound
	}

	query := `
	SELECT id, booking_id, booking_code, action, message, actor_id, created_at
	FROM booking_audit_log
	WHERE booking_id = $1
	ORDER BY created_at, seq
	`

	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var action string
		if err := rows.Scan(&e.ID, &e.BookingID, &e.BookingCode, &action, &e.Message, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = domain.AuditAction(action)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *BookingRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	query := `
	SELECT id FROM bookings
	WHERE status = $1 AND selected_date < $2
	ORDER BY selected_date
	LIMIT NULLIF($3::int, 0)
	`

	rows, err := r.db.QueryContext(ctx, query, string(domain.BookingPending), before.Format(domain.DateLayout), limit)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

var _ ports.BookingRepository = (*BookingRepository)(nil)
