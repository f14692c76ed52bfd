// Package repository implements persistence for camps and registrations.
// The Postgres stores use pgx directly (no ORM); the memory store mirrors
// their semantics for development and tests.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/model"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/scheduler"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoSlotsAvailable is returned when a camp has no free slot left.
var ErrNoSlotsAvailable = scheduler.ErrNoSlotsAvailable

// ErrAlreadyRegistered is returned when a donor already holds an active
// registration for the camp.
var ErrAlreadyRegistered = errors.New("donor already registered for this camp")

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.New().String()
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const campColumns = `id, organizer_id, title, venue, to_char(camp_date, 'YYYY-MM-DD'),
	start_time, end_time, slot_interval, slot_capacity, created_at`

func scanCamp(row pgx.Row, c *model.Camp) error {
	return row.Scan(&c.ID, &c.OrganizerID, &c.Title, &c.Venue, &c.Date,
		&c.StartTime, &c.EndTime, &c.SlotInterval, &c.SlotCapacity, &c.CreatedAt)
}

// CampRepository handles persistence for camps and their slots.
type CampRepository struct {
	db *pgxpool.Pool
}

// NewCampRepository constructs a CampRepository.
func NewCampRepository(db *pgxpool.Pool) *CampRepository {
	return &CampRepository{db: db}
}

// Create inserts the camp and its generated slots in one transaction.
// ID and CreatedAt are assigned when empty.
func (r *CampRepository) Create(ctx context.Context, camp *model.Camp) (err error) {
	if camp.ID == "" {
		camp.ID = NewID()
	}
	if camp.CreatedAt.IsZero() {
		camp.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO camps (id, organizer_id, title, venue, camp_date, start_time, end_time,
		                    slot_interval, slot_capacity, created_at)
		 VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10)`,
		camp.ID, camp.OrganizerID, camp.Title, camp.Venue, camp.Date, camp.StartTime, camp.EndTime,
		camp.SlotInterval, camp.SlotCapacity, camp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert camp: %w", err)
	}

	rows := make([][]any, len(camp.Slots))
	for i, s := range camp.Slots {
		rows[i] = []any{camp.ID, i, s.Start, s.End, nullable(s.DonorID)}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"camp_slots"},
		[]string{"camp_id", "position", "slot_start", "slot_end", "donor_id"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert slots: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a single camp with its slots or ErrNotFound.
func (r *CampRepository) GetByID(ctx context.Context, id string) (*model.Camp, error) {
	return getCamp(ctx, r.db, id, false)
}

func getCamp(ctx context.Context, q querier, id string, lock bool) (*model.Camp, error) {
	sql := `SELECT ` + campColumns + ` FROM camps WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var c model.Camp
	if err := scanCamp(q.QueryRow(ctx, sql, id), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get camp: %w", err)
	}
	slots, err := loadSlots(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	c.Slots = slots[id]
	if c.Slots == nil {
		c.Slots = []model.Slot{}
	}
	return &c, nil
}

func loadSlots(ctx context.Context, q querier, campIDs []string) (map[string][]model.Slot, error) {
	rows, err := q.Query(ctx,
		`SELECT camp_id, slot_start, slot_end, COALESCE(donor_id, '')
		 FROM camp_slots
		 WHERE camp_id = ANY($1)
		 ORDER BY camp_id, position ASC`,
		campIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.Slot, len(campIDs))
	for rows.Next() {
		var campID string
		var s model.Slot
		if err := rows.Scan(&campID, &s.Start, &s.End, &s.DonorID); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		s.Booked = s.DonorID != ""
		out[campID] = append(out[campID], s)
	}
	return out, rows.Err()
}

// List returns camps matching the filter ordered by date, then start time.
func (r *CampRepository) List(ctx context.Context, f model.CampFilter) ([]model.Camp, error) {
	var conds []string
	var args []any
	if f.OrganizerID != "" {
		args = append(args, f.OrganizerID)
		conds = append(conds, fmt.Sprintf("organizer_id = $%d", len(args)))
	}
	if f.FromDate != "" {
		args = append(args, f.FromDate)
		conds = append(conds, fmt.Sprintf("camp_date >= $%d::date", len(args)))
	}
	sql := `SELECT ` + campColumns + ` FROM camps`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY camp_date ASC, start_time ASC, created_at ASC"

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list camps: %w", err)
	}
	defer rows.Close()

	var camps []model.Camp
	for rows.Next() {
		var c model.Camp
		if err := scanCamp(rows, &c); err != nil {
			return nil, fmt.Errorf("scan camp: %w", err)
		}
		camps = append(camps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(camps) == 0 {
		return camps, nil
	}

	ids := make([]string, len(camps))
	for i := range camps {
		ids[i] = camps[i].ID
	}
	slots, err := loadSlots(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range camps {
		camps[i].Slots = slots[camps[i].ID]
		if camps[i].Slots == nil {
			camps[i].Slots = []model.Slot{}
		}
	}
	return camps, nil
}

// Update applies the non-nil fields of req and returns the updated camp.
func (r *CampRepository) Update(ctx context.Context, id string, req model.UpdateCampRequest) (*model.Camp, error) {
	var sets []string
	args := []any{id}
	if req.Title != nil {
		args = append(args, *req.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if req.Venue != nil {
		args = append(args, *req.Venue)
		sets = append(sets, fmt.Sprintf("venue = $%d", len(args)))
	}
	if req.Date != nil {
		args = append(args, *req.Date)
		sets = append(sets, fmt.Sprintf("camp_date = $%d::date", len(args)))
	}
	if len(sets) > 0 {
		tag, err := r.db.Exec(ctx, `UPDATE camps SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
		if err != nil {
			return nil, fmt.Errorf("update camp: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrNotFound
		}
	}
	return r.GetByID(ctx, id)
}

// Delete removes the camp, its slots and every registration referencing it
// in one transaction.
func (r *CampRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM camps WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrNotFound
			return err
		}
		return fmt.Errorf("lock camp: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM registrations WHERE camp_id = $1`, id); err != nil {
		return fmt.Errorf("delete registrations: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM camps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete camp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrNotFound
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
