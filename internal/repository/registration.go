package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/model"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/scheduler"
)

const registrationColumns = `id, camp_id, donor_id, token, slot_start, slot_end, status, created_at`

func scanRegistration(row pgx.Row, reg *model.Registration) error {
	return row.Scan(&reg.ID, &reg.CampID, &reg.DonorID, &reg.Token,
		&reg.SlotStart, &reg.SlotEnd, &reg.Status, &reg.CreatedAt)
}

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Book claims the first free slot of the camp for donorID and records the
// registration, all inside one transaction.
//
// The camp row is locked with SELECT … FOR UPDATE before the slots are
// read, so concurrent claims on the same camp are serialised: a second
// transaction blocks until the first commits and then sees its booking.
// The slot update and the registration insert commit together, so a slot
// is never booked without an active registration or the reverse.
func (r *RegistrationRepository) Book(ctx context.Context, campID, donorID, token string) (reg *model.Registration, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	camp, err := getCamp(ctx, tx, campID, true)
	if err != nil {
		return nil, err
	}

	var dup int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE camp_id = $1 AND donor_id = $2 AND status = 'active'`,
		campID, donorID,
	).Scan(&dup)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if dup > 0 {
		err = ErrAlreadyRegistered
		return nil, err
	}

	idx, err := scheduler.Claim(camp.Slots, donorID)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE camp_slots SET donor_id = $3 WHERE camp_id = $1 AND position = $2`,
		campID, idx, donorID,
	)
	if err != nil {
		return nil, fmt.Errorf("book slot: %w", err)
	}

	slot := camp.Slots[idx]
	reg = &model.Registration{
		ID:        NewID(),
		CampID:    campID,
		DonorID:   donorID,
		Token:     token,
		SlotStart: slot.Start,
		SlotEnd:   slot.End,
		Status:    model.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reg.ID, reg.CampID, reg.DonorID, reg.Token, reg.SlotStart, reg.SlotEnd, reg.Status, reg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrAlreadyRegistered
			return nil, err
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return reg, nil
}

// Cancel marks the registration cancelled and frees its slot in the same
// transaction. Cancelling an already-cancelled registration changes
// nothing, and a missing matching slot is tolerated.
func (r *RegistrationRepository) Cancel(ctx context.Context, id string) (reg *model.Registration, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock order is camp, then registration, matching Book and Delete.
	var campID string
	err = tx.QueryRow(ctx, `SELECT camp_id FROM registrations WHERE id = $1`, id).Scan(&campID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrNotFound
			return nil, err
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	camp, err := getCamp(ctx, tx, campID, true)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	reg = &model.Registration{}
	err = scanRegistration(tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id,
	), reg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrNotFound
			return nil, err
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if !reg.Active() {
		_ = tx.Rollback(ctx)
		return reg, nil
	}

	if camp != nil {
		if idx := scheduler.FindBooked(camp.Slots, reg.SlotStart, reg.SlotEnd, reg.DonorID); idx >= 0 {
			_, err = tx.Exec(ctx,
				`UPDATE camp_slots SET donor_id = NULL WHERE camp_id = $1 AND position = $2`,
				reg.CampID, idx,
			)
			if err != nil {
				return nil, fmt.Errorf("release slot: %w", err)
			}
		}
	}

	_, err = tx.Exec(ctx, `UPDATE registrations SET status = $2 WHERE id = $1`, id, model.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel registration: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	reg.Status = model.StatusCancelled
	return reg, nil
}

// GetByID returns a single registration or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	var reg model.Registration
	err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id,
	), &reg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

// ListByCamp returns all registrations for a camp, oldest first.
func (r *RegistrationRepository) ListByCamp(ctx context.Context, campID string) ([]model.Registration, error) {
	return r.list(ctx, `camp_id = $1`, campID)
}

// ListByDonor returns all registrations of a donor, oldest first.
func (r *RegistrationRepository) ListByDonor(ctx context.Context, donorID string) ([]model.Registration, error) {
	return r.list(ctx, `donor_id = $1`, donorID)
}

func (r *RegistrationRepository) list(ctx context.Context, cond string, arg string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE `+cond+` ORDER BY created_at ASC`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var reg model.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
