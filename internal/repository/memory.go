package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/model"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/scheduler"
)

// Memory is an in-process store with the same semantics as the Postgres
// repositories. A single mutex plays the role of the camp row lock.
type Memory struct {
	mu    sync.Mutex
	camps map[string]*model.Camp
	regs  map[string]*model.Registration

	// seq orders registrations that share a timestamp.
	seq     map[string]int
	nextSeq int
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		camps: make(map[string]*model.Camp),
		regs:  make(map[string]*model.Registration),
		seq:   make(map[string]int),
	}
}

// Camps returns the camp view of the store.
func (m *Memory) Camps() *MemoryCampRepository { return &MemoryCampRepository{m: m} }

// Registrations returns the registration view of the store.
func (m *Memory) Registrations() *MemoryRegistrationRepository {
	return &MemoryRegistrationRepository{m: m}
}

func cloneCamp(c *model.Camp) *model.Camp {
	out := *c
	out.Slots = append([]model.Slot{}, c.Slots...)
	return &out
}

// MemoryCampRepository is the camp half of Memory.
type MemoryCampRepository struct {
	m *Memory
}

// Create stores a copy of camp. ID and CreatedAt are assigned when empty.
func (r *MemoryCampRepository) Create(_ context.Context, camp *model.Camp) error {
	if camp.ID == "" {
		camp.ID = NewID()
	}
	if camp.CreatedAt.IsZero() {
		camp.CreatedAt = time.Now().UTC()
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.camps[camp.ID] = cloneCamp(camp)
	return nil
}

// GetByID returns a copy of the camp or ErrNotFound.
func (r *MemoryCampRepository) GetByID(_ context.Context, id string) (*model.Camp, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.camps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCamp(c), nil
}

// List returns camps matching the filter ordered by date, then start time.
func (r *MemoryCampRepository) List(_ context.Context, f model.CampFilter) ([]model.Camp, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []model.Camp
	for _, c := range r.m.camps {
		if f.OrganizerID != "" && c.OrganizerID != f.OrganizerID {
			continue
		}
		// ISO dates compare lexically.
		if f.FromDate != "" && c.Date < f.FromDate {
			continue
		}
		out = append(out, *cloneCamp(c))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

// Update applies the non-nil fields of req.
func (r *MemoryCampRepository) Update(_ context.Context, id string, req model.UpdateCampRequest) (*model.Camp, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.camps[id]
	if !ok {
		return nil, ErrNotFound
	}
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Venue != nil {
		c.Venue = *req.Venue
	}
	if req.Date != nil {
		c.Date = *req.Date
	}
	return cloneCamp(c), nil
}

// Delete removes the camp and every registration referencing it.
func (r *MemoryCampRepository) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.camps[id]; !ok {
		return ErrNotFound
	}
	for rid, reg := range r.m.regs {
		if reg.CampID == id {
			delete(r.m.regs, rid)
			delete(r.m.seq, rid)
		}
	}
	delete(r.m.camps, id)
	return nil
}

// MemoryRegistrationRepository is the registration half of Memory.
type MemoryRegistrationRepository struct {
	m *Memory
}

// Book claims the first free slot of the camp for donorID.
func (r *MemoryRegistrationRepository) Book(_ context.Context, campID, donorID, token string) (*model.Registration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	camp, ok := r.m.camps[campID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, reg := range r.m.regs {
		if reg.CampID == campID && reg.DonorID == donorID && reg.Active() {
			return nil, ErrAlreadyRegistered
		}
	}
	idx, err := scheduler.Claim(camp.Slots, donorID)
	if err != nil {
		return nil, err
	}

	slot := camp.Slots[idx]
	reg := &model.Registration{
		ID:        NewID(),
		CampID:    campID,
		DonorID:   donorID,
		Token:     token,
		SlotStart: slot.Start,
		SlotEnd:   slot.End,
		Status:    model.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	r.m.regs[reg.ID] = reg
	r.m.nextSeq++
	r.m.seq[reg.ID] = r.m.nextSeq
	out := *reg
	return &out, nil
}

// Cancel marks the registration cancelled and frees its slot.
func (r *MemoryRegistrationRepository) Cancel(_ context.Context, id string) (*model.Registration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	reg, ok := r.m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if reg.Active() {
		if camp, ok := r.m.camps[reg.CampID]; ok {
			scheduler.Release(camp.Slots, reg.SlotStart, reg.SlotEnd, reg.DonorID)
		}
		reg.Status = model.StatusCancelled
	}
	out := *reg
	return &out, nil
}

// GetByID returns a copy of the registration or ErrNotFound.
func (r *MemoryRegistrationRepository) GetByID(_ context.Context, id string) (*model.Registration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	reg, ok := r.m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *reg
	return &out, nil
}

// ListByCamp returns all registrations for a camp, oldest first.
func (r *MemoryRegistrationRepository) ListByCamp(_ context.Context, campID string) ([]model.Registration, error) {
	return r.list(func(reg *model.Registration) bool { return reg.CampID == campID }), nil
}

// ListByDonor returns all registrations of a donor, oldest first.
func (r *MemoryRegistrationRepository) ListByDonor(_ context.Context, donorID string) ([]model.Registration, error) {
	return r.list(func(reg *model.Registration) bool { return reg.DonorID == donorID }), nil
}

func (r *MemoryRegistrationRepository) list(keep func(*model.Registration) bool) []model.Registration {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []model.Registration
	for _, reg := range r.m.regs {
		if keep(reg) {
			out = append(out, *reg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.m.seq[out[i].ID] < r.m.seq[out[j].ID]
	})
	return out
}
