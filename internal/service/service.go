// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/auth"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/model"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/repository"
	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/scheduler"
)

// ErrInvalidConfiguration is returned for malformed camp parameters.
var ErrInvalidConfiguration = scheduler.ErrInvalidConfiguration

// ErrForbidden is returned when the caller's role or ownership does not
// permit the operation.
var ErrForbidden = errors.New("forbidden")

// ValidationError carries per-field messages for a rejected request. It
// matches ErrInvalidConfiguration with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "invalid camp configuration: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// CampStore persists camps.
type CampStore interface {
	Create(ctx context.Context, camp *model.Camp) error
	GetByID(ctx context.Context, id string) (*model.Camp, error)
	List(ctx context.Context, f model.CampFilter) ([]model.Camp, error)
	Update(ctx context.Context, id string, req model.UpdateCampRequest) (*model.Camp, error)
	Delete(ctx context.Context, id string) error
}

// RegistrationStore persists registrations and performs the atomic
// claim/release of slots.
type RegistrationStore interface {
	Book(ctx context.Context, campID, donorID, token string) (*model.Registration, error)
	Cancel(ctx context.Context, id string) (*model.Registration, error)
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	ListByCamp(ctx context.Context, campID string) ([]model.Registration, error)
	ListByDonor(ctx context.Context, donorID string) ([]model.Registration, error)
}

// CampService orchestrates camp and registration operations.
type CampService struct {
	camps         CampStore
	registrations RegistrationStore
	validate      *validator.Validate
	now           func() time.Time
	newToken      func() (string, error)
}

// Option customises a CampService.
type Option func(*CampService)

// WithClock overrides the clock used to decide which camps are upcoming.
func WithClock(now func() time.Time) Option {
	return func(s *CampService) { s.now = now }
}

// WithTokenSource overrides the registration token generator.
func WithTokenSource(gen func() (string, error)) Option {
	return func(s *CampService) { s.newToken = gen }
}

// NewCampService constructs a CampService with its dependencies.
func NewCampService(camps CampStore, registrations RegistrationStore, opts ...Option) *CampService {
	s := &CampService{
		camps:         camps,
		registrations: registrations,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		now:           time.Now,
		newToken:      scheduler.NewToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CampService) today() string {
	return s.now().Format("2006-01-02")
}

func (s *CampService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[jsonName(fe.Field())] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "datetime":
		return "must match " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	}
	return "invalid"
}

var fieldNames = map[string]string{
	"Title":        "title",
	"Venue":        "venue",
	"Date":         "date",
	"StartTime":    "start_time",
	"EndTime":      "end_time",
	"SlotInterval": "slot_interval",
	"SlotCapacity": "slot_capacity",
}

func jsonName(field string) string {
	if n, ok := fieldNames[field]; ok {
		return n
	}
	return strings.ToLower(field)
}

func requireRole(caller auth.Identity, role model.Role) error {
	if caller.Role != role {
		return fmt.Errorf("%w: %s role required", ErrForbidden, role)
	}
	return nil
}

// ownedCamp loads a camp and checks that caller organizes it.
func (s *CampService) ownedCamp(ctx context.Context, caller auth.Identity, campID string) (*model.Camp, error) {
	if err := requireRole(caller, model.RoleOrganizer); err != nil {
		return nil, err
	}
	camp, err := s.camps.GetByID(ctx, campID)
	if err != nil {
		return nil, err
	}
	if camp.OrganizerID != caller.ID {
		return nil, fmt.Errorf("%w: camp belongs to another organizer", ErrForbidden)
	}
	return camp, nil
}

// CreateCamp validates the request, generates the slots once and stores the
// camp owned by caller.
func (s *CampService) CreateCamp(ctx context.Context, caller auth.Identity, req model.CreateCampRequest) (*model.Camp, error) {
	if err := requireRole(caller, model.RoleOrganizer); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Venue = strings.TrimSpace(req.Venue)
	if err := s.check(req); err != nil {
		return nil, err
	}

	slots, err := scheduler.GenerateSlots(req.StartTime, req.EndTime, req.SlotInterval, req.SlotCapacity)
	if err != nil {
		return nil, err
	}
	// Validated above, so normalizing cannot fail.
	req.StartTime, _ = scheduler.NormalizeClock(req.StartTime)
	req.EndTime, _ = scheduler.NormalizeClock(req.EndTime)
	camp := &model.Camp{
		OrganizerID:  caller.ID,
		Title:        req.Title,
		Venue:        req.Venue,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		SlotInterval: req.SlotInterval,
		SlotCapacity: req.SlotCapacity,
		Slots:        slots,
	}
	if err := s.camps.Create(ctx, camp); err != nil {
		return nil, fmt.Errorf("create camp: %w", err)
	}
	return camp, nil
}

// UpdateCamp edits the display fields of a camp the caller organizes.
func (s *CampService) UpdateCamp(ctx context.Context, caller auth.Identity, campID string, req model.UpdateCampRequest) (*model.Camp, error) {
	if _, err := s.ownedCamp(ctx, caller, campID); err != nil {
		return nil, err
	}
	if req.Title != nil {
		v := strings.TrimSpace(*req.Title)
		req.Title = &v
	}
	if req.Venue != nil {
		v := strings.TrimSpace(*req.Venue)
		req.Venue = &v
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.Empty() {
		return nil, &ValidationError{Fields: map[string]string{"body": "no updatable fields"}}
	}
	camp, err := s.camps.Update(ctx, campID, req)
	if err != nil {
		return nil, fmt.Errorf("update camp: %w", err)
	}
	return camp, nil
}

// redact hides who booked each slot unless caller organizes the camp or
// holds that slot. Booked flags stay visible.
func redact(caller auth.Identity, camp *model.Camp) {
	if caller.Role == model.RoleOrganizer && camp.OrganizerID == caller.ID {
		return
	}
	for i := range camp.Slots {
		if camp.Slots[i].DonorID != caller.ID {
			camp.Slots[i].DonorID = ""
		}
	}
}

// GetCamp returns a single camp by ID as seen by caller.
func (s *CampService) GetCamp(ctx context.Context, caller auth.Identity, campID string) (*model.Camp, error) {
	if campID == "" {
		return nil, repository.ErrNotFound
	}
	camp, err := s.camps.GetByID(ctx, campID)
	if err != nil {
		return nil, err
	}
	redact(caller, camp)
	return camp, nil
}

// ListCamps returns the caller's view of camps: organizers see the camps
// they own, donors see camps dated today or later.
func (s *CampService) ListCamps(ctx context.Context, caller auth.Identity) ([]model.Camp, error) {
	var f model.CampFilter
	switch caller.Role {
	case model.RoleOrganizer:
		f.OrganizerID = caller.ID
	case model.RoleDonor:
		f.FromDate = s.today()
	default:
		return nil, ErrForbidden
	}
	camps, err := s.camps.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range camps {
		redact(caller, &camps[i])
	}
	return camps, nil
}

// DeleteCamp removes a camp the caller organizes together with all its
// registrations.
func (s *CampService) DeleteCamp(ctx context.Context, caller auth.Identity, campID string) error {
	if _, err := s.ownedCamp(ctx, caller, campID); err != nil {
		return err
	}
	if err := s.camps.Delete(ctx, campID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete camp: %w", err)
	}
	return nil
}

// RegisterDonor claims the earliest free slot of the camp for the calling
// donor. The claim and the registration are committed atomically by the
// store.
func (s *CampService) RegisterDonor(ctx context.Context, caller auth.Identity, campID string) (*model.Registration, error) {
	if err := requireRole(caller, model.RoleDonor); err != nil {
		return nil, err
	}
	if campID == "" {
		return nil, repository.ErrNotFound
	}
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	reg, err := s.registrations.Book(ctx, campID, caller.ID, token)
	if err != nil {
		// Surface domain errors directly so handlers can set correct HTTP status.
		if errors.Is(err, repository.ErrNotFound) ||
			errors.Is(err, repository.ErrNoSlotsAvailable) ||
			errors.Is(err, repository.ErrAlreadyRegistered) {
			return nil, err
		}
		return nil, fmt.Errorf("register for camp: %w", err)
	}
	return reg, nil
}

// CancelRegistration cancels a registration and frees its slot. Donors may
// cancel their own registrations; organizers may cancel registrations on
// camps they own. Cancelling twice is a no-op.
func (s *CampService) CancelRegistration(ctx context.Context, caller auth.Identity, registrationID string) (*model.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	switch caller.Role {
	case model.RoleDonor:
		if reg.DonorID != caller.ID {
			return nil, fmt.Errorf("%w: registration belongs to another donor", ErrForbidden)
		}
	case model.RoleOrganizer:
		if _, err := s.ownedCamp(ctx, caller, reg.CampID); err != nil {
			return nil, err
		}
	default:
		return nil, ErrForbidden
	}
	if !reg.Active() {
		return reg, nil
	}
	out, err := s.registrations.Cancel(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel registration: %w", err)
	}
	return out, nil
}

// ListMyRegistrations returns the calling donor's registrations. Cancelled
// ones are included only when includeCancelled is set.
func (s *CampService) ListMyRegistrations(ctx context.Context, caller auth.Identity, includeCancelled bool) ([]model.Registration, error) {
	if err := requireRole(caller, model.RoleDonor); err != nil {
		return nil, err
	}
	regs, err := s.registrations.ListByDonor(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if includeCancelled {
		return regs, nil
	}
	return activeOnly(regs), nil
}

// ListCampRegistrations returns every registration of a camp the caller
// organizes, including cancelled history.
func (s *CampService) ListCampRegistrations(ctx context.Context, caller auth.Identity, campID string) ([]model.Registration, error) {
	if _, err := s.ownedCamp(ctx, caller, campID); err != nil {
		return nil, err
	}
	return s.registrations.ListByCamp(ctx, campID)
}

// CampSummaries returns fill statistics for every camp the caller organizes,
// plus totals across them.
func (s *CampService) CampSummaries(ctx context.Context, caller auth.Identity) (*model.Dashboard, error) {
	if err := requireRole(caller, model.RoleOrganizer); err != nil {
		return nil, err
	}
	camps, err := s.camps.List(ctx, model.CampFilter{OrganizerID: caller.ID})
	if err != nil {
		return nil, err
	}
	out := &model.Dashboard{Camps: make([]model.CampSummary, 0, len(camps))}
	var rates float64
	for _, c := range camps {
		regs, err := s.registrations.ListByCamp(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		total, booked := scheduler.Counts(c.Slots)
		active := len(activeOnly(regs))
		sum := model.CampSummary{
			Camp:                c,
			TotalSlots:          total,
			BookedSlots:         booked,
			ActiveRegistrations: active,
		}
		if total > 0 {
			sum.FillRate = float64(active) / float64(total)
		}
		out.Camps = append(out.Camps, sum)
		out.ActiveRegistrations += active
		rates += sum.FillRate
	}
	out.TotalCamps = len(out.Camps)
	if out.TotalCamps > 0 {
		out.AverageFillRate = rates / float64(out.TotalCamps)
	}
	return out, nil
}

func activeOnly(regs []model.Registration) []model.Registration {
	out := make([]model.Registration, 0, len(regs))
	for _, r := range regs {
		if r.Active() {
			out = append(out, r)
		}
	}
	return out
}
