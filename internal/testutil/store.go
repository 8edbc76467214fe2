// Package testutil provides in-memory implementations of the service stores.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
)

// Store holds every table in memory. Each accessor returns a view that
// satisfies one of the service store interfaces.
type Store struct {
	mu sync.Mutex

	orgs          map[uuid.UUID]*models.Organization
	subscriptions []*models.Subscription
	plans         map[uuid.UUID]*models.SubscriptionPlan
	patients      []*models.Patient
	users         []*models.User
	appointments  []*models.Appointment
	AuditLogs     []models.AuditLog

	locks map[uuid.UUID]*sync.Mutex

	// Now stamps CreatedAt on records that do not carry one.
	Now func() time.Time
	// Err, when set, is returned by every call.
	Err error
}

func NewStore() *Store {
	return &Store{
		orgs:  make(map[uuid.UUID]*models.Organization),
		plans: make(map[uuid.UUID]*models.SubscriptionPlan),
		locks: make(map[uuid.UUID]*sync.Mutex),
		Now:   time.Now,
	}
}

func (s *Store) stamp(t *time.Time) {
	if t.IsZero() {
		*t = s.Now()
	}
}

type snapshot struct {
	orgs          map[uuid.UUID]models.Organization
	subscriptions []models.Subscription
	plans         map[uuid.UUID]*models.SubscriptionPlan
	patients      []*models.Patient
	users         []*models.User
	appointments  []*models.Appointment
	auditLogs     []models.AuditLog
}

// snapshot must be called with mu held.
func (s *Store) snapshot() snapshot {
	saved := snapshot{
		orgs:          make(map[uuid.UUID]models.Organization, len(s.orgs)),
		subscriptions: make([]models.Subscription, 0, len(s.subscriptions)),
		plans:         make(map[uuid.UUID]*models.SubscriptionPlan, len(s.plans)),
		patients:      append([]*models.Patient(nil), s.patients...),
		users:         append([]*models.User(nil), s.users...),
		appointments:  append([]*models.Appointment(nil), s.appointments...),
		auditLogs:     append([]models.AuditLog(nil), s.AuditLogs...),
	}
	for id, org := range s.orgs {
		saved.orgs[id] = *org
	}
	for _, sub := range s.subscriptions {
		saved.subscriptions = append(saved.subscriptions, *sub)
	}
	for id, plan := range s.plans {
		saved.plans[id] = plan
	}
	return saved
}

// restore must be called with mu held.
func (s *Store) restore(saved snapshot) {
	s.orgs = make(map[uuid.UUID]*models.Organization, len(saved.orgs))
	for id, org := range saved.orgs {
		org := org
		s.orgs[id] = &org
	}
	s.subscriptions = s.subscriptions[:0]
	for _, sub := range saved.subscriptions {
		sub := sub
		s.subscriptions = append(s.subscriptions, &sub)
	}
	s.plans = saved.plans
	s.patients = saved.patients
	s.users = saved.users
	s.appointments = saved.appointments
	s.AuditLogs = saved.auditLogs
}

// Seeding helpers

func (s *Store) AddOrganization(org models.Organization) *models.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if org.SubscriptionType == "" {
		org.SubscriptionType = models.SubscriptionTypeStandard
	}
	s.orgs[org.ID] = &org
	return &org
}

func (s *Store) AddPlan(plan models.SubscriptionPlan) *models.SubscriptionPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	s.plans[plan.ID] = &plan
	return &plan
}

// AddSubscription stores sub, linking its Plan from PlanID when unset.
func (s *Store) AddSubscription(sub models.Subscription) *models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	s.stamp(&sub.CreatedAt)
	if sub.Plan == nil && sub.PlanID != nil {
		sub.Plan = s.plans[*sub.PlanID]
	}
	s.subscriptions = append(s.subscriptions, &sub)
	return &sub
}

func (s *Store) AddUser(user models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.stamp(&user.CreatedAt)
	s.users = append(s.users, &user)
	return &user
}

func (s *Store) AddPatient(patient models.Patient) *models.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	s.stamp(&patient.CreatedAt)
	s.patients = append(s.patients, &patient)
	return &patient
}

func (s *Store) AddAppointment(appointment models.Appointment) *models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if appointment.Status == "" {
		appointment.Status = models.AppointmentStatusScheduled
	}
	s.stamp(&appointment.CreatedAt)
	s.appointments = append(s.appointments, &appointment)
	return &appointment
}

func (s *Store) PatientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patients)
}

func (s *Store) Audit() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.AuditLogs...)
}

// Organizations

type OrganizationStore struct{ s *Store }

func (s *Store) Organizations() OrganizationStore { return OrganizationStore{s} }

func (o OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	if o.s.Err != nil {
		return o.s.Err
	}
	stored := o.s.AddOrganization(*org)
	*org = *stored
	return nil
}

func (o OrganizationStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if o.s.Err != nil {
		return nil, o.s.Err
	}
	org, ok := o.s.orgs[id]
	if !ok {
		return nil, fmt.Errorf("failed to get organization: %w", models.ErrOrganizationNotFound)
	}
	copied := *org
	return &copied, nil
}

func (o OrganizationStore) List(ctx context.Context, limit, offset int) ([]models.Organization, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	out := make([]models.Organization, 0, len(o.s.orgs))
	for _, org := range o.s.orgs {
		out = append(out, *org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, limit, offset), nil
}

func (o OrganizationStore) SetSubscriptionType(ctx context.Context, id uuid.UUID, subscriptionType models.SubscriptionType) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	org, ok := o.s.orgs[id]
	if !ok {
		return models.ErrOrganizationNotFound
	}
	org.SubscriptionType = subscriptionType
	return nil
}

func (o OrganizationStore) Delete(ctx context.Context, id uuid.UUID) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if _, ok := o.s.orgs[id]; !ok {
		return models.ErrOrganizationNotFound
	}
	delete(o.s.orgs, id)
	return nil
}

// InTransaction runs fn and, when it fails, restores every table to the
// state it had before fn ran.
func (o OrganizationStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	o.s.mu.Lock()
	saved := o.s.snapshot()
	o.s.mu.Unlock()

	if err := fn(ctx); err != nil {
		o.s.mu.Lock()
		o.s.restore(saved)
		o.s.mu.Unlock()
		return err
	}
	return nil
}

// WithLock serialises callers per organization with a mutex, standing in
// for the row lock.
func (o OrganizationStore) WithLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	o.s.mu.Lock()
	if _, ok := o.s.orgs[id]; !ok {
		o.s.mu.Unlock()
		return models.ErrOrganizationNotFound
	}
	lock, ok := o.s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.s.locks[id] = lock
	}
	o.s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

// Subscriptions

type SubscriptionStore struct{ s *Store }

func (s *Store) Subscriptions() SubscriptionStore { return SubscriptionStore{s} }

func (st SubscriptionStore) newest(orgID uuid.UUID, match func(*models.Subscription) bool) *models.Subscription {
	var found *models.Subscription
	for _, sub := range st.s.subscriptions {
		if sub.OrganizationID != orgID || !match(sub) {
			continue
		}
		if found == nil || sub.CreatedAt.After(found.CreatedAt) {
			found = sub
		}
	}
	if found == nil {
		return nil
	}
	copied := *found
	return &copied
}

func (st SubscriptionStore) GetActiveByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if st.s.Err != nil {
		return nil, st.s.Err
	}
	return st.newest(orgID, func(sub *models.Subscription) bool {
		for _, status := range models.LiveStatuses {
			if sub.Status == status {
				return true
			}
		}
		return false
	}), nil
}

func (st SubscriptionStore) GetLatestByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.newest(orgID, func(*models.Subscription) bool { return true }), nil
}

func (st SubscriptionStore) Supersede(ctx context.Context, orgID uuid.UUID, sub *models.Subscription) error {
	st.s.mu.Lock()
	org, ok := st.s.orgs[orgID]
	if !ok {
		st.s.mu.Unlock()
		return models.ErrOrganizationNotFound
	}
	now := st.s.Now()
	for _, existing := range st.s.subscriptions {
		if existing.OrganizationID == orgID &&
			(existing.Status == models.SubscriptionStatusActive || existing.Status == models.SubscriptionStatusTrialing) {
			existing.Status = models.SubscriptionStatusCancelled
			end := now
			existing.EndDate = &end
		}
	}
	st.s.mu.Unlock()

	sub.OrganizationID = orgID
	if sub.CreatedAt.IsZero() {
		// Keep superseding subscriptions strictly newer than what they replace.
		sub.CreatedAt = now.Add(time.Nanosecond)
	}
	stored := st.s.AddSubscription(*sub)
	*sub = *stored

	st.s.mu.Lock()
	org.CurrentSubscriptionID = &sub.ID
	st.s.mu.Unlock()
	return nil
}

func (st SubscriptionStore) UpdateUsageSnapshot(ctx context.Context, id uuid.UUID, snapshot models.UsageSnapshot) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	for _, sub := range st.s.subscriptions {
		if sub.ID == id {
			sub.Usage = snapshot
			return nil
		}
	}
	return models.ErrNotFound
}

// Snapshot returns the stored usage snapshot of a subscription.
func (st SubscriptionStore) Snapshot(id uuid.UUID) models.UsageSnapshot {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	for _, sub := range st.s.subscriptions {
		if sub.ID == id {
			return sub.Usage
		}
	}
	return models.UsageSnapshot{}
}

// Plans

type PlanStore struct{ s *Store }

func (s *Store) Plans() PlanStore { return PlanStore{s} }

func (p PlanStore) Create(ctx context.Context, plan *models.SubscriptionPlan) error {
	p.s.mu.Lock()
	for _, existing := range p.s.plans {
		if existing.Name == plan.Name {
			p.s.mu.Unlock()
			return fmt.Errorf("failed to create plan: %w", models.ErrConflict)
		}
	}
	p.s.mu.Unlock()
	*plan = *p.s.AddPlan(*plan)
	return nil
}

func (p PlanStore) GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	plan, ok := p.s.plans[id]
	if !ok {
		return nil, fmt.Errorf("failed to get plan: %w", models.ErrNotFound)
	}
	copied := *plan
	return &copied, nil
}

func (p PlanStore) List(ctx context.Context, activeOnly bool) ([]models.SubscriptionPlan, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := make([]models.SubscriptionPlan, 0, len(p.s.plans))
	for _, plan := range p.s.plans {
		if activeOnly && !plan.IsActive {
			continue
		}
		out = append(out, *plan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthlyPrice.LessThan(out[j].MonthlyPrice) })
	return out, nil
}

func (p PlanStore) Update(ctx context.Context, plan *models.SubscriptionPlan) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.plans[plan.ID]; !ok {
		return models.ErrNotFound
	}
	copied := *plan
	p.s.plans[plan.ID] = &copied
	return nil
}

func (p PlanStore) Upsert(ctx context.Context, plan *models.SubscriptionPlan) error {
	p.s.mu.Lock()
	for id, existing := range p.s.plans {
		if existing.Name == plan.Name {
			plan.ID = id
			copied := *plan
			p.s.plans[id] = &copied
			p.s.mu.Unlock()
			return nil
		}
	}
	p.s.mu.Unlock()
	*plan = *p.s.AddPlan(*plan)
	return nil
}

// Usage

type UsageCounter struct {
	s *Store
	// AppointmentQueries counts calls that reached the appointment query.
	AppointmentQueries *int
}

func (s *Store) Usage() UsageCounter { return UsageCounter{s: s, AppointmentQueries: new(int)} }

func (u UsageCounter) CountPatientsCreated(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int64, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if u.s.Err != nil {
		return 0, u.s.Err
	}
	var n int64
	for _, p := range u.s.patients {
		if p.OrganizationID == orgID && within(p.CreatedAt, start, end) {
			n++
		}
	}
	return n, nil
}

func (u UsageCounter) ListUserIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var ids []uuid.UUID
	for _, user := range u.s.users {
		if user.OrganizationID == orgID {
			ids = append(ids, user.ID)
		}
	}
	return ids, nil
}

func (u UsageCounter) CountAppointmentsCreated(ctx context.Context, doctorIDs []uuid.UUID, start, end time.Time) (int64, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	*u.AppointmentQueries++
	doctors := make(map[uuid.UUID]bool, len(doctorIDs))
	for _, id := range doctorIDs {
		doctors[id] = true
	}
	var n int64
	for _, a := range u.s.appointments {
		if doctors[a.DoctorID] && within(a.CreatedAt, start, end) {
			n++
		}
	}
	return n, nil
}

// Patients

type PatientStore struct{ s *Store }

func (s *Store) Patients() PatientStore { return PatientStore{s} }

func (p PatientStore) Create(ctx context.Context, patient *models.Patient) error {
	if p.s.Err != nil {
		return p.s.Err
	}
	*patient = *p.s.AddPatient(*patient)
	return nil
}

func (p PatientStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Patient, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, patient := range p.s.patients {
		if patient.ID == id && patient.OrganizationID == orgID {
			copied := *patient
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("failed to get patient: %w", models.ErrNotFound)
}

func (p PatientStore) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Patient, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var out []models.Patient
	for _, patient := range p.s.patients {
		if patient.OrganizationID == orgID {
			out = append(out, *patient)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (p PatientStore) CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error) {
	list, _ := p.ListByOrganization(ctx, orgID, 0, 0)
	return int64(len(list)), nil
}

// Users

type UserStore struct{ s *Store }

func (s *Store) Users() UserStore { return UserStore{s} }

func (u UserStore) Create(ctx context.Context, user *models.User) error {
	if u.s.Err != nil {
		return u.s.Err
	}
	u.s.mu.Lock()
	for _, existing := range u.s.users {
		if existing.Email == user.Email {
			u.s.mu.Unlock()
			return fmt.Errorf("failed to create user: %w", models.ErrConflict)
		}
	}
	u.s.mu.Unlock()
	*user = *u.s.AddUser(*user)
	return nil
}

func (u UserStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.ID == id && user.OrganizationID == orgID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("failed to get user: %w", models.ErrNotFound)
}

func (u UserStore) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	var out []models.User
	for _, user := range u.s.users {
		if user.OrganizationID == orgID {
			out = append(out, *user)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (u UserStore) CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error) {
	list, _ := u.ListByOrganization(ctx, orgID, 0, 0)
	return int64(len(list)), nil
}

// Appointments

type AppointmentStore struct{ s *Store }

func (s *Store) Appointments() AppointmentStore { return AppointmentStore{s} }

func (a AppointmentStore) Create(ctx context.Context, appointment *models.Appointment) error {
	if a.s.Err != nil {
		return a.s.Err
	}
	*appointment = *a.s.AddAppointment(*appointment)
	return nil
}

func (a AppointmentStore) orgOf(doctorID uuid.UUID) (uuid.UUID, *models.User) {
	for _, user := range a.s.users {
		if user.ID == doctorID {
			return user.OrganizationID, user
		}
	}
	return uuid.Nil, nil
}

func (a AppointmentStore) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Appointment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var out []models.Appointment
	for _, appt := range a.s.appointments {
		owner, doctor := a.orgOf(appt.DoctorID)
		if owner != orgID {
			continue
		}
		copied := *appt
		copied.Doctor = doctor
		for _, p := range a.s.patients {
			if p.ID == appt.PatientID {
				copied.Patient = p
			}
		}
		out = append(out, copied)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (a AppointmentStore) CountScheduledBetween(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int64, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var n int64
	for _, appt := range a.s.appointments {
		owner, _ := a.orgOf(appt.DoctorID)
		if owner == orgID && appt.Status != models.AppointmentStatusCancelled && within(appt.ScheduledAt, start, end) {
			n++
		}
	}
	return n, nil
}

// Audit

type AuditStore struct{ s *Store }

func (s *Store) AuditStore() AuditStore { return AuditStore{s} }

func (a AuditStore) Create(ctx context.Context, entry *models.AuditLog) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	a.s.stamp(&entry.CreatedAt)
	a.s.AuditLogs = append(a.s.AuditLogs, *entry)
	return nil
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
