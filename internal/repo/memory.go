package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"festreg/internal/model"
)

// Memory is a Repository kept in process memory. It enforces the same
// constraints as the Postgres schema: unique email, phone and code per user,
// one registration per (user, event), conditional capacity updates.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	users         map[string]model.User
	events        map[string]model.Event
	registrations map[string]model.Registration
	payments      map[string]model.Payment
	codes         map[string]string
	seq           int64
}

func NewMemory() *Memory {
	return &Memory{data: &memData{
		users:         map[string]model.User{},
		events:        map[string]model.Event{},
		registrations: map[string]model.Registration{},
		payments:      map[string]model.Payment{},
		codes:         map[string]string{},
	}}
}

func (d *memData) clone() *memData {
	c := &memData{
		users:         make(map[string]model.User, len(d.users)),
		events:        make(map[string]model.Event, len(d.events)),
		registrations: make(map[string]model.Registration, len(d.registrations)),
		payments:      make(map[string]model.Payment, len(d.payments)),
		codes:         make(map[string]string, len(d.codes)),
		seq:           d.seq,
	}
	for k, v := range d.codes {
		c.codes[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.registrations {
		c.registrations[k] = copyRegistration(v)
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	return c
}

func copyRegistration(r model.Registration) model.Registration {
	r.TeamMembers = append([]model.TeamMember(nil), r.TeamMembers...)
	return r
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) MigrateUp(context.Context) error { return nil }

func (m *Memory) MigrateDown(context.Context) error { return nil }

func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(ctx, work); err != nil {
		return err
	}
	m.data = work
	return nil
}

// locked runs fn on the live data under the store mutex.
func (m *Memory) locked(fn func(d *memData) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

func (m *Memory) CreateUser(ctx context.Context, u *model.User) error {
	return m.locked(func(d *memData) error { return d.CreateUser(ctx, u) })
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (u *model.User, err error) {
	err = m.locked(func(d *memData) error { u, err = d.GetUserByID(ctx, id); return err })
	return u, err
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (u *model.User, err error) {
	err = m.locked(func(d *memData) error { u, err = d.GetUserByEmail(ctx, email); return err })
	return u, err
}

func (m *Memory) GetUserByPhone(ctx context.Context, phone string) (u *model.User, err error) {
	err = m.locked(func(d *memData) error { u, err = d.GetUserByPhone(ctx, phone); return err })
	return u, err
}

func (m *Memory) UserCodeExists(ctx context.Context, code string) (ok bool, err error) {
	err = m.locked(func(d *memData) error { ok, err = d.UserCodeExists(ctx, code); return err })
	return ok, err
}

func (m *Memory) CreateEvent(ctx context.Context, e *model.Event) error {
	return m.locked(func(d *memData) error { return d.CreateEvent(ctx, e) })
}

func (m *Memory) GetEventByID(ctx context.Context, id string) (e *model.Event, err error) {
	err = m.locked(func(d *memData) error { e, err = d.GetEventByID(ctx, id); return err })
	return e, err
}

func (m *Memory) GetAllEvents(ctx context.Context) (events []model.Event, err error) {
	err = m.locked(func(d *memData) error { events, err = d.GetAllEvents(ctx); return err })
	return events, err
}

func (m *Memory) SetRegistrationOpen(ctx context.Context, eventID string, open bool) error {
	return m.locked(func(d *memData) error { return d.SetRegistrationOpen(ctx, eventID, open) })
}

func (m *Memory) IncrementParticipants(ctx context.Context, eventID string) (n int, err error) {
	err = m.locked(func(d *memData) error { n, err = d.IncrementParticipants(ctx, eventID); return err })
	return n, err
}

func (m *Memory) DecrementParticipants(ctx context.Context, eventID string) (n int, err error) {
	err = m.locked(func(d *memData) error { n, err = d.DecrementParticipants(ctx, eventID); return err })
	return n, err
}

func (m *Memory) NextRegistrationSeq(ctx context.Context) (n int64, err error) {
	err = m.locked(func(d *memData) error { n, err = d.NextRegistrationSeq(ctx); return err })
	return n, err
}

func (m *Memory) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	return m.locked(func(d *memData) error { return d.InsertRegistration(ctx, reg) })
}

func (m *Memory) GetRegistrationByID(ctx context.Context, id string) (r *model.Registration, err error) {
	err = m.locked(func(d *memData) error { r, err = d.GetRegistrationByID(ctx, id); return err })
	return r, err
}

func (m *Memory) LockRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return m.GetRegistrationByID(ctx, id)
}

func (m *Memory) GetRegistrationByUserEvent(ctx context.Context, userID, eventID string) (r *model.Registration, err error) {
	err = m.locked(func(d *memData) error { r, err = d.GetRegistrationByUserEvent(ctx, userID, eventID); return err })
	return r, err
}

func (m *Memory) GetRegistrationsByUser(ctx context.Context, userID string) (regs []model.Registration, err error) {
	err = m.locked(func(d *memData) error { regs, err = d.GetRegistrationsByUser(ctx, userID); return err })
	return regs, err
}

func (m *Memory) UpdateRegistrationPayment(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time) error {
	return m.locked(func(d *memData) error { return d.UpdateRegistrationPayment(ctx, id, status, paidAt) })
}

func (m *Memory) CancelRegistration(ctx context.Context, id string) error {
	return m.locked(func(d *memData) error { return d.CancelRegistration(ctx, id) })
}

func (m *Memory) DeleteRegistration(ctx context.Context, id string) (st model.CancellationStatus, err error) {
	err = m.locked(func(d *memData) error { st, err = d.DeleteRegistration(ctx, id); return err })
	return st, err
}

func (m *Memory) InsertPayment(ctx context.Context, p *model.Payment) error {
	return m.locked(func(d *memData) error { return d.InsertPayment(ctx, p) })
}

func (m *Memory) UpdatePayment(ctx context.Context, p *model.Payment, from model.PaymentRecordStatus) error {
	return m.locked(func(d *memData) error { return d.UpdatePayment(ctx, p, from) })
}

func (m *Memory) GetPaymentByID(ctx context.Context, id string) (p *model.Payment, err error) {
	err = m.locked(func(d *memData) error { p, err = d.GetPaymentByID(ctx, id); return err })
	return p, err
}

func (m *Memory) LockPayment(ctx context.Context, id string) (*model.Payment, error) {
	return m.GetPaymentByID(ctx, id)
}

func (m *Memory) GetPaymentByRegistrationID(ctx context.Context, registrationID string) (p *model.Payment, err error) {
	err = m.locked(func(d *memData) error { p, err = d.GetPaymentByRegistrationID(ctx, registrationID); return err })
	return p, err
}

func (m *Memory) GetPaymentsByStatus(ctx context.Context, status model.PaymentRecordStatus) (ps []model.Payment, err error) {
	err = m.locked(func(d *memData) error { ps, err = d.GetPaymentsByStatus(ctx, status); return err })
	return ps, err
}

func (m *Memory) GetExportRows(ctx context.Context, eventID string) (rows []model.ExportRow, err error) {
	err = m.locked(func(d *memData) error { rows, err = d.GetExportRows(ctx, eventID); return err })
	return rows, err
}

// memData implements Store without locking; callers hold Memory.mu.

func (d *memData) CreateUser(_ context.Context, u *model.User) error {
	for _, existing := range d.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.Phone == u.Phone {
			return ErrDuplicateUser
		}
	}
	if _, taken := d.codes[u.Code]; taken {
		return ErrDuplicateCode
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	d.users[u.ID] = *u
	d.codes[u.Code] = u.ID
	return nil
}

func (d *memData) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (d *memData) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) GetUserByPhone(_ context.Context, phone string) (*model.User, error) {
	for _, u := range d.users {
		if u.Phone == phone {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) UserCodeExists(_ context.Context, code string) (bool, error) {
	_, taken := d.codes[code]
	return taken, nil
}

func (d *memData) CreateEvent(_ context.Context, e *model.Event) error {
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	d.events[e.ID] = *e
	return nil
}

func (d *memData) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	e, ok := d.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

func (d *memData) GetAllEvents(context.Context) ([]model.Event, error) {
	events := make([]model.Event, 0, len(d.events))
	for _, e := range d.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].Name < events[j].Name
	})
	return events, nil
}

func (d *memData) SetRegistrationOpen(_ context.Context, eventID string, open bool) error {
	e, ok := d.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	e.OnlineRegistrationOpen = open
	e.UpdatedAt = time.Now()
	d.events[eventID] = e
	return nil
}

func (d *memData) IncrementParticipants(_ context.Context, eventID string) (int, error) {
	e, ok := d.events[eventID]
	if !ok {
		return 0, ErrEventNotFound
	}
	if e.CurrentParticipants >= e.MaxParticipants {
		return 0, ErrEventFull
	}
	e.CurrentParticipants++
	e.UpdatedAt = time.Now()
	d.events[eventID] = e
	return e.CurrentParticipants, nil
}

func (d *memData) DecrementParticipants(_ context.Context, eventID string) (int, error) {
	e, ok := d.events[eventID]
	if !ok {
		return 0, ErrEventNotFound
	}
	if e.CurrentParticipants > 0 {
		e.CurrentParticipants--
	}
	e.UpdatedAt = time.Now()
	d.events[eventID] = e
	return e.CurrentParticipants, nil
}

func (d *memData) NextRegistrationSeq(context.Context) (int64, error) {
	d.seq++
	return d.seq, nil
}

func (d *memData) InsertRegistration(_ context.Context, reg *model.Registration) error {
	for _, existing := range d.registrations {
		if existing.UserID == reg.UserID && existing.EventID == reg.EventID {
			return ErrDuplicateRegistration
		}
	}
	now := time.Now()
	reg.CreatedAt, reg.UpdatedAt = now, now
	d.registrations[reg.ID] = copyRegistration(*reg)
	return nil
}

func (d *memData) GetRegistrationByID(_ context.Context, id string) (*model.Registration, error) {
	r, ok := d.registrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	r = copyRegistration(r)
	return &r, nil
}

func (d *memData) GetRegistrationByUserEvent(_ context.Context, userID, eventID string) (*model.Registration, error) {
	for _, r := range d.registrations {
		if r.UserID == userID && r.EventID == eventID {
			r = copyRegistration(r)
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) GetRegistrationsByUser(_ context.Context, userID string) ([]model.Registration, error) {
	var regs []model.Registration
	for _, r := range d.registrations {
		if r.UserID == userID {
			regs = append(regs, copyRegistration(r))
		}
	}
	sortRegistrations(regs)
	return regs, nil
}

func (d *memData) UpdateRegistrationPayment(_ context.Context, id string, status model.PaymentStatus, paidAt *time.Time) error {
	r, ok := d.registrations[id]
	if !ok {
		return ErrNotFound
	}
	r.PaymentStatus = status
	if paidAt != nil {
		t := *paidAt
		r.PaidAt = &t
	}
	r.UpdatedAt = time.Now()
	d.registrations[id] = r
	return nil
}

func (d *memData) CancelRegistration(_ context.Context, id string) error {
	r, ok := d.registrations[id]
	if !ok || r.Cancelled() {
		return ErrNotFound
	}
	r.CancellationStatus = model.CancellationCancelled
	r.UpdatedAt = time.Now()
	d.registrations[id] = r
	return nil
}

func (d *memData) LockRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return d.GetRegistrationByID(ctx, id)
}

func (d *memData) DeleteRegistration(_ context.Context, id string) (model.CancellationStatus, error) {
	r, ok := d.registrations[id]
	if !ok {
		return "", ErrNotFound
	}
	delete(d.registrations, id)
	return r.CancellationStatus, nil
}

func (d *memData) InsertPayment(_ context.Context, p *model.Payment) error {
	for _, existing := range d.payments {
		if existing.RegistrationID == p.RegistrationID {
			return ErrDuplicatePayment
		}
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	d.payments[p.ID] = *p
	return nil
}

func (d *memData) UpdatePayment(_ context.Context, p *model.Payment, from model.PaymentRecordStatus) error {
	existing, ok := d.payments[p.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Status != from {
		return ErrStaleState
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	d.payments[p.ID] = *p
	return nil
}

func (d *memData) GetPaymentByID(_ context.Context, id string) (*model.Payment, error) {
	p, ok := d.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (d *memData) LockPayment(ctx context.Context, id string) (*model.Payment, error) {
	return d.GetPaymentByID(ctx, id)
}

func (d *memData) GetPaymentByRegistrationID(_ context.Context, registrationID string) (*model.Payment, error) {
	for _, p := range d.payments {
		if p.RegistrationID == registrationID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) GetPaymentsByStatus(_ context.Context, status model.PaymentRecordStatus) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range d.payments {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (d *memData) GetExportRows(_ context.Context, eventID string) ([]model.ExportRow, error) {
	var out []model.ExportRow
	for _, r := range d.registrations {
		if r.EventID != eventID {
			continue
		}
		row := model.ExportRow{Registration: copyRegistration(r), User: d.users[r.UserID]}
		for _, p := range d.payments {
			if p.RegistrationID == r.ID {
				p := p
				row.Payment = &p
				break
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Registration, out[j].Registration
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.RegistrationNumber < b.RegistrationNumber
	})
	return out, nil
}

func sortRegistrations(regs []model.Registration) {
	sort.Slice(regs, func(i, j int) bool {
		if !regs[i].CreatedAt.Equal(regs[j].CreatedAt) {
			return regs[i].CreatedAt.Before(regs[j].CreatedAt)
		}
		return regs[i].RegistrationNumber < regs[j].RegistrationNumber
	})
}
