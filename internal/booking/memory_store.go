package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mashudu-n/branch-appointments/internal/appointments"
	"github.com/mashudu-n/branch-appointments/internal/slots"
)

// RecordedEvent is an outbox row captured by the in-memory store.
type RecordedEvent struct {
	ID       uuid.UUID
	BranchID string
	Type     string
	Payload  json.RawMessage
}

// MemoryStore is an in-process Store for tests and local runs. Transactions
// stage their writes and apply them at commit under a version check, so
// concurrent transactions race exactly like optimistic locking against the
// database: the loser gets a version conflict and must retry.
type MemoryStore struct {
	mu     sync.Mutex
	slots  map[uuid.UUID]*slots.Slot
	appts  map[uuid.UUID]*appointments.Appointment
	events []RecordedEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots: make(map[uuid.UUID]*slots.Slot),
		appts: make(map[uuid.UUID]*appointments.Appointment),
	}
}

// SeedSlot stores a slot directly, outside any transaction.
func (s *MemoryStore) SeedSlot(slot *slots.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := slot.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	s.slots[cp.ID] = cp
}

// SeedAppointment stores an appointment directly, outside any transaction.
func (s *MemoryStore) SeedAppointment(a *appointments.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	s.appts[cp.ID] = cp
}

// Slot returns the committed state of a slot.
func (s *MemoryStore) Slot(id uuid.UUID) (*slots.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, false
	}
	return slot.Clone(), true
}

// Appointment returns the committed state of an appointment.
func (s *MemoryStore) Appointment(id uuid.UUID) (*appointments.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Events returns the outbox rows committed so far.
func (s *MemoryStore) Events() []RecordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedEvent(nil), s.events...)
}

func (s *MemoryStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		store:      s,
		slotBases:  make(map[uuid.UUID]int),
		slotWrites: make(map[uuid.UUID]*slots.Slot),
		apptBases:  make(map[uuid.UUID]int),
		apptWrites: make(map[uuid.UUID]*appointments.Appointment),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type memTx struct {
	store *MemoryStore

	slotBases   map[uuid.UUID]int
	slotWrites  map[uuid.UUID]*slots.Slot
	slotInserts []*slots.Slot

	apptBases   map[uuid.UUID]int
	apptWrites  map[uuid.UUID]*appointments.Appointment
	apptInserts []*appointments.Appointment

	events []RecordedEvent
}

func (t *memTx) Slots() SlotRepository               { return memSlotRepo{t} }
func (t *memTx) Appointments() AppointmentRepository { return memApptRepo{t} }
func (t *memTx) Outbox() OutboxRepository            { return memOutbox{t} }

// commit applies staged writes if every written row still carries the version
// the transaction read. Conflicts surface the same sentinel errors the
// Postgres repositories use.
func (t *memTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, base := range t.slotBases {
		if _, dirty := t.slotWrites[id]; !dirty {
			continue
		}
		current, ok := s.slots[id]
		if !ok || current.Version != base {
			return fmt.Errorf("booking: %w: slot %s at version %d", slots.ErrVersionConflict, id, base)
		}
	}
	for id, base := range t.apptBases {
		if _, dirty := t.apptWrites[id]; !dirty {
			continue
		}
		current, ok := s.appts[id]
		if !ok || current.Version != base {
			return fmt.Errorf("booking: %w: appointment %s at version %d", appointments.ErrVersionConflict, id, base)
		}
	}
	for _, a := range t.apptInserts {
		if s.hasActiveLocked(a.CustomerUsername, a.BranchID, a.Day()) {
			return fmt.Errorf("booking: insert: %w", appointments.ErrDuplicateActiveAppointment)
		}
	}

	for id, slot := range t.slotWrites {
		cp := slot.Clone()
		cp.Version = t.slotBases[id] + 1
		s.slots[id] = cp
	}
	for id, a := range t.apptWrites {
		cp := a.Clone()
		cp.Version = t.apptBases[id] + 1
		s.appts[id] = cp
	}
	for _, slot := range t.slotInserts {
		cp := slot.Clone()
		cp.Version = 1
		s.slots[cp.ID] = cp
	}
	for _, a := range t.apptInserts {
		cp := a.Clone()
		cp.Version = 1
		s.appts[cp.ID] = cp
	}
	s.events = append(s.events, t.events...)
	return nil
}

func (s *MemoryStore) hasActiveLocked(customer, branchID string, day time.Time) bool {
	for _, a := range s.appts {
		if a.CustomerUsername == customer && a.BranchID == branchID && a.Day().Equal(day) && a.IsActive() {
			return true
		}
	}
	return false
}

type memSlotRepo struct {
	tx *memTx
}

func (r memSlotRepo) Get(_ context.Context, id uuid.UUID) (*slots.Slot, error) {
	if staged, ok := r.tx.slotWrites[id]; ok {
		return staged, nil
	}
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, slots.ErrSlotNotFound
	}
	cp := slot.Clone()
	if _, seen := r.tx.slotBases[id]; !seen {
		r.tx.slotBases[id] = cp.Version
	}
	return cp, nil
}

func (r memSlotRepo) Insert(_ context.Context, slot *slots.Slot) error {
	r.tx.slotInserts = append(r.tx.slotInserts, slot)
	return nil
}

func (r memSlotRepo) Update(_ context.Context, slot *slots.Slot) error {
	if _, seen := r.tx.slotBases[slot.ID]; !seen {
		r.tx.slotBases[slot.ID] = slot.Version
	}
	r.tx.slotWrites[slot.ID] = slot
	return nil
}

func (r memSlotRepo) ListByBranchDay(_ context.Context, branchID string, day time.Time) ([]*slots.Slot, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*slots.Slot
	for _, slot := range s.slots {
		if slot.BranchID == branchID && slot.Day.Equal(day) {
			out = append(out, slot.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r memSlotRepo) ExpireBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, slot := range s.slots {
		if slot.Day.Before(cutoff) && (slot.Status == slots.StatusAvailable || slot.Status == slots.StatusBlocked) {
			slot.Expire()
			slot.Version++
			n++
		}
	}
	return n, nil
}

type memApptRepo struct {
	tx *memTx
}

func (r memApptRepo) Get(_ context.Context, id uuid.UUID) (*appointments.Appointment, error) {
	if staged, ok := r.tx.apptWrites[id]; ok {
		return staged, nil
	}
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return nil, appointments.ErrAppointmentNotFound
	}
	cp := a.Clone()
	if _, seen := r.tx.apptBases[id]; !seen {
		r.tx.apptBases[id] = cp.Version
	}
	return cp, nil
}

func (r memApptRepo) GetByReference(_ context.Context, reference string) (*appointments.Appointment, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appts {
		if a.Reference == reference {
			return a.Clone(), nil
		}
	}
	return nil, appointments.ErrAppointmentNotFound
}

func (r memApptRepo) Insert(_ context.Context, a *appointments.Appointment) error {
	r.tx.apptInserts = append(r.tx.apptInserts, a)
	return nil
}

func (r memApptRepo) Update(_ context.Context, a *appointments.Appointment) error {
	if _, seen := r.tx.apptBases[a.ID]; !seen {
		r.tx.apptBases[a.ID] = a.Version
	}
	r.tx.apptWrites[a.ID] = a
	return nil
}

func (r memApptRepo) GetUserActiveAppointment(_ context.Context, customerUsername, branchID string, day time.Time) (*appointments.Appointment, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appts {
		if a.CustomerUsername == customerUsername && a.BranchID == branchID && a.Day().Equal(day) && a.IsActive() {
			return a.Clone(), nil
		}
	}
	return nil, appointments.ErrAppointmentNotFound
}

func (r memApptRepo) GetUnattendedAppointments(_ context.Context, before, lookbackFloor time.Time, afterID uuid.UUID, limit int) ([]*appointments.Appointment, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*appointments.Appointment
	for _, a := range s.appts {
		if a.Status != appointments.StatusBooked && a.Status != appointments.StatusCheckedIn {
			continue
		}
		if !a.StartsAt.Before(before) || a.StartsAt.Before(lookbackFloor) {
			continue
		}
		if bytes.Compare(a.ID[:], afterID[:]) <= 0 {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memApptRepo) ListByCustomer(_ context.Context, customerUsername string, limit, offset int) (*appointments.AppointmentPage, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*appointments.Appointment
	for _, a := range s.appts {
		if a.CustomerUsername == customerUsername {
			all = append(all, a.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartsAt.After(all[j].StartsAt) })

	page := &appointments.AppointmentPage{TotalCount: int64(len(all))}
	if offset >= len(all) {
		return page, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	page.Appointments = all
	return page, nil
}

type memOutbox struct {
	tx *memTx
}

func (o memOutbox) Insert(_ context.Context, branchID string, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("booking: marshal event payload: %w", err)
	}
	id := uuid.New()
	o.tx.events = append(o.tx.events, RecordedEvent{
		ID:       id,
		BranchID: branchID,
		Type:     eventType,
		Payload:  data,
	})
	return id, nil
}
