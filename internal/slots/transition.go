package slots

import (
	"time"

	"github.com/google/uuid"
)

// Transition is a closed set of slot status commands. Each variant maps to
// exactly one entity mutation, so every administrative path through a slot has
// a single execution site.
type Transition interface {
	SlotID() uuid.UUID
	Apply(s *Slot) error

	isTransition()
}

// Book claims one unit of capacity.
type Book struct {
	ID uuid.UUID
	At time.Time
}

func (t Book) SlotID() uuid.UUID   { return t.ID }
func (t Book) Apply(s *Slot) error { return s.Book(t.At) }
func (Book) isTransition()         {}

// Release returns one unit of capacity.
type Release struct {
	ID uuid.UUID
	At time.Time
}

func (t Release) SlotID() uuid.UUID   { return t.ID }
func (t Release) Apply(s *Slot) error { return s.Release(t.At) }
func (Release) isTransition()         {}

// Block administratively stops new bookings.
type Block struct {
	ID uuid.UUID
	At time.Time
}

func (t Block) SlotID() uuid.UUID   { return t.ID }
func (t Block) Apply(s *Slot) error { return s.Block(t.At) }
func (Block) isTransition()         {}

// Unblock lifts an administrative block.
type Unblock struct {
	ID uuid.UUID
	At time.Time
}

func (t Unblock) SlotID() uuid.UUID   { return t.ID }
func (t Unblock) Apply(s *Slot) error { return s.Unblock(t.At) }
func (Unblock) isTransition()         {}

// Expire retires a slot whose day has passed.
type Expire struct {
	ID uuid.UUID
}

func (t Expire) SlotID() uuid.UUID { return t.ID }
func (t Expire) Apply(s *Slot) error {
	s.Expire()
	return nil
}
func (Expire) isTransition() {}
