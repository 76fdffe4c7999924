package order

import (
	"time"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

// transitions is the complete edge table. A (from, to) pair absent here is
// rejected.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// sellerOnly targets may only be entered by the order's farmer.
var sellerOnly = map[Status]bool{
	StatusConfirmed: true,
	StatusPreparing: true,
	StatusReady:     true,
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Party identifies which side of an order an actor is on.
type Party int

const (
	PartyNone Party = iota
	PartyBuyer
	PartySeller
)

func (p Party) String() string {
	switch p {
	case PartyBuyer:
		return "buyer"
	case PartySeller:
		return "seller"
	}
	return "none"
}

// PartyOf matches the actor on both id and role: a farmer must be the
// order's seller and a buyer its buyer.
func (o *Order) PartyOf(a Actor) Party {
	switch {
	case a.Role == user.RoleFarmer && a.UserID == o.SellerID:
		return PartySeller
	case a.Role == user.RoleBuyer && a.UserID == o.BuyerID:
		return PartyBuyer
	}
	return PartyNone
}

// Advance moves o to status to on behalf of a, stamping the matching
// timestamp and storing notes on the actor's side. o is left untouched on
// error.
func Advance(o *Order, a Actor, to Status, notes string, at time.Time) error {
	party := o.PartyOf(a)
	if party == PartyNone {
		return ErrUnauthorized
	}
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{From: o.Status, To: to}
	}
	if sellerOnly[to] && party != PartySeller {
		return ErrUnauthorized
	}

	stamp := at
	switch to {
	case StatusConfirmed:
		o.ConfirmedAt = &stamp
	case StatusPreparing:
		o.PreparingAt = &stamp
	case StatusReady:
		o.ReadyAt = &stamp
	case StatusCompleted:
		o.CompletedAt = &stamp
	case StatusCancelled:
		o.CancelledAt = &stamp
	}
	if notes != "" {
		if party == PartySeller {
			o.SellerNotes = notes
		} else {
			o.BuyerNotes = notes
		}
	}
	o.Status = to
	o.UpdatedAt = at
	return nil
}
