package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/activity"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/product"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
	"github.com/georgemunganga/campo-directo-backend/internal/platform/logger"
)

// Service defines the order lifecycle business logic.
type Service interface {
	// CreateOrder checks every line, prices the order and persists it atomically.
	CreateOrder(ctx context.Context, buyer Actor, req CreateOrderRequest) (*Order, error)

	// GetOrder returns the order with its lines to either of its parties.
	GetOrder(ctx context.Context, id uuid.UUID, actor Actor) (*Order, error)

	// ListOrders pages through the orders the actor is a party to.
	ListOrders(ctx context.Context, actor Actor, f ListFilter) (*Page, error)

	// UpdateStatus applies one state machine transition. Entering completed
	// settles stock in the same transaction.
	UpdateStatus(ctx context.Context, id uuid.UUID, actor Actor, req UpdateStatusRequest) (*Order, error)

	// Cancel is UpdateStatus to cancelled with reason stored as the actor's note.
	Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*Order, error)

	// Rate records the actor's rating of the other party of a completed order.
	Rate(ctx context.Context, id uuid.UUID, actor Actor, req RateRequest) (*Order, error)

	CanRate(ctx context.Context, id uuid.UUID, actor Actor) (RateEligibility, error)

	Stats(ctx context.Context, actor Actor) (*Stats, error)
}

// Catalog answers whether a product can fill a line.
type Catalog interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) (product.Availability, error)
}

// RatingBook keeps each user's running rating.
type RatingBook interface {
	UpdateRating(ctx context.Context, userID uuid.UUID, stars int) (user.RatingSummary, error)
}

// ActivityLog appends to a user's activity feed.
type ActivityLog interface {
	Log(ctx context.Context, rec *activity.Record) error
}

// UnitOfWork runs fn in one transaction; nested calls join the outer one.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher delivers order events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

// Recorder receives order lifecycle counters.
type Recorder interface {
	OrderCreated()
	OrderRejected(reason string)
	Transition(from, to string)
	Settled(products int)
	Rated(party string)
}

// Deps wires the order service. Orders, Catalog, Stock, Ratings and
// Activities are required.
type Deps struct {
	Orders     Repository
	Catalog    Catalog
	Stock      StockLedger
	Ratings    RatingBook
	Activities ActivityLog
	UnitOfWork UnitOfWork
	Events     EventPublisher
	Metrics    Recorder
	Logger     *zap.Logger
	Clock      func() time.Time
	NewID      func() uuid.UUID
}

const (
	maxNumberAttempts = 3
	publishTimeout    = 5 * time.Second
)

type service struct {
	orders     Repository
	catalog    Catalog
	stock      StockLedger
	ratings    RatingBook
	activities ActivityLog
	uow        UnitOfWork
	events     EventPublisher
	metrics    Recorder
	log        *zap.Logger
	clock      func() time.Time
	newID      func() uuid.UUID
}

// NewService creates a new order service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Catalog == nil:
		return nil, errors.New("order service: catalog is required")
	case deps.Stock == nil:
		return nil, errors.New("order service: stock ledger is required")
	case deps.Ratings == nil:
		return nil, errors.New("order service: rating book is required")
	case deps.Activities == nil:
		return nil, errors.New("order service: activity log is required")
	}

	s := &service{
		orders:     deps.Orders,
		catalog:    deps.Catalog,
		stock:      deps.Stock,
		ratings:    deps.Ratings,
		activities: deps.Activities,
		uow:        deps.UnitOfWork,
		events:     deps.Events,
		metrics:    deps.Metrics,
		log:        deps.Logger,
		newID:      deps.NewID,
	}
	if s.uow == nil {
		s.uow = inlineUnitOfWork{}
	}
	if s.events == nil {
		s.events = discardEvents{}
	}
	if s.metrics == nil {
		s.metrics = discardMetrics{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("order")
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	s.clock = func() time.Time { return clock().UTC() }
	if s.newID == nil {
		s.newID = uuid.New
	}
	return s, nil
}

func (s *service) CreateOrder(ctx context.Context, buyer Actor, req CreateOrderRequest) (*Order, error) {
	if buyer.Role != user.RoleBuyer {
		s.metrics.OrderRejected(rejectReason(ErrUnauthorized))
		return nil, ErrUnauthorized
	}
	header, err := s.validateCreate(buyer, req)
	if err != nil {
		s.metrics.OrderRejected(rejectReason(err))
		return nil, err
	}

	var o *Order
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		o = s.newOrder(header)
		err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.priceLines(ctx, o, req.Lines); err != nil {
				return err
			}
			if err := s.orders.CreateOrder(ctx, o); err != nil {
				if errors.Is(err, ErrDuplicateNumber) {
					return err
				}
				return storage("create order", err)
			}
			return s.logCreated(ctx, o)
		})
		if !errors.Is(err, ErrDuplicateNumber) {
			break
		}
		s.log.Warn("order number collision, retrying", zap.String("order_number", o.OrderNumber), zap.Int("attempt", attempt))
	}
	if errors.Is(err, ErrDuplicateNumber) {
		err = storage("create order", err)
	}
	if err != nil {
		s.metrics.OrderRejected(rejectReason(err))
		return nil, err
	}

	s.metrics.OrderCreated()
	logger.FromContext(ctx, s.log).Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.Total.StringFixed(currencyPlaces)))
	s.publish(ctx, Event{Type: EventCreated, CurrentStatus: o.Status, ActorID: buyer.UserID}, o)
	return o, nil
}

// validateCreate checks the request shape and returns a header template.
// No I/O happens here.
func (s *service) validateCreate(buyer Actor, req CreateOrderRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, invalid("items", "at least one item is required")
	}
	if req.SellerID == uuid.Nil {
		return nil, invalid("seller_id", "is required")
	}
	if req.SellerID == buyer.UserID {
		return nil, invalid("seller_id", "cannot order from yourself")
	}
	for i, l := range req.Lines {
		if l.ProductID == uuid.Nil {
			return nil, invalid(fmt.Sprintf("items[%d].product_id", i), "is required")
		}
		if !l.Quantity.IsPositive() {
			return nil, invalid(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		if l.UnitPrice != nil && !l.UnitPrice.IsPositive() {
			return nil, invalid(fmt.Sprintf("items[%d].unit_price", i), "must be greater than zero")
		}
	}

	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		return nil, invalid("delivery_address", "is required")
	}
	phone := strings.TrimSpace(req.ContactPhone)
	if phone == "" {
		return nil, invalid("contact_phone", "is required")
	}
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(req.ScheduledDate))
	if err != nil {
		return nil, invalid("scheduled_date", "must be a date in YYYY-MM-DD format")
	}
	slot := strings.TrimSpace(req.ScheduledTime)
	if slot != "" {
		if _, err := time.Parse("15:04", slot); err != nil {
			return nil, invalid("scheduled_time", "must be a time in HH:MM format")
		}
	}
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if method == "" {
		method = PaymentCash
	}
	if !method.Valid() {
		return nil, invalid("payment_method", "must be one of cash, transfer, card, other")
	}

	return &Order{
		BuyerID:         buyer.UserID,
		SellerID:        req.SellerID,
		Status:          StatusPending,
		DeliveryAddress: address,
		ContactPhone:    phone,
		ScheduledDate:   date,
		ScheduledTime:   slot,
		PaymentMethod:   method,
		BuyerNotes:      strings.TrimSpace(req.Notes),
	}, nil
}

func (s *service) newOrder(header *Order) *Order {
	o := *header
	now := s.clock()
	o.ID = s.newID()
	o.OrderNumber = fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(s.newID().String()[:4]))
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Lines = nil
	return &o
}

// priceLines checks availability of every requested line in order, snapshots
// unit prices and sets the order total. The first refusal aborts.
func (s *service) priceLines(ctx context.Context, o *Order, reqs []LineRequest) error {
	lines := make([]*OrderLine, 0, len(reqs))
	for i, lr := range reqs {
		avail, err := s.catalog.CheckAvailability(ctx, lr.ProductID, lr.Quantity)
		if err != nil {
			return storage("check availability", err)
		}
		if !avail.Available {
			return &UnavailableError{ProductID: lr.ProductID, Reason: avail.Reason}
		}
		if avail.Product.FarmerID != o.SellerID {
			return invalid(fmt.Sprintf("items[%d].product_id", i), "product does not belong to the seller")
		}

		price := avail.Product.PricePerUnit
		if lr.UnitPrice != nil {
			price = *lr.UnitPrice
		}
		lines = append(lines, &OrderLine{
			ID:        s.newID(),
			OrderID:   o.ID,
			Position:  i + 1,
			ProductID: lr.ProductID,
			Quantity:  lr.Quantity,
			UnitPrice: price,
			Notes:     strings.TrimSpace(lr.Notes),
		})
	}
	o.Lines = lines
	o.Total = PriceLines(lines)
	return nil
}

func (s *service) logCreated(ctx context.Context, o *Order) error {
	total := o.Total.StringFixed(currencyPlaces)
	if err := s.appendActivity(ctx, o.BuyerID, activity.KindOrder,
		fmt.Sprintf("Order %s placed for %s", o.OrderNumber, total), o); err != nil {
		return err
	}
	return s.appendActivity(ctx, o.SellerID, activity.KindOrder,
		fmt.Sprintf("New order %s received for %s", o.OrderNumber, total), o)
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID, actor Actor) (*Order, error) {
	o, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, storage("get order", err)
	}
	if o.PartyOf(actor) == PartyNone {
		return nil, ErrUnauthorized
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, actor Actor, f ListFilter) (*Page, error) {
	if !actor.Role.Valid() {
		return nil, ErrUnauthorized
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, invalid("status", "unknown status %q", st)
		}
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, invalid("from", "must be before to")
	}
	f = f.Normalize()

	orders, total, err := s.orders.ListOrders(ctx, actor, f)
	if err != nil {
		return nil, storage("list orders", err)
	}
	if orders == nil {
		orders = []*Order{}
	}
	return &Page{
		Orders: orders,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: (total + f.Limit - 1) / f.Limit,
		},
	}, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, actor Actor, req UpdateStatusRequest) (*Order, error) {
	to := Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if !to.Valid() {
		return nil, invalid("status", "unknown status %q", req.Status)
	}
	notes := strings.TrimSpace(req.Notes)

	var (
		o       *Order
		from    Status
		settled []product.StockLevel
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetOrderForUpdate(ctx, id)
		if err != nil {
			return storage("load order", err)
		}
		from = o.Status
		if err := Advance(o, actor, to, notes, s.clock()); err != nil {
			return err
		}
		if err := s.orders.UpdateStatus(ctx, o, from); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				return &InvalidTransitionError{From: from, To: to}
			}
			return storage("update order status", err)
		}
		if to == StatusCompleted {
			if settled, err = Settle(ctx, s.stock, o.Lines); err != nil {
				return storage("settle stock", err)
			}
		}
		return s.logTransition(ctx, o, actor, from)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(from), string(to))
	log := logger.FromContext(ctx, s.log).With(
		zap.String("order_id", o.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	if to == StatusCompleted {
		s.metrics.Settled(len(settled))
		for _, lvl := range settled {
			if lvl.Status == product.StatusOutOfStock {
				log.Info("product sold out", zap.String("product_id", lvl.ProductID.String()))
			}
		}
	}
	log.Info("order status changed")
	s.publish(ctx, Event{Type: EventStatusChanged, PreviousStatus: from, CurrentStatus: to, ActorID: actor.UserID}, o)
	return o, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*Order, error) {
	return s.UpdateStatus(ctx, id, actor, UpdateStatusRequest{Status: string(StatusCancelled), Notes: reason})
}

func (s *service) logTransition(ctx context.Context, o *Order, actor Actor, from Status) error {
	kind := transitionKind(o.Status)
	counterparty := o.SellerID
	if o.PartyOf(actor) == PartySeller {
		counterparty = o.BuyerID
	}
	if err := s.appendActivity(ctx, actor.UserID, kind,
		fmt.Sprintf("Order %s moved from %s to %s", o.OrderNumber, from, o.Status), o); err != nil {
		return err
	}
	return s.appendActivity(ctx, counterparty, kind,
		fmt.Sprintf("Order %s is now %s", o.OrderNumber, o.Status), o)
}

func transitionKind(to Status) activity.Kind {
	switch to {
	case StatusCompleted:
		return activity.KindCompleted
	case StatusCancelled:
		return activity.KindWarning
	case StatusConfirmed, StatusReady:
		return activity.KindSuccess
	}
	return activity.KindInfo
}

func (s *service) Rate(ctx context.Context, id uuid.UUID, actor Actor, req RateRequest) (*Order, error) {
	if req.Stars < 1 || req.Stars > 5 {
		return nil, invalid("stars", "must be between 1 and 5")
	}
	comment := strings.TrimSpace(req.Comment)

	var (
		o     *Order
		rated Party
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetOrderForUpdate(ctx, id)
		if err != nil {
			return storage("load order", err)
		}
		party := o.PartyOf(actor)
		if party == PartyNone {
			return ErrUnauthorized
		}
		if reason := rateBlocker(o, party); reason != "" {
			if o.Status != StatusCompleted {
				return invalid("status", "%s", reason)
			}
			return ErrAlreadyRated
		}
		if err := s.orders.SaveRating(ctx, o.ID, party, req.Stars, comment); err != nil {
			return storage("save rating", err)
		}

		stars := req.Stars
		ratedUser := o.SellerID
		if party == PartyBuyer {
			rated = PartySeller
			o.SellerRating, o.SellerRatingComment = &stars, comment
		} else {
			rated = PartyBuyer
			ratedUser = o.BuyerID
			o.BuyerRating, o.BuyerRatingComment = &stars, comment
		}
		if _, err := s.ratings.UpdateRating(ctx, ratedUser, stars); err != nil {
			return storage("update user rating", err)
		}
		o.UpdatedAt = s.clock()
		if err := s.appendActivity(ctx, actor.UserID, activity.KindSuccess,
			fmt.Sprintf("Rating sent for order %s: %d stars", o.OrderNumber, stars), o); err != nil {
			return err
		}
		return s.appendActivity(ctx, ratedUser, activity.KindSuccess,
			fmt.Sprintf("You received %d stars for order %s", stars, o.OrderNumber), o)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Rated(rated.String())
	logger.FromContext(ctx, s.log).Info("order rated",
		zap.String("order_id", o.ID.String()),
		zap.String("rated", rated.String()),
		zap.Int("stars", req.Stars))
	s.publish(ctx, Event{Type: EventRated, CurrentStatus: o.Status, ActorID: actor.UserID, Stars: req.Stars}, o)
	return o, nil
}

func (s *service) CanRate(ctx context.Context, id uuid.UUID, actor Actor) (RateEligibility, error) {
	o, err := s.GetOrder(ctx, id, actor)
	if err != nil {
		return RateEligibility{}, err
	}
	if reason := rateBlocker(o, o.PartyOf(actor)); reason != "" {
		return RateEligibility{Reason: reason}, nil
	}
	return RateEligibility{CanRate: true}, nil
}

// rateBlocker returns why party may not rate o, or "" when it may.
func rateBlocker(o *Order, party Party) string {
	switch {
	case o.Status != StatusCompleted:
		return "only completed orders can be rated"
	case party == PartyBuyer && o.SellerRating != nil:
		return "you already rated the seller"
	case party == PartySeller && o.BuyerRating != nil:
		return "you already rated the buyer"
	}
	return ""
}

func (s *service) Stats(ctx context.Context, actor Actor) (*Stats, error) {
	if !actor.Role.Valid() {
		return nil, ErrUnauthorized
	}
	now := s.clock()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	st, err := s.orders.Stats(ctx, actor, monthStart)
	if err != nil {
		return nil, storage("order stats", err)
	}
	return st, nil
}

func (s *service) appendActivity(ctx context.Context, userID uuid.UUID, kind activity.Kind, desc string, o *Order) error {
	err := s.activities.Log(ctx, &activity.Record{
		ID:          s.newID(),
		UserID:      userID,
		Kind:        kind,
		Description: desc,
		EntityType:  activity.EntityOrder,
		EntityID:    o.ID.String(),
	})
	return storage("append activity", err)
}

// publish sends ev for o after commit. Failures are logged only.
func (s *service) publish(ctx context.Context, ev Event, o *Order) {
	ev.OrderID = o.ID
	ev.OrderNumber = o.OrderNumber
	ev.BuyerID = o.BuyerID
	ev.SellerID = o.SellerID
	ev.OccurredAt = s.clock()

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(pctx, o.ID.String(), ev); err != nil {
		logger.FromContext(ctx, s.log).Warn("publish order event",
			zap.String("type", ev.Type),
			zap.String("order_id", o.ID.String()),
			zap.Error(err))
	}
}

func rejectReason(err error) string {
	var (
		ve *ValidationError
		ue *UnavailableError
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ue):
		return "unavailable"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	}
	return "storage"
}

type inlineUnitOfWork struct{}

func (inlineUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type discardEvents struct{}

func (discardEvents) Publish(context.Context, string, any) error { return nil }

type discardMetrics struct{}

func (discardMetrics) OrderCreated()          {}
func (discardMetrics) OrderRejected(string)   {}
func (discardMetrics) Transition(_, _ string) {}
func (discardMetrics) Settled(int)            {}
func (discardMetrics) Rated(string)           {}
