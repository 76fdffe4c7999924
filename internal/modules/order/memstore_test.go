package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/activity"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/product"
	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

// world is everything a transaction can touch.
type world struct {
	orders     map[uuid.UUID]*Order
	products   map[uuid.UUID]*product.Product
	ratings    map[uuid.UUID]user.RatingSummary
	activities []*activity.Record
}

func (w *world) clone() *world {
	c := &world{
		orders:     make(map[uuid.UUID]*Order, len(w.orders)),
		products:   make(map[uuid.UUID]*product.Product, len(w.products)),
		ratings:    make(map[uuid.UUID]user.RatingSummary, len(w.ratings)),
		activities: append([]*activity.Record(nil), w.activities...),
	}
	for id, o := range w.orders {
		c.orders[id] = copyOrder(o)
	}
	for id, p := range w.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, r := range w.ratings {
		c.ratings[id] = r
	}
	return c
}

func copyOrder(o *Order) *Order {
	cp := *o
	cp.Lines = make([]*OrderLine, len(o.Lines))
	for i, l := range o.Lines {
		lc := *l
		cp.Lines[i] = &lc
	}
	return &cp
}

type memTxKey struct{}

// memStore implements every collaborator of the order service over one
// mutex-guarded world. A transaction holds the mutex for its whole duration
// and restores the snapshot taken at begin when fn fails.
type memStore struct {
	mu sync.Mutex
	w  *world

	failCreate       error
	failActivityAt   int // 1-based append count that fails; 0 disables
	failDecrement    map[uuid.UUID]error
	conflictOnUpdate bool

	appends    int
	decrements int
	monthStart time.Time
}

func newMemStore() *memStore {
	return &memStore{
		w: &world{
			orders:   map[uuid.UUID]*Order{},
			products: map[uuid.UUID]*product.Product{},
			ratings:  map[uuid.UUID]user.RatingSummary{},
		},
		failDecrement: map[uuid.UUID]error{},
	}
}

func (m *memStore) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.w.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.w = snap
		return err
	}
	return nil
}

// lock takes the mutex unless ctx already runs inside a transaction.
func (m *memStore) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) addProduct(p *product.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.w.products[p.ID] = &cp
}

func (m *memStore) product(id uuid.UUID) product.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.w.products[id]
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.w.orders)
}

func (m *memStore) activityLog() []*activity.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*activity.Record(nil), m.w.activities...)
}

func (m *memStore) rating(id uuid.UUID) user.RatingSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.w.ratings[id]
}

// Catalog

func (m *memStore) CheckAvailability(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (product.Availability, error) {
	defer m.lock(ctx)()
	p, ok := m.w.products[id]
	if !ok {
		return product.Availability{Reason: "product not found"}, nil
	}
	cp := *p
	return product.Evaluate(&cp, qty), nil
}

// StockLedger

func (m *memStore) DecrementStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (product.StockLevel, error) {
	defer m.lock(ctx)()
	if err := m.failDecrement[id]; err != nil {
		return product.StockLevel{}, err
	}
	p, ok := m.w.products[id]
	if !ok {
		return product.StockLevel{}, product.ErrProductNotFound
	}
	m.decrements++
	if p.Stock.Sub(qty).Sign() <= 0 {
		p.Status = product.StatusOutOfStock
	}
	p.Stock = decimal.Max(decimal.Zero, p.Stock.Sub(qty))
	return product.StockLevel{ProductID: id, Stock: p.Stock, Status: p.Status}, nil
}

// RatingBook

func (m *memStore) UpdateRating(ctx context.Context, id uuid.UUID, stars int) (user.RatingSummary, error) {
	defer m.lock(ctx)()
	next := m.w.ratings[id].Add(stars)
	m.w.ratings[id] = next
	return next, nil
}

// ActivityLog

func (m *memStore) Log(ctx context.Context, rec *activity.Record) error {
	defer m.lock(ctx)()
	m.appends++
	if m.failActivityAt != 0 && m.appends == m.failActivityAt {
		return errors.New("activities: connection reset")
	}
	cp := *rec
	m.w.activities = append(m.w.activities, &cp)
	return nil
}

// Repository

func (m *memStore) CreateOrder(ctx context.Context, o *Order) error {
	defer m.lock(ctx)()
	if m.failCreate != nil {
		return m.failCreate
	}
	for _, existing := range m.w.orders {
		if existing.OrderNumber == o.OrderNumber {
			return ErrDuplicateNumber
		}
	}
	m.w.orders[o.ID] = copyOrder(o)
	return nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	defer m.lock(ctx)()
	o, ok := m.w.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	return m.GetOrderByID(ctx, id)
}

func (m *memStore) ListOrders(ctx context.Context, actor Actor, f ListFilter) ([]*Order, int, error) {
	defer m.lock(ctx)()
	var all []*Order
	for _, o := range m.w.orders {
		if o.PartyOf(actor) == PartyNone {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !o.CreatedAt.Before(*f.To) {
			continue
		}
		all = append(all, copyOrder(o))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := min(f.Offset(), len(all))
	end := min(start+f.Limit, len(all))
	return all[start:end], len(all), nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memStore) UpdateStatus(ctx context.Context, o *Order, from Status) error {
	defer m.lock(ctx)()
	stored, ok := m.w.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	if m.conflictOnUpdate || stored.Status != from {
		return ErrStatusConflict
	}
	m.w.orders[o.ID] = copyOrder(o)
	return nil
}

func (m *memStore) SaveRating(ctx context.Context, id uuid.UUID, by Party, stars int, comment string) error {
	defer m.lock(ctx)()
	o, ok := m.w.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != StatusCompleted {
		return ErrAlreadyRated
	}
	switch by {
	case PartyBuyer:
		if o.SellerRating != nil {
			return ErrAlreadyRated
		}
		o.SellerRating, o.SellerRatingComment = &stars, comment
	case PartySeller:
		if o.BuyerRating != nil {
			return ErrAlreadyRated
		}
		o.BuyerRating, o.BuyerRatingComment = &stars, comment
	default:
		return ErrUnauthorized
	}
	return nil
}

func (m *memStore) Stats(ctx context.Context, actor Actor, monthStart time.Time) (*Stats, error) {
	defer m.lock(ctx)()
	m.monthStart = monthStart
	st := &Stats{Role: actor.Role, ByStatus: map[Status]int{}}
	for _, o := range m.w.orders {
		if o.PartyOf(actor) == PartyNone {
			continue
		}
		st.TotalOrders++
		st.ByStatus[o.Status]++
		if o.Status.Active() {
			st.ActiveOrders++
		}
		if o.Status == StatusCompleted {
			st.CompletedRevenue = st.CompletedRevenue.Add(o.Total)
		}
	}
	return st, nil
}
