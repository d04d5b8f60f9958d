package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domainbooking "carhire/internal/domain/booking"
	domainfleet "carhire/internal/domain/fleet"
	"carhire/internal/domain/shared/events"
)

// CarRepository is an in-memory fleet store. Stored cars are copies, so
// callers never share mutable state.
type CarRepository struct {
	mu    sync.RWMutex
	items map[domainfleet.CarID]*domainfleet.Car
}

// NewCarRepository builds a repository seeded with cars.
func NewCarRepository(cars ...*domainfleet.Car) *CarRepository {
	repo := &CarRepository{items: make(map[domainfleet.CarID]*domainfleet.Car, len(cars))}
	for _, car := range cars {
		repo.items[car.ID] = car.Clone()
	}
	return repo
}

// ByID returns a car or domainfleet.ErrCarNotFound.
func (r *CarRepository) ByID(ctx context.Context, id domainfleet.CarID) (*domainfleet.Car, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	car, ok := r.items[id]
	if !ok {
		return nil, domainfleet.ErrCarNotFound
	}
	return car.Clone(), nil
}

// List returns all cars ordered by id.
func (r *CarRepository) List(ctx context.Context) ([]*domainfleet.Car, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainfleet.Car, 0, len(r.items))
	for _, car := range r.items {
		out = append(out, car.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save stores the car when its version matches the stored one.
func (r *CarRepository) Save(ctx context.Context, car *domainfleet.Car) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.items[car.ID]; ok && current.Version != car.Version {
		return domainfleet.ErrConcurrentUpdate
	}
	car.Version++
	r.items[car.ID] = car.Clone()
	return nil
}

// BookingRepository stores bookings in memory.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

// NewBookingRepository builds an empty booking repo.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

// ByID fetches a booking.
func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

// ByReference matches the reference case-insensitively.
func (r *BookingRepository) ByReference(ctx context.Context, reference string) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.items {
		if strings.EqualFold(b.Reference, strings.TrimSpace(reference)) {
			return cloneBooking(b), nil
		}
	}
	return nil, domainbooking.ErrBookingNotFound
}

// List returns matching bookings, newest first.
func (r *BookingRepository) List(ctx context.Context, filter domainbooking.Filter) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0, len(r.items))
	for _, b := range r.items {
		if filter.Match(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Save stores the current booking state.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.items[b.ID]; ok && current.Version != b.Version {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	r.items[b.ID] = cloneBooking(b)
	return nil
}

func (r *BookingRepository) Delete(ctx context.Context, id domainbooking.BookingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domainbooking.ErrBookingNotFound
	}
	delete(r.items, id)
	return nil
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	cp := *b
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}

var (
	_ domainfleet.Repository   = (*CarRepository)(nil)
	_ domainbooking.Repository = (*BookingRepository)(nil)
)
