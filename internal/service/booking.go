package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/theater-seat-booking/internal/cache"
	"github.com/iliyamo/theater-seat-booking/internal/model"
	"github.com/iliyamo/theater-seat-booking/internal/queue"
	"github.com/iliyamo/theater-seat-booking/internal/seating"
)

// Options configures the booking service.
type Options struct {
	Layout  seating.Layout
	HoldTTL time.Duration
	MaxHold time.Duration
	// LookaheadDays is how many days, today included, EnsureSchedule
	// creates shows for.
	LookaheadDays int
	// ShowTemplate supplies title, description, time and duration of
	// generated shows.
	ShowTemplate model.Show
	Clock        func() time.Time
}

// BookingService coordinates inventories, persistence and side effects.
// Operations that take seats first apply the change to the in-memory
// inventory, which decides conflicts, then persist it; when persistence
// fails the inventory change is undone for the seats nobody has touched
// since.  Operations that give seats back persist first and free the seats
// in memory only once the store has agreed, and only the seats still
// owned by the booking or hold being closed.
type BookingService struct {
	shows        ShowStore
	seats        SeatStore
	bookings     BookingStore
	reservations ReservationStore
	events       Publisher
	cache        CacheInvalidator
	opts         Options
	now          func() time.Time

	mu          sync.Mutex
	inventories map[uint64]*seating.Inventory
}

// NewBookingService wires the service.  events and inv may be nil.
func NewBookingService(st Stores, events Publisher, inv CacheInvalidator, opts Options) *BookingService {
	if opts.Layout.Rows == 0 {
		opts.Layout = seating.DefaultLayout()
	}
	if opts.HoldTTL <= 0 {
		opts.HoldTTL = seating.DefaultHoldTTL
	}
	if opts.MaxHold < opts.HoldTTL {
		opts.MaxHold = opts.HoldTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &BookingService{
		shows:        st.Shows,
		seats:        st.Seats,
		bookings:     st.Bookings,
		reservations: st.Reservations,
		events:       events,
		cache:        inv,
		opts:         opts,
		now:          opts.Clock,
		inventories:  make(map[uint64]*seating.Inventory),
	}
}

// Layout returns the theater grid.
func (s *BookingService) Layout() seating.Layout { return s.opts.Layout }

func (s *BookingService) today() string {
	return s.now().UTC().Format(model.DateLayout)
}

// EnsureSchedule creates the shows of the lookahead window that do not
// exist yet.  Existing shows are left alone.
func (s *BookingService) EnsureSchedule(ctx context.Context) error {
	days := s.opts.LookaheadDays
	if days < 1 {
		return nil
	}
	start := s.now().UTC()
	shows := make([]model.Show, 0, days)
	for i := 0; i < days; i++ {
		sh := s.opts.ShowTemplate
		sh.ID = 0
		sh.Date = start.AddDate(0, 0, i).Format(model.DateLayout)
		sh.IsActive = true
		shows = append(shows, sh)
	}
	if err := s.shows.EnsureShows(ctx, shows); err != nil {
		return fmt.Errorf("ensure schedule: %w", err)
	}
	return nil
}

// inventory returns the inventory of a show, loading it from the seat
// store on first use.
func (s *BookingService) inventory(ctx context.Context, showID uint64) (*seating.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.inventories[showID]; ok {
		return inv, nil
	}
	stored, err := s.seats.LoadSeats(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("load seats of show %d: %w", showID, err)
	}
	inv, err := seating.NewInventory(s.opts.Layout, stored,
		seating.WithClock(s.now), seating.WithHoldTTL(s.opts.HoldTTL))
	if err != nil {
		return nil, fmt.Errorf("build inventory of show %d: %w", showID, err)
	}
	s.inventories[showID] = inv
	return inv, nil
}

// normalizeDate turns an empty date into today and rejects malformed ones.
func (s *BookingService) normalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return s.today(), nil
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return "", seating.NewError(seating.ErrValidation, "show", "invalid date format, expected YYYY-MM-DD", nil)
	}
	return date, nil
}

// show resolves the show on date together with its inventory.
func (s *BookingService) show(ctx context.Context, date string) (model.Show, *seating.Inventory, error) {
	date, err := s.normalizeDate(date)
	if err != nil {
		return model.Show{}, nil, err
	}
	sh, err := s.shows.ShowByDate(ctx, date)
	if err != nil {
		return model.Show{}, nil, err
	}
	inv, err := s.inventory(ctx, sh.ID)
	if err != nil {
		return model.Show{}, nil, err
	}
	return sh, inv, nil
}

func (s *BookingService) showByID(ctx context.Context, id uint64) (model.Show, *seating.Inventory, error) {
	sh, err := s.shows.ShowByID(ctx, id)
	if err != nil {
		return model.Show{}, nil, err
	}
	inv, err := s.inventory(ctx, sh.ID)
	if err != nil {
		return model.Show{}, nil, err
	}
	return sh, inv, nil
}

// Availability converts inventory counts into the API shape.
func Availability(st seating.Stats) model.Availability {
	return model.Availability{
		TotalSeats:       st.Total,
		AvailableSeats:   st.Available,
		SoldSeats:        st.Sold,
		ReservedSeats:    st.Reserved,
		OccupancyPercent: st.OccupancyPercent(),
	}
}

// ShowSummary is one entry of a show listing.
type ShowSummary struct {
	model.Show
	Availability *model.Availability `json:"availability,omitempty"`
}

// ShowList is the answer of ListShows.
type ShowList struct {
	Shows []ShowSummary `json:"shows"`
	From  string        `json:"from"`
	Days  int           `json:"days"`
	// FreshFor is how long the list stays accurate; nil means until the
	// next write.
	FreshFor *time.Duration `json:"-"`
}

const (
	defaultListDays = 3
	maxListDays     = 30
)

// ListShows returns the active shows of the next days, today included.
func (s *BookingService) ListShows(ctx context.Context, days int, withStats bool) (ShowList, error) {
	if days <= 0 {
		days = defaultListDays
	}
	if days > maxListDays {
		days = maxListDays
	}
	from := s.today()
	until := s.now().UTC().AddDate(0, 0, days).Format(model.DateLayout)
	shows, err := s.shows.Upcoming(ctx, from, days)
	if err != nil {
		return ShowList{}, err
	}
	out := ShowList{Shows: make([]ShowSummary, 0, len(shows)), From: from, Days: days}
	var invs []*seating.Inventory
	for _, sh := range shows {
		if sh.Date >= until {
			continue
		}
		sum := ShowSummary{Show: sh}
		if withStats {
			inv, err := s.inventory(ctx, sh.ID)
			if err != nil {
				return ShowList{}, err
			}
			a := Availability(inv.Stats())
			sum.Availability = &a
			invs = append(invs, inv)
		}
		out.Shows = append(out.Shows, sum)
	}
	out.FreshFor = s.freshFor(invs...)
	return out, nil
}

// freshFor returns the time left until the first running hold in invs
// lapses and silently changes what a reader would see, or nil if no hold
// is running.
func (s *BookingService) freshFor(invs ...*seating.Inventory) *time.Duration {
	var first time.Time
	for _, inv := range invs {
		if t, ok := inv.NextExpiry(); ok && (first.IsZero() || t.Before(first)) {
			first = t
		}
	}
	if first.IsZero() {
		return nil
	}
	d := first.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return &d
}

// SeatFilter narrows a seat listing.  Zero values match everything.
type SeatFilter struct {
	Category seating.Category
	Status   seating.Status
	MinPrice *int
	MaxPrice *int
}

// Validate rejects categories and statuses that do not exist.
func (f SeatFilter) Validate() error {
	switch f.Category {
	case "", seating.CategoryPremium, seating.CategoryStandard, seating.CategoryEconomy:
	default:
		return seating.NewError(seating.ErrValidation, "filter seats", "unknown category "+string(f.Category), nil)
	}
	switch f.Status {
	case "", seating.StatusAvailable, seating.StatusReserved, seating.StatusSold:
	default:
		return seating.NewError(seating.ErrValidation, "filter seats", "unknown status "+string(f.Status), nil)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return seating.NewError(seating.ErrValidation, "filter seats", "minPrice is greater than maxPrice", nil)
	}
	return nil
}

func (f SeatFilter) match(st seating.Seat) bool {
	if f.Category != "" && st.Category != f.Category {
		return false
	}
	if f.Status != "" && st.Status != f.Status {
		return false
	}
	if f.MinPrice != nil && st.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && st.Price > *f.MaxPrice {
		return false
	}
	return true
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

func (f SeatFilter) priceRange() string {
	if f.MinPrice == nil && f.MaxPrice == nil {
		return "all"
	}
	lo, hi := "0", "∞"
	if f.MinPrice != nil {
		lo = strconv.Itoa(*f.MinPrice)
	}
	if f.MaxPrice != nil {
		hi = strconv.Itoa(*f.MaxPrice)
	}
	return lo + "-" + hi
}

// SeatStatistics counts the seats of a show by status.
type SeatStatistics struct {
	Total            int `json:"total"`
	Available        int `json:"available"`
	Sold             int `json:"sold"`
	Reserved         int `json:"reserved"`
	OccupancyPercent int `json:"occupancy_percent"`
}

// AppliedFilters echoes the filters of a seat listing.
type AppliedFilters struct {
	Date       string `json:"date"`
	Category   string `json:"category"`
	Status     string `json:"status"`
	PriceRange string `json:"price_range"`
}

// SeatListing is the answer of ListSeats.  Statistics cover the whole show,
// Categories only the seats that passed the filter.
type SeatListing struct {
	Show       model.Show               `json:"show"`
	Seats      []seating.Seat           `json:"seats"`
	Statistics SeatStatistics           `json:"statistics"`
	Categories map[seating.Category]int `json:"categories"`
	Filters    AppliedFilters           `json:"filters_applied"`
	FreshFor   *time.Duration           `json:"-"`
}

// ListSeats returns the seats of the show on date, lazily expired.
func (s *BookingService) ListSeats(ctx context.Context, date string, f SeatFilter) (SeatListing, error) {
	if err := f.Validate(); err != nil {
		return SeatListing{}, err
	}
	sh, inv, err := s.show(ctx, date)
	if err != nil {
		return SeatListing{}, err
	}
	all := inv.Seats()
	out := SeatListing{
		Show:       sh,
		Seats:      make([]seating.Seat, 0, len(all)),
		Categories: map[seating.Category]int{},
		Filters: AppliedFilters{
			Date:       sh.Date,
			Category:   orAll(string(f.Category)),
			Status:     orAll(string(f.Status)),
			PriceRange: f.priceRange(),
		},
	}
	for _, st := range all {
		if f.match(st) {
			out.Seats = append(out.Seats, st)
			out.Categories[st.Category]++
		}
	}
	stats := inv.Stats()
	out.Statistics = SeatStatistics{
		Total:            stats.Total,
		Available:        stats.Available,
		Sold:             stats.Sold,
		Reserved:         stats.Reserved,
		OccupancyPercent: stats.OccupancyPercent(),
	}
	out.FreshFor = s.freshFor(inv)
	return out, nil
}

// Block is a set of seats with their combined price.
type Block struct {
	Date       string           `json:"date"`
	SeatIDs    []seating.SeatID `json:"seatIds"`
	Seats      []seating.Seat   `json:"seats"`
	TotalPrice int              `json:"totalPrice"`
	FreshFor   *time.Duration   `json:"-"`
}

func (s *BookingService) block(date string, inv *seating.Inventory, ids []seating.SeatID) (Block, error) {
	b := Block{Date: date, SeatIDs: ids, Seats: make([]seating.Seat, 0, len(ids))}
	for _, id := range ids {
		st, _ := inv.Get(id)
		b.Seats = append(b.Seats, st)
	}
	total, err := inv.TotalPrice(ids)
	if err != nil {
		return Block{}, err
	}
	b.TotalPrice = total
	return b, nil
}

// Preview runs the block selector for a hovered anchor seat.  An empty
// block means no k adjacent seats around the anchor are free.
func (s *BookingService) Preview(ctx context.Context, date string, anchor seating.SeatID, k int) (Block, error) {
	sh, inv, err := s.show(ctx, date)
	if err != nil {
		return Block{}, err
	}
	ids, err := seating.NewBlockSelector(inv).Select(anchor, k)
	if err != nil {
		return Block{}, err
	}
	b, err := s.block(sh.Date, inv, ids)
	if err != nil {
		return Block{}, err
	}
	b.FreshFor = s.freshFor(inv)
	return b, nil
}

// Select checks that every seat can be selected by p right now.  Nothing
// is stored; the answer is the priced selection.
func (s *BookingService) Select(ctx context.Context, p model.Principal, date string, ids []seating.SeatID) (Block, error) {
	sh, inv, err := s.show(ctx, date)
	if err != nil {
		return Block{}, err
	}
	if err := inv.SetStatus(ids, seating.StatusSelected, p.KeyID); err != nil {
		return Block{}, err
	}
	return s.block(sh.Date, inv, seating.SortedUnique(ids))
}

var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validateCustomer(op string, c model.CustomerInfo) error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" {
		return seating.NewError(seating.ErrValidation, op, "customerInfo with name and email is required", nil)
	}
	if !emailRE.MatchString(c.Email) {
		return seating.NewError(seating.ErrValidation, op, "invalid email format", nil)
	}
	return nil
}

// newBookingID returns "BK" followed by the millisecond clock and six
// random uppercase hex characters.
func newBookingID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "BK" + strconv.FormatInt(now.UnixMilli(), 10) + suffix
}

// BookRequest is the input of Book.
type BookRequest struct {
	Date     string
	SeatIDs  []seating.SeatID
	Customer model.CustomerInfo
	Notes    string
}

// Book sells the seats to the customer in one step.  Any seat that is
// sold, or held by someone else, fails the whole booking with a conflict
// naming those seats.
func (s *BookingService) Book(ctx context.Context, p model.Principal, req BookRequest) (model.Booking, error) {
	if len(req.SeatIDs) == 0 {
		return model.Booking{}, seating.NewError(seating.ErrValidation, "book", "seatIds must be a non-empty list", nil)
	}
	if err := validateCustomer("book", req.Customer); err != nil {
		return model.Booking{}, err
	}
	sh, inv, err := s.show(ctx, req.Date)
	if err != nil {
		return model.Booking{}, err
	}
	ids := seating.SortedUnique(req.SeatIDs)
	now := s.now().UTC()
	id := newBookingID(now)
	undo, err := inv.Sell(ids, p.KeyID, id)
	if err != nil {
		return model.Booking{}, err
	}
	b, err := s.newBooking(sh, inv, id, now, p.KeyID, ids, req.Customer, req.Notes)
	if err == nil {
		err = s.bookings.CreateBooking(ctx, &b)
	}
	if err != nil {
		rollback("book", undo)
		return model.Booking{}, fmt.Errorf("persist booking: %w", err)
	}
	log.Printf("booking: confirmed id=%s show=%s seats=%d total=%d", b.ID, sh.Date, len(ids), b.TotalPrice)
	s.afterChange(ctx, sh, bookingEvent(queue.EventBookingConfirmed, sh, b))
	return b, nil
}

func (s *BookingService) newBooking(sh model.Show, inv *seating.Inventory, id string, now time.Time, keyID string, ids []seating.SeatID, c model.CustomerInfo, notes string) (model.Booking, error) {
	blk, err := s.block(sh.Date, inv, ids)
	if err != nil {
		return model.Booking{}, err
	}
	return model.Booking{
		ID:           id,
		ShowID:       sh.ID,
		APIKeyID:     keyID,
		SeatIDs:      ids,
		Seats:        blk.Seats,
		CustomerInfo: c,
		TotalPrice:   blk.TotalPrice,
		Status:       model.BookingConfirmed,
		BookedAt:     now,
		Notes:        notes,
	}, nil
}

// ReserveRequest is the input of Reserve.  A zero Duration means the
// default hold.
type ReserveRequest struct {
	Date              string
	SeatIDs           []seating.SeatID
	Duration          time.Duration
	ExternalBookingID string
	Metadata          map[string]any
}

// Reserve holds the seats for p until the hold lapses, the reservation is
// finalized or it is released.
func (s *BookingService) Reserve(ctx context.Context, p model.Principal, req ReserveRequest) (model.Reservation, error) {
	if len(req.SeatIDs) == 0 {
		return model.Reservation{}, seating.NewError(seating.ErrValidation, "reserve", "seatIds must be a non-empty list", nil)
	}
	d := req.Duration
	switch {
	case d < 0:
		return model.Reservation{}, seating.NewError(seating.ErrValidation, "reserve", "duration must be positive", nil)
	case d == 0:
		d = s.opts.HoldTTL
	case d > s.opts.MaxHold:
		return model.Reservation{}, seating.NewError(seating.ErrValidation, "reserve",
			fmt.Sprintf("duration exceeds the maximum hold of %d minutes", int(s.opts.MaxHold/time.Minute)), nil)
	}
	sh, inv, err := s.show(ctx, req.Date)
	if err != nil {
		return model.Reservation{}, err
	}
	now := s.now().UTC()
	// the store keeps whole seconds; the hold must match the stored deadline
	expires := now.Add(d).Truncate(time.Second)
	ids := seating.SortedUnique(req.SeatIDs)
	undo, err := inv.Apply(ids, seating.StatusReserved, p.KeyID, expires)
	if err != nil {
		return model.Reservation{}, err
	}
	res := model.Reservation{
		ID:                uuid.NewString(),
		ShowID:            sh.ID,
		APIKeyID:          p.KeyID,
		SeatIDs:           ids,
		ExternalBookingID: req.ExternalBookingID,
		Metadata:          req.Metadata,
		Status:            model.ReservationActive,
		ExpiresAt:         expires,
		CreatedAt:         now,
	}
	if err := s.reservations.CreateReservation(ctx, &res); err != nil {
		rollback("reserve", undo)
		return model.Reservation{}, fmt.Errorf("persist reservation: %w", err)
	}
	s.afterChange(ctx, sh, queue.Event{
		Type:          queue.EventReservationCreated,
		ShowID:        sh.ID,
		ShowDate:      sh.Date,
		ReservationID: res.ID,
		APIKeyID:      p.KeyID,
		Seats:         seatNames(ids),
	})
	return res, nil
}

// ownReservation loads a reservation that p may act on.
func (s *BookingService) ownReservation(ctx context.Context, p model.Principal, op, id string) (model.Reservation, error) {
	res, err := s.reservations.ReservationByID(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if res.APIKeyID != p.KeyID && !p.Permissions.Admin {
		return model.Reservation{}, seating.NewError(seating.ErrForbidden, op, "reservation belongs to another api key", nil)
	}
	switch res.Status {
	case model.ReservationConsumed:
		return model.Reservation{}, seating.NewError(seating.ErrConflict, op, "reservation already finalized", nil)
	case model.ReservationReleased:
		return model.Reservation{}, seating.NewError(seating.ErrConflict, op, "reservation already released", nil)
	}
	return res, nil
}

// Finalize turns an active reservation into a booking.  A reservation past
// its deadline cannot be finalized even if nobody has taken its seats.
func (s *BookingService) Finalize(ctx context.Context, p model.Principal, id string, c model.CustomerInfo, notes string) (model.Booking, error) {
	res, err := s.ownReservation(ctx, p, "finalize", id)
	if err != nil {
		return model.Booking{}, err
	}
	if !res.ActiveAt(s.now()) {
		return model.Booking{}, seating.NewError(seating.ErrConflict, "finalize", "reservation expired", res.SeatIDs)
	}
	if err := validateCustomer("finalize", c); err != nil {
		return model.Booking{}, err
	}
	sh, inv, err := s.showByID(ctx, res.ShowID)
	if err != nil {
		return model.Booking{}, err
	}
	now := s.now().UTC()
	bookingID := newBookingID(now)
	undo, err := inv.Sell(res.SeatIDs, res.APIKeyID, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	b, err := s.newBooking(sh, inv, bookingID, now, res.APIKeyID, res.SeatIDs, c, notes)
	if err == nil {
		b.ReservationID = res.ID
		err = s.bookings.CreateBooking(ctx, &b)
	}
	if err != nil {
		rollback("finalize", undo)
		return model.Booking{}, fmt.Errorf("persist booking: %w", err)
	}
	log.Printf("booking: reservation %s finalized as %s", res.ID, b.ID)
	s.afterChange(ctx, sh, bookingEvent(queue.EventBookingConfirmed, sh, b))
	return b, nil
}

// ReleaseReservation gives the held seats back.  Only seats still held
// under this reservation are freed: a seat the holder has since bought, or
// one that lapsed and was taken by someone else, keeps its new state.
func (s *BookingService) ReleaseReservation(ctx context.Context, p model.Principal, id string) (model.Reservation, error) {
	res, err := s.ownReservation(ctx, p, "release", id)
	if err != nil {
		return model.Reservation{}, err
	}
	sh, inv, err := s.showByID(ctx, res.ShowID)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := s.reservations.ReleaseReservation(ctx, &res); err != nil {
		return model.Reservation{}, fmt.Errorf("release reservation: %w", err)
	}
	freed := inv.ReleaseHold(res.SeatIDs, res.APIKeyID, res.ExpiresAt)
	res.Status = model.ReservationReleased
	log.Printf("booking: reservation %s released show=%s seats=%d", res.ID, sh.Date, len(freed))
	s.invalidate(ctx, sh.Date)
	return res, nil
}

const defaultCancelReason = "Cancelled via API"

// Cancel cancels a confirmed booking and frees its seats.  Seats that no
// longer belong to the booking, after an administrative reset and a new
// sale for example, are left alone.
func (s *BookingService) Cancel(ctx context.Context, p model.Principal, bookingID, reason string) (model.Cancellation, error) {
	if strings.TrimSpace(bookingID) == "" {
		return model.Cancellation{}, seating.NewError(seating.ErrValidation, "cancel", "bookingId is required", nil)
	}
	b, err := s.bookings.BookingByID(ctx, bookingID)
	if err != nil {
		return model.Cancellation{}, err
	}
	if b.APIKeyID != p.KeyID && !p.Permissions.Admin {
		return model.Cancellation{}, seating.NewError(seating.ErrForbidden, "cancel", "booking belongs to another api key", nil)
	}
	if b.Status == model.BookingCancelled {
		return model.Cancellation{}, seating.NewError(seating.ErrConflict, "cancel", "booking already cancelled", nil)
	}
	sh, inv, err := s.showByID(ctx, b.ShowID)
	if err != nil {
		return model.Cancellation{}, err
	}

	if strings.TrimSpace(reason) == "" {
		reason = defaultCancelReason
	}
	now := s.now().UTC()
	b.CancelledAt = &now
	b.CancelReason = reason
	if err := s.bookings.CancelBooking(ctx, &b); err != nil {
		return model.Cancellation{}, fmt.Errorf("cancel booking: %w", err)
	}
	freed := inv.ReleaseSold(b.SeatIDs, b.ID)
	b.Status = model.BookingCancelled
	log.Printf("booking: cancelled id=%s show=%s seats=%d", b.ID, sh.Date, len(freed))

	ev := bookingEvent(queue.EventBookingCancelled, sh, b)
	ev.Reason = reason
	s.afterChange(ctx, sh, ev)
	return model.Cancellation{
		BookingID:    b.ID,
		Status:       model.BookingCancelled,
		CancelledAt:  now,
		Reason:       reason,
		RefundAmount: b.TotalPrice,
		RefundStatus: "pending",
	}, nil
}

// GetBooking returns a booking of p with the current state of its seats.
func (s *BookingService) GetBooking(ctx context.Context, p model.Principal, id string) (model.Booking, error) {
	b, err := s.bookings.BookingByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.APIKeyID != p.KeyID && !p.Permissions.Admin {
		// same answer as an unknown id
		return model.Booking{}, seating.NewError(seating.ErrNotFound, "get booking", "booking not found", nil)
	}
	inv, err := s.inventory(ctx, b.ShowID)
	if err != nil {
		return model.Booking{}, err
	}
	b.Seats = make([]seating.Seat, 0, len(b.SeatIDs))
	for _, id := range b.SeatIDs {
		if st, ok := inv.Get(id); ok {
			b.Seats = append(b.Seats, st)
		}
	}
	return b, nil
}

// ResetResult reports an administrative reset.
type ResetResult struct {
	Date    string           `json:"date"`
	SeatIDs []seating.SeatID `json:"seatIds"`
	Count   int              `json:"count"`
}

// ResetShow returns every sold seat of the show on date to available.
// Only admin keys may do this.  Reservations are not touched.
func (s *BookingService) ResetShow(ctx context.Context, p model.Principal, date string) (ResetResult, error) {
	if !p.Permissions.Admin {
		return ResetResult{}, seating.NewError(seating.ErrForbidden, "reset", "admin permission required", nil)
	}
	sh, inv, err := s.show(ctx, date)
	if err != nil {
		return ResetResult{}, err
	}
	reset, undo := inv.ResetSold()
	if len(reset) > 0 {
		if err := s.seats.ReleaseSeats(ctx, sh.ID, reset); err != nil {
			rollback("reset", undo)
			return ResetResult{}, fmt.Errorf("reset seats: %w", err)
		}
	}
	ids := seating.IDs(reset)
	log.Printf("booking: admin reset show=%s by=%s seats=%d", sh.Date, p.KeyID, len(ids))
	s.afterChange(ctx, sh, queue.Event{
		Type:     queue.EventSeatsReset,
		ShowID:   sh.ID,
		ShowDate: sh.Date,
		APIKeyID: p.KeyID,
		Seats:    seatNames(ids),
	})
	return ResetResult{Date: sh.Date, SeatIDs: ids, Count: len(ids)}, nil
}

// rollback undoes an inventory change whose write failed.  Seats that
// moved on in the meantime keep their new state.
func rollback(op string, undo seating.Undo) {
	if err := undo(); err != nil {
		log.Printf("booking: %s rollback: %v", op, err)
	}
}

// publishTimeout bounds how long a request waits for the broker.
const publishTimeout = 5 * time.Second

// afterChange publishes ev and drops the cached views of the show.  Both
// are best effort: the change is already committed.
func (s *BookingService) afterChange(ctx context.Context, sh model.Show, ev queue.Event) {
	ev.OccurredAt = s.now().UTC().Format(time.RFC3339)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		log.Printf("booking: publish %s failed: %v", ev.Type, err)
	}
	s.invalidate(ctx, sh.Date)
}

func (s *BookingService) invalidate(ctx context.Context, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), cache.SeatsScope(date), cache.ShowsScope); err != nil {
		log.Printf("booking: cache invalidation for %s failed: %v", date, err)
	}
}

func bookingEvent(typ string, sh model.Show, b model.Booking) queue.Event {
	return queue.Event{
		Type:          typ,
		ShowID:        sh.ID,
		ShowDate:      sh.Date,
		BookingID:     b.ID,
		ReservationID: b.ReservationID,
		APIKeyID:      b.APIKeyID,
		Customer:      b.CustomerInfo.Email,
		Seats:         seatNames(b.SeatIDs),
		TotalPrice:    b.TotalPrice,
	}
}

func seatNames(ids []seating.SeatID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
