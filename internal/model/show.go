package model

// Show is one performance.  There is at most one active show per calendar
// date and shows are addressed by that date in the API.
//
// Fields:
//  ID              – primary key identifier.
//  Title           – name of the production.
//  Description     – free text shown to customers.
//  Date            – performance date, "YYYY-MM-DD".
//  Time            – curtain time, "HH:MM:SS".
//  DurationMinutes – running time.
//  IsActive        – inactive shows are not bookable and not listed.
type Show struct {
	ID              uint64 `json:"id"`               // shows.id
	Title           string `json:"title"`            // shows.title
	Description     string `json:"description"`      // shows.description
	Date            string `json:"date"`             // shows.show_date
	Time            string `json:"time"`             // shows.show_time
	DurationMinutes int    `json:"duration_minutes"` // shows.duration_minutes
	IsActive        bool   `json:"-"`                // shows.is_active
}

// DateLayout is the format of Show.Date.
const DateLayout = "2006-01-02"

// Availability summarizes the seat counts of a show.
type Availability struct {
	TotalSeats       int `json:"total_seats"`
	AvailableSeats   int `json:"available_seats"`
	SoldSeats        int `json:"sold_seats"`
	ReservedSeats    int `json:"reserved_seats"`
	OccupancyPercent int `json:"occupancy_percent"`
}
