package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Counter names accepted from report forms.
const (
	CounterConsultations = "consultations"
	CounterFollowUps     = "follow_ups"
	CounterMessages      = "messages"
	CounterCalls         = "calls"
)

// CounterNames lists the counters in display order.
var CounterNames = []string{CounterConsultations, CounterFollowUps, CounterMessages, CounterCalls}

// Counters holds the non-negative activity tallies of one report.
type Counters struct {
	Consultations int `json:"consultations"`
	FollowUps     int `json:"follow_ups"`
	Messages      int `json:"messages"`
	Calls         int `json:"calls"`
}

// Add returns the element-wise sum of c and o.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Consultations: c.Consultations + o.Consultations,
		FollowUps:     c.FollowUps + o.FollowUps,
		Messages:      c.Messages + o.Messages,
		Calls:         c.Calls + o.Calls,
	}
}

// Get returns the counter with the given name and whether the name is known.
func (c Counters) Get(name string) (int, bool) {
	switch name {
	case CounterConsultations:
		return c.Consultations, true
	case CounterFollowUps:
		return c.FollowUps, true
	case CounterMessages:
		return c.Messages, true
	case CounterCalls:
		return c.Calls, true
	}
	return 0, false
}

func (c *Counters) set(name string, v int) bool {
	switch name {
	case CounterConsultations:
		c.Consultations = v
	case CounterFollowUps:
		c.FollowUps = v
	case CounterMessages:
		c.Messages = v
	case CounterCalls:
		c.Calls = v
	default:
		return false
	}
	return true
}

// Visitor is a walk-in person attached to a report.
type Visitor struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Record is one submitted office report.
type Record struct {
	ID        string
	Office    string
	Counters  Counters
	Revenue   decimal.Decimal
	PeriodKey string
	Visitors  []Visitor
	CreatedAt time.Time
}

// Identity is the authenticated caller. Offices read and write their own
// records; administrators read every office.
type Identity struct {
	Office string
	Admin  bool
}

// Query filters records. An empty Office matches every office.
type Query struct {
	Office string
}

// RecordStore persists and reads records.
type RecordStore interface {
	// Insert stores rec and returns it with ID and CreatedAt assigned.
	Insert(ctx context.Context, rec Record) (Record, error)
	// Query returns matching records ordered by CreatedAt descending.
	Query(ctx context.Context, q Query) ([]Record, error)
}

// VisitorStore is implemented by stores that keep visitors in a collection
// separate from their parent record.
type VisitorStore interface {
	AttachVisitors(ctx context.Context, recordID string, visitors []Visitor) error
}
