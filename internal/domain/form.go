package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"example.com/officereport/internal/period"
)

// FormValue is a raw form field. It decodes from a JSON string or number.
type FormValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *FormValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*v = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("form value must be a string or number: %w", err)
	}
	*v = FormValue(n.String())
	return nil
}

// Form is the raw input of one report submission. The office is never part
// of the form; it comes from the caller's Identity.
type Form struct {
	Counters map[string]FormValue `json:"counters"`
	Revenue  FormValue            `json:"revenue"`
	Visitors VisitorInput         `json:"visitors"`
}

// Build turns a form into a record ready for persistence. The period key is
// computed from now and fixed for the record's lifetime.
func Build(id Identity, form Form, policy period.Policy, now time.Time) (Record, error) {
	office := strings.TrimSpace(id.Office)
	if office == "" {
		return Record{}, &ValidationError{Field: "office", Reason: "an authenticated office is required"}
	}
	if id.Admin {
		return Record{}, &ValidationError{Field: "office", Reason: "administrators cannot submit office reports"}
	}

	var counters Counters
	for _, name := range slices.Sorted(maps.Keys(form.Counters)) {
		key := strings.ToLower(strings.TrimSpace(name))
		value, err := parseCount(form.Counters[name])
		if err != nil {
			return Record{}, &ValidationError{Field: key, Reason: err.Error()}
		}
		if !counters.set(key, value) {
			return Record{}, &ValidationError{Field: key, Reason: "unknown counter"}
		}
	}

	revenue, err := parseRevenue(form.Revenue)
	if err != nil {
		return Record{}, &ValidationError{Field: "revenue", Reason: err.Error()}
	}

	return Record{
		Office:    office,
		Counters:  counters,
		Revenue:   revenue,
		PeriodKey: period.Key(now, policy),
		Visitors:  form.Visitors.Normalize(),
	}, nil
}

func parseCount(raw FormValue) (int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%s is out of range (max %d)", s, math.MaxInt32)
	}
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("must be >= 0, got %d", n)
	}
	return int(n), nil
}

func parseRevenue(raw FormValue) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must be >= 0, got %s", d)
	}
	return d, nil
}
