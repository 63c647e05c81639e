/*
policy.go - Leave policy catalog and day-counting rules

PURPOSE:
  Defines the static configuration that governs each leave type: annual
  entitlement, carryover limits, and paid/unpaid classification. The catalog
  is read-only input to the ledger and engine - changing a policy never
  retroactively rewrites committed ledger rows.

DAY COUNTING:
  How a date range converts into chargeable days is a policy decision, not
  an engine decision, so it lives behind the DayCounter hook:

    CalendarDays:  inclusive calendar count, (end - start).days + 1.
                   This is the v1 default.
    BusinessDays:  inclusive count excluding weekends and holidays from a
                   HolidayCalendar. Available for deployments that charge
                   working days only.

  The two produce different balances for identical ranges; a deployment
  must pick one and keep it.

SEE ALSO:
  - ledger.go: Consumes entitlement and carryover limits at rollover
  - factory/catalog.go: JSON catalog configuration
*/
package leave

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// LEAVE TYPE - Policy definition for one kind of leave
// =============================================================================

// LeaveType defines the policy for a single leave category. Immutable once
// referenced by a committed ledger entry for a closed year.
type LeaveType struct {
	Code                  LeaveTypeCode
	Name                  string
	AnnualEntitlementDays Days
	MaxCarryoverDays      Days
	CarryForwardAllowed   bool
	IsPaid                bool
}

// Validate checks structural soundness of a policy definition.
func (lt LeaveType) Validate() error {
	if lt.Code == "" {
		return fmt.Errorf("leave type code is required")
	}
	if lt.AnnualEntitlementDays.IsNegative() {
		return fmt.Errorf("leave type %s: negative entitlement", lt.Code)
	}
	if lt.MaxCarryoverDays.IsNegative() {
		return fmt.Errorf("leave type %s: negative carryover limit", lt.Code)
	}
	return nil
}

// =============================================================================
// CATALOG - Read-only policy lookup
// =============================================================================

// Catalog provides leave type definitions to the engine and rollover.
type Catalog interface {
	// Get returns the leave type for code, or ErrNotFound.
	Get(code LeaveTypeCode) (LeaveType, error)

	// List returns all configured leave types, ordered by code.
	List() []LeaveType
}

// StaticCatalog is an in-memory Catalog built from a fixed set of types.
type StaticCatalog struct {
	types map[LeaveTypeCode]LeaveType
}

func NewStaticCatalog(types ...LeaveType) (*StaticCatalog, error) {
	c := &StaticCatalog{types: make(map[LeaveTypeCode]LeaveType, len(types))}
	for _, lt := range types {
		if err := lt.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.types[lt.Code]; dup {
			return nil, fmt.Errorf("duplicate leave type code %s", lt.Code)
		}
		c.types[lt.Code] = lt
	}
	return c, nil
}

func (c *StaticCatalog) Get(code LeaveTypeCode) (LeaveType, error) {
	lt, ok := c.types[code]
	if !ok {
		return LeaveType{}, fmt.Errorf("leave type %s: %w", code, ErrNotFound)
	}
	return lt, nil
}

func (c *StaticCatalog) List() []LeaveType {
	out := make([]LeaveType, 0, len(c.types))
	for _, lt := range c.types {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// DefaultCatalog returns a typical starter configuration.
func DefaultCatalog() *StaticCatalog {
	c, _ := NewStaticCatalog(
		LeaveType{Code: "VL", Name: "Vacation Leave", AnnualEntitlementDays: DaysFromInt(15), MaxCarryoverDays: DaysFromInt(5), CarryForwardAllowed: true, IsPaid: true},
		LeaveType{Code: "SL", Name: "Sick Leave", AnnualEntitlementDays: DaysFromInt(10), MaxCarryoverDays: ZeroDays(), CarryForwardAllowed: false, IsPaid: true},
		LeaveType{Code: "EL", Name: "Emergency Leave", AnnualEntitlementDays: DaysFromInt(5), MaxCarryoverDays: ZeroDays(), CarryForwardAllowed: false, IsPaid: true},
		LeaveType{Code: "LWOP", Name: "Leave Without Pay", AnnualEntitlementDays: DaysFromInt(30), MaxCarryoverDays: ZeroDays(), CarryForwardAllowed: false, IsPaid: false},
	)
	return c
}

// =============================================================================
// DAY COUNTING - Policy hook for range-to-days conversion
// =============================================================================

// DayCounter converts an inclusive date range into chargeable days.
type DayCounter interface {
	Count(r DateRange) Days
}

// CalendarDays charges every calendar day in the range, both endpoints
// inclusive. No weekend or holiday exclusion.
type CalendarDays struct{}

func (CalendarDays) Count(r DateRange) Days {
	return DaysFromInt(r.DayCount())
}

// HolidayCalendar answers whether a given date is a non-working holiday.
type HolidayCalendar interface {
	IsHoliday(day time.Time) bool
}

// NoHolidays is the empty calendar.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }

// BusinessDays charges only weekdays that are not holidays.
type BusinessDays struct {
	Calendar HolidayCalendar
}

func (b BusinessDays) Count(r DateRange) Days {
	cal := b.Calendar
	if cal == nil {
		cal = NoHolidays{}
	}
	n := 0
	for day := r.Start; !day.After(r.End); day = day.AddDate(0, 0, 1) {
		wd := day.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if cal.IsHoliday(day) {
			continue
		}
		n++
	}
	return DaysFromInt(n)
}
