package domain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ougirez/aedsync/internal/pkg/utils"
)

type AvailabilityStatus string

const (
	StatusParsed       AvailabilityStatus = "parsed"
	StatusUncertain    AvailabilityStatus = "uncertain"
	StatusClosedForUse AvailabilityStatus = "closed_for_use"

	minutesPerDay = 24 * 60
)

// Availability is the structured form of a free-text availability phrase.
type Availability struct {
	OriginalText    string             `json:"original_text"`
	Status          AvailabilityStatus `json:"status" validate:"required,oneof=parsed uncertain closed_for_use"`
	Is247           bool               `json:"is_24_7"`
	UncertainReason string             `json:"uncertain_reason,omitempty"`
	Rules           []Rule             `json:"rules" validate:"dive"`
}

// Rule is one opening window. Days use Monday=1 .. Sunday=7; a month range
// with StartMonth > EndMonth wraps over the new year.
type Rule struct {
	Days       []int  `json:"days" validate:"dive,min=1,max=7"`
	StartMonth *int   `json:"start_month,omitempty" validate:"omitempty,min=1,max=12"`
	StartDay   *int   `json:"start_day,omitempty" validate:"omitempty,min=1,max=31"`
	EndMonth   *int   `json:"end_month,omitempty" validate:"omitempty,min=1,max=12"`
	EndDay     *int   `json:"end_day,omitempty" validate:"omitempty,min=1,max=31"`
	OpenTime   string `json:"open_time,omitempty" validate:"omitempty,hhmm"`
	CloseTime  string `json:"close_time,omitempty" validate:"omitempty,hhmm"`
}

var ErrConflicting247 = errors.New("is_24_7 set together with a time-restricted rule")

// Validate checks field formats and the 24/7 invariant.
func (a *Availability) Validate() error {
	if err := utils.Validator().Struct(a); err != nil {
		return fmt.Errorf("validate availability: %w", err)
	}
	if a.Is247 {
		for i, r := range a.Rules {
			if r.restricted() {
				return fmt.Errorf("rule %d: %w", i, ErrConflicting247)
			}
		}
	}
	return nil
}

// Normalize fills the echo of the input text, drops fields that only make
// sense for other statuses and turns days into a sorted set.
func (a *Availability) Normalize(text string) {
	if strings.TrimSpace(a.OriginalText) == "" {
		a.OriginalText = text
	}
	if a.Status != StatusUncertain {
		a.UncertainReason = ""
	}
	if a.Rules == nil {
		a.Rules = []Rule{}
	}
	for i := range a.Rules {
		days := slices.Clone(a.Rules[i].Days)
		slices.Sort(days)
		a.Rules[i].Days = slices.Compact(days)
		if a.Rules[i].Days == nil {
			a.Rules[i].Days = []int{}
		}
	}
}

// OpenAt reports whether the AED can be used at t. Only parsed entries can be
// open; uncertain and closed_for_use entries never are.
func (a Availability) OpenAt(t time.Time) bool {
	if a.Status != StatusParsed {
		return false
	}
	if a.Is247 {
		return true
	}
	for _, r := range a.Rules {
		if r.Matches(t) {
			return true
		}
	}
	return false
}

// Matches handles overnight windows (close before open): the part after
// midnight belongs to the previous day's rule.
func (r Rule) Matches(t time.Time) bool {
	open, closing, err := r.window()
	if err != nil {
		return false
	}

	now := t.Hour()*60 + t.Minute()
	switch {
	case open < closing:
		return now >= open && now < closing && r.coversDay(t)
	case open == closing:
		return r.coversDay(t)
	case now >= open:
		return r.coversDay(t)
	case now < closing:
		return r.coversDay(t.AddDate(0, 0, -1))
	default:
		return false
	}
}

func (r Rule) coversDay(t time.Time) bool {
	return r.coversWeekday(t.Weekday()) && r.coversDate(t.Month(), t.Day())
}

func (r Rule) coversWeekday(wd time.Weekday) bool {
	if len(r.Days) == 0 {
		return true
	}
	iso := int(wd)
	if iso == 0 {
		iso = 7
	}
	return slices.Contains(r.Days, iso)
}

func (r Rule) coversDate(month time.Month, day int) bool {
	if r.StartMonth == nil && r.EndMonth == nil {
		return true
	}
	start := deref(r.StartMonth, 1)*100 + deref(r.StartDay, 1)
	end := deref(r.EndMonth, 12)*100 + deref(r.EndDay, 31)
	cur := int(month)*100 + day

	if start <= end {
		return cur >= start && cur <= end
	}
	// октябрь-май: окно переходит через новый год
	return cur >= start || cur <= end
}

func (r Rule) window() (open, closing int, err error) {
	open, closing = 0, minutesPerDay
	if r.OpenTime != "" {
		if open, err = parseClock(r.OpenTime); err != nil {
			return 0, 0, err
		}
	}
	if r.CloseTime != "" {
		if closing, err = parseClock(r.CloseTime); err != nil {
			return 0, 0, err
		}
	}
	return open, closing, nil
}

func (r Rule) restricted() bool {
	if r.StartMonth != nil || r.EndMonth != nil || r.StartDay != nil || r.EndDay != nil {
		return true
	}
	if len(r.Days) != 0 && len(r.Days) != 7 {
		return true
	}
	open, closing, err := r.window()
	if err != nil {
		return true
	}
	return !(open == 0 && (closing == minutesPerDay || closing == 0))
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("bad time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("bad hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("bad minute in %q: %w", s, err)
	}
	total := h*60 + m
	if h < 0 || m < 0 || m > 59 || total > minutesPerDay {
		return 0, fmt.Errorf("time out of range %q", s)
	}
	return total, nil
}

func deref(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
