// Package validation decides whether a field's value is complete and well formed.
//
// Checks are pure: a field is never modified and the same input always
// yields the same result for a fixed clock.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/internal/fields/visibility"
)

// Error codes
const (
	CodeRequired = "required"
	CodeFormat   = "format"
	CodeRange    = "range"
	CodeLength   = "length"
	CodePattern  = "pattern"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-+()]{7,20}$`)
)

// ValidationError is one failed check
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result of validating one field
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// AllResult aggregates the visible fields of a document
type AllResult struct {
	Valid           bool                         `json:"valid"`
	ErrorsByFieldID map[string][]ValidationError `json:"errors_by_field_id"`
}

// Validator validates against a clock, which date ranges using "today" need.
type Validator struct {
	now func() time.Time
	loc *time.Location
}

// Option configures a Validator
type Option func(*Validator)

// WithClock fixes the current time, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithLocation sets the zone dates are interpreted in
func WithLocation(loc *time.Location) Option {
	return func(v *Validator) { v.loc = loc }
}

// New creates a Validator using the wall clock and the local zone by default
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var std = New()

// Validate checks one field with the default validator
func Validate(f domain.Field) Result { return std.Validate(f) }

// ValidateAll checks every visible field with the default validator
func ValidateAll(fields []domain.Field) AllResult { return std.ValidateAll(fields) }

// Validate checks one field
func (v *Validator) Validate(f domain.Field) Result {
	value := strings.TrimSpace(f.Value)

	if value == "" {
		if f.Required {
			return fail(CodeRequired, fieldName(f)+" is required")
		}
		return ok()
	}

	rules := parseRules(f.ValidationRule)

	switch f.Type {
	case domain.TypeEmail:
		if !emailPattern.MatchString(value) {
			return fail(CodeFormat, "enter a valid email address")
		}
	case domain.TypePhone:
		if !phonePattern.MatchString(value) {
			return fail(CodeFormat, "enter a valid phone number")
		}
	case domain.TypeNumber:
		return v.number(value, rules)
	case domain.TypeDate:
		return v.date(value, rules)
	case domain.TypeText, domain.TypeTextarea:
		return v.text(f.Value, rules)
	}

	return ok()
}

// ValidateAll validates the fields currently visible and reports errors by field id.
// Hidden fields never block.
func (v *Validator) ValidateAll(fields []domain.Field) AllResult {
	res := AllResult{Valid: true, ErrorsByFieldID: make(map[string][]ValidationError)}
	idx := visibility.NewIndex(fields)

	for _, f := range fields {
		if !idx.IsVisible(f) {
			continue
		}
		r := v.Validate(f)
		if !r.Valid {
			res.Valid = false
			res.ErrorsByFieldID[f.ID] = r.Errors
		}
	}
	return res
}

func (v *Validator) number(value string, rules []rule) Result {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fail(CodeFormat, "enter a valid number")
	}

	r, found := findRule(rules, ruleRange)
	if !found {
		return ok()
	}
	lo, hi, parsed := numericBounds(r.arg)
	if !parsed {
		return ok()
	}
	if (lo != nil && n < *lo) || (hi != nil && n > *hi) {
		return fail(CodeRange, "must be "+describeRange(lo, hi))
	}
	return ok()
}

func (v *Validator) date(value string, rules []rule) Result {
	t, err := v.parseDate(value)
	if err != nil {
		return fail(CodeFormat, "enter a valid date")
	}

	r, found := findRule(rules, ruleRange)
	if !found {
		return ok()
	}
	l, h, split := bounds(r.arg)
	if !split {
		return ok()
	}

	day := v.startOfDay(t)
	lo, okLo := v.dateBound(l)
	hi, okHi := v.dateBound(h)
	if !okLo || !okHi {
		return ok()
	}

	if (lo != nil && day.Before(*lo)) || (hi != nil && day.After(*hi)) {
		return fail(CodeRange, "date must be "+describeDateRange(l, h))
	}
	return ok()
}

// dateBound resolves "today", "none" or an ISO date to the start of that
// day. nil means unbounded.
func (v *Validator) dateBound(s string) (*time.Time, bool) {
	switch strings.ToLower(s) {
	case "", "none":
		return nil, true
	case "today":
		d := v.startOfDay(v.now())
		return &d, true
	}
	t, err := time.ParseInLocation("2006-01-02", s, v.loc)
	if err != nil {
		t, err = v.parseDate(s)
		if err != nil {
			return nil, false
		}
	}
	d := v.startOfDay(t)
	return &d, true
}

// parseDate accepts the calendar layouts dateparse knows. Digit runs longer
// than yyyymmdd are refused since dateparse would read them as unix time.
func (v *Validator) parseDate(s string) (time.Time, error) {
	if len(s) > len("20060102") && strings.Trim(s, "0123456789") == "" {
		return time.Time{}, fmt.Errorf("not a calendar date: %q", s)
	}
	return dateparse.ParseIn(s, v.loc)
}

func (v *Validator) startOfDay(t time.Time) time.Time {
	t = t.In(v.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, v.loc)
}

func (v *Validator) text(value string, rules []rule) Result {
	var errs []ValidationError

	if r, found := findRule(rules, ruleLength); found {
		if lo, hi, parsed := numericBounds(r.arg); parsed {
			n := float64(utf8.RuneCountInString(value))
			if (lo != nil && n < *lo) || (hi != nil && n > *hi) {
				errs = append(errs, ValidationError{Code: CodeLength, Message: "length must be " + describeRange(lo, hi) + " characters"})
			}
		}
	}

	if r, found := findRule(rules, rulePattern); found {
		if re, err := compilePattern(r.arg); err == nil && !re.MatchString(value) {
			errs = append(errs, ValidationError{Code: CodePattern, Message: "value does not match the expected format"})
		}
	}

	if len(errs) > 0 {
		return Result{Valid: false, Errors: errs}
	}
	return ok()
}

func ok() Result {
	return Result{Valid: true, Errors: []ValidationError{}}
}

func fail(code, msg string) Result {
	return Result{Valid: false, Errors: []ValidationError{{Code: code, Message: msg}}}
}

func fieldName(f domain.Field) string {
	if f.Label != "" {
		return f.Label
	}
	return "this field"
}

func describeRange(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("between %s and %s", fmtNum(*lo), fmtNum(*hi))
	case lo != nil:
		return "at least " + fmtNum(*lo)
	case hi != nil:
		return "at most " + fmtNum(*hi)
	default:
		return "any value"
	}
}

func describeDateRange(lo, hi string) string {
	none := func(s string) bool { return s == "" || strings.EqualFold(s, "none") }
	switch {
	case !none(lo) && !none(hi):
		return "between " + lo + " and " + hi
	case !none(lo):
		return "on or after " + lo
	default:
		return "on or before " + hi
	}
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
