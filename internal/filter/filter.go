// Package filter parses compact range expressions ("6-12", "10000+", "<5",
// "85") and evaluates numeric observations against them.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrUnrecognized  = errors.New("unrecognized filter format")
	ErrInvertedRange = errors.New("minimum must be less than maximum")
	ErrZeroApprox    = errors.New("approximate value must be above zero")
)

// ParseError is returned for user text that is not a valid filter expression.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("couldn't parse filter %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const number = `(\d+(?:\.\d+)?)`

// The order of these patterns matters: "5000-" must be tried as a range
// first (and fail), then match less-than.
var (
	rangePattern   = regexp.MustCompile(`^` + number + `\s*-\s*` + number + `$`)
	greaterPattern = regexp.MustCompile(`^>` + number + `$|^` + number + `\+$`)
	lessPattern    = regexp.MustCompile(`^<` + number + `$|^` + number + `-$`)
	exactPattern   = regexp.MustCompile(`^` + number + `$`)
)

// Range is an inclusive numeric interval; a nil bound is open.
type Range struct {
	Min *float64
	Max *float64
}

// Between returns the closed range [min, max].
func Between(min, max float64) Range {
	return Range{Min: &min, Max: &max}
}

// AtLeast returns [min, +inf).
func AtLeast(min float64) Range {
	return Range{Min: &min}
}

// AtMost returns (-inf, max].
func AtMost(max float64) Range {
	return Range{Max: &max}
}

// Matches reports whether v lies inside r. Both bounds are inclusive.
func (r Range) Matches(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func (r Range) String() string {
	switch {
	case r.Min != nil && r.Max != nil && *r.Min == *r.Max:
		return formatFloat(*r.Min)
	case r.Min != nil && r.Max != nil:
		return formatFloat(*r.Min) + "-" + formatFloat(*r.Max)
	case r.Min != nil:
		return ">" + formatFloat(*r.Min)
	case r.Max != nil:
		return "<" + formatFloat(*r.Max)
	default:
		return "any"
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Parse reads one of the accepted forms, tried in this order:
//
//	"a-b"        range, a < b
//	">a", "a+"   at least a
//	"<a", "a-"   at most a
//	"a"          exactly a
func Parse(text string) (Range, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	fail := func(err error) (Range, error) {
		return Range{}, &ParseError{Input: text, Err: err}
	}

	if m := rangePattern.FindStringSubmatch(s); m != nil {
		lo, okLo := parseNumber(m[1])
		hi, okHi := parseNumber(m[2])
		if !okLo || !okHi {
			return fail(ErrUnrecognized)
		}
		if lo >= hi {
			return fail(ErrInvertedRange)
		}
		return Between(lo, hi), nil
	}

	if m := greaterPattern.FindStringSubmatch(s); m != nil {
		v, ok := parseNumber(firstGroup(m))
		if !ok {
			return fail(ErrUnrecognized)
		}
		return AtLeast(v), nil
	}

	if m := lessPattern.FindStringSubmatch(s); m != nil {
		v, ok := parseNumber(firstGroup(m))
		if !ok {
			return fail(ErrUnrecognized)
		}
		return AtMost(v), nil
	}

	if m := exactPattern.FindStringSubmatch(s); m != nil {
		v, ok := parseNumber(m[1])
		if !ok {
			return fail(ErrUnrecognized)
		}
		return Between(v, v), nil
	}

	return fail(ErrUnrecognized)
}

// approxBand is the relative width an exact value is widened by in ParseApprox.
const approxBand = 0.2

// ParseApprox accepts the same forms as Parse, except that a plain value v
// means "roughly v" and becomes [0.8v, 1.2v]. A plain 0 has no band and is
// rejected with ErrZeroApprox; "<0" or "0-" still select exactly zero.
func ParseApprox(text string) (Range, error) {
	r, err := Parse(text)
	if err != nil {
		return Range{}, err
	}
	if r.Min != nil && r.Max != nil && *r.Min == *r.Max {
		v := *r.Min
		if v == 0 {
			return Range{}, &ParseError{Input: text, Err: ErrZeroApprox}
		}
		return Between(v*(1-approxBand), v*(1+approxBand)), nil
	}
	return r, nil
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// parseNumber reads text already matched by number. Values too large for a
// float64 are rejected.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
