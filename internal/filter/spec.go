package filter

import (
	"errors"
	"fmt"
)

// Axis names one filter dimension of a search.
type Axis string

const (
	AxisTime              Axis = "time"
	AxisLiquidityOrVolume Axis = "liquidity_or_volume"
	AxisPrice             Axis = "price"
	AxisSpread            Axis = "spread"
	// AxisLiquidity is the optional refinement axis, see ParseApprox.
	AxisLiquidity Axis = "liquidity"
)

// RequiredAxes are the axes a search cannot run without, in funnel order.
var RequiredAxes = []Axis{AxisTime, AxisLiquidityOrVolume, AxisPrice, AxisSpread}

// ErrPriceAboveMax rejects price and spread expressions with an upper bound above 100 cents.
var ErrPriceAboveMax = errors.New("upper bound cannot exceed 100")

const maxCents = 100

// Spec holds the raw, unparsed user text for each axis. An empty string
// means the axis is not configured.
type Spec struct {
	Time              string `yaml:"time"`
	LiquidityOrVolume string `yaml:"liquidity_or_volume"`
	Price             string `yaml:"price"`
	Spread            string `yaml:"spread"`
	Liquidity         string `yaml:"liquidity"`
}

func (s Spec) Get(axis Axis) string {
	switch axis {
	case AxisTime:
		return s.Time
	case AxisLiquidityOrVolume:
		return s.LiquidityOrVolume
	case AxisPrice:
		return s.Price
	case AxisSpread:
		return s.Spread
	case AxisLiquidity:
		return s.Liquidity
	}
	return ""
}

// With returns a copy of s with axis set to raw.
func (s Spec) With(axis Axis, raw string) (Spec, error) {
	switch axis {
	case AxisTime:
		s.Time = raw
	case AxisLiquidityOrVolume:
		s.LiquidityOrVolume = raw
	case AxisPrice:
		s.Price = raw
	case AxisSpread:
		s.Spread = raw
	case AxisLiquidity:
		s.Liquidity = raw
	default:
		return s, fmt.Errorf("unknown filter axis %q", axis)
	}
	return s, nil
}

// Missing lists the required axes that have no value yet.
func (s Spec) Missing() []Axis {
	var missing []Axis
	for _, a := range RequiredAxes {
		if s.Get(a) == "" {
			missing = append(missing, a)
		}
	}
	return missing
}

// IsZero reports whether nothing has been configured.
func (s Spec) IsZero() bool {
	return s == Spec{}
}

// AxisError ties a parse failure to the axis it happened on.
type AxisError struct {
	Axis Axis
	Err  error
}

func (e *AxisError) Error() string {
	return fmt.Sprintf("%s filter: %v", e.Axis, e.Err)
}

func (e *AxisError) Unwrap() error {
	return e.Err
}

// Criteria is a fully parsed Spec.
type Criteria struct {
	Time              Range
	LiquidityOrVolume Range
	Price             Range
	Spread            Range
	// Liquidity is nil when the user skipped the refinement step.
	Liquidity *Range
}

// ParseAxis parses raw with the grammar of axis, including per-axis bounds checks.
func ParseAxis(axis Axis, raw string) (Range, error) {
	var (
		r   Range
		err error
	)
	if axis == AxisLiquidity {
		r, err = ParseApprox(raw)
	} else {
		r, err = Parse(raw)
	}
	if err != nil {
		return Range{}, &AxisError{Axis: axis, Err: err}
	}

	if axis == AxisPrice || axis == AxisSpread {
		if r.Max != nil && *r.Max > maxCents {
			return Range{}, &AxisError{Axis: axis, Err: &ParseError{Input: raw, Err: ErrPriceAboveMax}}
		}
	}
	return r, nil
}

// Compile parses every configured axis of s. All required axes must be set.
func Compile(s Spec) (Criteria, error) {
	if missing := s.Missing(); len(missing) > 0 {
		return Criteria{}, &IncompleteError{Missing: missing}
	}

	var (
		c   Criteria
		err error
	)
	if c.Time, err = ParseAxis(AxisTime, s.Time); err != nil {
		return Criteria{}, err
	}
	if c.LiquidityOrVolume, err = ParseAxis(AxisLiquidityOrVolume, s.LiquidityOrVolume); err != nil {
		return Criteria{}, err
	}
	if c.Price, err = ParseAxis(AxisPrice, s.Price); err != nil {
		return Criteria{}, err
	}
	if c.Spread, err = ParseAxis(AxisSpread, s.Spread); err != nil {
		return Criteria{}, err
	}
	if s.Liquidity != "" {
		r, err := ParseAxis(AxisLiquidity, s.Liquidity)
		if err != nil {
			return Criteria{}, err
		}
		c.Liquidity = &r
	}
	return c, nil
}

// ErrIncomplete is matched by IncompleteError.
var ErrIncomplete = errors.New("filters are not fully configured")

// IncompleteError lists the required axes a Spec is missing.
type IncompleteError struct {
	Missing []Axis
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%v: missing %v", ErrIncomplete, e.Missing)
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncomplete
}
