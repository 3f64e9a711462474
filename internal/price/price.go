// Package price handles price values from prediction market APIs
// without losing precision.
package price

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Price is a fixed-point probability price, PriceScale units per dollar.
type Price int64

// Size is a fixed-point order size with the same scale as Price.
type Size int64

var (
	_ json.Unmarshaler = (*Price)(nil)
	_ json.Unmarshaler = (*Size)(nil)
	_ json.Unmarshaler = (*Number)(nil)
)

const PriceScale int64 = 1_000_000

func (p *Price) UnmarshalJSON(data []byte) error {
	res, err := parseFixed(data)
	if err != nil {
		return fmt.Errorf("couldn't parse price %s: %w", data, err)
	}
	*p = Price(res)
	return nil
}

// Cents converts the price into cents (0.52 -> 52).
func (p Price) Cents() float64 {
	return float64(p) * 100 / float64(PriceScale)
}

func (s *Size) UnmarshalJSON(data []byte) error {
	res, err := parseFixed(data)
	if err != nil {
		return fmt.Errorf("couldn't parse size %s: %w", data, err)
	}
	*s = Size(res)
	return nil
}

// parseFixed reads a quoted or raw non-negative decimal into PriceScale units.
// Digits beyond the scale are truncated.
func parseFixed(data []byte) (int64, error) {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	// Else we assume that it is a raw number.

	if len(data) == 0 || string(data) == "null" {
		return 0, nil
	}

	var res int64
	i := 0

	for i < len(data) && data[i] != '.' {
		if data[i] < '0' || data[i] > '9' {
			return 0, fmt.Errorf("unexpected character %q", data[i])
		}
		res = res*10 + int64(data[i]-'0')*PriceScale
		i++
	}

	if i < len(data) && data[i] == '.' {
		i++
		mult := PriceScale
		for i < len(data) {
			if data[i] < '0' || data[i] > '9' {
				return 0, fmt.Errorf("unexpected character %q", data[i])
			}
			mult /= 10
			res += int64(data[i]-'0') * mult
			i++
		}
	}

	return res, nil
}

// Number is a float that venues send either as a JSON number or as a
// numeric string. Empty strings, null and unparsable strings decode to 0;
// objects, arrays and booleans are rejected.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("couldn't parse number: %w", err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(f)
		return nil
	case '{', '[', 't', 'f':
		return fmt.Errorf("couldn't parse number: unexpected JSON %s", data)
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("couldn't parse number: %w", err)
	}
	*n = Number(f)
	return nil
}

func (n Number) Float() float64 {
	return float64(n)
}
