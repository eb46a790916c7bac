package harness

import (
	"fmt"
	"regexp"

	"github.com/roach88/launchpad/internal/amount"
)

// unitAmount matches "1.5 USDC": a decimal quantity and an asset id.
var unitAmount = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?) ([A-Za-z][A-Za-z0-9_]*)$`)

// units converts human amounts to base-unit strings.
type units map[string]uint8

// parse converts "1.5 USDC" to an Amount.
func (u units) parse(s string) (amount.Amount, error) {
	m := unitAmount.FindStringSubmatch(s)
	if m == nil {
		// Plain base units.
		return amount.ParseBase(s)
	}
	decimals, ok := u[m[2]]
	if !ok {
		return amount.Zero, fmt.Errorf("amount %q: unknown asset %s", s, m[2])
	}
	return amount.Parse(m[1], decimals)
}

// convert walks v and replaces every "<qty> <ASSET>" string with its
// base-unit form. Other strings pass through.
func (u units) convert(v any) (any, error) {
	switch val := v.(type) {
	case string:
		if !unitAmount.MatchString(val) {
			return val, nil
		}
		a, err := u.parse(val)
		if err != nil {
			return nil, err
		}
		return a.String(), nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			c, err := u.convert(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = c
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			c, err := u.convert(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	default:
		return v, nil
	}
}

func (u units) convertObject(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	v, err := u.convert(m)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}
