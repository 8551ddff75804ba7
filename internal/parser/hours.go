package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/model"
)

var (
	maxDayHours = decimal.NewFromInt(24)
	hundred     = decimal.NewFromInt(100)
)

// ParseHours parses planned hours for one day, 0 to 24.
func ParseHours(input string) (decimal.Decimal, error) {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(input)), "h")
	h, err := decimal.NewFromString(s)
	if err != nil || h.IsNegative() || h.GreaterThan(maxDayHours) {
		return decimal.Zero, errors.InvalidInput(errors.ErrInvalidHours, "hours", input)
	}
	return h, nil
}

// ParseWeekHours parses seven comma separated values, Monday first. A
// single value applies to Monday through Friday with a free weekend.
func ParseWeekHours(input string) ([7]decimal.Decimal, error) {
	var week [7]decimal.Decimal
	parts := strings.Split(input, ",")

	switch len(parts) {
	case 1:
		h, err := ParseHours(parts[0])
		if err != nil {
			return week, err
		}
		for i := 0; i < 5; i++ {
			week[i] = h
		}
	case 7:
		for i, p := range parts {
			h, err := ParseHours(p)
			if err != nil {
				return week, err
			}
			week[i] = h
		}
	default:
		return week, errors.NewUserErrorWithField("hours", input,
			"expected one value or seven comma separated values",
			"Use '8' for Monday to Friday or '8,8,8,8,6,0,0' starting on Monday.")
	}
	return week, nil
}

// ParseDayFraction parses an absence duration: "full", "half", a fraction
// such as 0.25, or a percentage such as 50%.
func ParseDayFraction(input string) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	var d decimal.Decimal
	var err error

	switch {
	case s == "" || s == "full" || s == "day":
		d = decimal.NewFromInt(1)
	case s == "half":
		d = decimal.NewFromFloat(0.5)
	case strings.HasSuffix(s, "%"):
		d, err = decimal.NewFromString(strings.TrimSuffix(s, "%"))
		d = d.Div(hundred)
	default:
		d, err = decimal.NewFromString(s)
	}

	if err != nil || !model.ValidDuration(d) {
		return decimal.Zero, errors.InvalidInput(errors.ErrInvalidDuration, "duration", input)
	}
	return d, nil
}
