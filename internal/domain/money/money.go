// Package money holds the bonus-unit amount type used for balances and
// course prices.
//
// Amounts carry at most two decimal places. In MongoDB they are stored as
// Decimal128 so that $inc and range filters ($gte) work on exact values;
// in JSON they are rendered as fixed two-place strings ("300.00").
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Places is the number of decimal places an amount may carry.
const Places = 2

var (
	ErrNegative  = errors.New("amount must not be negative")
	ErrPrecision = errors.New("amount must have at most 2 decimal places")
	ErrInvalid   = errors.New("amount is not a number")
	ErrTooLarge  = errors.New("amount exceeds 999999999.99")
)

// Max is the largest amount accepted as a price, debit or credit.
var Max = Amount{d: decimal.New(99999999999, -Places)}

// Amount is an exact decimal count of bonus units.
type Amount struct {
	d decimal.Decimal
}

// Zero is the empty amount.
var Zero = Amount{}

// New wraps a decimal value, rounding it to two places.
func New(d decimal.Decimal) Amount {
	return Amount{d: d.Round(Places)}
}

// FromInt returns a whole-unit amount.
func FromInt(units int64) Amount {
	return Amount{d: decimal.NewFromInt(units)}
}

// Parse reads a non-negative amount with at most two decimal places.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalid
	}
	a := Amount{d: d}
	if err := a.Validate(); err != nil {
		return Zero, err
	}
	return a, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("money: %q: %v", s, err))
	}
	return a
}

// Validate reports whether the amount may be used as a price, debit or credit.
func (a Amount) Validate() error {
	if a.d.IsNegative() {
		return ErrNegative
	}
	if !a.d.Equal(a.d.Round(Places)) {
		return ErrPrecision
	}
	if a.d.GreaterThan(Max.d) {
		return ErrTooLarge
	}
	return nil
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }
func (a Amount) IsZero() bool { return a.d.IsZero() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

// String renders the amount with exactly two decimal places.
func (a Amount) String() string { return a.d.StringFixed(Places) }

// Decimal128 converts the amount for use in Mongo filters and updates.
// Values beyond the 34 significant digits of Decimal128 are an error.
func (a Amount) Decimal128() (primitive.Decimal128, error) {
	d, err := primitive.ParseDecimal128(a.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("money: decimal128 conversion of %s: %w", a.String(), err)
	}
	return d, nil
}

// MarshalBSONValue stores the amount as Decimal128.
func (a Amount) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := a.Decimal128()
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(d)
}

// UnmarshalBSONValue accepts Decimal128 and, for hand-written documents,
// the numeric BSON types.
func (a *Amount) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(rv.Decimal128().String())
		if err != nil {
			return fmt.Errorf("money: decode decimal128: %w", err)
		}
		a.d = d
	case bsontype.Int32:
		a.d = decimal.NewFromInt32(rv.Int32())
	case bsontype.Int64:
		a.d = decimal.NewFromInt(rv.Int64())
	case bsontype.Double:
		a.d = decimal.NewFromFloat(rv.Double()).Round(Places)
	case bsontype.String:
		d, err := decimal.NewFromString(rv.StringValue())
		if err != nil {
			return fmt.Errorf("money: decode string: %w", err)
		}
		a.d = d
	case bsontype.Null, bsontype.Undefined:
		a.d = decimal.Zero
	default:
		return fmt.Errorf("money: cannot decode bson type %s", t)
	}
	return nil
}

// MarshalJSON renders "123.45".
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return ErrInvalid
	}
	a.d = d
	return nil
}
