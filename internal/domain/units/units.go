// Package units normalizes quantities expressed in heterogeneous units of
// measure. It is stateless and used only by read-side pricing views.
package units

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"inputbid-service/internal/domain/shared"
)

// Unit is a tagged unit of measure
type Unit string

// Dimension groups units that can be converted into each other.
type Dimension string

const (
	DimensionVolume Dimension = "volume"
	DimensionWeight Dimension = "weight"
	DimensionCount  Dimension = "count"
)

const (
	Gallon     Unit = "GAL"
	Quart      Unit = "QT"
	Pint       Unit = "PT"
	Liter      Unit = "L"
	Milliliter Unit = "ML"

	Pound     Unit = "LB"
	Ounce     Unit = "OZ"
	Kilogram  Unit = "KG"
	Gram      Unit = "G"
	ShortTon  Unit = "TON"
	MetricTon Unit = "MT"

	Each Unit = "UNIT"
	Bag  Unit = "BAG"
)

type definition struct {
	dimension Dimension
	// factor converts one of this unit into the dimension's base unit
	// (liters, kilograms, or units).
	factor decimal.Decimal
}

var definitions = map[Unit]definition{
	Gallon:     {DimensionVolume, decimal.RequireFromString("3.785411784")},
	Quart:      {DimensionVolume, decimal.RequireFromString("0.946352946")},
	Pint:       {DimensionVolume, decimal.RequireFromString("0.473176473")},
	Liter:      {DimensionVolume, decimal.NewFromInt(1)},
	Milliliter: {DimensionVolume, decimal.RequireFromString("0.001")},

	Pound:     {DimensionWeight, decimal.RequireFromString("0.45359237")},
	Ounce:     {DimensionWeight, decimal.RequireFromString("0.028349523125")},
	Kilogram:  {DimensionWeight, decimal.NewFromInt(1)},
	Gram:      {DimensionWeight, decimal.RequireFromString("0.001")},
	ShortTon:  {DimensionWeight, decimal.RequireFromString("907.18474")},
	MetricTon: {DimensionWeight, decimal.NewFromInt(1000)},

	Each: {DimensionCount, decimal.NewFromInt(1)},
	Bag:  {DimensionCount, decimal.NewFromInt(1)},
}

// Parse accepts case-insensitive unit codes and a few common spellings.
func Parse(s string) (Unit, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	switch code {
	case "GALLON", "GALLONS":
		code = string(Gallon)
	case "LITER", "LITERS", "LITRE", "LITRES":
		code = string(Liter)
	case "LBS", "POUND", "POUNDS":
		code = string(Pound)
	case "KGS", "KILOGRAM", "KILOGRAMS":
		code = string(Kilogram)
	case "TONS":
		code = string(ShortTon)
	case "EA", "UNITS":
		code = string(Each)
	case "BAGS":
		code = string(Bag)
	}
	u := Unit(code)
	if !u.Valid() {
		return "", fmt.Errorf("%w: %q", shared.ErrUnknownUnit, s)
	}
	return u, nil
}

// Valid reports whether the unit is known
func (u Unit) Valid() bool {
	_, ok := definitions[u]
	return ok
}

// Dimension returns the unit's dimension, or "" for unknown units.
func (u Unit) Dimension() Dimension {
	return definitions[u].dimension
}

// Convert expresses qty of unit from in unit to.
func Convert(qty decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	src, ok := definitions[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", shared.ErrUnknownUnit, from)
	}
	dst, ok := definitions[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", shared.ErrUnknownUnit, to)
	}
	if from == to {
		return qty, nil
	}
	// Bags and units are both counts but not interchangeable.
	if src.dimension != dst.dimension || src.dimension == DimensionCount {
		return decimal.Zero, fmt.Errorf("%w: %s to %s", shared.ErrIncompatibleUnit, from, to)
	}
	return qty.Mul(src.factor).Div(dst.factor), nil
}

// ConvertPrice re-expresses a price per `from` as a price per `to`.
func ConvertPrice(pricePerUnit decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	// Price per unit scales inversely with quantity: one `to` holds
	// Convert(1, to, from) of `from`.
	perTo, err := Convert(decimal.NewFromInt(1), to, from)
	if err != nil {
		return decimal.Zero, err
	}
	return pricePerUnit.Mul(perTo), nil
}
