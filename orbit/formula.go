package orbit

import "math"

// Formula selects how z is computed from b·x − c.
type Formula uint8

const (
	FormulaSqrt    Formula = iota // d + sqrt(|bx−c|)
	FormulaQuartic                // d + sqrt(sqrt(|bx−c|))
	FormulaLog                    // d + ln(2 + sqrt(|bx−c|))
)

// PickFormula maps a uniform draw in [0,1) to a formula (50% / 25% / 25%).
func PickFormula(choice float64) Formula {
	switch {
	case choice < 0.5:
		return FormulaSqrt
	case choice < 0.75:
		return FormulaQuartic
	default:
		return FormulaLog
	}
}

// Z evaluates the formula at x.
func (f Formula) Z(p Params, x float64) float64 {
	switch f {
	case FormulaSqrt:
		return p.D + math.Sqrt(math.Abs(p.B*x-p.C))
	case FormulaQuartic:
		return p.D + math.Sqrt(math.Sqrt(math.Abs(p.B*x-p.C)))
	default:
		return p.D + math.Log(2+math.Sqrt(math.Abs(p.B*x-p.C)))
	}
}

// String implements fmt.Stringer.
func (f Formula) String() string {
	switch f {
	case FormulaSqrt:
		return "sqrt"
	case FormulaQuartic:
		return "quartic"
	case FormulaLog:
		return "log"
	default:
		return "unknown"
	}
}

// step advances the map by one point.
func step(p Params, f Formula, x, y float64) (float64, float64) {
	z := f.Z(p, x)

	var x1 float64
	switch {
	case x > 0:
		x1 = y - z
	case x == 0:
		x1 = y
	default:
		x1 = y + z
	}
	return x1 + p.E, p.A - x
}
