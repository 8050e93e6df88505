package regression

import (
	"strconv"
	"strings"

	"github.com/HatiCode/romcv/pkg/romerr"
)

// Method identifies a regression backend.
type Method int

const (
	Kriging Method = iota
	MARS
	ANN
	SVM
	Linear
	Quadratic
	Cubic
	Poly4
	ANOVA
	SRC
)

var methodNames = [...]string{
	Kriging:   "Kriging",
	MARS:      "MARS",
	ANN:       "ANN",
	SVM:       "SVM",
	Linear:    "Linear",
	Quadratic: "Quadratic",
	Cubic:     "Cubic",
	Poly4:     "Poly4",
	ANOVA:     "ANOVA",
	SRC:       "SRC",
}

// String returns the canonical method name, which is also the name of the
// method's output directory.
func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return "Method(" + strconv.Itoa(int(m)) + ")"
	}
	return methodNames[m]
}

// Order returns the polynomial order of Linear through Poly4, or 0 for every
// other method.
func (m Method) Order() int {
	switch m {
	case Linear:
		return 1
	case Quadratic:
		return 2
	case Cubic:
		return 3
	case Poly4:
		return 4
	default:
		return 0
	}
}

// All returns every method in declaration order.
func All() []Method {
	out := make([]Method, len(methodNames))
	for i := range out {
		out[i] = Method(i)
	}
	return out
}

// ParseMethod returns the method with the given canonical name, ignoring case.
func ParseMethod(s string) (Method, error) {
	for i, name := range methodNames {
		if strings.EqualFold(s, name) {
			return Method(i), nil
		}
	}
	return 0, romerr.Configf("unknown regression method %q (want one of %s)", s, strings.Join(methodNames[:], ", "))
}

// UnmarshalText implements encoding.TextUnmarshaler so methods can be used as
// YAML map keys and flag values.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
