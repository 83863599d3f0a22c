// Package rational implements exact fractions over int64 with explicit
// overflow detection. Every value is kept in lowest terms with a positive
// denominator; no operation converts to floating point.
package rational

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrOverflow       = errors.New("rational overflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// Rat is an exact fraction. The zero value is 0.
type Rat struct {
	num int64
	den int64 // 0 only in the zero value; read through d()
}

// Zero and One are the additive and multiplicative identities.
var (
	Zero = Rat{num: 0, den: 1}
	One  = Rat{num: 1, den: 1}
)

// New returns num/den reduced to lowest terms.
func New(num, den int64) (Rat, error) {
	if den == 0 {
		return Rat{}, errors.WithStack(ErrDivisionByZero)
	}
	if den < 0 {
		if num == math.MinInt64 || den == math.MinInt64 {
			return Rat{}, errors.WithStack(ErrOverflow)
		}
		num, den = -num, -den
	}
	if num == math.MinInt64 {
		return Rat{}, errors.WithStack(ErrOverflow)
	}
	g := gcd(abs(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	return Rat{num: num, den: den}, nil
}

// MustNew is New for constants known to be valid. It panics on error.
func MustNew(num, den int64) Rat {
	r, err := New(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// Int returns n/1.
func Int(n int64) Rat { return Rat{num: n, den: 1} }

// Parse reads "n", "n/d" or "-n/d".
func Parse(s string) (Rat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rat{}, errors.New("empty rational")
	}
	numStr, denStr, hasDen := strings.Cut(s, "/")
	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return Rat{}, errors.Wrapf(err, "parse rational %q", s)
	}
	den := int64(1)
	if hasDen {
		den, err = strconv.ParseInt(strings.TrimSpace(denStr), 10, 64)
		if err != nil {
			return Rat{}, errors.Wrapf(err, "parse rational %q", s)
		}
	}
	return New(num, den)
}

func (r Rat) d() int64 {
	if r.den == 0 {
		return 1
	}
	return r.den
}

// Num returns the reduced numerator.
func (r Rat) Num() int64 { return r.num }

// Den returns the reduced, always positive denominator.
func (r Rat) Den() int64 { return r.d() }

func (r Rat) IsZero() bool { return r.num == 0 }

func (r Rat) IsInt() bool { return r.d() == 1 }

// Sign returns -1, 0 or +1.
func (r Rat) Sign() int {
	switch {
	case r.num < 0:
		return -1
	case r.num > 0:
		return 1
	}
	return 0
}

func (r Rat) Neg() (Rat, error) {
	if r.num == math.MinInt64 {
		return Rat{}, errors.WithStack(ErrOverflow)
	}
	return Rat{num: -r.num, den: r.d()}, nil
}

func (r Rat) Add(o Rat) (Rat, error) {
	ad, od := r.d(), o.d()
	g := gcd(ad, od)
	// a/b + c/d = (a*(d/g) + c*(b/g)) / (b*(d/g))
	left, ok1 := mul(r.num, od/g)
	right, ok2 := mul(o.num, ad/g)
	den, ok3 := mul(ad, od/g)
	if !ok1 || !ok2 || !ok3 {
		return Rat{}, errors.WithStack(ErrOverflow)
	}
	num, ok := add(left, right)
	if !ok {
		return Rat{}, errors.WithStack(ErrOverflow)
	}
	return New(num, den)
}

func (r Rat) Sub(o Rat) (Rat, error) {
	n, err := o.Neg()
	if err != nil {
		return Rat{}, err
	}
	return r.Add(n)
}

func (r Rat) Mul(o Rat) (Rat, error) {
	if r.num == 0 || o.num == 0 {
		return Zero, nil
	}
	// Cross-reduce first so intermediate products stay small.
	g1 := gcd(abs(r.num), o.d())
	g2 := gcd(abs(o.num), r.d())
	num, ok1 := mul(r.num/g1, o.num/g2)
	den, ok2 := mul(r.d()/g2, o.d()/g1)
	if !ok1 || !ok2 {
		return Rat{}, errors.WithStack(ErrOverflow)
	}
	return New(num, den)
}

func (r Rat) Div(o Rat) (Rat, error) {
	if o.num == 0 {
		return Rat{}, errors.WithStack(ErrDivisionByZero)
	}
	inv, err := New(o.d(), o.num)
	if err != nil {
		return Rat{}, err
	}
	return r.Mul(inv)
}

// MulInt returns r*n.
func (r Rat) MulInt(n int64) (Rat, error) { return r.Mul(Int(n)) }

// Cmp returns -1, 0 or +1 comparing r with o. Comparison never overflows.
func (r Rat) Cmp(o Rat) int {
	if r.Sign() != o.Sign() {
		if r.Sign() < o.Sign() {
			return -1
		}
		return 1
	}
	// Same sign: compare integer parts, then remainders by cross multiplication
	// on the smaller residues.
	rq, rr := floorDiv(r.num, r.d())
	oq, or := floorDiv(o.num, o.d())
	if rq != oq {
		if rq < oq {
			return -1
		}
		return 1
	}
	return cmpFrac(rr, r.d(), or, o.d())
}

func (r Rat) Equal(o Rat) bool { return r.num == o.num && r.d() == o.d() }

func (r Rat) Less(o Rat) bool { return r.Cmp(o) < 0 }

// Split returns the floor quotient and the non-negative remainder such that
// r = q + rem/Den().
func (r Rat) Split() (q int64, rem int64) { return floorDiv(r.num, r.d()) }

// String formats r as "n" or "n/d".
func (r Rat) String() string {
	if r.d() == 1 {
		return strconv.FormatInt(r.num, 10)
	}
	return strconv.FormatInt(r.num, 10) + "/" + strconv.FormatInt(r.d(), 10)
}

// Sum adds all values, stopping at the first error.
func Sum(rs ...Rat) (Rat, error) {
	acc := Zero
	for _, r := range rs {
		var err error
		if acc, err = acc.Add(r); err != nil {
			return Rat{}, err
		}
	}
	return acc, nil
}

// Product multiplies all values, stopping at the first error.
func Product(rs ...Rat) (Rat, error) {
	acc := One
	for _, r := range rs {
		var err error
		if acc, err = acc.Mul(r); err != nil {
			return Rat{}, err
		}
	}
	return acc, nil
}

func Min(a, b Rat) Rat {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func Max(a, b Rat) Rat {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// cmpFrac compares a/b with c/d where 0 <= a < b and 0 <= c < d, using the
// continued-fraction expansion so no product can overflow.
func cmpFrac(a, b, c, d int64) int {
	for {
		switch {
		case a == 0 && c == 0:
			return 0
		case a == 0:
			return -1
		case c == 0:
			return 1
		}
		// Compare b/a with d/c, reversed.
		bq, br := b/a, b%a
		dq, dr := d/c, d%c
		if bq != dq {
			if bq > dq {
				return -1
			}
			return 1
		}
		// Recurse on br/a vs dr/c with sides swapped.
		a, b, c, d = dr, c, br, a
	}
}

func floorDiv(n, d int64) (int64, int64) {
	q, r := n/d, n%d
	if r < 0 {
		q--
		r += d
	}
	return q, r
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func add(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}

func mul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}
