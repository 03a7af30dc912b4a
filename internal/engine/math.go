package engine

import (
	"errors"
	"fmt"
	"math"
)

// mathHelpers are the numeric functions added on top of each language's
// own math library when a calc scope is opened.
func mathHelpers() map[string]any {
	return map[string]any{
		"gcd":       HostFunc(gcdFunc),
		"lcm":       HostFunc(lcmFunc),
		"factorial": HostFunc(factorialFunc),
		"binomial":  HostFunc(binomialFunc),
		"sum":       HostFunc(sumFunc),
		"mean":      HostFunc(meanFunc),
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func toInt(v any) (int64, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected an integer, got %v", f)
	}
	return int64(f), nil
}

func intArgs(name string, args []any, n int) ([]int64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", name, n, len(args))
	}
	out := make([]int64, n)
	for i, a := range args {
		v, err := toInt(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func gcdFunc(args ...any) (any, error) {
	v, err := intArgs("gcd", args, 2)
	if err != nil {
		return nil, err
	}
	return float64(gcd(v[0], v[1])), nil
}

func lcmFunc(args ...any) (any, error) {
	v, err := intArgs("lcm", args, 2)
	if err != nil {
		return nil, err
	}
	if v[0] == 0 || v[1] == 0 {
		return float64(0), nil
	}
	l := v[0] / gcd(v[0], v[1]) * v[1]
	if l < 0 {
		l = -l
	}
	return float64(l), nil
}

func factorialFunc(args ...any) (any, error) {
	v, err := intArgs("factorial", args, 1)
	if err != nil {
		return nil, err
	}
	if v[0] < 0 {
		return nil, errors.New("factorial: negative argument")
	}
	result := 1.0
	for i := int64(2); i <= v[0]; i++ {
		result *= float64(i)
	}
	return result, nil
}

func binomialFunc(args ...any) (any, error) {
	v, err := intArgs("binomial", args, 2)
	if err != nil {
		return nil, err
	}
	n, k := v[0], v[1]
	if k < 0 || n < 0 || k > n {
		return float64(0), nil
	}
	if k > n-k {
		k = n - k
	}
	result := 1.0
	for i := int64(1); i <= k; i++ {
		result = result * float64(n-k+i) / float64(i)
	}
	return math.Round(result), nil
}

// numbers flattens arguments so that both sum(1, 2, 3) and sum({1, 2, 3}) work.
func numbers(name string, args []any) ([]float64, error) {
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			args = list
		}
	}
	out := make([]float64, 0, len(args))
	for _, a := range args {
		f, err := toFloat(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func sumFunc(args ...any) (any, error) {
	nums, err := numbers("sum", args)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total, nil
}

func meanFunc(args ...any) (any, error) {
	nums, err := numbers("mean", args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, errors.New("mean: no values")
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total / float64(len(nums)), nil
}
