// Package formula evaluates =-prefixed cell contents over a sheet grid.
// Formulas use A1-style references, aggregate functions (SUM, AVG, MIN,
// MAX, COUNT) and range expansion; evaluation is iterative with a fixed
// depth cap, so chains of formula cells resolve without a dependency graph.
package formula

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrorValue is what a cell shows when its formula cannot be evaluated.
const ErrorValue = "#ERROR"

// maxPasses bounds iterative resolution of formula-to-formula references.
const maxPasses = 10

var (
	rangeRe = regexp.MustCompile(`([A-Z]+)(\d+):([A-Z]+)(\d+)`)
	refRe   = regexp.MustCompile(`\b[A-Z]+\d+\b`)
)

// Evaluator compiles and runs cell formulas with a shared program cache.
type Evaluator struct {
	cache sync.Map // preprocessed expression -> compiled *vm.Program
}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Ref renders the A1-style reference for a zero-based coordinate.
func Ref(row, col int) string {
	var letters []byte
	n := col
	for {
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return fmt.Sprintf("%s%d", letters, row+1)
}

// parseRef converts an A1 reference back to zero-based coordinates.
func parseRef(letters string, rowPart string) (row, col int, err error) {
	for _, r := range letters {
		col = col*26 + int(r-'A') + 1
	}
	col--
	row, err = strconv.Atoi(rowPart)
	if err != nil {
		return 0, 0, err
	}
	return row - 1, col, nil
}

// IsFormula reports whether a cell content is a formula.
func IsFormula(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "=")
}

// EvaluateGrid computes every formula cell in contents (A1 ref -> raw
// content) and returns the display values. Non-formula cells pass through
// unchanged; failed formulas yield ErrorValue.
func (e *Evaluator) EvaluateGrid(contents map[string]string) map[string]string {
	values := make(map[string]float64, len(contents))
	formulas := make(map[string]string)
	out := make(map[string]string, len(contents))

	for ref, content := range contents {
		if IsFormula(content) {
			formulas[ref] = strings.TrimSpace(content)[1:]
			values[ref] = 0
			continue
		}
		out[ref] = content
		if v, err := strconv.ParseFloat(strings.TrimSpace(content), 64); err == nil {
			values[ref] = v
		}
	}

	results := make(map[string]float64, len(formulas))
	failed := make(map[string]bool)
	for pass := 0; pass < maxPasses; pass++ {
		stable := true
		for ref, body := range formulas {
			v, err := e.evaluate(body, values)
			if err != nil {
				failed[ref] = true
				continue
			}
			delete(failed, ref)
			if results[ref] != v || pass == 0 {
				stable = false
			}
			results[ref] = v
			values[ref] = v
		}
		if stable {
			break
		}
	}

	for ref := range formulas {
		if failed[ref] {
			out[ref] = ErrorValue
			continue
		}
		out[ref] = strconv.FormatFloat(results[ref], 'f', -1, 64)
	}
	return out
}

func (e *Evaluator) evaluate(body string, values map[string]float64) (float64, error) {
	expanded := expandRanges(body)

	env := map[string]any{
		"SUM":   aggregate(func(acc, v float64) float64 { return acc + v }),
		"MIN":   pick(func(best, v float64) bool { return v < best }),
		"MAX":   pick(func(best, v float64) bool { return v > best }),
		"AVG": func(args ...any) float64 {
			if len(args) == 0 {
				return 0
			}
			var sum float64
			for _, a := range args {
				sum += toFloat(a)
			}
			return sum / float64(len(args))
		},
		"COUNT": func(args ...any) float64 { return float64(len(args)) },
	}
	// Every referenced cell gets a binding so empty cells read as zero.
	for _, ref := range refRe.FindAllString(expanded, -1) {
		env[ref] = float64(0)
	}
	for ref, v := range values {
		env[ref] = v
	}

	program, err := e.compile(expanded)
	if err != nil {
		return 0, err
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return 0, err
	}
	out := toFloat(result)
	return out, nil
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	if cached, ok := e.cache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.cache.Store(expression, program)
	return program, nil
}

// expandRanges rewrites A1:B2 spans into comma-separated reference lists so
// aggregate functions receive plain arguments.
func expandRanges(body string) string {
	return rangeRe.ReplaceAllStringFunc(body, func(match string) string {
		sub := rangeRe.FindStringSubmatch(match)
		r1, c1, err1 := parseRef(sub[1], sub[2])
		r2, c2, err2 := parseRef(sub[3], sub[4])
		if err1 != nil || err2 != nil {
			return match
		}
		if r2 < r1 {
			r1, r2 = r2, r1
		}
		if c2 < c1 {
			c1, c2 = c2, c1
		}
		var refs []string
		for r := r1; r <= r2; r++ {
			for c := c1; c <= c2; c++ {
				refs = append(refs, Ref(r, c))
			}
		}
		return strings.Join(refs, ", ")
	})
}

func aggregate(fold func(acc, v float64) float64) func(args ...any) float64 {
	return func(args ...any) float64 {
		var acc float64
		for _, a := range args {
			acc = fold(acc, toFloat(a))
		}
		return acc
	}
}

func pick(better func(best, v float64) bool) func(args ...any) float64 {
	return func(args ...any) float64 {
		if len(args) == 0 {
			return 0
		}
		best := toFloat(args[0])
		for _, a := range args[1:] {
			if v := toFloat(a); better(best, v) {
				best = v
			}
		}
		return best
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return parsed
		}
	}
	return 0
}
