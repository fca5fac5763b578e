package shell

import (
	"fmt"
	"strconv"
)

// MaxRecursionDepth is the hard ceiling on any stack position of a
// repeated script and on the operator-supplied bound.
const MaxRecursionDepth = 500

// BoundAsker obtains the recursion bound from the operator.
type BoundAsker interface {
	AskRecursionBound(limit int) (int, error)
}

// RecursionGuard decides whether a nested script invocation may run.
// The bound is asked for once, the first time a script is found already on
// the stack, and kept for the rest of the session.
type RecursionGuard struct {
	asker   BoundAsker
	limit   int
	bound   int
	bounded bool
}

// NewRecursionGuard creates a guard. limit caps both the accepted bound and
// the deepest allowed stack position; values outside [0,500] become 500.
func NewRecursionGuard(asker BoundAsker, limit int) *RecursionGuard {
	if limit < 0 || limit > MaxRecursionDepth {
		limit = MaxRecursionDepth
	}
	return &RecursionGuard{asker: asker, limit: limit}
}

// Bound returns the session bound and whether it has been set.
func (g *RecursionGuard) Bound() (int, bool) {
	return g.bound, g.bounded
}

// SetBound fixes the bound without asking. It has no effect once a bound
// is established.
func (g *RecursionGuard) SetBound(n int) {
	if g.bounded {
		return
	}
	g.bound = n
	g.bounded = true
}

// Allow scans stack (outermost first, not yet holding target) and reports
// whether target may be entered. Positions are 1-based; the first position
// holding target is the recursion start. Any later position holding target
// that lies beyond start+bound, or beyond the ceiling, refuses the call.
func (g *RecursionGuard) Allow(target string, stack []string) (bool, error) {
	recStart := -1
	for i, name := range stack {
		pos := i + 1
		if name != target {
			continue
		}
		if recStart < 0 {
			recStart = pos
		}
		if !g.bounded {
			n, err := g.asker.AskRecursionBound(g.limit)
			if err != nil {
				return false, fmt.Errorf("failed to read recursion bound: %w", err)
			}
			g.SetBound(n)
		}
		if pos > recStart+g.bound || pos > g.limit {
			return false, nil
		}
	}
	return true, nil
}

// AskRecursionBound prompts the operator on the interactive source until
// an integer in [0,limit] is entered. Script reading is suspended while
// the operator answers.
func (c *Console) AskRecursionBound(limit int) (int, error) {
	c.Printf("Recursion detected! Enter the maximum recursion depth (0..%d)\n", limit)
	for {
		c.Prompt()
		line, err := c.ReadInteractive()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 || n > limit {
			c.Println("depth not recognized")
			continue
		}
		return n, nil
	}
}
