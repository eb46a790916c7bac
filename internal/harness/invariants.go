package harness

import (
	"fmt"
	"time"

	"github.com/roach88/launchpad/internal/engine"
)

// invariantChecker verifies properties every campaign must keep after
// every step, whatever the scenario does:
//
//   - tokens sold never exceed the sale supply
//   - capital raised never exceeds the hard cap
//   - a committed tally never changes
//   - the tally never allocates more than the hard cap
type invariantChecker struct {
	digests map[string]string
}

func newInvariantChecker() *invariantChecker {
	return &invariantChecker{digests: map[string]string{}}
}

// check returns one message per violated invariant.
func (ic *invariantChecker) check(e *engine.Engine, now time.Time) []string {
	var violations []string
	for _, info := range e.Campaigns(now) {
		c, err := e.Campaign(info.ID)
		if err != nil {
			violations = append(violations, err.Error())
			continue
		}

		sold, err := c.TotalSold()
		if err != nil {
			violations = append(violations, fmt.Sprintf("%s: total sold: %v", c.ID, err))
		} else if sold.Gt(c.Config.SaleSupply) {
			violations = append(violations, fmt.Sprintf("%s: sold %s exceeds sale supply %s", c.ID, sold, c.Config.SaleSupply))
		}

		if c.TotalRaised.Gt(c.Config.HardCap) {
			violations = append(violations, fmt.Sprintf("%s: raised %s exceeds hard cap %s", c.ID, c.TotalRaised, c.Config.HardCap))
		}

		if c.Tally == nil {
			continue
		}
		if c.Tally.TotalAllocated.Gt(c.Config.HardCap) {
			violations = append(violations, fmt.Sprintf("%s: tally allocates %s above hard cap %s", c.ID, c.Tally.TotalAllocated, c.Config.HardCap))
		}
		if prev, ok := ic.digests[c.ID]; ok && prev != c.Tally.Digest {
			violations = append(violations, fmt.Sprintf("%s: tally changed from %s to %s", c.ID, prev, c.Tally.Digest))
		}
		ic.digests[c.ID] = c.Tally.Digest
	}
	return violations
}
