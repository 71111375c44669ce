package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/spoolsync/pkg/differ"
	"github.com/agentstation/spoolsync/pkg/planner"
	"github.com/agentstation/spoolsync/pkg/reconcile"
)

// Result is everything a reconciliation pass produced: the raw changeset,
// the per-field decisions, surfaced conflicts, and the plan with final
// operation states. It is the input for the CLI diff report.
type Result struct {
	Changeset *differ.Changeset
	Decisions []reconcile.Decision
	Conflicts []*reconcile.Conflict
	Plan      *planner.Plan
	DryRun    bool
	Duration  time.Duration
}

// Counts tallies final operation states.
type Counts struct {
	Pending   int
	Applied   int
	Confirmed int
	Failed    int
	Abandoned int
}

// OperationCounts returns the tally of final operation states.
func (r *Result) OperationCounts() Counts {
	var c Counts
	if r.Plan == nil {
		return c
	}
	for _, op := range r.Plan.All() {
		switch op.State() {
		case planner.StatePending:
			c.Pending++
		case planner.StateApplied:
			c.Applied++
		case planner.StateConfirmed:
			c.Confirmed++
		case planner.StateFailed, planner.StateRetrying:
			c.Failed++
		case planner.StateAbandoned:
			c.Abandoned++
		}
	}
	return c
}

// Partial reports whether the pass ended with some operations through and
// others abandoned.
func (r *Result) Partial() bool {
	c := r.OperationCounts()
	return c.Abandoned > 0 && (c.Confirmed > 0 || c.Applied > 0)
}

// HasConflicts reports whether any field needs manual resolution.
func (r *Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// Report renders a human-readable end-of-pass summary.
func (r *Result) Report() string {
	var b strings.Builder

	if r.Changeset != nil && !r.Changeset.HasChanges() && !r.HasConflicts() {
		return "in sync, no changes\n"
	}

	if r.Changeset != nil {
		b.WriteString(r.Changeset.String())
	}

	for _, c := range r.Conflicts {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}

	if r.Plan != nil && !r.Plan.Empty() {
		if r.DryRun {
			b.WriteString("planned operations (dry run):\n")
		} else {
			b.WriteString("operations:\n")
		}
		for _, op := range r.Plan.All() {
			fmt.Fprintf(&b, "  %s\n", op)
		}
	}

	c := r.OperationCounts()
	if !r.DryRun && (c.Confirmed+c.Applied+c.Failed+c.Abandoned) > 0 {
		fmt.Fprintf(&b, "%d confirmed, %d applied, %d failed, %d abandoned\n",
			c.Confirmed, c.Applied, c.Failed, c.Abandoned)
	}

	return b.String()
}
