package builder

import "sort"

// Count returns how many speakers finished with the given status.
func (r *Report) Count(status string) int {
	n := 0
	for _, outcome := range r.Outcomes {
		if outcome.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether any speaker failed this run.
func (r *Report) Failed() bool {
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			return true
		}
	}
	return false
}

// MissingFiles returns all referenced-but-absent paths across speakers,
// sorted for stable reporting.
func (r *Report) MissingFiles() []string {
	var missing []string
	for _, outcome := range r.Outcomes {
		missing = append(missing, outcome.Missing...)
	}
	sort.Strings(missing)
	return missing
}

// Sorted returns outcomes ordered by speaker. Outcomes accumulate in goroutine
// completion order during the run.
func (r *Report) Sorted() []Outcome {
	outcomes := append([]Outcome(nil), r.Outcomes...)
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Speaker < outcomes[j].Speaker })
	return outcomes
}
