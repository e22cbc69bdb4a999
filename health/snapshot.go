package health

import "time"

// Snapshot is the aggregated health view published at the end of a cycle.
// A published Snapshot is never mutated; accessors hand out copies.
type Snapshot struct {
	// Status is the overall status derived from Results.
	Status Status

	// Results holds one result per registered dependency, in registration order.
	Results []Result

	// Timestamp is when the snapshot was aggregated.
	Timestamp time.Time
}

// Result returns the result for the named dependency.
func (s Snapshot) Result(name string) (Result, bool) {
	for _, r := range s.Results {
		if r.Name == name {
			return r, true
		}
	}
	return Result{}, false
}

// Healthy reports whether the overall status is healthy.
func (s Snapshot) Healthy() bool {
	return s.Status == StatusHealthy
}

// Counts returns how many results are in each status.
func (s Snapshot) Counts() map[Status]int {
	counts := make(map[Status]int, 3)
	for _, r := range s.Results {
		counts[r.Status]++
	}
	return counts
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Results != nil {
		out.Results = make([]Result, len(s.Results))
		copy(out.Results, s.Results)
	}
	return out
}

// OverallStatus folds results into a single status.
// Returns StatusDown if any result is down.
// Returns StatusDegraded if any result is degraded but none are down.
// Returns StatusHealthy otherwise, including for no results.
func OverallStatus(results []Result) Status {
	hasDegraded := false

	for _, r := range results {
		switch r.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// aggregate builds a snapshot holding exactly one result per name.
// Names without a result are recorded as down.
func aggregate(names []string, results []Result, at time.Time) Snapshot {
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		if _, seen := byName[r.Name]; !seen {
			byName[r.Name] = r
		}
	}

	ordered := make([]Result, 0, len(names))
	for _, name := range names {
		r, ok := byName[name]
		if !ok {
			r = Result{
				Name:      name,
				Status:    StatusDown,
				Message:   "no probe result",
				Error:     ErrNoResult,
				Timestamp: at,
			}
		}
		ordered = append(ordered, r)
	}

	return Snapshot{
		Status:    OverallStatus(ordered),
		Results:   ordered,
		Timestamp: at,
	}
}
