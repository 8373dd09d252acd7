package queue

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Lane is a named queue with a relative share of claim attempts.
// Lanes listed first are preferred; weight decides how often a lane gets to
// go first, so a lane with weight w leads w times in every sum(weights) claims.
type Lane struct {
	Name   string
	Weight int
}

// ParseLanes parses "critical:6,default:3,low:1". A missing weight means 1.
func ParseLanes(s string) ([]Lane, error) {
	var lanes []Lane
	seen := make(map[string]bool)

	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, weightStr, hasWeight := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty lane name in %q", ErrInvalidLane, part)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate lane %q", ErrInvalidLane, name)
		}

		weight := 1
		if hasWeight {
			w, err := strconv.Atoi(strings.TrimSpace(weightStr))
			if err != nil || w < 1 {
				return nil, fmt.Errorf("%w: weight of %q must be a positive integer", ErrInvalidLane, name)
			}
			weight = w
		}

		seen[name] = true
		lanes = append(lanes, Lane{Name: name, Weight: weight})
	}

	if len(lanes) == 0 {
		return nil, ErrNoLanes
	}

	return lanes, nil
}

// laneRotation hands out lane preference orders following a smooth weighted
// round robin, so high weight lanes lead more often without starving the rest.
type laneRotation struct {
	mu       sync.Mutex
	names    []string
	sequence []int
	cursor   int
}

func newLaneRotation(lanes []Lane) *laneRotation {
	names := make([]string, len(lanes))
	weights := make([]int, len(lanes))
	total := 0
	for i, l := range lanes {
		names[i] = l.Name
		weights[i] = max(l.Weight, 1)
		total += weights[i]
	}

	current := make([]int, len(lanes))
	sequence := make([]int, 0, total)
	for range total {
		best := 0
		for i := range current {
			current[i] += weights[i]
			if current[i] > current[best] {
				best = i
			}
		}
		current[best] -= total
		sequence = append(sequence, best)
	}

	return &laneRotation{names: names, sequence: sequence}
}

// next returns the lanes to try for one claim: the leading lane for this
// turn followed by the others in declared order.
func (r *laneRotation) next() []string {
	r.mu.Lock()
	lead := r.sequence[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.sequence)
	r.mu.Unlock()

	order := make([]string, 0, len(r.names))
	order = append(order, r.names[lead])
	for i, name := range r.names {
		if i != lead {
			order = append(order, name)
		}
	}
	return order
}
