// Package assign matches maintenance plans to users for one day.
package assign

import "sort"

// Candidate is an active, available user.
type Candidate struct {
	UserID        int64
	SkillLevel    int
	PriorityOrder int
}

// Demand is a plan that needs an assignee on the target day.
type Demand struct {
	PlanID           int64
	RequiredSkill    int
	Rank             int // lower is more urgent
	EstimatedMinutes int
}

// Existing is an assignment already stored for the target day.
type Existing struct {
	UserID           int64
	PlanID           int64
	EstimatedMinutes int
}

// Proposal is a new assignment. PriorityOrder is its position in the user's day.
type Proposal struct {
	UserID        int64
	PlanID        int64
	PriorityOrder int
}

// Result of a matching run.
type Result struct {
	Proposals []Proposal
	// Covered lists plans that already had an assignment for the day.
	Covered []int64
	// Unmatched lists plans no qualified user could take.
	Unmatched []int64
}

// Options tune the matcher.
type Options struct {
	// DailyCapacityMinutes caps the estimated work per user and day. Zero means no cap.
	DailyCapacityMinutes int
}

type load struct {
	count   int
	minutes int
}

// Match assigns every uncovered demand to at most one qualified user. A user qualifies when
// their skill level is at least the plan's requirement and the plan still fits their daily
// capacity. Among qualified users the lowest priority order wins, then the smallest number of
// assignments that day, then the lowest user ID. Demands are handled most urgent first.
func Match(demands []Demand, users []Candidate, existing []Existing, opts Options) Result {
	loads := make(map[int64]*load, len(users))
	for _, u := range users {
		loads[u.UserID] = &load{}
	}
	covered := make(map[int64]bool)
	for _, e := range existing {
		if l, ok := loads[e.UserID]; ok {
			l.count++
			l.minutes += e.EstimatedMinutes
		}
		covered[e.PlanID] = true
	}

	ordered := make([]Demand, len(demands))
	copy(ordered, demands)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Rank != ordered[j].Rank {
			return ordered[i].Rank < ordered[j].Rank
		}
		return ordered[i].PlanID < ordered[j].PlanID
	})

	var res Result
	for _, d := range ordered {
		if covered[d.PlanID] {
			res.Covered = append(res.Covered, d.PlanID)
			continue
		}

		best, ok := pick(d, users, loads, opts)
		if !ok {
			res.Unmatched = append(res.Unmatched, d.PlanID)
			continue
		}

		l := loads[best.UserID]
		l.count++
		l.minutes += d.EstimatedMinutes
		covered[d.PlanID] = true
		res.Proposals = append(res.Proposals, Proposal{UserID: best.UserID, PlanID: d.PlanID, PriorityOrder: l.count})
	}
	return res
}

func pick(d Demand, users []Candidate, loads map[int64]*load, opts Options) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, u := range users {
		if u.SkillLevel < d.RequiredSkill {
			continue
		}
		l := loads[u.UserID]
		if opts.DailyCapacityMinutes > 0 && l.minutes+d.EstimatedMinutes > opts.DailyCapacityMinutes {
			continue
		}
		if !found || better(u, best, loads) {
			best, found = u, true
		}
	}
	return best, found
}

func better(a, b Candidate, loads map[int64]*load) bool {
	if a.PriorityOrder != b.PriorityOrder {
		return a.PriorityOrder < b.PriorityOrder
	}
	if la, lb := loads[a.UserID].count, loads[b.UserID].count; la != lb {
		return la < lb
	}
	return a.UserID < b.UserID
}
