package growth

import (
	"facemetrics/internal/models"
)

// EthnicityMatcher decides whether an ethnicity code falls within the group
// a dataset was sampled from. *ethnicity.Registry satisfies it.
type EthnicityMatcher interface {
	Belongs(group, code int) bool
}

// Policy controls how candidates are preferred once the age filter has
// been applied.
type Policy struct {
	// EthnicityBeforeInPlane ranks ethnicity specificity above agreement of
	// the in-plane flag. When false the two criteria swap priority.
	EthnicityBeforeInPlane bool

	// Ethnicities resolves group membership. When nil only exact codes and
	// the generic code 0 match.
	Ethnicities EthnicityMatcher
}

// DefaultPolicy ranks sex, then ethnicity, then in-plane agreement.
func DefaultPolicy() Policy {
	return Policy{EthnicityBeforeInPlane: true}
}

// Belongs reports whether code falls within the ethnicity group a dataset
// was sampled from.
func (p Policy) Belongs(group, code int) bool {
	if p.Ethnicities != nil {
		return p.Ethnicities.Belongs(group, code)
	}
	return group == 0 || group == code
}

// Ranker selects the growth data of a metric that best matches a subject.
//
// Rank is a pure function of the demographic and the candidates. Rerank
// additionally remembers the selection so Current can be read without
// repeating the search; the memo goes stale whenever the demographic, the
// candidates, the policy or the in-plane setting change.
type Ranker struct {
	policy     Policy
	inPlane    bool
	candidates []*GrowthData

	current *GrowthData
	key     models.Demographic
	fresh   bool
}

// NewRanker creates an empty ranker.
func NewRanker(policy Policy) *Ranker {
	return &Ranker{policy: policy}
}

// Add appends candidates in load order. Earlier candidates win ties.
func (r *Ranker) Add(gds ...*GrowthData) {
	for _, gd := range gds {
		if gd != nil {
			r.candidates = append(r.candidates, gd)
		}
	}
	r.Invalidate()
}

// Candidates returns the candidates in load order.
func (r *Ranker) Candidates() []*GrowthData {
	return append([]*GrowthData(nil), r.candidates...)
}

// Len returns the number of candidates.
func (r *Ranker) Len() int { return len(r.candidates) }

// SetInPlane sets whether the owning metric measures in-plane. Candidates
// whose in-plane flag agrees are preferred.
func (r *Ranker) SetInPlane(v bool) {
	if r.inPlane != v {
		r.inPlane = v
		r.Invalidate()
	}
}

// InPlane returns the in-plane setting used for ranking.
func (r *Ranker) InPlane() bool { return r.inPlane }

// SetPolicy replaces the ranking policy.
func (r *Ranker) SetPolicy(p Policy) {
	r.policy = p
	r.Invalidate()
}

// Policy returns the ranking policy.
func (r *Ranker) Policy() Policy { return r.policy }

// Invalidate marks the remembered selection stale.
func (r *Ranker) Invalidate() {
	r.fresh = false
	r.current = nil
}

// Rank returns the best candidate for d without changing the ranker, or nil
// when no candidate covers d.Age.
func (r *Ranker) Rank(d models.Demographic) *GrowthData {
	var best *GrowthData
	var bestScore [3]int
	for _, gd := range r.candidates {
		if !gd.IsWithinAgeRange(d.Age) {
			continue
		}
		s := r.score(gd, d)
		if best == nil || greater(s, bestScore) {
			best, bestScore = gd, s
		}
	}
	return best
}

// Rerank selects the best candidate for d and remembers it. Repeated calls
// with the same demographic return the remembered selection.
func (r *Ranker) Rerank(d models.Demographic) *GrowthData {
	if r.fresh && r.key == d {
		return r.current
	}
	r.current = r.Rank(d)
	r.key = d
	r.fresh = true
	return r.current
}

// Current returns the selection made by the last Rerank, or nil when stale
// or when no candidate matched.
func (r *Ranker) Current() *GrowthData {
	if !r.fresh {
		return nil
	}
	return r.current
}

// IsAgeMatch reports whether the last Rerank found data covering the age.
func (r *Ranker) IsAgeMatch() bool { return r.Current() != nil }

// score orders the soft preferences according to the policy. Higher is
// better in every position.
func (r *Ranker) score(gd *GrowthData, d models.Demographic) [3]int {
	sex := sexTier(gd.Sex(), d.Sex)
	eth := r.ethnicityTier(gd.Ethnicity(), d.MaternalEthnicity, d.PaternalEthnicity)
	plane := 0
	if gd.InPlane() == r.inPlane {
		plane = 1
	}
	if r.policy.EthnicityBeforeInPlane {
		return [3]int{sex, eth, plane}
	}
	return [3]int{sex, plane, eth}
}

func sexTier(gdSex, subject models.Sex) int {
	switch {
	case subject.Valid() && subject != models.BothSexes && gdSex == subject:
		return 2
	case gdSex == models.BothSexes:
		return 1
	default:
		return 0
	}
}

func (r *Ranker) ethnicityTier(group, maternal, paternal int) int {
	if group == 0 {
		return 1
	}
	m := maternal != 0 && r.policy.Belongs(group, maternal)
	p := paternal != 0 && r.policy.Belongs(group, paternal)
	switch {
	case m && p:
		return 3
	case m || p:
		return 2
	default:
		return 0
	}
}

func greater(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
