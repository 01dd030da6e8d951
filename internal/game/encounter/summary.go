package encounter

import "sort"

// Summary is the post-mortem produced when an encounter ends. It stays
// attached to the ended encounter and remains queryable.
type Summary struct {
	Outcome           string         `json:"outcome"`
	Rounds            int            `json:"rounds"`
	DamageDealt       map[string]int `json:"damage_dealt"`
	DamageHealed      map[string]int `json:"damage_healed"`
	Hits              map[string]int `json:"hits"`
	Attempts          map[string]int `json:"attempts"`
	ConditionsApplied map[string]int `json:"conditions_applied"`
	MVP               string         `json:"mvp,omitempty"`
	MVPReason         string         `json:"mvp_reason,omitempty"`
}

// buildSummary snapshots the encounter tallies and picks a most valuable
// participant: highest damage dealt plus healing done, ties broken by hit
// count, then by id for determinism.
func buildSummary(e *Encounter, outcome string) *Summary {
	s := &Summary{
		Outcome:           outcome,
		Rounds:            e.round,
		DamageDealt:       copyTally(e.damageDealt),
		DamageHealed:      copyTally(e.damageHealed),
		Hits:              copyTally(e.hits),
		Attempts:          copyTally(e.attempts),
		ConditionsApplied: copyTally(e.condApplied),
	}

	type scored struct {
		id    string
		score int
		hits  int
	}
	var candidates []scored
	for _, p := range e.participants {
		score := e.damageDealt[p.ID] + e.damageHealed[p.ID]
		if score == 0 && e.hits[p.ID] == 0 {
			continue
		}
		candidates = append(candidates, scored{id: p.ID, score: score, hits: e.hits[p.ID]})
	}
	if len(candidates) == 0 {
		return s
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.hits != b.hits {
			return a.hits > b.hits
		}
		return a.id < b.id
	})
	best := candidates[0]
	s.MVP = best.id
	s.MVPReason = mvpReason(e, best.id)
	return s
}

func mvpReason(e *Encounter, id string) string {
	switch {
	case e.damageDealt[id] >= e.damageHealed[id] && e.damageDealt[id] > 0:
		return "most damage dealt"
	case e.damageHealed[id] > 0:
		return "most healing done"
	default:
		return "most hits landed"
	}
}

func copyTally(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
