package category

import "sort"

// NodeScore is one (node, category) observation produced by the scorer.
type NodeScore struct {
	NodeID   string
	Category string
	Count    int
	Score    float64
}

// Ranked is a category entry in a node's display list.
type Ranked struct {
	Category string
	Count    int
	Score    float64
}

// Resolution is the outcome for one node: its ranked categories and the primary one.
type Resolution struct {
	Primary    string
	Score      float64
	Categories []Ranked
}

// Names lists the node's categories in rank order.
func (r Resolution) Names() []string {
	names := make([]string, len(r.Categories))
	for i, c := range r.Categories {
		names[i] = c.Category
	}
	return names
}

// Resolve aggregates scores per node (counts summed, highest score kept) and ranks each node's
// categories by count descending, then by vocabulary order. Nodes with no positive count are
// absent from the result.
func Resolve(scores []NodeScore, vocab *Vocabulary) map[string]Resolution {
	type key struct{ node, category string }

	totals := make(map[key]*Ranked)
	byNode := make(map[string][]*Ranked)

	for _, s := range scores {
		if s.Count <= 0 {
			continue
		}
		k := key{s.NodeID, s.Category}
		r, ok := totals[k]
		if !ok {
			r = &Ranked{Category: s.Category}
			totals[k] = r
			byNode[s.NodeID] = append(byNode[s.NodeID], r)
		}
		r.Count += s.Count
		if s.Score > r.Score {
			r.Score = s.Score
		}
	}

	resolved := make(map[string]Resolution, len(byNode))
	for node, entries := range byNode {
		ranked := make([]Ranked, len(entries))
		for i, e := range entries {
			ranked[i] = *e
		}
		SortRanked(ranked, vocab)

		resolved[node] = Resolution{
			Primary:    ranked[0].Category,
			Score:      ranked[0].Score,
			Categories: ranked,
		}
	}
	return resolved
}

// SortRanked orders by count descending, ties by vocabulary declaration order, then by name.
func SortRanked(ranked []Ranked, vocab *Vocabulary) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		ri, rj := vocab.Rank(ranked[i].Category), vocab.Rank(ranked[j].Category)
		if ri != rj {
			return ri < rj
		}
		return ranked[i].Category < ranked[j].Category
	})
}
