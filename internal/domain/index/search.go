package index

import (
	"context"
	"math"
	"sort"

	"github.com/corey/lucid/internal/ports"
)

// DefaultLimit applies when a caller passes a non-positive limit.
const DefaultLimit = 10

// ctxCheckEvery bounds how many documents are scored between ctx checks.
const ctxCheckEvery = 256

// search scores every document in v against query. Any term matching counts
// (OR semantics). score = sum over terms of sqrt(tf) * idf^2 / sqrt(length),
// idf = 1 + ln(N / (df + 1)). Ties break on path so results are stable.
func search(ctx context.Context, v *view, query string, limit int) ([]ports.Hit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	terms := Terms(query)
	if len(terms) == 0 || len(v.docs) == 0 {
		return nil, nil
	}

	type candidate struct {
		d  *indexedDoc
		tf []int
	}
	df := make([]int, len(terms))
	var cands []candidate

	n := 0
	for _, d := range v.docs {
		n++
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var tf []int
		for i, t := range terms {
			if c := d.tf[t]; c > 0 {
				if tf == nil {
					tf = make([]int, len(terms))
				}
				tf[i] = c
				df[i]++
			}
		}
		if tf != nil {
			cands = append(cands, candidate{d: d, tf: tf})
		}
	}
	if len(cands) == 0 {
		return nil, nil
	}

	total := float64(len(v.docs))
	idf := make([]float64, len(terms))
	for i := range terms {
		idf[i] = 1 + math.Log(total/float64(df[i]+1))
	}

	hits := make([]ports.Hit, 0, len(cands))
	for _, c := range cands {
		var score float64
		for i, f := range c.tf {
			if f > 0 {
				score += math.Sqrt(float64(f)) * idf[i] * idf[i]
			}
		}
		if c.d.length > 0 {
			score /= math.Sqrt(float64(c.d.length))
		}
		hits = append(hits, ports.Hit{
			Key:     c.d.doc.Key,
			Name:    c.d.doc.Name,
			Path:    c.d.doc.Path,
			Score:   score,
			Content: c.d.doc.Content,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Path < hits[j].Path
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
