package assessment

import (
	"math"
	"sort"

	"github.com/yungbote/coursegen-backend/internal/platform/apierr"
)

// Difficulty is a distribution over question difficulty. Stored values are
// normalised to sum to 1.
type Difficulty struct {
	Easy   float64 `json:"easy"`
	Medium float64 `json:"medium"`
	Hard   float64 `json:"hard"`
}

var DefaultDifficulty = Difficulty{Easy: 0.3, Medium: 0.5, Hard: 0.2}

// NormalizeDifficulty applies the default to nil and rejects negative or
// all-zero overrides.
func NormalizeDifficulty(d *Difficulty) (Difficulty, error) {
	if d == nil {
		return DefaultDifficulty, nil
	}
	for _, v := range []float64{d.Easy, d.Medium, d.Hard} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Difficulty{}, apierr.Validation("difficulty weights must be non-negative numbers")
		}
	}
	sum := d.Easy + d.Medium + d.Hard
	if sum <= 0 {
		return Difficulty{}, apierr.Validation("difficulty weights must have a positive sum")
	}
	return Difficulty{Easy: d.Easy / sum, Medium: d.Medium / sum, Hard: d.Hard / sum}, nil
}

// Counts splits n questions by largest remainder so the counts always add up to n.
func (d Difficulty) Counts(n int) (easy, medium, hard int) {
	weights := []float64{d.Easy, d.Medium, d.Hard}
	counts := make([]int, 3)
	type rem struct {
		i int
		r float64
	}
	rems := make([]rem, 3)
	total := 0
	for i, w := range weights {
		exact := w * float64(n)
		counts[i] = int(math.Floor(exact))
		rems[i] = rem{i: i, r: exact - float64(counts[i])}
		total += counts[i]
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].r > rems[b].r })
	for k := 0; total < n; k++ {
		counts[rems[k%3].i]++
		total++
	}
	return counts[0], counts[1], counts[2]
}
