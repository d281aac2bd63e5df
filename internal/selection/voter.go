package selection

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"mutclust/internal/data"
	"mutclust/internal/preprocessing"
)

// Pick is what one selector chose.
type Pick struct {
	Selector string
	Features []string
}

// Ranking orders features by how many selectors picked them.
type Ranking struct {
	Features []string
	Votes    map[string]int
	Picks    []Pick
}

// Top returns the first n ranked features, or all of them if fewer.
func (r *Ranking) Top(n int) []string {
	if n > len(r.Features) {
		n = len(r.Features)
	}
	out := make([]string, n)
	copy(out, r.Features[:n])
	return out
}

type Voter struct {
	selectors []Selector
	log       logrus.FieldLogger
}

// NewVoter wires the five selectors in voting order: chi2, mutual
// information, ANOVA, lasso and lasso-saga.
func NewVoter(rng *rand.Rand, log logrus.FieldLogger) *Voter {
	return NewVoterWith(log,
		NewChi2Selector(),
		NewMutualInfoSelector(rng),
		NewAnovaSelector(),
		NewLassoSelector(rng, log),
		NewLassoSAGASelector(rng, log),
	)
}

func NewVoterWith(log logrus.FieldLogger, selectors ...Selector) *Voter {
	return &Voter{selectors: selectors, log: log}
}

// Rank encodes ds ordinally, asks every selector for its top n columns and
// ranks the union by vote count.
func (v *Voter) Rank(ds *data.Dataset, y []int, n int) (*Ranking, error) {
	if ds.Len() != len(y) {
		return nil, fmt.Errorf("dataset has %d rows but %d labels", ds.Len(), len(y))
	}
	X, names, err := preprocessing.OrdinalMatrix(ds)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}

	k := n
	if k > len(names) {
		k = len(names)
	}

	ranking := &Ranking{}
	var all []string
	for _, s := range v.selectors {
		picked, err := s.Select(X, y, names, k)
		if err != nil {
			return nil, err
		}
		if v.log != nil {
			v.log.WithFields(logrus.Fields{
				"selector": s.Name(),
				"features": picked,
			}).Debug("selector picks")
		}
		ranking.Picks = append(ranking.Picks, Pick{Selector: s.Name(), Features: picked})
		all = append(all, picked...)
	}

	ranking.Features, ranking.Votes = MostRepeated(all)
	return ranking, nil
}

// MostRepeated orders the distinct names in picks by occurrence count,
// highest first. Names with the same count stay in alphabetical order.
func MostRepeated(picks []string) ([]string, map[string]int) {
	counts := make(map[string]int)
	for _, name := range picks {
		counts[name]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	sort.SliceStable(names, func(a, b int) bool {
		return counts[names[a]] > counts[names[b]]
	})

	return names, counts
}
