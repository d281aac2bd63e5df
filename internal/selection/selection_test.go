package selection

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"gonum.org/v1/gonum/mat"

	"mutclust/internal/data"
)

// informativeData has column 0 driven by the label, column 1 pure noise.
func informativeData(n int, seed int64) (*mat.Dense, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		y[i] = i % 2
		X.Set(i, 0, 0.3+0.4*float64(y[i])+0.15*rng.NormFloat64())
		X.Set(i, 1, rng.Float64())
	}
	// keep everything non-negative for chi2
	for i := 0; i < n; i++ {
		if X.At(i, 0) < 0 {
			X.Set(i, 0, 0)
		}
	}
	return X, y
}

func TestChi2KnownValues(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 1,
		1, 0,
		0, 1,
		0, 0,
	})
	y := []int{1, 1, 0, 0}
	scores, pvalues, err := Chi2(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(scores[0]-2) > 1e-12 {
		t.Errorf("chi2 of perfectly aligned column = %v, want 2", scores[0])
	}
	if scores[1] != 0 {
		t.Errorf("chi2 of independent column = %v, want 0", scores[1])
	}
	if pvalues[0] >= pvalues[1] {
		t.Errorf("aligned column should have the smaller p-value: %v", pvalues)
	}

	if _, _, err := Chi2(mat.NewDense(2, 1, []float64{-1, 1}), []int{0, 1}); err == nil {
		t.Error("expected error for negative values")
	}
}

func TestFClassifKnownValue(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	scores, _, err := FClassif(X, []int{0, 0, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(scores[0]-8) > 1e-12 {
		t.Errorf("F = %v, want 8", scores[0])
	}
}

func TestTopKTiesAndNaN(t *testing.T) {
	mask := topK([]float64{1, 1, 1}, 2)
	if mask[0] || !mask[1] || !mask[2] {
		t.Errorf("ties should favour later columns: %v", mask)
	}
	mask = topK([]float64{math.NaN(), 0.5, 0.1}, 2)
	if mask[0] || !mask[1] || !mask[2] {
		t.Errorf("NaN should rank lowest: %v", mask)
	}
	mask = topK([]float64{3, 2}, 5)
	if !mask[0] || !mask[1] {
		t.Errorf("k larger than columns should keep all: %v", mask)
	}
}

func TestMutualInfoPrefersInformative(t *testing.T) {
	X, y := informativeData(400, 3)
	scores, err := MutualInfoClassif(X, y, 3, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	for j, s := range scores {
		if s < 0 {
			t.Errorf("mutual information of column %d is negative: %v", j, s)
		}
	}
	if scores[0] <= scores[1] {
		t.Errorf("informative column should score higher: %v", scores)
	}
}

func TestKthNeighborDistance(t *testing.T) {
	sorted := []float64{0, 1, 3, 6, 10}
	if d := kthNeighborDistance(sorted, 2, 1); d != 2 {
		t.Errorf("1st neighbour of 3 = %v, want 2", d)
	}
	if d := kthNeighborDistance(sorted, 2, 2); d != 3 {
		t.Errorf("2nd neighbour of 3 = %v, want 3", d)
	}
	if d := kthNeighborDistance(sorted, 0, 3); d != 6 {
		t.Errorf("3rd neighbour of 0 = %v, want 6", d)
	}
}

func TestL1LogisticSolvers(t *testing.T) {
	X, y := informativeData(300, 5)
	for _, solver := range []Solver{SolverCoordinate, SolverSAGA} {
		t.Run(string(solver), func(t *testing.T) {
			model := NewL1Logistic(solver, 5000, rand.New(rand.NewSource(2)))
			if err := model.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			if solver == SolverCoordinate && !model.Converged {
				t.Errorf("%s did not converge in %d iterations", solver, model.Iterations)
			}
			if model.Coef[0] <= 0 {
				t.Errorf("informative coefficient should be positive: %v", model.Coef)
			}
			if math.Abs(model.Coef[0]) <= math.Abs(model.Coef[1]) {
				t.Errorf("informative coefficient should dominate: %v", model.Coef)
			}
		})
	}

	if err := NewL1Logistic(SolverCoordinate, 10, nil).Fit(X, make([]int, 300)); err == nil {
		t.Error("expected error for a single class")
	}
	if err := NewL1Logistic(SolverSAGA, 10, nil).Fit(X, y); err == nil {
		t.Error("expected error for saga without a random source")
	}
}

func TestLassoSelectorPicksInformative(t *testing.T) {
	X, y := informativeData(300, 9)
	logger, _ := test.NewNullLogger()
	s := NewLassoSelector(rand.New(rand.NewSource(1)), logger)
	got, err := s.Select(X, y, []string{"signal", "noise"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "signal" {
		t.Errorf("lasso picked %v", got)
	}
}

func TestModelSelectorWarnsOnNonConvergence(t *testing.T) {
	X, y := informativeData(200, 4)
	logger, hook := test.NewNullLogger()
	s := &ModelSelector{name: "lasso", solver: SolverCoordinate, maxIter: 1, log: logger}
	if _, err := s.Select(X, y, []string{"a", "b"}, 2); err != nil {
		t.Fatal(err)
	}
	entry := hook.LastEntry()
	if entry == nil || !strings.Contains(entry.Message, "did not converge") {
		t.Errorf("expected a convergence warning, got %v", entry)
	}
}

func TestMostRepeated(t *testing.T) {
	got, votes := MostRepeated([]string{"b", "c", "a", "c", "b", "d", "c"})
	want := []string{"c", "b", "a", "d"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ranking = %v, want %v", got, want)
	}
	if votes["c"] != 3 || votes["a"] != 1 {
		t.Errorf("votes = %v", votes)
	}
}

type fixedSelector struct {
	name  string
	picks []string
}

func (f fixedSelector) Name() string { return f.name }

func (f fixedSelector) Select(X *mat.Dense, y []int, names []string, k int) ([]string, error) {
	return f.picks, nil
}

type failingSelector struct{}

func (failingSelector) Name() string { return "broken" }

func (failingSelector) Select(X *mat.Dense, y []int, names []string, k int) ([]string, error) {
	return nil, fmt.Errorf("did not converge")
}

func votingDataset(t *testing.T) (*data.Dataset, []int) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	n := 200
	genes := []string{"BRCA1", "TP53", "EGFR"}
	gene := make([]string, n)
	score := make([]string, n)
	depth := make([]string, n)
	labels := make([]string, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		y[i] = i % 2
		labels[i] = []string{"BENIGN", "DELETERIOUS"}[y[i]]
		gene[i] = genes[rng.Intn(len(genes))]
		score[i] = fmt.Sprintf("%.4f", float64(y[i])+0.5*rng.NormFloat64())
		depth[i] = fmt.Sprintf("%d", rng.Intn(50))
	}
	ds, err := data.FromRecords([]string{"GENE", "SCORE", "DEPTH"}, [][]string{gene, score, depth}, labels,
		data.Schema{"GENE": data.Categorical, "SCORE": data.Numeric, "DEPTH": data.Numeric})
	if err != nil {
		t.Fatal(err)
	}
	return ds, y
}

func TestVoterCountsAcrossSelectors(t *testing.T) {
	ds, y := votingDataset(t)
	v := NewVoterWith(nil,
		fixedSelector{"a", []string{"SCORE", "GENE"}},
		fixedSelector{"b", []string{"SCORE"}},
		fixedSelector{"c", []string{"DEPTH", "SCORE"}},
	)
	ranking, err := v.Rank(ds, y, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"SCORE", "DEPTH", "GENE"}
	if strings.Join(ranking.Features, ",") != strings.Join(want, ",") {
		t.Errorf("ranking = %v, want %v", ranking.Features, want)
	}
	if top := ranking.Top(2); len(top) != 2 || top[0] != "SCORE" {
		t.Errorf("Top(2) = %v", top)
	}
	if top := ranking.Top(10); len(top) != 3 {
		t.Errorf("Top beyond length should return all: %v", top)
	}

	v = NewVoterWith(nil, fixedSelector{"a", []string{"SCORE"}}, failingSelector{})
	if _, err := v.Rank(ds, y, 2); err == nil {
		t.Error("selector errors should propagate")
	}
}

func TestVoterFullEnsemble(t *testing.T) {
	ds, y := votingDataset(t)
	logger, _ := test.NewNullLogger()
	v := NewVoter(rand.New(rand.NewSource(1234)), logger)

	ranking, err := v.Rank(ds, y, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranking.Picks) != 5 {
		t.Fatalf("expected five selector picks, got %d", len(ranking.Picks))
	}

	distinct := make(map[string]bool)
	for _, p := range ranking.Picks {
		if len(p.Features) > 2 {
			t.Errorf("%s picked more than n features: %v", p.Selector, p.Features)
		}
		for _, f := range p.Features {
			distinct[f] = true
		}
	}
	if len(ranking.Features) != len(distinct) {
		t.Errorf("ranking has %d features, selectors picked %d distinct", len(ranking.Features), len(distinct))
	}
	for f := range distinct {
		if ranking.Votes[f] == 0 {
			t.Errorf("picked feature %s missing from votes", f)
		}
	}
	if ranking.Votes["SCORE"] != len(ranking.Picks) {
		t.Errorf("every selector should pick the label-driven column: %v", ranking.Picks)
	}
}
