package selection

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type Solver string

const (
	// SolverCoordinate is cyclic proximal coordinate descent with the
	// intercept regularised as an extra constant column.
	SolverCoordinate Solver = "coordinate"
	// SolverSAGA is the SAGA incremental gradient method with an
	// unregularised intercept.
	SolverSAGA Solver = "saga"
)

const importanceThreshold = 1e-5

// L1Logistic is a binary logistic regression with an L1 penalty and
// inverse regularisation strength C.
type L1Logistic struct {
	C       float64
	Solver  Solver
	MaxIter int
	Tol     float64

	Coef       []float64
	Intercept  float64
	Iterations int
	Converged  bool

	rng *rand.Rand
}

func NewL1Logistic(solver Solver, maxIter int, rng *rand.Rand) *L1Logistic {
	return &L1Logistic{
		C:       1.0,
		Solver:  solver,
		MaxIter: maxIter,
		Tol:     1e-4,
		rng:     rng,
	}
}

func (m *L1Logistic) Fit(X *mat.Dense, y []int) error {
	r, c := X.Dims()
	if r != len(y) {
		return fmt.Errorf("X has %d rows but y has %d labels", r, len(y))
	}
	signs := make([]float64, r)
	var pos, neg int
	for i, label := range y {
		switch label {
		case 1:
			signs[i] = 1
			pos++
		case 0:
			signs[i] = -1
			neg++
		default:
			return fmt.Errorf("logistic regression needs binary labels, got %d", label)
		}
	}
	if pos == 0 || neg == 0 {
		return fmt.Errorf("logistic regression needs both classes")
	}

	m.Coef = make([]float64, c)
	m.Intercept = 0
	m.Converged = false

	switch m.Solver {
	case SolverCoordinate:
		m.fitCoordinate(X, signs)
	case SolverSAGA:
		if m.rng == nil {
			return fmt.Errorf("saga solver needs a random source")
		}
		m.fitSAGA(X, signs)
	default:
		return fmt.Errorf("unknown solver: %s", m.Solver)
	}
	return nil
}

func (m *L1Logistic) fitCoordinate(X *mat.Dense, signs []float64) {
	r, c := X.Dims()

	// the last column is the constant intercept feature
	cols := make([][]float64, c+1)
	for j := 0; j < c; j++ {
		cols[j] = mat.Col(nil, j, X)
	}
	ones := make([]float64, r)
	for i := range ones {
		ones[i] = 1
	}
	cols[c] = ones

	lipschitz := make([]float64, c+1)
	for j, col := range cols {
		lipschitz[j] = 0.25 * m.C * floats.Dot(col, col)
	}

	w := make([]float64, c+1)
	margins := make([]float64, r)

	for epoch := 1; epoch <= m.MaxIter; epoch++ {
		m.Iterations = epoch
		var maxDelta, maxW float64

		for j, col := range cols {
			if lipschitz[j] == 0 {
				continue
			}
			var grad float64
			for i, x := range col {
				if x == 0 {
					continue
				}
				grad -= signs[i] * x * sigmoid(-signs[i]*margins[i])
			}
			grad *= m.C

			next := softThreshold(w[j]-grad/lipschitz[j], 1/lipschitz[j])
			delta := next - w[j]
			if delta != 0 {
				floats.AddScaled(margins, delta, col)
				w[j] = next
			}
			maxDelta = math.Max(maxDelta, math.Abs(delta))
			maxW = math.Max(maxW, math.Abs(w[j]))
		}

		if maxDelta <= m.Tol*math.Max(1, maxW) {
			m.Converged = true
			break
		}
	}

	copy(m.Coef, w[:c])
	m.Intercept = w[c]
}

func (m *L1Logistic) fitSAGA(X *mat.Dense, signs []float64) {
	r, c := X.Dims()
	rows := make([][]float64, r)
	var maxSq float64
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
		maxSq = math.Max(maxSq, floats.Dot(rows[i], rows[i]))
	}

	alpha := 1 / (m.C * float64(r))
	step := 1 / (2 * 0.25 * (maxSq + 1))

	w := make([]float64, c)
	var b float64
	memory := make([]float64, r)
	seen := make([]bool, r)
	nSeen := 0
	sumGrad := make([]float64, c)
	var sumGradB float64
	prev := make([]float64, c+1)

	for epoch := 1; epoch <= m.MaxIter; epoch++ {
		m.Iterations = epoch
		copy(prev, w)
		prev[c] = b

		for t := 0; t < r; t++ {
			i := m.rng.Intn(r)
			x := rows[i]
			z := floats.Dot(w, x) + b
			g := -signs[i] * sigmoid(-signs[i]*z)

			if !seen[i] {
				seen[i] = true
				nSeen++
			}
			diff := g - memory[i]
			memory[i] = g

			for j := range w {
				avg := sumGrad[j] / float64(nSeen)
				w[j] = softThreshold(w[j]-step*(diff*x[j]+avg), step*alpha)
				sumGrad[j] += diff * x[j]
			}
			b -= step * (diff + sumGradB/float64(nSeen))
			sumGradB += diff
		}

		var maxChange, maxW float64
		for j := range w {
			maxChange = math.Max(maxChange, math.Abs(w[j]-prev[j]))
			maxW = math.Max(maxW, math.Abs(w[j]))
		}
		maxChange = math.Max(maxChange, math.Abs(b-prev[c]))
		maxW = math.Max(maxW, math.Abs(b))

		if maxW == 0 || maxChange/maxW <= m.Tol {
			m.Converged = true
			break
		}
	}

	copy(m.Coef, w)
	m.Intercept = b
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softThreshold(v, lambda float64) float64 {
	switch {
	case v > lambda:
		return v - lambda
	case v < -lambda:
		return v + lambda
	default:
		return 0
	}
}

// ModelSelector keeps the columns whose absolute L1-logistic coefficient
// reaches the importance threshold, at most k of them, largest first.
type ModelSelector struct {
	name    string
	solver  Solver
	maxIter int
	rng     *rand.Rand
	log     logrus.FieldLogger
}

func NewLassoSelector(rng *rand.Rand, log logrus.FieldLogger) *ModelSelector {
	return &ModelSelector{name: "lasso", solver: SolverCoordinate, maxIter: 1000, rng: rng, log: log}
}

func NewLassoSAGASelector(rng *rand.Rand, log logrus.FieldLogger) *ModelSelector {
	return &ModelSelector{name: "lasso_saga", solver: SolverSAGA, maxIter: 20000, rng: rng, log: log}
}

func (s *ModelSelector) Name() string {
	return s.name
}

func (s *ModelSelector) Select(X *mat.Dense, y []int, names []string, k int) ([]string, error) {
	model := NewL1Logistic(s.solver, s.maxIter, s.rng)
	if err := model.Fit(X, y); err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	if !model.Converged && s.log != nil {
		s.log.WithFields(logrus.Fields{
			"selector":   s.name,
			"iterations": model.Iterations,
		}).Warn("logistic regression did not converge")
	}

	importances := make([]float64, len(model.Coef))
	for j, v := range model.Coef {
		importances[j] = math.Abs(v)
	}

	order := make([]int, len(importances))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return importances[order[a]] > importances[order[b]]
	})
	if k > len(order) {
		k = len(order)
	}

	mask := make([]bool, len(importances))
	for _, idx := range order[:k] {
		if importances[idx] >= importanceThreshold {
			mask[idx] = true
		}
	}
	return supported(names, mask), nil
}
