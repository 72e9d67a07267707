package prune

import (
	"fmt"
	"log"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"prune_lib/tensor"
)

// infDist is the mask constant: large enough to push ineligible pairs past
// every real distance score in the sort order.
const infDist = 10000.0

// Strategy selects how removed neurons are compensated for.
type Strategy int

const (
	// StrategySum zeroes the removed neuron's weight rows/columns.
	StrategySum Strategy = iota
	// StrategyInterpolate fits surviving activations to the removed ones by
	// least squares and redistributes outbound weights before zeroing.
	StrategyInterpolate
)

// Discount selects how a neuron pair's distance is weighed by the pair's
// mean activities before selection.
type Discount int

const (
	// DiscountMin weighs by the smaller of the two activities.
	DiscountMin Discount = iota
	// DiscountSum weighs by their sum.
	DiscountSum
)

// Pair records one pruning decision: Deleted is removed, Survivor absorbs its
// contribution.
type Pair struct {
	Survivor int
	Deleted  int
}

// PruneResult reports what a single Prune call did.
type PruneResult struct {
	Requested    int
	Deleted      int
	Observations int
	MinScore     float64
	MaxScore     float64
}

// Layer tracks activation statistics for one prunable layer and removes
// redundant neurons from its connected weight matrices.
type Layer struct {
	Name    string
	TrgSize int
	NSteps  int
	Maxout  bool

	Strategy Strategy
	Discount Discount
	// MergeOutbound makes StrategySum add the removed neuron's outbound
	// weights onto the survivor's before zeroing.
	MergeOutbound bool

	Connections []Connection

	// Rand drives observation subsampling for StrategyInterpolate.
	Rand *rand.Rand

	size       int
	dists      *mat.Dense
	activities []float64
	mask       *mat.Dense
	nObs       float64
	stepSize   int
	pruned     []int
	prunedSet  map[int]bool
	obs        []*mat.Dense
}

// NewLayer creates a prunable layer that will be reduced to trgSize neurons
// over nSteps pruning events.
func NewLayer(name string, trgSize, nSteps int, maxout bool) *Layer {
	return &Layer{
		Name:      name,
		TrgSize:   trgSize,
		NSteps:    nSteps,
		Maxout:    maxout,
		prunedSet: make(map[int]bool),
	}
}

// Size returns the layer's neuron count, 0 before any activations arrive.
func (l *Layer) Size() int { return l.size }

// CountUnprunedNeurons returns how many neurons have not been removed yet.
func (l *Layer) CountUnprunedNeurons() int { return l.size - len(l.pruned) }

// PrunedNeurons returns a copy of the removed neuron indices in removal order.
func (l *Layer) PrunedNeurons() []int { return append([]int(nil), l.pruned...) }

// Observations returns the number of activation observations accumulated
// since the last reset.
func (l *Layer) Observations() int { return int(l.nObs) }

// Reset clears the distance/activity accumulators and retained observations.
// Pruned-neuron membership and the mask persist.
func (l *Layer) Reset() {
	l.dists = nil
	l.activities = nil
	l.nObs = 0
	l.obs = nil
	log.Printf("layer %s reset", l.Name)
}

// RegisterActivities folds one activation batch into the running pairwise
// squared-distance matrix and per-neuron squared-activity sums. The batch's
// last axis is the neuron axis; all leading axes are flattened into
// observations. Uses the Gram identity ‖a−b‖² = ‖a‖² + ‖b‖² − 2·a·b, so one
// matrix product per batch covers every neuron pair.
func (l *Layer) RegisterActivities(batch *tensor.Tensor) error {
	if len(batch.Shape) == 0 || len(batch.Data) == 0 {
		return fmt.Errorf("layer %s: empty activation batch", l.Name)
	}
	n := batch.Shape[len(batch.Shape)-1]
	samples := len(batch.Data) / n
	if l.size == 0 {
		l.size = n
	} else if n != l.size {
		return fmt.Errorf("layer %s: activation batch has %d neurons, expected %d", l.Name, n, l.size)
	}

	x := mat.NewDense(samples, n, append([]float64(nil), batch.Data...))
	var g mat.Dense
	g.Mul(x.T(), x)

	if l.dists == nil {
		l.dists = mat.NewDense(n, n, nil)
		l.activities = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		gii := g.At(i, i)
		for j := 0; j < n; j++ {
			l.dists.Set(i, j, l.dists.At(i, j)+gii+g.At(j, j)-2*g.At(i, j))
		}
		l.activities[i] += gii
	}
	if l.Strategy == StrategyInterpolate {
		l.obs = append(l.obs, x)
	}
	l.nObs += float64(samples)
	return nil
}

func (l *Layer) initializeMask() {
	l.mask = mat.NewDense(l.size, l.size, nil)
	for i := 0; i < l.size; i++ {
		for j := i; j < l.size; j++ {
			l.mask.Set(i, j, infDist)
		}
	}
	for _, p := range l.pruned {
		l.maskNeuron(p)
	}
}

func (l *Layer) maskNeuron(idx int) {
	for k := 0; k < l.size; k++ {
		l.mask.Set(idx, k, infDist)
		l.mask.Set(k, idx, infDist)
	}
}

func (l *Layer) deriveStepSize() {
	l.stepSize = (l.size-l.TrgSize)/l.NSteps + 1
}

type candidate struct {
	i, j  int
	score float64
}

// Prune selects up to one step's worth of redundant neuron pairs from the
// accumulated statistics, removes them, and compensates the connected weight
// matrices in the store. Running out of eligible pairs under-delivers
// silently; the result carries both requested and achieved counts.
func (l *Layer) Prune(store Store) (*PruneResult, error) {
	if l.dists == nil {
		log.Printf("layer %s: no observations, skipping prune", l.Name)
		return &PruneResult{}, nil
	}
	if l.mask == nil {
		l.initializeMask()
		l.deriveStepSize()
	}
	nToDelete := l.CountUnprunedNeurons() - l.TrgSize
	if nToDelete > l.stepSize {
		nToDelete = l.stepSize
	}
	if nToDelete <= 0 {
		log.Printf("layer %s already pruned enough", l.Name)
		l.Reset()
		return &PruneResult{Observations: int(l.nObs)}, nil
	}

	meanAct := make([]float64, l.size)
	for i, a := range l.activities {
		meanAct[i] = a / l.nObs
	}

	cands := make([]candidate, 0, l.size*l.size)
	for i := 0; i < l.size; i++ {
		for j := 0; j < l.size; j++ {
			d := l.dists.At(i, j) / l.nObs
			disc := discount(meanAct[i], meanAct[j], l.Discount)
			cands = append(cands, candidate{i, j, d*disc + l.mask.At(i, j)})
		}
	}
	sort.Slice(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.score != cb.score {
			return ca.score < cb.score
		}
		if ca.i != cb.i {
			return ca.i < cb.i
		}
		return ca.j < cb.j
	})

	minScore := cands[0].score
	maxScore := minScore
	var pairs []Pair
	for _, c := range cands {
		if c.i == c.j || l.prunedSet[c.i] || l.prunedSet[c.j] {
			continue
		}
		maxScore = c.score
		i, j := c.i, c.j
		// The neuron with lower mean activity goes; on a tie the pair's
		// second index goes, matching the scan order of the masked matrix.
		if meanAct[i] < meanAct[j] {
			i, j = j, i
		}
		pairs = append(pairs, Pair{Survivor: i, Deleted: j})
		l.pruned = append(l.pruned, j)
		l.prunedSet[j] = true
		l.maskNeuron(j)
		if len(pairs) >= nToDelete {
			break
		}
	}

	if err := l.compensate(pairs, store); err != nil {
		return nil, fmt.Errorf("layer %s: compensation: %w", l.Name, err)
	}

	res := &PruneResult{
		Requested:    nToDelete,
		Deleted:      len(pairs),
		Observations: int(l.nObs),
		MinScore:     minScore,
		MaxScore:     maxScore,
	}
	log.Printf("%s: pruned %d neurons obs=%d min=%f max=%f",
		l.Name, res.Deleted, res.Observations, res.MinScore, res.MaxScore)
	return res, nil
}

func discount(a, b float64, d Discount) float64 {
	if d == DiscountSum {
		return a + b
	}
	if a < b {
		return a
	}
	return b
}

// SanityCheck reports the maximum absolute weight left in any pruned
// neuron's rows/columns across all connections. Near zero means compensation
// did its job.
func (l *Layer) SanityCheck(store Store) (float64, error) {
	geps := 0.0
	for _, conn := range l.Connections {
		m, ok := store.Matrix(conn.MatName)
		if !ok {
			return 0, fmt.Errorf("layer %s: matrix %q not in store", l.Name, conn.MatName)
		}
		offset := conn.offset(m.AxisLen(conn.Dim))
		idxs := make([]int, len(l.pruned))
		for i, p := range l.pruned {
			idxs[i] = p + offset
		}
		if eps := m.AbsMaxAxis(conn.Dim, idxs); eps > geps {
			geps = eps
		}
	}
	log.Printf("sanity check %s: max over %d pruned connections: %f", l.Name, len(l.pruned), geps)
	return geps, nil
}
