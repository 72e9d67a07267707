package prune

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// maxInterpolObs caps how many retained observations the least-squares fit
// sees.
const maxInterpolObs = 50000

func (l *Layer) compensate(pairs []Pair, store Store) error {
	if len(pairs) == 0 {
		return nil
	}
	switch l.Strategy {
	case StrategyInterpolate:
		return l.compensateInterpolate(pairs, store)
	default:
		return l.compensateSum(pairs, store)
	}
}

// compensateSum zeroes each removed neuron's row/column in every connection.
// With MergeOutbound set, the removed neuron's outbound weights are first
// added onto the survivor's. Maxout layers address inbound matrices at 2j
// and 2j+1 for logical neuron j.
func (l *Layer) compensateSum(pairs []Pair, store Store) error {
	for _, p := range pairs {
		for _, conn := range l.Connections {
			m, ok := store.Matrix(conn.MatName)
			if !ok {
				return fmt.Errorf("matrix %q not in store", conn.MatName)
			}
			offset := conn.offset(m.AxisLen(conn.Dim))
			si := p.Survivor + offset
			di := p.Deleted + offset
			if l.MergeOutbound && conn.Direction == DirOut {
				m.AddAxis(conn.Dim, di, si)
			}
			if conn.Direction == DirIn && l.Maxout {
				m.ZeroAxis(conn.Dim, di*2)
				m.ZeroAxis(conn.Dim, di*2+1)
			} else {
				m.ZeroAxis(conn.Dim, di)
			}
			store.Commit(conn.MatName, m)
		}
	}
	return nil
}

// compensateInterpolate fits the removed neurons' activations as a linear
// combination of the survivors', redistributes outbound weights through the
// fitted coefficients, then zeroes the removed rows/columns.
func (l *Layer) compensateInterpolate(pairs []Pair, store Store) error {
	if len(l.obs) == 0 {
		return fmt.Errorf("no retained observations for interpolation")
	}
	sampled := l.subsampleObs()

	deleteIdxs := make([]int, len(pairs))
	for i, p := range pairs {
		deleteIdxs[i] = p.Deleted
	}
	var surviveIdxs []int
	for i := 0; i < l.size; i++ {
		if !l.prunedSet[i] {
			surviveIdxs = append(surviveIdxs, i)
		}
	}

	k, _ := sampled.Dims()
	a := mat.NewDense(k, len(surviveIdxs), nil)
	y := mat.NewDense(k, len(deleteIdxs), nil)
	for r := 0; r < k; r++ {
		for c, s := range surviveIdxs {
			a.Set(r, c, sampled.At(r, s))
		}
		for c, d := range deleteIdxs {
			y.Set(r, c, sampled.At(r, d))
		}
	}
	var weights mat.Dense
	if err := weights.Solve(a, y); err != nil {
		return fmt.Errorf("least squares fit: %w", err)
	}

	for _, conn := range l.Connections {
		m, ok := store.Matrix(conn.MatName)
		if !ok {
			return fmt.Errorf("matrix %q not in store", conn.MatName)
		}
		offset := 0
		if !l.Maxout {
			offset = conn.offset(m.AxisLen(conn.Dim))
		}
		if conn.Direction == DirOut {
			// Each survivor's outbound weights pick up the fitted share of
			// every removed neuron's outbound weights.
			for di, d := range deleteIdxs {
				row := m.Axis(conn.Dim, d+offset)
				for si, s := range surviveIdxs {
					m.AddScaledAxis(conn.Dim, s+offset, weights.At(si, di), row)
				}
			}
		}
		for _, d := range deleteIdxs {
			if conn.Direction == DirIn && l.Maxout {
				m.ZeroAxis(conn.Dim, d*2)
				m.ZeroAxis(conn.Dim, d*2+1)
			} else {
				m.ZeroAxis(conn.Dim, d+offset)
			}
		}
		store.Commit(conn.MatName, m)
	}
	return nil
}

// subsampleObs stacks the retained observation batches and draws up to
// maxInterpolObs rows with replacement.
func (l *Layer) subsampleObs() *mat.Dense {
	total := 0
	for _, b := range l.obs {
		r, _ := b.Dims()
		total += r
	}
	stacked := mat.NewDense(total, l.size, nil)
	at := 0
	for _, b := range l.obs {
		r, _ := b.Dims()
		for i := 0; i < r; i++ {
			stacked.SetRow(at, b.RawRowView(i))
			at++
		}
	}
	k := maxInterpolObs
	if total < k {
		k = total
	}
	rng := l.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
		l.Rand = rng
	}
	sampled := mat.NewDense(k, l.size, nil)
	for i := 0; i < k; i++ {
		sampled.SetRow(i, stacked.RawRowView(rng.Intn(total)))
	}
	return sampled
}
