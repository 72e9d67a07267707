package prune

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"prune_lib/tensor"
)

func TestCompensateSumMergeOutbound(t *testing.T) {
	l := NewLayer("dec", 3, 1, false)
	l.MergeOutbound = true
	l.Connections = []Connection{
		{MatName: "W", Direction: DirIn, Dim: 0},
		{MatName: "V", Direction: DirOut, Dim: 1},
	}
	store := MapStore{
		"W": onesTensor(4, 2),
		"V": tensor.New2DWithData(2, 4, []float64{
			1, 2, 3, 4,
			5, 6, 7, 8,
		}),
	}
	require.NoError(t, l.RegisterActivities(closePairBatch()))
	res, err := l.Prune(store)
	require.NoError(t, err)
	require.Equal(t, 1, res.Deleted)
	require.Equal(t, []int{2}, l.PrunedNeurons())

	// survivor column 3 absorbed column 2 before it was zeroed
	v, _ := store.Matrix("V")
	require.Equal(t, 0.0, v.At(0, 2))
	require.Equal(t, 0.0, v.At(1, 2))
	require.Equal(t, 7.0, v.At(0, 3))
	require.Equal(t, 15.0, v.At(1, 3))
	require.Equal(t, 1.0, v.At(0, 0))
	require.Equal(t, 2.0, v.At(0, 1))

	w, _ := store.Matrix("W")
	require.Equal(t, 0.0, w.At(2, 0))
	require.Equal(t, 1.0, w.At(3, 0))
}

func TestCompensateInterpolate(t *testing.T) {
	l := NewLayer("dec", 3, 1, false)
	l.Strategy = StrategyInterpolate
	l.Rand = rand.New(rand.NewSource(7))
	l.Connections = []Connection{
		{MatName: "W", Direction: DirIn, Dim: 0},
		{MatName: "V", Direction: DirOut, Dim: 1},
	}
	origV := []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}
	store := MapStore{
		"W": onesTensor(4, 2),
		"V": tensor.New2DWithData(2, 4, append([]float64(nil), origV...)),
	}

	// neuron 0 duplicates neuron 1 exactly; the fit must hand its outbound
	// weights entirely to neuron 1
	rng := rand.New(rand.NewSource(11))
	const samples = 30
	data := make([]float64, samples*4)
	for s := 0; s < samples; s++ {
		v := rng.NormFloat64()
		data[s*4+0] = v
		data[s*4+1] = v
		data[s*4+2] = rng.NormFloat64()
		data[s*4+3] = rng.NormFloat64()
	}
	require.NoError(t, l.RegisterActivities(tensor.New2DWithData(samples, 4, data)))

	res, err := l.Prune(store)
	require.NoError(t, err)
	require.Equal(t, 1, res.Deleted)
	require.Equal(t, []int{0}, l.PrunedNeurons())

	v, _ := store.Matrix("V")
	for r := 0; r < 2; r++ {
		require.Equal(t, 0.0, v.At(r, 0))
		require.InDelta(t, origV[r*4+1]+origV[r*4+0], v.At(r, 1), 1e-6)
		require.InDelta(t, origV[r*4+2], v.At(r, 2), 1e-6)
		require.InDelta(t, origV[r*4+3], v.At(r, 3), 1e-6)
	}
	w, _ := store.Matrix("W")
	require.Equal(t, 0.0, w.At(0, 0))
	require.Equal(t, 0.0, w.At(0, 1))
	require.Equal(t, 1.0, w.At(1, 0))

	eps, err := l.SanityCheck(store)
	require.NoError(t, err)
	require.Equal(t, 0.0, eps)
}

func TestCompensateInterpolateWithoutObservations(t *testing.T) {
	l := NewLayer("dec", 1, 1, false)
	l.Strategy = StrategyInterpolate
	l.size = 2
	l.obs = nil
	err := l.compensateInterpolate([]Pair{{Survivor: 1, Deleted: 0}}, MapStore{})
	require.Error(t, err)
}

func TestSubsampleObsCapsAndKeepsWidth(t *testing.T) {
	l := NewLayer("dec", 1, 1, false)
	l.Strategy = StrategyInterpolate
	rng := rand.New(rand.NewSource(5))
	require.NoError(t, l.RegisterActivities(randTensor(rng, 20, 3)))
	require.NoError(t, l.RegisterActivities(randTensor(rng, 15, 3)))

	sampled := l.subsampleObs()
	r, c := sampled.Dims()
	require.Equal(t, 35, r)
	require.Equal(t, 3, c)
}
