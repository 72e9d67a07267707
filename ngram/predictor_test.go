package ngram

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPredictor(t *testing.T, convertToLn bool) *Predictor {
	t.Helper()
	m, err := ReadModel(strings.NewReader(testModel))
	require.NoError(t, err)
	return NewPredictor(m, convertToLn)
}

func TestPredictorScoring(t *testing.T) {
	p := testPredictor(t, false)
	p.Initialize(nil)
	assert.Equal(t, []string{Bos}, p.State())

	scores := p.PredictNext([]string{"the", "cat"})
	assert.InDelta(t, -0.4, scores["the"], 1e-9)
	assert.InDelta(t, -1.6, scores["cat"], 1e-9)
	assert.InDelta(t, -2.5, p.UnkProbability(), 1e-9)

	p.Consume("the")
	assert.Equal(t, []string{"the"}, p.State())
	scores = p.PredictNext([]string{"cat"})
	assert.InDelta(t, -0.5, scores["cat"], 1e-9)

	p.Consume("cat")
	scores = p.PredictNext([]string{Eos})
	assert.InDelta(t, -0.6, scores[Eos], 1e-9)
}

func TestPredictorConvertToLn(t *testing.T) {
	p := testPredictor(t, true)
	p.Initialize(nil)
	scores := p.PredictNext([]string{"the"})
	assert.InDelta(t, -0.4*math.Ln10, scores["the"], 1e-9)
}

func TestPredictorStateRoundTrip(t *testing.T) {
	p := testPredictor(t, false)
	p.Initialize(nil)
	p.Consume("the")
	saved := p.State()

	p.Consume("cat")
	assert.Equal(t, []string{"cat"}, p.State())

	p.SetState(saved)
	assert.Equal(t, []string{"the"}, p.State())

	// State returns a copy: mutating it must not leak into the predictor
	saved[0] = "dog"
	assert.Equal(t, []string{"the"}, p.State())
}

func TestPredictorReinitialize(t *testing.T) {
	p := testPredictor(t, false)
	p.Initialize(nil)
	p.Consume("the")
	p.Initialize(nil)
	assert.Equal(t, []string{Bos}, p.State())
}

func TestPredictorIsEqual(t *testing.T) {
	p := testPredictor(t, false)
	assert.True(t, p.IsEqual([]string{"the"}, []string{"the"}))
	assert.False(t, p.IsEqual([]string{"the"}, []string{"cat"}))
	assert.False(t, p.IsEqual([]string{"the"}, []string{"the", "cat"}))
	// out-of-vocabulary words collapse to <unk>
	assert.True(t, p.IsEqual([]string{"dog"}, []string{Unk}))
	assert.True(t, p.IsEqual([]string{"dog"}, []string{"horse"}))
	assert.False(t, p.IsEqual([]string{"dog"}, []string{"the"}))
}

func TestPredictorUnigramModel(t *testing.T) {
	src := `\data\
ngram 1=2

\1-grams:
-0.5	the
-1.0	<unk>

\end\
`
	m, err := ReadModel(strings.NewReader(src))
	require.NoError(t, err)
	p := NewPredictor(m, false)
	p.Initialize(nil)
	assert.Empty(t, p.State())

	scores := p.PredictNext([]string{"the"})
	assert.InDelta(t, -0.5, scores["the"], 1e-9)
	p.Consume("the")
	assert.Empty(t, p.State())
}
