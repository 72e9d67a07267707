package ngram

import "math"

// Sentence boundary and unknown-word tokens, as written in ARPA files.
const (
	Bos = "<s>"
	Eos = "</s>"
	Unk = "<unk>"
)

// Predictor exposes an n-gram model through the stateful scoring interface a
// decoder expects. The state is the n-gram history of the hypothesis.
type Predictor struct {
	lm          Scorer
	historyLen  int
	history     []string
	convertToLn bool
}

// NewPredictor wraps a scorer. With convertToLn set, log10 scores are
// converted to natural log.
func NewPredictor(lm Scorer, convertToLn bool) *Predictor {
	return &Predictor{
		lm:          lm,
		historyLen:  lm.Order() - 1,
		convertToLn: convertToLn,
	}
}

// Initialize starts a new hypothesis with the start-of-sentence symbol. The
// source sentence does not condition an n-gram model and is ignored.
func (p *Predictor) Initialize(_ []string) {
	if p.historyLen > 0 {
		p.history = []string{Bos}
	} else {
		p.history = nil
	}
}

// PredictNext scores the candidate words given the current history.
func (p *Predictor) PredictNext(words []string) map[string]float64 {
	scale := 1.0
	if p.convertToLn {
		scale = math.Ln10
	}
	scores := make(map[string]float64, len(words))
	for _, w := range words {
		scores[w] = p.lm.Score(append(append([]string(nil), p.history...), w)) * scale
	}
	return scores
}

// UnkProbability returns the model's score for <unk> given the history.
func (p *Predictor) UnkProbability() float64 {
	return p.lm.Score(append(append([]string(nil), p.history...), Unk))
}

// Consume extends the history by word, dropping the oldest entry once the
// history is full.
func (p *Predictor) Consume(word string) {
	if p.historyLen == 0 {
		return
	}
	if len(p.history) >= p.historyLen {
		p.history = p.history[1:]
	}
	p.history = append(p.history, word)
}

// State returns a copy of the current n-gram history.
func (p *Predictor) State() []string {
	return append([]string(nil), p.history...)
}

// SetState replaces the current n-gram history.
func (p *Predictor) SetState(history []string) {
	p.history = append([]string(nil), history...)
}

// IsEqual reports whether two histories are equivalent to the model,
// treating all out-of-vocabulary words as <unk>.
func (p *Predictor) IsEqual(state1, state2 []string) bool {
	if len(state1) != len(state2) {
		return false
	}
	for i := range state1 {
		if p.normalize(state1[i]) != p.normalize(state2[i]) {
			return false
		}
	}
	return true
}

func (p *Predictor) normalize(word string) string {
	if !p.lm.InVocab(word) {
		return Unk
	}
	return word
}
