// Package ngram scores word sequences with a backoff n-gram language model
// loaded from an ARPA file, behind the predictor facade a decoder drives.
package ngram

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Scorer is the backend a Predictor drives. Scores are log10 probabilities,
// as stored in ARPA files.
type Scorer interface {
	// Order returns the model's n-gram order.
	Order() int
	// Score returns log10 p(last word | preceding words), backing off as
	// needed. The slice is truncated to the model order from the left.
	Score(ngram []string) float64
	// InVocab reports whether the word has a unigram entry.
	InVocab(word string) bool
}

// Model is an in-memory backoff n-gram model.
type Model struct {
	order    int
	probs    map[string]float64
	backoffs map[string]float64
}

// zeroProb is the log10 score for words with no unigram and no <unk> entry,
// the conventional ARPA floor.
const zeroProb = -99.0

// LoadModel reads an ARPA language model file from disk.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening language model: %w", err)
	}
	defer f.Close()
	m, err := ReadModel(f)
	if err != nil {
		return nil, fmt.Errorf("reading language model %s: %w", path, err)
	}
	return m, nil
}

// ReadModel parses an ARPA language model.
func ReadModel(r io.Reader) (*Model, error) {
	m := &Model{
		probs:    make(map[string]float64),
		backoffs: make(map[string]float64),
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	curOrder := 0
	inData := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == `\data\`:
			inData = true
			continue
		case line == `\end\`:
			return m, scanner.Err()
		case strings.HasPrefix(line, `\`) && strings.HasSuffix(line, "-grams:"):
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, `\`), "-grams:"))
			if err != nil {
				return nil, fmt.Errorf("bad section header %q", line)
			}
			curOrder = n
			if n > m.order {
				m.order = n
			}
			continue
		}
		if curOrder == 0 {
			if inData && strings.HasPrefix(line, "ngram ") {
				continue
			}
			return nil, fmt.Errorf("unexpected line before first n-gram section: %q", line)
		}
		fields := strings.Fields(line)
		if len(fields) != curOrder+1 && len(fields) != curOrder+2 {
			return nil, fmt.Errorf("bad %d-gram entry %q", curOrder, line)
		}
		logp, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad log probability in %q: %w", line, err)
		}
		key := strings.Join(fields[1:1+curOrder], " ")
		m.probs[key] = logp
		if len(fields) == curOrder+2 {
			bo, err := strconv.ParseFloat(fields[curOrder+1], 64)
			if err != nil {
				return nil, fmt.Errorf("bad backoff weight in %q: %w", line, err)
			}
			m.backoffs[key] = bo
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if m.order == 0 {
		return nil, fmt.Errorf("no n-gram sections found")
	}
	return m, nil
}

func (m *Model) Order() int { return m.order }

func (m *Model) InVocab(word string) bool {
	_, ok := m.probs[word]
	return ok
}

// Score returns log10 p(w_n | w_1..w_{n-1}) with standard backoff: if the
// full n-gram is listed, its probability applies; otherwise the context's
// backoff weight is added to the score of the shortened n-gram. Unknown
// unigrams fall back to <unk>.
func (m *Model) Score(ngram []string) float64 {
	if len(ngram) > m.order {
		ngram = ngram[len(ngram)-m.order:]
	}
	if len(ngram) == 0 {
		return zeroProb
	}
	if p, ok := m.probs[strings.Join(ngram, " ")]; ok {
		return p
	}
	if len(ngram) == 1 {
		if p, ok := m.probs[Unk]; ok {
			return p
		}
		return zeroProb
	}
	bo := m.backoffs[strings.Join(ngram[:len(ngram)-1], " ")]
	return bo + m.Score(ngram[1:])
}
