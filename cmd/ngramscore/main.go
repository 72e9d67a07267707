// ngramscore: Score whitespace-tokenized sentences from stdin with an ARPA
// n-gram language model
//
// Usage:
//
//	ngramscore --lm=model.arpa < sentences.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"prune_lib/ngram"
)

var (
	lmFile  = flag.String("lm", "", "ARPA language model file")
	toLn    = flag.Bool("ln", false, "Convert log10 scores to natural log")
	verbose = flag.Bool("verbose", false, "Print per-word scores")
)

// demoModel is a tiny bigram model used when no --lm is given.
const demoModel = `\data\
ngram 1=5
ngram 2=4

\1-grams:
-0.8	<s>	-0.4
-1.0	</s>
-0.7	the	-0.3
-1.0	cat	-0.4
-1.5	<unk>

\2-grams:
-0.3	<s> the
-0.4	the cat
-0.5	cat </s>
-0.9	the </s>

\end\
`

func main() {
	flag.Parse()

	var model *ngram.Model
	var err error
	if *lmFile == "" {
		fmt.Println("No --lm given, using built-in demo model")
		model, err = ngram.ReadModel(strings.NewReader(demoModel))
	} else {
		model, err = ngram.LoadModel(*lmFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d-gram model\n", model.Order())

	pred := ngram.NewPredictor(model, *toLn)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		words := strings.Fields(scanner.Text())
		if len(words) == 0 {
			continue
		}
		total := scoreSentence(pred, words, *verbose)
		avg := total / float64(len(words)+1)
		ppl := math.Pow(10, -avg)
		if *toLn {
			ppl = math.Exp(-avg)
		}
		fmt.Printf("score=%.4f ppl=%.4f  %s\n", total, ppl, strings.Join(words, " "))
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
		os.Exit(1)
	}
}

// scoreSentence sums word scores including the end-of-sentence transition.
func scoreSentence(pred *ngram.Predictor, words []string, verbose bool) float64 {
	pred.Initialize(nil)
	total := 0.0
	for _, w := range append(append([]string(nil), words...), ngram.Eos) {
		s := pred.PredictNext([]string{w})[w]
		if verbose {
			fmt.Printf("  %-15s %.4f\n", w, s)
		}
		total += s
		pred.Consume(w)
	}
	return total
}
