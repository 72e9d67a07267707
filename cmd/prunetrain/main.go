// prunetrain: Standalone trainer that prunes hidden layers online
//
// Usage:
//
//	prunetrain --arch="16 12 10 4" --prune="hidden1:8,hidden2:6" --epochs=10
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"prune_lib/nn"
	"prune_lib/nn/layers"
	"prune_lib/prune"
	"prune_lib/tensor"
	"prune_lib/utils"
)

var (
	archStr    = flag.String("arch", "16 12 10 4", "Layer widths, input to output")
	pruneStr   = flag.String("prune", "hidden1:8,hidden2:6", "Prunable layers as name:target_size")
	epochs     = flag.Int("epochs", 5, "Number of training epochs")
	samples    = flag.Int("samples", 200, "Number of synthetic samples")
	learnRate  = flag.Float64("lr", 0.01, "Learning rate")
	seed       = flag.Int64("seed", 42, "Random seed")
	pruneEvery = flag.Int("prune-every", 100, "Prune one layer every N steps")
	resetEvery = flag.Int("reset-every", 0, "Reset one layer's accumulators every N steps (0: same as prune-every)")
	pruneSteps = flag.Int("prune-steps", 4, "Pruning events to spread each layer's reduction over")
	strategy   = flag.String("strategy", "sum", "Compensation strategy: sum, interpolate")
	layoutFile = flag.String("layout", "", "Connection layout file (default: derived from architecture)")
	configFile = flag.String("config", "", "YAML pruning config (overrides schedule flags)")
	outputFile = flag.String("output", "", "Output weights file (JSON)")
	verbose    = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose
	rng := rand.New(rand.NewSource(*seed))

	arch, err := utils.ParseArchitecture(*archStr)
	if err != nil || len(arch) < 3 {
		fmt.Fprintf(os.Stderr, "Bad architecture %q: need at least input, one hidden, output\n", *archStr)
		os.Exit(1)
	}

	cfg := &utils.Config{
		PruneEvery: *pruneEvery,
		ResetEvery: *resetEvery,
		PruneSteps: *pruneSteps,
		LayoutPath: *layoutFile,
	}
	if *configFile != "" {
		cfg, err = utils.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg.Layers, err = utils.ParseLayerSpecs(*pruneStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Bad prune spec: %v\n", err)
			os.Exit(1)
		}
	}
	if err := utils.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                    prune_lib Trainer                         ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Architecture:  %v\n", arch)
	fmt.Printf("  Epochs:        %d\n", *epochs)
	fmt.Printf("  Learning Rate: %.4f\n", *learnRate)
	fmt.Printf("  Prune every:   %d steps\n", cfg.PruneEvery)
	fmt.Printf("  Prune steps:   %d\n", cfg.PruneSteps)
	fmt.Printf("  Strategy:      %s\n", *strategy)
	fmt.Println()

	model, linears := buildModel(arch, rng)
	store := prune.MapStore{}
	for _, lin := range linears {
		lin.Register(store)
	}

	conns, err := loadOrDeriveLayout(cfg.LayoutPath, linears)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading layout: %v\n", err)
		os.Exit(1)
	}

	pruneLayers, actIndex := buildPruneLayers(cfg, conns, linears, *strategy, rng)
	if len(pruneLayers) == 0 {
		fmt.Fprintln(os.Stderr, "No prunable layers configured")
		os.Exit(1)
	}
	sched, err := prune.NewScheduler(pruneLayers, store, cfg.PruneEvery, cfg.ResetEvery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building scheduler: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d synthetic samples...\n", *samples)
	inputs, labels := generateData(arch[0], arch[len(arch)-1], *samples, rng)

	fmt.Println("\nStarting training...")
	stats := &utils.TimingStats{}
	totalStart := time.Now()
	loss := &nn.CrossEntropyLoss{}

	for epoch := 0; epoch < *epochs; epoch++ {
		epochStart := time.Now()
		epochLoss := 0.0

		for i := 0; i < len(inputs); i++ {
			l, err := trainStep(model, sched, actIndex, loss, inputs[i], labels[i], *learnRate, stats)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error at sample %d: %v\n", i, err)
				continue
			}
			epochLoss += l
		}

		avgLoss := epochLoss / float64(len(inputs))
		fmt.Printf("Epoch %d/%d | Loss: %.6f | Time: %.2fs\n",
			epoch+1, *epochs, avgLoss, time.Since(epochStart).Seconds())
	}

	stats.TotalTime = time.Since(totalStart)
	fmt.Printf("\nTraining complete! Total time: %.2fs\n", stats.TotalTime.Seconds())
	for _, pl := range pruneLayers {
		eps, err := pl.SanityCheck(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sanity check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  %s: %d/%d neurons left, residual %g\n",
			pl.Name, pl.CountUnprunedNeurons(), pl.Size(), eps)
	}

	if *verbose {
		utils.PrintTimingStats(stats, *epochs*len(inputs))
	}

	if *outputFile != "" {
		fmt.Printf("\nSaving weights to %s...\n", *outputFile)
		if err := saveWeights(linears, *outputFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Done!")
	}
}

// buildModel assembles Linear+ReLU blocks for the hidden widths and a final
// Linear readout. Hidden layers are named hidden1, hidden2, ...
func buildModel(arch []int, rng *rand.Rand) (*nn.Sequential, []*layers.Linear) {
	var mods []nn.Module
	var linears []*layers.Linear
	for i := 1; i < len(arch); i++ {
		name := fmt.Sprintf("hidden%d", i)
		if i == len(arch)-1 {
			name = "output"
		}
		lin := layers.NewLinear(name, arch[i-1], arch[i])
		for j := range lin.W.Data {
			lin.W.Data[j] = rng.NormFloat64() / float64(arch[i-1])
		}
		linears = append(linears, lin)
		mods = append(mods, lin)
		if i < len(arch)-1 {
			mods = append(mods, layers.NewReLU())
		}
	}
	return &nn.Sequential{Layers: mods}, linears
}

// loadOrDeriveLayout reads the layout file, or derives one connection set
// from the model: each hidden layer's weight rows and bias are inbound, the
// next layer's weight columns are outbound.
func loadOrDeriveLayout(path string, linears []*layers.Linear) (map[string][]prune.Connection, error) {
	if path != "" {
		return prune.LoadLayout(path)
	}
	conns := make(map[string][]prune.Connection)
	for i, lin := range linears {
		if i == len(linears)-1 {
			break
		}
		conns[lin.Name] = []prune.Connection{
			{MatName: lin.WeightName(), Direction: prune.DirIn, Dim: 0},
			{MatName: lin.BiasName(), Direction: prune.DirIn, Dim: 0},
			{MatName: linears[i+1].WeightName(), Direction: prune.DirOut, Dim: 1},
		}
	}
	return conns, nil
}

// buildPruneLayers turns layer specs into prunable layers and maps each
// layer name to the index of its activation in ForwardCollect output.
func buildPruneLayers(cfg *utils.Config, conns map[string][]prune.Connection, linears []*layers.Linear, strategy string, rng *rand.Rand) ([]*prune.Layer, map[string]int) {
	known := make(map[string]int)
	for i, lin := range linears {
		if i == len(linears)-1 {
			break
		}
		// activation output of hiddenN is the ReLU after it: module index 2i+1
		known[lin.Name] = 2*i + 1
	}
	var pls []*prune.Layer
	actIndex := make(map[string]int)
	for _, spec := range cfg.Layers {
		idx, ok := known[spec.Name]
		if !ok {
			log.Printf("unknown prunable layer name %s", spec.Name)
			continue
		}
		pl := prune.NewLayer(spec.Name, spec.TargetSize, cfg.PruneSteps, spec.Maxout)
		pl.Connections = conns[spec.Name]
		pl.Rand = rng
		if strings.EqualFold(strategy, "interpolate") {
			pl.Strategy = prune.StrategyInterpolate
		}
		pls = append(pls, pl)
		actIndex[spec.Name] = idx
	}
	return pls, actIndex
}

func generateData(inputDim, outputDim, n int, rng *rand.Rand) ([]*tensor.Tensor, []*tensor.Tensor) {
	inputs := make([]*tensor.Tensor, n)
	labels := make([]*tensor.Tensor, n)
	for i := 0; i < n; i++ {
		inputs[i] = tensor.New(inputDim)
		for j := range inputs[i].Data {
			inputs[i].Data[j] = rng.NormFloat64()
		}
		labels[i] = tensor.New(outputDim)
		labels[i].Data[rng.Intn(outputDim)] = 1.0
	}
	return inputs, labels
}

func trainStep(model *nn.Sequential, sched *prune.Scheduler, actIndex map[string]int, loss *nn.CrossEntropyLoss, input, label *tensor.Tensor, lr float64, stats *utils.TimingStats) (float64, error) {
	start := time.Now()
	outs, err := model.ForwardCollect(input)
	if err != nil {
		return 0, err
	}
	stats.ForwardPassTime += time.Since(start)

	start = time.Now()
	probs := nn.Softmax(outs[len(outs)-1])
	l := loss.Forward(probs, label)
	grad := loss.Backward(probs, label)
	stats.LossTime += time.Since(start)

	start = time.Now()
	if _, err := model.Backward(grad); err != nil {
		return 0, err
	}
	stats.BackwardPassTime += time.Since(start)

	start = time.Now()
	if err := model.Update(lr); err != nil {
		return 0, err
	}
	stats.UpdateTime += time.Since(start)

	// Hand this step's hidden activations to the pruner, observations as
	// rows.
	start = time.Now()
	batches := make(map[string]*tensor.Tensor, len(actIndex))
	for name, idx := range actIndex {
		batches[name] = tensor.Transpose(outs[idx])
	}
	if err := sched.ProcessBatch(batches); err != nil {
		return 0, err
	}
	stats.PruneTime += time.Since(start)

	return l, nil
}

func saveWeights(linears []*layers.Linear, filepath string) error {
	weights := &utils.ModelWeights{
		Version: "1.0",
		Layers:  make(map[string]utils.LayerWeight),
	}
	for _, lin := range linears {
		weights.Layers[lin.Name] = utils.LayerWeight{
			Weight: utils.TensorToWeightData("weight", lin.W),
			Bias:   utils.TensorToWeightData("bias", lin.B),
		}
	}
	return utils.SaveWeights(filepath, weights)
}
