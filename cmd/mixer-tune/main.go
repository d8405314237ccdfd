package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"mixer/graph"
	"mixer/match"
	"mixer/milp"
	"mixer/solver"
)

type instanceData struct {
	NumA          int     `json:"num_a"`
	NumB          int     `json:"num_b"`
	GroupSize     int     `json:"group_size"`
	Balanced      bool    `json:"balanced"`
	Pairing       bool    `json:"pairing"`
	Weighted      bool    `json:"weighted"`
	MutualWeight  float64 `json:"mutual_weight"`
	PenaltyWeight float64 `json:"penalty_weight"`
	Edges         []struct {
		From   string  `json:"from"`
		To     string  `json:"to"`
		Weight float64 `json:"weight"`
	} `json:"edges"`
	Penalties []struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"penalties"`
}

func normalizeKey(pt match.Partition) string {
	var gs []string
	for _, group := range pt {
		members := make([]string, len(group))
		for i, p := range group {
			members[i] = p.String()
		}
		slices.Sort(members)
		gs = append(gs, strings.Join(members, ","))
	}
	slices.Sort(gs)
	return strings.Join(gs, ";")
}

type runResult struct {
	score     float64
	key       string
	elapsed   time.Duration
	warnCount int
}

func printStats(label string, results []runResult, runs int) {
	scores := map[float64]int{}
	partitions := map[string]int{}
	var totalTime time.Duration
	var totalWarnings int

	for _, r := range results {
		totalTime += r.elapsed
		scores[r.score]++
		partitions[r.key]++
		totalWarnings += r.warnCount
	}

	fmt.Printf("--- %s ---\n", label)
	fmt.Printf("  avg time: %v\n", totalTime/time.Duration(runs))

	var scoreList []struct {
		score float64
		count int
	}
	for s, c := range scores {
		scoreList = append(scoreList, struct {
			score float64
			count int
		}{s, c})
	}
	sort.Slice(scoreList, func(i, j int) bool { return scoreList[i].score > scoreList[j].score })

	fmt.Printf("  score distribution:\n")
	for _, sc := range scoreList {
		fmt.Printf("    score %.2f: %d/%d runs (%.0f%%)\n", sc.score, sc.count, runs, float64(sc.count)/float64(runs)*100)
	}

	fmt.Printf("  unique partitions seen: %d\n", len(partitions))
	if totalWarnings > 0 {
		fmt.Printf("  construction warnings: %d\n", totalWarnings)
	}
	fmt.Println()
}

func main() {
	file := flag.String("file", "instance.json", "JSON instance file")
	runs := flag.Int("runs", 20, "number of solver runs per parameter set")
	algo := flag.String("algo", "both", "algorithm: hillclimb, anneal, both")
	initial := flag.String("initial", solver.InitialGreedy, "initial construction: random, greedy")
	iterations := flag.String("iters", "10000", "comma-separated iteration budgets")
	restarts := flag.String("restarts", "5", "comma-separated restart counts")
	tempStart := flag.String("thigh", "10.0", "comma-separated SA start temperatures")
	tempEnd := flag.Float64("tlow", 0.01, "SA end temperature")
	cooling := flag.String("cooling", "0.99", "comma-separated SA cooling rates")
	exact := flag.Bool("exact", false, "also compute the exact reference score")
	exactLimit := flag.Duration("exact-limit", 60*time.Second, "time limit for the exact reference")
	flag.Parse()

	instanceBytes, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading instance: %v\n", err)
		os.Exit(1)
	}
	var inst instanceData
	if err := json.Unmarshal(instanceBytes, &inst); err != nil {
		fmt.Fprintf(os.Stderr, "parsing instance: %v\n", err)
		os.Exit(1)
	}

	prob := match.Problem{
		NumA:      inst.NumA,
		NumB:      inst.NumB,
		GroupSize: inst.GroupSize,
		Balanced:  inst.Balanced,
		Pairing:   inst.Pairing,
	}
	if err := prob.Check(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid instance: %v\n", err)
		os.Exit(1)
	}

	var edges []match.Edge
	for _, e := range inst.Edges {
		from, err := match.ParsePerson(e.From)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad edge source %q: %v\n", e.From, err)
			os.Exit(1)
		}
		to, err := match.ParsePerson(e.To)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad edge target %q: %v\n", e.To, err)
			os.Exit(1)
		}
		edges = append(edges, match.Edge{From: from, To: to, Weight: e.Weight})
	}
	if err := prob.CheckEdges(edges); err != nil {
		fmt.Fprintf(os.Stderr, "invalid instance: %v\n", err)
		os.Exit(1)
	}

	penalties := match.PenaltySet{}
	for _, pe := range inst.Penalties {
		from, err1 := match.ParsePerson(pe.From)
		to, err2 := match.ParsePerson(pe.To)
		if err1 != nil || err2 != nil {
			fmt.Fprintf(os.Stderr, "bad penalty pair %q -> %q\n", pe.From, pe.To)
			os.Exit(1)
		}
		penalties[match.OrderedPair{From: from, To: to}] = struct{}{}
	}

	g := graph.New(edges, graph.Options{
		MutualWeight:  inst.MutualWeight,
		Weighted:      inst.Weighted,
		Penalties:     penalties,
		PenaltyWeight: inst.PenaltyWeight,
	})
	gs := g.Stats()

	fmt.Printf("Participants: %d A + %d B, group size: %d, groups: %d\n", inst.NumA, inst.NumB, inst.GroupSize, prob.NumGroups())
	fmt.Printf("Edges: %d, mutual pairs: %d, avg out-degree: %.2f\n", gs.Edges, gs.MutualPairs, gs.AvgOutDegree)
	fmt.Printf("Runs per config: %d\n\n", *runs)

	if *exact {
		res, err := milp.New(g, prob, milp.NewSimplexBackend(), *exactLimit).Solve()
		if err != nil {
			fmt.Printf("exact reference unavailable: %v\n\n", err)
		} else {
			fmt.Printf("exact reference: score %.2f, status %s, %v\n\n", res.Objective, res.Status, res.Elapsed.Round(time.Millisecond))
		}
	}

	var algorithms []string
	switch *algo {
	case "both":
		algorithms = []string{solver.AlgorithmHillClimb, solver.AlgorithmAnneal}
	case "hillclimb", solver.AlgorithmHillClimb:
		algorithms = []string{solver.AlgorithmHillClimb}
	case "anneal", solver.AlgorithmAnneal:
		algorithms = []string{solver.AlgorithmAnneal}
	default:
		fmt.Fprintf(os.Stderr, "unknown algorithm %q\n", *algo)
		os.Exit(1)
	}

	iterCounts := parseIntList(*iterations)
	restartCounts := parseIntList(*restarts)
	tempStarts := parseFloatList(*tempStart)
	coolingRates := parseFloatList(*cooling)

	for _, algorithm := range algorithms {
		ts := tempStarts
		cr := coolingRates
		if algorithm == solver.AlgorithmHillClimb {
			ts = []float64{0}
			cr = []float64{0}
		}
		for _, iters := range iterCounts {
			for _, nr := range restartCounts {
				for _, th := range ts {
					for _, c := range cr {
						params := solver.Params{
							Algorithm:     algorithm,
							Initial:       *initial,
							MaxIterations: iters,
							NumRestarts:   nr,
							TempStart:     th,
							TempEnd:       *tempEnd,
							CoolingRate:   c,
						}
						var results []runResult
						for run := range *runs {
							rng := rand.New(rand.NewSource(int64(run * 31337)))
							start := time.Now()
							res, err := solver.New(g, prob, params, rng).Solve()
							elapsed := time.Since(start)
							if err != nil {
								continue
							}
							results = append(results, runResult{
								score:     res.Score,
								key:       normalizeKey(res.Partition),
								elapsed:   elapsed,
								warnCount: len(res.Warnings),
							})
						}
						label := fmt.Sprintf("%s initial=%s iters=%d restarts=%d", algorithm, *initial, iters, nr)
						if algorithm == solver.AlgorithmAnneal {
							label += fmt.Sprintf(" thigh=%.1f cooling=%.3f", th, c)
						}
						printStats(label, results, *runs)
					}
				}
			}
		}
	}
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	var result []int
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			result = append(result, v)
		}
	}
	return result
}

func parseFloatList(s string) []float64 {
	parts := strings.Split(s, ",")
	var result []float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err == nil {
			result = append(result, v)
		}
	}
	return result
}
