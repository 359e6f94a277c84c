package experiment

import (
	"log"
	"math"

	"github.com/boristopalov/timetravel/pkg/results"
)

// Summarize computes the aggregate statistics of a set of episodes.
func Summarize(stats []EpisodeStats) results.Summary {
	sum := results.Summary{Episodes: len(stats)}
	if len(stats) == 0 {
		return sum
	}

	var total float64
	var branched, success int
	for _, s := range stats {
		total += s.Return
		if s.Branched {
			branched++
		}
		if s.Outcome.Success() {
			success++
		}
	}
	n := float64(len(stats))
	sum.MeanReturn = total / n

	var sumSquares float64
	for _, s := range stats {
		diff := s.Return - sum.MeanReturn
		sumSquares += diff * diff
	}
	sum.StdReturn = math.Sqrt(sumSquares / n)
	sum.BranchRate = float64(branched) / n
	sum.SuccessRate = float64(success) / n
	return sum
}

func (e *Experiment) printProgress(done int) {
	stats := e.Stats()
	window := stats
	if e.logEvery > 0 && len(stats) > e.logEvery {
		window = stats[len(stats)-e.logEvery:]
	}
	s := Summarize(window)
	log.Printf("Episode %d/%d: mean return %.2f, branch rate %.1f%%, success rate %.1f%% (last %d)",
		done, e.episodes, s.MeanReturn, s.BranchRate*100, s.SuccessRate*100, s.Episodes)
}

func printSummary(runID string, s results.Summary) {
	log.Printf("\n=== Run %s Statistics ===", runID)
	log.Printf("Return Metrics:")
	log.Printf("  Episodes: %d", s.Episodes)
	log.Printf("  Average Return: %.2f", s.MeanReturn)
	log.Printf("  Standard Deviation: %.2f", s.StdReturn)
	log.Printf("\nTimeline Metrics:")
	log.Printf("  Branch Rate: %.1f%%", s.BranchRate*100)
	log.Printf("  Success Rate: %.1f%%", s.SuccessRate*100)
	log.Printf("==========================\n")
}
