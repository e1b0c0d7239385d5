// Package stats reduces per-query rank lists to retrieval metrics: average
// rank per track, average rank per clique and mean average precision.
package stats

import "slices"

// RankList holds the ascending 1-based ranks at which same-clique tracks
// appear for one query. A nil or empty list is infinite: no match was found.
type RankList []int

// Infinite reports whether the query found no match.
func (r RankList) Infinite() bool { return len(r) == 0 }

// First returns the best rank, or 0 for an infinite entry.
func (r RankList) First() int {
	if r.Infinite() {
		return 0
	}
	return r[0]
}

// Mean returns the mean rank, or 0 for an infinite entry.
func (r RankList) Mean() float64 {
	if r.Infinite() {
		return 0
	}
	sum := 0
	for _, v := range r {
		sum += v
	}
	return float64(sum) / float64(len(r))
}

// AverageRankPerTrack is the mean best rank over finite entries. It is 0
// when every entry is infinite.
func AverageRankPerTrack(ranks []RankList) float64 {
	sum, n := 0.0, 0
	for _, r := range ranks {
		if !r.Infinite() {
			sum += float64(r.First())
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AverageRankPerClique is the mean over finite entries of each entry's mean
// rank.
func AverageRankPerClique(ranks []RankList) float64 {
	sum, n := 0.0, 0
	for _, r := range ranks {
		if !r.Infinite() {
			sum += r.Mean()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AveragePrecision treats every rank as a relevant hit and averages the
// precision j/rank_j over the hits ranked within n. The divisor is the
// number of relevant tracks, len(ranks). n <= 0 means unbounded.
func AveragePrecision(ranks RankList, n int) float64 {
	if ranks.Infinite() {
		return 0
	}
	sorted := ranks
	if !slices.IsSorted(sorted) {
		sorted = slices.Sorted(slices.Values(ranks))
	}

	sum := 0.0
	for j, rank := range sorted {
		if n > 0 && rank > n {
			break
		}
		sum += float64(j+1) / float64(rank)
	}
	return sum / float64(len(sorted))
}

// MeanAveragePrecision averages AveragePrecision over all entries; infinite
// entries contribute 0.
func MeanAveragePrecision(ranks []RankList, n int) float64 {
	if len(ranks) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range ranks {
		sum += AveragePrecision(r, n)
	}
	return sum / float64(len(ranks))
}

// MeanReciprocalRank averages 1/first-rank over all entries; infinite
// entries contribute 0.
func MeanReciprocalRank(ranks []RankList) float64 {
	if len(ranks) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range ranks {
		if !r.Infinite() {
			sum += 1 / float64(r.First())
		}
	}
	return sum / float64(len(ranks))
}

// PrecisionAtK is the mean fraction of the top k candidates that belong to
// the query's clique.
func PrecisionAtK(ranks []RankList, k int) float64 {
	if len(ranks) == 0 || k <= 0 {
		return 0
	}
	sum := 0.0
	for _, r := range ranks {
		hits := 0
		for _, rank := range r {
			if rank <= k {
				hits++
			}
		}
		sum += float64(hits) / float64(k)
	}
	return sum / float64(len(ranks))
}

// Summary is the aggregate report of an evaluation.
type Summary struct {
	Queries          int     `json:"queries"`
	Found            int     `json:"found"`
	AvgRankPerTrack  float64 `json:"avg_rank_per_track"`
	AvgRankPerClique float64 `json:"avg_rank_per_clique"`
	MAP              float64 `json:"map"`
	MRR              float64 `json:"mrr"`
}

// Summarize computes every metric over ranks. n bounds the ranks counted by
// MAP; n <= 0 means unbounded.
func Summarize(ranks []RankList, n int) Summary {
	found := 0
	for _, r := range ranks {
		if !r.Infinite() {
			found++
		}
	}
	return Summary{
		Queries:          len(ranks),
		Found:            found,
		AvgRankPerTrack:  AverageRankPerTrack(ranks),
		AvgRankPerClique: AverageRankPerClique(ranks),
		MAP:              MeanAveragePrecision(ranks, n),
		MRR:              MeanReciprocalRank(ranks),
	}
}
