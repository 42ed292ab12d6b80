package search

import (
	"sort"

	"github.com/quantfold/probedge/internal/grid"
	"github.com/quantfold/probedge/pkg/types"
)

// SelectionMethod names the policy applied by Select: rank valid
// combinations by train net profit, keep the top N, then take the best
// validation net profit among them.
const SelectionMethod = "train-topn-validation"

// Selection is the winner of a grid search together with its metrics
// on all three splits. Test metrics are reported for honesty only and
// never influence which combination wins.
type Selection struct {
	Combination grid.Combination
	Method      string
	TopN        int

	Train      CombinationMetrics
	Validation CombinationMetrics
	Test       CombinationMetrics
}

// combinationRow groups the three split records for one combination.
type combinationRow struct {
	combo      grid.Combination
	train      CombinationMetrics
	validation CombinationMetrics
	test       CombinationMetrics
}

// Select applies the two-stage policy: rank combinations with valid
// train metrics by train net profit, keep the top n, then pick the one
// with the highest validation net profit among them. Tie breaks are by
// (entry, exit) ascending so the result is reproducible.
func Select(metrics []CombinationMetrics, topN int) (*Selection, error) {
	if topN <= 0 {
		topN = 1
	}

	rows := groupBySplit(metrics)

	ranked := make([]combinationRow, 0, len(rows))
	for _, row := range rows {
		if row.train.IsValid {
			ranked = append(ranked, row)
		}
	}
	if len(ranked) == 0 {
		return nil, types.ErrNoValidCombination
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].train.NetProfit != ranked[j].train.NetProfit {
			return ranked[i].train.NetProfit > ranked[j].train.NetProfit
		}
		if ranked[i].combo.Entry != ranked[j].combo.Entry {
			return ranked[i].combo.Entry < ranked[j].combo.Entry
		}
		return ranked[i].combo.Exit < ranked[j].combo.Exit
	})

	if topN > len(ranked) {
		topN = len(ranked)
	}
	finalists := ranked[:topN]

	best := finalists[0]
	for _, row := range finalists[1:] {
		if row.validation.NetProfit > best.validation.NetProfit {
			best = row
		}
	}

	return &Selection{
		Combination: best.combo,
		Method:      SelectionMethod,
		TopN:        topN,
		Train:       best.train,
		Validation:  best.validation,
		Test:        best.test,
	}, nil
}

// groupBySplit joins the flat metrics slice into one row per
// combination. Splits missing from the input stay zero-valued, which
// also leaves them invalid.
func groupBySplit(metrics []CombinationMetrics) []combinationRow {
	index := make(map[grid.Combination]int)
	rows := make([]combinationRow, 0)

	for _, m := range metrics {
		i, ok := index[m.Combination]
		if !ok {
			i = len(rows)
			index[m.Combination] = i
			rows = append(rows, combinationRow{combo: m.Combination})
		}
		switch m.Split {
		case grid.SplitTrain:
			rows[i].train = m
		case grid.SplitValidation:
			rows[i].validation = m
		case grid.SplitTest:
			rows[i].test = m
		}
	}

	return rows
}
