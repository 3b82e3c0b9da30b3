package vision

import "math"

// GatedAssign solves a gated minimum-cost bipartite assignment: entries
// whose cost exceeds gate, or are NaN/+Inf, are excluded from consideration.
// Returns assignments[i] = column for row i, or -1 when nothing within the
// gate was available. The input matrix is not modified.
//
// The result is deterministic for identical input ordering; callers that
// need stable tie-breaking (e.g. oldest track wins) order their rows
// accordingly.
func GatedAssign(cost [][]float64, gate float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}

	gated := make([][]float64, n)
	for i, row := range cost {
		gated[i] = make([]float64, len(row))
		for j, c := range row {
			if math.IsNaN(c) || math.IsInf(c, 1) || c > gate {
				gated[i][j] = assignForbidden
			} else {
				gated[i][j] = c
			}
		}
	}

	return HungarianAssign(gated)
}
