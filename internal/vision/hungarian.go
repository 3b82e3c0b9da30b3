package vision

import "math"

// Minimum-cost bipartite assignment via the Hungarian method in its
// augmenting-path form (Jonker-Volgenant potentials, O(n³) overall). The
// tracker reaches it through GatedAssign to pair blobs with tracks, and the
// ADS-B correlator to pair tracks with aircraft. Solving the whole matrix at
// once matters here: a greedy nearest-neighbor pass can lock in an early pair
// that forces a far worse match elsewhere when two tracks cross.

// assignForbidden marks a pair that must never be matched. Padding cells and
// gated-out costs carry it; a row whose every option is forbidden comes back
// unassigned.
const assignForbidden = 1e18

// HungarianAssign solves the rectangular assignment problem for an n×m cost
// matrix. out[i] is the column matched to row i, or -1 when the row could not
// be matched. Cells at or above assignForbidden never match, and when rows
// outnumber columns the surplus rows are left unmatched.
func HungarianAssign(cost [][]float64) []int {
	rows := len(cost)
	if rows == 0 {
		return nil
	}
	cols := len(cost[0])
	if cols == 0 {
		out := make([]int, rows)
		for i := range out {
			out[i] = -1
		}
		return out
	}

	s := newAssignState(cost, rows, cols)
	for r := 1; r <= s.dim; r++ {
		s.insertRow(r)
	}
	return s.matching()
}

// assignState carries the square working matrix and the matching under
// construction. Indexing is 1-based with column 0 as the virtual start of
// every augmenting path, which keeps the free-column test a plain == 0.
type assignState struct {
	rows, cols int
	dim        int

	cell   [][]float64 // square cost matrix, assignForbidden in the padding
	rowPot []float64   // row potentials
	colPot []float64   // column potentials
	rowFor []int       // rowFor[j]: row matched to column j, 0 when free
	from   []int       // from[j]: column preceding j on the current path
	slack  []float64   // slack[j]: least reduced cost seen for column j
	inPath []bool      // columns already absorbed into the current path
}

func newAssignState(cost [][]float64, rows, cols int) *assignState {
	dim := rows
	if cols > dim {
		dim = cols
	}
	cell := make([][]float64, dim)
	for i := range cell {
		cell[i] = make([]float64, dim)
		for j := range cell[i] {
			if i < rows && j < cols {
				cell[i][j] = cost[i][j]
			} else {
				cell[i][j] = assignForbidden
			}
		}
	}
	return &assignState{
		rows:   rows,
		cols:   cols,
		dim:    dim,
		cell:   cell,
		rowPot: make([]float64, dim+1),
		colPot: make([]float64, dim+1),
		rowFor: make([]int, dim+1),
		from:   make([]int, dim+1),
		slack:  make([]float64, dim+1),
		inPath: make([]bool, dim+1),
	}
}

// insertRow extends the matching with row r. It grows an augmenting path out
// of the virtual column, lowering slacks and shifting potentials until the
// path reaches a free column, then flips the path so each column on it takes
// over the row of its predecessor. Matches made by earlier insertions stay
// tight under the adjusted potentials.
func (s *assignState) insertRow(r int) {
	const infCost = math.MaxFloat64 / 2

	for j := 1; j <= s.dim; j++ {
		s.slack[j] = infCost
		s.inPath[j] = false
	}
	s.rowFor[0] = r

	j0 := 0
	for {
		s.inPath[j0] = true
		row := s.rowFor[j0]
		step := infCost
		next := -1

		for j := 1; j <= s.dim; j++ {
			if s.inPath[j] {
				continue
			}
			reduced := s.cell[row-1][j-1] - s.rowPot[row] - s.colPot[j]
			if reduced < s.slack[j] {
				s.slack[j] = reduced
				s.from[j] = j0
			}
			if s.slack[j] < step {
				step = s.slack[j]
				next = j
			}
		}
		if next < 0 {
			break
		}

		for j := 0; j <= s.dim; j++ {
			if s.inPath[j] {
				s.rowPot[s.rowFor[j]] += step
				s.colPot[j] -= step
			} else {
				s.slack[j] -= step
			}
		}

		j0 = next
		if s.rowFor[j0] == 0 {
			break
		}
	}

	for j0 != 0 {
		s.rowFor[j0] = s.rowFor[s.from[j0]]
		j0 = s.from[j0]
	}
}

// matching reads the finished column-indexed matching back out in row→column
// form, drops the padding, and unmatches any row that landed on a forbidden
// cell.
func (s *assignState) matching() []int {
	byRow := make([]int, s.dim)
	for i := range byRow {
		byRow[i] = -1
	}
	for j := 1; j <= s.dim; j++ {
		if r := s.rowFor[j]; r > 0 && r <= s.dim {
			byRow[r-1] = j - 1
		}
	}

	out := make([]int, s.rows)
	for i := 0; i < s.rows; i++ {
		j := byRow[i]
		if j < 0 || j >= s.cols || s.cell[i][j] >= assignForbidden {
			out[i] = -1
		} else {
			out[i] = j
		}
	}
	return out
}
