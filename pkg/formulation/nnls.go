package formulation

import (
	"gonum.org/v1/gonum/mat"
)

// nnls solves min ||a*x - b|| subject to x >= 0 using the Lawson-Hanson
// active set algorithm. It returns the solution vector and the residual
// norm ||a*x - b||.
func nnls(a *mat.Dense, b *mat.VecDense) ([]float64, float64) {
	m, n := a.Dims()
	x := make([]float64, n)
	passive := make([]bool, n)

	residualVec := func() *mat.VecDense {
		r := mat.NewVecDense(m, nil)
		xv := mat.NewVecDense(n, x)
		r.MulVec(a, xv)
		r.SubVec(b, r)
		return r
	}

	const tol = 1e-11
	maxIter := 3 * n
	if maxIter < 30 {
		maxIter = 30
	}

	for iter := 0; iter < maxIter; iter++ {
		// Gradient of the active (zero) coordinates.
		r := residualVec()
		w := mat.NewVecDense(n, nil)
		w.MulVec(a.T(), r)

		best := -1
		bestW := tol
		for j := 0; j < n; j++ {
			if !passive[j] && w.AtVec(j) > bestW {
				best = j
				bestW = w.AtVec(j)
			}
		}
		if best < 0 {
			break
		}
		passive[best] = true

		for {
			cols := passiveCols(passive)
			if len(cols) == 0 {
				break
			}
			sub := mat.NewDense(m, len(cols), nil)
			for k, j := range cols {
				for i := 0; i < m; i++ {
					sub.Set(i, k, a.At(i, j))
				}
			}
			var z mat.VecDense
			if err := z.SolveVec(sub, b); err != nil {
				// Degenerate subproblem; give up on this column.
				passive[best] = false
				return x, mat.Norm(residualVec(), 2)
			}

			negative := false
			for k := range cols {
				if z.AtVec(k) <= tol {
					negative = true
					break
				}
			}
			if !negative {
				for k, j := range cols {
					x[j] = z.AtVec(k)
				}
				break
			}

			// Step back toward the previous feasible point.
			alpha := 1.0
			for k, j := range cols {
				zk := z.AtVec(k)
				if zk <= tol {
					if step := x[j] / (x[j] - zk); step < alpha {
						alpha = step
					}
				}
			}
			for k, j := range cols {
				x[j] += alpha * (z.AtVec(k) - x[j])
			}
			for _, j := range cols {
				if x[j] <= tol {
					x[j] = 0
					passive[j] = false
				}
			}
		}
	}

	return x, mat.Norm(residualVec(), 2)
}

func passiveCols(passive []bool) []int {
	var cols []int
	for j, p := range passive {
		if p {
			cols = append(cols, j)
		}
	}
	return cols
}
