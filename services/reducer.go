package services

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Reduction is the result of a truncated SVD: the projected records and the
// share of the total squared singular values each kept component carries.
type Reduction struct {
	Projected  [][]float64
	Components int
	Explained  []float64
}

// ReducedDims returns min(components, d, n), the number of components a
// truncated SVD of an n x d matrix can keep.
func ReducedDims(components, n, d int) int {
	k := components
	if d < k {
		k = d
	}
	if n < k {
		k = n
	}
	return k
}

// TruncatedSVD projects X onto its first components right singular vectors.
// The data is not centred. Each kept singular vector is sign-flipped so that
// its largest-magnitude entry is positive, making the projection reproducible.
func TruncatedSVD(X [][]float64, components int) (*Reduction, error) {
	n := len(X)
	if n == 0 {
		return nil, fmt.Errorf("svd: no records")
	}
	d := len(X[0])
	if d == 0 {
		return nil, fmt.Errorf("svd: no features")
	}
	if components < 1 {
		return nil, fmt.Errorf("svd: components must be positive, got %d", components)
	}
	k := ReducedDims(components, n, d)

	data := make([]float64, 0, n*d)
	for i, row := range X {
		if len(row) != d {
			return nil, fmt.Errorf("svd: row %d has %d features, want %d", i, len(row), d)
		}
		data = append(data, row...)
	}
	a := mat.NewDense(n, d, data)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd: factorization did not converge")
	}
	var v mat.Dense
	svd.VTo(&v)

	vk := mat.DenseCopyOf(v.Slice(0, d, 0, k))
	for j := 0; j < k; j++ {
		best := 0.0
		for i := 0; i < d; i++ {
			if x := vk.At(i, j); math.Abs(x) > math.Abs(best) {
				best = x
			}
		}
		if best < 0 {
			for i := 0; i < d; i++ {
				vk.Set(i, j, -vk.At(i, j))
			}
		}
	}

	var proj mat.Dense
	proj.Mul(a, vk)

	out := make([][]float64, n)
	for i := range out {
		out[i] = mat.Row(nil, i, &proj)
	}

	values := svd.Values(nil)
	total := 0.0
	for _, s := range values {
		total += s * s
	}
	explained := make([]float64, k)
	if total > 0 {
		for j := 0; j < k; j++ {
			explained[j] = values[j] * values[j] / total
		}
	}
	return &Reduction{Projected: out, Components: k, Explained: explained}, nil
}
