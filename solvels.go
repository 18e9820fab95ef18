// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package goadjust

import (
	"errors"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// LinearSystem is one linearised observation model A X = L with weights P
type LinearSystem struct {
	A     *mat.Dense     // Design matrix (n x u)
	L     *mat.VecDense  // Observation (or reduced observation) vector (n)
	P     *mat.DiagDense // Weight matrix (n x n). nil means identity
	Cause string         // Geometric cause named when the system is singular
}

// LSSol holds the solution of a LinearSystem
type LSSol struct {
	X         *mat.VecDense // Parameter vector (or correction vector)
	N         *mat.SymDense // Normal matrix A^t P A
	Qxx       *mat.SymDense // Cofactor matrix (A^t P A)^-1
	Redundant bool          // true when n > u (normal equations were used)
}

// Identity weight matrix of size n
func IdentityWeights(n int) *mat.DiagDense {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return mat.NewDiagDense(n, w)
}

// Solve dispatches between the determined and the redundant case
// - n == u: X = A^-1 L (direct solve of the square system)
// - n >  u: X = (A^t P A)^-1 A^t P L
// - n <  u: ErrInsufficientObservations
// Singular geometry fails fast with ErrSingularSystem naming sys.Cause.
func Solve(sys *LinearSystem) (*LSSol, error) {

	n, u := sys.A.Dims()
	if sys.L.Len() != n {
		return nil, mismatch("design matrix has %d rows, observation vector %d", n, sys.L.Len())
	}
	P := sys.P
	if P == nil {
		P = IdentityWeights(n)
	}
	if r, _ := P.Dims(); r != n {
		return nil, mismatch("design matrix has %d rows, weight matrix %d", n, r)
	}
	if n < u {
		return nil, insufficient("observation model", n, u)
	}

	// Normal matrix, checked before any inversion
	N := NormalMatrix(sys.A, P)
	if err := checkRegular(N, sys.Cause); err != nil {
		return nil, err
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(N); !ok {
		return nil, singular(sys.Cause)
	}
	var Qxx mat.SymDense
	if err := chol.InverseTo(&Qxx); fatal(err) {
		return nil, singular(sys.Cause)
	}

	sol := &LSSol{N: N, Qxx: &Qxx, Redundant: n > u}
	var x mat.VecDense

	if !sol.Redundant {
		// Minimum case: the square system is solved as it stands
		if err := x.SolveVec(sys.A, sys.L); fatal(err) {
			return nil, singular(sys.Cause)
		}
		logger.Debug("direct solve", zap.Int("n", n), zap.Int("u", u))
	} else {
		// Redundant case: normal equations
		var AtP mat.Dense
		AtP.Mul(sys.A.T(), P)
		var b mat.VecDense
		b.MulVec(&AtP, sys.L)
		if err := chol.SolveVecTo(&x, &b); fatal(err) {
			return nil, singular(sys.Cause)
		}
		logger.Debug("normal equations solve", zap.Int("n", n), zap.Int("u", u))
	}
	sol.X = &x

	if DebugMatrices {
		PrintMat("A", sys.A)
		PrintMat("L", sys.L)
		PrintMat("X", sol.X)
	}

	return sol, nil
}

// Log design matrix, observations and solution at debug level
var DebugMatrices bool

// fatal reports whether a gonum solve failed
// mat.Condition only warns about the raw condition number; the result is
// still computed and regularity has already been decided by checkRegular.
func fatal(err error) bool {
	if err == nil {
		return false
	}
	var cond mat.Condition
	if errors.As(err, &cond) {
		logger.Debug("ill-conditioned solve", zap.Float64("cond", float64(cond)))
		return false
	}
	return true
}

// Reduction maps parameters solved in reduced coordinates back to the original origin
// - x = T x' + C
// - Σx = T Σx' T^t
// A nil Reduction is the identity.
type Reduction struct {
	T *mat.Dense
	C *mat.VecDense
}

// Params returns the parameters at the original origin
func (r *Reduction) Params(x mat.Vector) *mat.VecDense {
	if r == nil {
		var out mat.VecDense
		out.CloneFromVec(x)
		return &out
	}
	out := mat.NewVecDense(x.Len(), nil)
	out.MulVec(r.T, x)
	out.AddVec(out, r.C)
	return out
}

// Cov returns the parameter covariance at the original origin
func (r *Reduction) Cov(c mat.Symmetric) *mat.SymDense {
	if r == nil {
		out := mat.NewSymDense(c.SymmetricDim(), nil)
		out.CopySym(c)
		return out
	}
	return Propagate(r.T, c)
}

// NormalMatrix returns A^t P A, symmetrised
func NormalMatrix(A mat.Matrix, P mat.Matrix) *mat.SymDense {
	var PA mat.Dense
	PA.Mul(P, A)
	var N mat.Dense
	N.Mul(A.T(), &PA)
	_, u := A.Dims()
	sym := mat.NewSymDense(u, nil)
	for i := 0; i < u; i++ {
		for j := i; j < u; j++ {
			sym.SetSym(i, j, 0.5*(N.At(i, j)+N.At(j, i)))
		}
	}
	return sym
}

// checkRegular tests the normal matrix for singularity
// The matrix is scaled to unit diagonal first so that the test does not
// depend on the magnitude of the coordinates.
func checkRegular(N mat.Symmetric, cause string) error {
	u := N.SymmetricDim()
	d := make([]float64, u)
	for i := range d {
		nii := N.At(i, i)
		if !(nii > 0) || math.IsInf(nii, 0) {
			return singular(cause)
		}
		d[i] = 1 / math.Sqrt(nii)
	}
	S := mat.NewDense(u, u, nil)
	for i := 0; i < u; i++ {
		for j := 0; j < u; j++ {
			S.Set(i, j, N.At(i, j)*d[i]*d[j])
		}
	}
	var lu mat.LU
	lu.Factorize(S)
	det := lu.Det()
	cond := lu.Cond()
	if det == 0 || math.IsNaN(det) || math.IsInf(cond, 0) || cond > MAX_COND {
		logger.Debug("singular normal matrix", zap.Float64("det", det), zap.Float64("cond", cond))
		return singular(cause)
	}
	return nil
}
