// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package goadjust

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Precision is the residual and covariance summary of one adjustment
type Precision struct {
	V        *mat.VecDense // Residuals V = A X - L
	VtV      float64       // Sum of squared residuals
	VtPV     float64       // Weighted sum of squared residuals
	Dof      int           // Degrees of freedom n - u (0 when not redundant)
	Sigma0Sq float64       // A posteriori variance of unit weight
	Cx       *mat.SymDense // Covariance of the parameters
	Cl       *mat.SymDense // Covariance of the adjusted observations
	RMSE     float64       // sqrt(VtV / n)
}

// RMSEOver returns sqrt(VtV / n) for another count, e.g. points instead of coordinates
func (p *Precision) RMSEOver(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Sqrt(p.VtV / float64(n))
}

// CalcPrecision computes residuals, a posteriori variance and covariances
// - V  = A X - L
// - σ0² = V^t P V / (n - u)
// - Σx = σ0² (A^t P A)^-1
// - Σl = A Σx A^t
// σ0², Σx and Σl stay zero when the system is not redundant.
// P may be nil (identity).
func CalcPrecision(A mat.Matrix, L mat.Vector, P *mat.DiagDense, X mat.Vector, redundant bool) (*Precision, error) {

	n, u := A.Dims()
	if L.Len() != n || X.Len() != u {
		return nil, mismatch("A(%d x %d), L(%d), X(%d)", n, u, L.Len(), X.Len())
	}
	if P == nil {
		P = IdentityWeights(n)
	}

	var V mat.VecDense
	V.MulVec(A, X)
	V.SubVec(&V, L)

	prec := &Precision{
		V:    &V,
		VtV:  mat.Dot(&V, &V),
		VtPV: weightedSquares(&V, P),
		Cx:   mat.NewSymDense(u, nil),
		Cl:   mat.NewSymDense(n, nil),
	}
	prec.RMSE = prec.RMSEOver(n)

	if !redundant || n <= u {
		return prec, nil
	}

	prec.Dof = n - u
	prec.Sigma0Sq = prec.VtPV / float64(prec.Dof)

	N := NormalMatrix(A, P)
	var chol mat.Cholesky
	if ok := chol.Factorize(N); !ok {
		return nil, singular("normal matrix is not positive definite")
	}
	var Qxx mat.SymDense
	if err := chol.InverseTo(&Qxx); fatal(err) {
		return nil, singular("normal matrix cannot be inverted")
	}
	prec.Cx.ScaleSym(prec.Sigma0Sq, &Qxx)
	prec.Cl = Propagate(A, prec.Cx)

	logger.Debug("precision",
		zap.Int("dof", prec.Dof),
		zap.Float64("sigma0sq", prec.Sigma0Sq),
		zap.Float64("rmse", prec.RMSE))

	return prec, nil
}

// Propagate returns J C J^t
func Propagate(J mat.Matrix, C mat.Symmetric) *mat.SymDense {
	var JC mat.Dense
	JC.Mul(J, C)
	var JCJt mat.Dense
	JCJt.Mul(&JC, J.T())
	n, _ := J.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, 0.5*(JCJt.At(i, j)+JCJt.At(j, i)))
		}
	}
	return out
}

func weightedSquares(v mat.Vector, P *mat.DiagDense) float64 {
	s := 0.0
	for i := 0; i < v.Len(); i++ {
		s += P.At(i, i) * SQ(v.AtVec(i))
	}
	return s
}
