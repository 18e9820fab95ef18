// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Estimates 2D transformation parameters from point correspondences.

package goadjust

import (
	"math"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Geometric cause reported for degenerate correspondences
const ALIGNED_VECTORS = "georeferencing vectors are aligned"

// Transform2DSol contains the result of a 2D transformation estimate
type Transform2DSol struct {
	Kind      TransformKind // Transformation model
	Transform Transform     // Forward/inverse mapping with the solved parameters
	Adjusted  []orb.Point   // Source points mapped into the target plane
	Residuals []orb.Point   // Adjusted minus target, per point
	SD        []orb.Point   // Propagated standard deviation of the adjusted coordinates, per point
	ParamSD   []float64     // Standard deviation of the parameters
	RMSE      float64       // sqrt(V^t V / number of points)
	Sigma0Sq  float64       // A posteriori variance of unit weight (0 in the minimum case)
	Redundant bool          // More correspondences than the minimum
	Prec      *Precision    // Residual and covariance details
}

// EstimateTransform2D fits a transformation of the given kind mapping src onto dst
//
// Parameters:
//   - src: Points in the source plane
//   - dst: Corresponding points in the target plane (same order)
//   - kind: Translation, Conformal or Affine
//
// Returns:
//   - Transform2DSol: parameters, transform functions, residuals and precision
//   - error: ErrDimensionMismatch, ErrInsufficientObservations or ErrSingularSystem
func EstimateTransform2D(src, dst []orb.Point, kind TransformKind) (*Transform2DSol, error) {

	if len(src) != len(dst) {
		return nil, mismatch("%d source points, %d target points", len(src), len(dst))
	}
	if len(src) < kind.MinPoints() {
		return nil, insufficient(kind.String()+" transformation", len(src), kind.MinPoints())
	}
	if kind != Translation && len(src) >= 3 && collinear(src) {
		return nil, singular(ALIGNED_VECTORS)
	}

	// Setup equations on centroid-reduced coordinates
	sys, red := buildTransform2D(src, dst, kind)

	// Solve (direct or least squares)
	ls, err := Solve(sys)
	if err != nil {
		return nil, err
	}

	t, err := NewTransform(kind, red.Params(ls.X).RawVector().Data)
	if err != nil {
		return nil, err
	}

	// Residuals and precision (V and Σl do not depend on the origin)
	prec, err := CalcPrecision(sys.A, sys.L, sys.P, ls.X, ls.Redundant)
	if err != nil {
		return nil, err
	}
	prec.Cx = red.Cov(prec.Cx)

	rslt := &Transform2DSol{
		Kind:      kind,
		Transform: t,
		Adjusted:  TransformPoints(t, src),
		Residuals: make([]orb.Point, len(src)),
		SD:        make([]orb.Point, len(src)),
		ParamSD:   SqrtDiag(prec.Cx),
		RMSE:      prec.RMSEOver(len(src)),
		Sigma0Sq:  prec.Sigma0Sq,
		Redundant: ls.Redundant,
		Prec:      prec,
	}
	sdl := SqrtDiag(prec.Cl)
	for i := range src {
		rslt.Residuals[i] = orb.Point{prec.V.AtVec(2 * i), prec.V.AtVec(2*i + 1)}
		rslt.SD[i] = orb.Point{sdl[2*i], sdl[2*i+1]}
	}

	logger.Debug("2d transformation",
		zap.Stringer("kind", kind),
		zap.Int("points", len(src)),
		zap.Float64s("params", t.Params()),
		zap.Float64("rmse", rslt.RMSE))

	return rslt, nil
}

// buildTransform2D sets up A and L for the correspondences
// Translation observes target minus source (L - Lo), the other models the target coordinates.
// Conformal and Affine work on coordinates reduced to the source and target centroids;
// the returned Reduction restores the translation terms.
func buildTransform2D(src, dst []orb.Point, kind TransformKind) (*LinearSystem, *Reduction) {
	n := 2 * len(src)
	u := kind.NumParams()
	var cs, cd orb.Point
	if kind != Translation {
		cs, cd = Centroid(src), Centroid(dst)
	}
	A := mat.NewDense(n, u, nil)
	L := mat.NewVecDense(n, nil)
	for i := range src {
		rx, ry := kind.rows(orb.Point{src[i].X() - cs.X(), src[i].Y() - cs.Y()})
		A.SetRow(2*i, rx)
		A.SetRow(2*i+1, ry)
		lx, ly := dst[i].X()-cd.X(), dst[i].Y()-cd.Y()
		if kind == Translation {
			lx -= src[i].X()
			ly -= src[i].Y()
		}
		L.SetVec(2*i, lx)
		L.SetVec(2*i+1, ly)
	}
	return &LinearSystem{A: A, L: L, P: IdentityWeights(n), Cause: ALIGNED_VECTORS}, kind.reduction(cs, cd)
}

// collinear reports whether all points lie on one line (or coincide)
// The test uses the scatter matrix about the centroid: its determinant
// vanishes relative to its trace squared when the spread is one-dimensional.
func collinear(points []orb.Point) bool {
	c := Centroid(points)
	cx, cy := c.X(), c.Y()
	var sxx, syy, sxy float64
	for _, p := range points {
		dx := p.X() - cx
		dy := p.Y() - cy
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	tr := sxx + syy
	if tr < EPS {
		return true
	}
	return math.Abs(sxx*syy-sxy*sxy) < 1e-12*tr*tr
}
