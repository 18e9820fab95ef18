// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Implements the adjustment of a traverse framed by two known points at each end.

package goadjust

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// TraverseInput is a chain of stations between two pairs of known points
//
//	BackSight -> Start -> S1 -> ... -> Sk -> End -> ForeSight
//
// Start..End are joined by len(Distances) legs. One clockwise angle
// (backsight to foresight) is observed at Start, at every Si and at End.
type TraverseInput struct {
	BackSight orb.Point // Known point sighted back from Start
	Start     orb.Point // Known first station
	End       orb.Point // Known last station
	ForeSight orb.Point // Known point sighted forward from End
	Distances []float64 // Horizontal distances [m], Start->S1, ..., Sk->End
	Angles    []float64 // Clockwise horizontal angles [deg] at Start, S1, ..., Sk, End
}

// TraverseOpt contains the weighting and convergence settings of a traverse adjustment
type TraverseOpt struct {
	Tolerance     float64 // Convergence threshold on max|Δ| [m]
	MaxIter       int     // Maximum number of Gauss-Newton iterations
	DistBaseMM    float64 // Distance standard deviation, constant part [mm]
	DistPPM       float64 // Distance standard deviation, proportional part [ppm]
	AngleArcsec   float64 // Angle standard deviation [arcsec]
	Sigma0Priori  float64 // A priori standard deviation of unit weight
	FailOnMaxIter bool    // Return ErrMaxIterations instead of the flagged last iterate
}

// NewTraverseOpt creates a new TraverseOpt with default values
func NewTraverseOpt() *TraverseOpt {
	return &TraverseOpt{
		Tolerance:     DEF_TOLERANCE,     // 0.1 mm
		MaxIter:       DEF_MAX_ITER,      // Ample for well-conditioned chains
		DistBaseMM:    DEF_DIST_BASE_MM,  // Total station class
		DistPPM:       DEF_DIST_PPM,      // Total station class
		AngleArcsec:   DEF_ANGLE_ARCSEC,  // Total station class
		Sigma0Priori:  DEF_SIGMA0_PRIORI, // Unit weight
		FailOnMaxIter: false,             // Report and flag
	}
}

// Standard deviation of a distance observation [m]
func (opt *TraverseOpt) DistSigma(d float64) float64 {
	return (opt.DistBaseMM + opt.DistPPM*d*PPM*MM) / MM
}

// validate rejects settings that leave the loop unbounded or a weight undefined
func (opt *TraverseOpt) validate(distances []float64) error {
	if opt.MaxIter <= 0 || opt.Tolerance <= 0 {
		return fmt.Errorf("%w: MaxIter=%d, Tolerance=%g", ErrInvalidOptions, opt.MaxIter, opt.Tolerance)
	}
	if !(opt.AngleArcsec > 0) || !(opt.Sigma0Priori > 0) {
		return fmt.Errorf("%w: AngleArcsec=%g, Sigma0Priori=%g must be positive", ErrInvalidOptions, opt.AngleArcsec, opt.Sigma0Priori)
	}
	for i, d := range distances {
		if !(opt.DistSigma(d) > 0) {
			return fmt.Errorf("%w: distance %d (%g m) has standard deviation %g with DistBaseMM=%g, DistPPM=%g",
				ErrInvalidOptions, i, d, opt.DistSigma(d), opt.DistBaseMM, opt.DistPPM)
		}
	}
	return nil
}

// TraverseStatus is the state of the traverse refinement
type TraverseStatus int

const (
	StatusInitialApproximation TraverseStatus = iota
	StatusIterate
	StatusConverged
	StatusMaxIterExceeded
)

func (s TraverseStatus) String() string {
	switch s {
	case StatusInitialApproximation:
		return "INITIAL_APPROXIMATION"
	case StatusIterate:
		return "ITERATE"
	case StatusConverged:
		return "CONVERGED"
	case StatusMaxIterExceeded:
		return "MAX_ITER_EXCEEDED"
	default:
		return "UNKNOWN!"
	}
}

// Misclosure of the unadjusted (polar) traverse
type Misclosure struct {
	Fx       float64 // Computed minus known X of End [m]
	Fy       float64 // Computed minus known Y of End [m]
	Linear   float64 // sqrt(Fx² + Fy²) [m]
	Length   float64 // Traverse length [m]
	Relative float64 // Length / Linear, the N of "1:N" (+Inf when closed exactly)
	Angular  float64 // Computed minus known closing azimuth [arcsec]
}

// TraverseSol contains the results of a traverse adjustment
type TraverseSol struct {
	Status        TraverseStatus // CONVERGED or MAX_ITER_EXCEEDED
	Iterations    int            // Number of Gauss-Newton solves
	MaxCorrection float64        // max|Δ| of the last iteration [m]
	Tolerance     float64        // Convergence threshold used [m]
	MaxIter       int            // Iteration cap used

	Initial    []orb.Point    // Polar approximation of the unknown stations
	Misclosure Misclosure     // Misclosure of the polar approximation
	Stations   []orb.Point    // Adjusted unknown stations S1..Sk
	StationSD  []orb.Point    // Standard deviation of the adjusted stations [m]
	Chain      orb.LineString // Start, adjusted stations, End

	AdjDist    []float64 // Adjusted distances [m]
	AdjAngle   []float64 // Adjusted angles [deg]
	DistRes    []float64 // Distance residuals L_b - F(X) [m]
	AngleRes   []float64 // Angle residuals L_b - F(X) [arcsec]
	DistSD     []float64 // A priori standard deviation of the distances [m]
	AngleSD    []float64 // A priori standard deviation of the angles [arcsec]
	AdjDistSD  []float64 // Propagated standard deviation of the adjusted distances [m]
	AdjAngleSD []float64 // Propagated standard deviation of the adjusted angles [arcsec]

	Sigma0Sq float64       // A posteriori variance of unit weight
	Dof      int           // Degrees of freedom n - u
	Cx       *mat.SymDense // Covariance of the station coordinates
	Cl       *mat.SymDense // Covariance of the adjusted observations
	CLb      *mat.SymDense // Covariance of the observations σ0_priori² P^-1
	CV       *mat.SymDense // Covariance of the residuals Σl + Σ(L_b)
}

// Converged reports whether the tolerance was met
func (s *TraverseSol) Converged() bool {
	return s.Status == StatusConverged
}

// Err returns ErrMaxIterations for a flagged result, nil otherwise
func (s *TraverseSol) Err() error {
	if s.Status == StatusMaxIterExceeded {
		return fmt.Errorf("%w: %d iterations, max|Δ|=%g >= %g", ErrMaxIterations, s.Iterations, s.MaxCorrection, s.Tolerance)
	}
	return nil
}

// AdjustTraverse adjusts distances and angles of a framed traverse by Gauss-Newton iteration
//
// Parameters:
//   - in: Known points and observations
//   - opt: Weighting and convergence options (nil for defaults)
//
// Returns:
//   - TraverseSol: adjusted stations, residuals, misclosure and covariances
//   - error: ErrDimensionMismatch, ErrInsufficientObservations, ErrSingularSystem,
//     or ErrMaxIterations when opt.FailOnMaxIter is set
func AdjustTraverse(in *TraverseInput, opt *TraverseOpt) (*TraverseSol, error) {

	if opt == nil {
		opt = NewTraverseOpt()
	}
	nd := len(in.Distances)
	if len(in.Angles) != nd+1 {
		return nil, mismatch("traverse with %d distances needs %d angles, got %d", nd, nd+1, len(in.Angles))
	}
	if nd < MIN_TRAVERSE_LEGS {
		return nil, insufficient("traverse distances", nd, MIN_TRAVERSE_LEGS)
	}
	if err := opt.validate(in.Distances); err != nil {
		return nil, err
	}

	rslt := &TraverseSol{
		Status:    StatusInitialApproximation,
		Tolerance: opt.Tolerance,
		MaxIter:   opt.MaxIter,
	}

	// Initial approximation by polar traversal
	initial, mc := polarTraverse(in)
	rslt.Initial = initial
	rslt.Misclosure = mc
	logger.Debug("traverse misclosure",
		zap.Float64("fx", mc.Fx), zap.Float64("fy", mc.Fy),
		zap.Float64("relative", mc.Relative), zap.Float64("angular", mc.Angular))

	// Chain of all points; indices 2..nd are unknown
	pts := make([]orb.Point, 0, nd+3)
	pts = append(pts, in.BackSight, in.Start)
	pts = append(pts, initial...)
	pts = append(pts, in.End, in.ForeSight)

	// Weight matrix (fixed over the iterations)
	P := traverseWeights(in, opt)

	// Solve observation equations iteratively
	rslt.Status = StatusIterate
	for loop := 0; loop < opt.MaxIter; loop++ {

		J, L, err := traverseModel(pts, in)
		if err != nil {
			return nil, err
		}

		ls, err := Solve(&LinearSystem{A: J, L: L, P: P, Cause: "traverse geometry cannot be resolved"})
		if err != nil {
			return nil, err
		}

		// Update unknown stations
		for j := 0; j < nd-1; j++ {
			pts[j+2] = orb.Point{pts[j+2].X() + ls.X.AtVec(2*j), pts[j+2].Y() + ls.X.AtVec(2*j+1)}
		}
		rslt.Iterations = loop + 1
		rslt.MaxCorrection = MaxAbs(ls.X)

		logger.Debug("traverse iteration",
			zap.Int("loop", loop+1),
			zap.Float64("maxCorrection", rslt.MaxCorrection))

		// Check convergence
		if rslt.MaxCorrection < opt.Tolerance {
			rslt.Status = StatusConverged
			break
		}
	}

	if rslt.Status != StatusConverged {
		rslt.Status = StatusMaxIterExceeded
		logger.Warn("traverse did not converge",
			zap.Int("iterations", rslt.Iterations),
			zap.Float64("maxCorrection", rslt.MaxCorrection),
			zap.Float64("tolerance", opt.Tolerance))
		if opt.FailOnMaxIter {
			return nil, rslt.Err()
		}
	}

	if err := traversePrecision(rslt, pts, in, opt, P); err != nil {
		return nil, err
	}

	return rslt, nil
}

// polarTraverse runs the observations from Start without adjustment
// It returns the approximate unknown stations and the misclosure at End.
func polarTraverse(in *TraverseInput) ([]orb.Point, Misclosure) {
	nd := len(in.Distances)
	az := Azimuth(in.BackSight, in.Start)
	p := in.Start
	chain := orb.LineString{p}
	stations := make([]orb.Point, 0, nd-1)
	for i := 0; i < nd; i++ {
		az = math.Mod(az+PI+ToRad(in.Angles[i]), 2*PI)
		p = Polar(p, az, in.Distances[i])
		chain = append(chain, p)
		if i < nd-1 {
			stations = append(stations, p)
		}
	}
	closing := az + PI + ToRad(in.Angles[nd])

	mc := Misclosure{
		Fx:     p.X() - in.End.X(),
		Fy:     p.Y() - in.End.Y(),
		Length: planar.Length(chain),
	}
	mc.Linear = math.Hypot(mc.Fx, mc.Fy)
	mc.Relative = math.Inf(1)
	if mc.Linear > 0 {
		mc.Relative = mc.Length / mc.Linear
	}
	mc.Angular = WrapDeg(ToDeg(closing-Azimuth(in.End, in.ForeSight))) * DMS
	return stations, mc
}

// traverseWeights builds P = diag(σ0² / σ²), distances first, then angles
func traverseWeights(in *TraverseInput, opt *TraverseOpt) *mat.DiagDense {
	nd := len(in.Distances)
	w := make([]float64, 2*nd+1)
	s0 := SQ(opt.Sigma0Priori)
	for i, d := range in.Distances {
		w[i] = s0 / SQ(opt.DistSigma(d))
	}
	for i := range in.Angles {
		w[nd+i] = s0 / SQ(opt.AngleArcsec)
	}
	return mat.NewDiagDense(len(w), w)
}

// traverseModel evaluates F(X0) and its Jacobian at the current stations
// - L = L_observed - F(X0): distances [m], angles [arcsec]
// - J: analytic partial derivatives with respect to the unknown stations
func traverseModel(pts []orb.Point, in *TraverseInput) (*mat.Dense, *mat.VecDense, error) {
	nd := len(in.Distances)
	n := 2*nd + 1
	u := 2 * (nd - 1)
	J := mat.NewDense(n, u, nil)
	L := mat.NewVecDense(n, nil)

	// Column of chain point j, or -1 when known
	col := func(j int) int {
		if j >= 2 && j <= nd {
			return 2 * (j - 2)
		}
		return -1
	}
	set := func(row, j int, dx, dy float64) {
		if c := col(j); c >= 0 {
			J.Set(row, c, J.At(row, c)+dx)
			J.Set(row, c+1, J.At(row, c+1)+dy)
		}
	}

	// Distance rows
	for i := 0; i < nd; i++ {
		a, b := pts[i+1], pts[i+2]
		d := Dist(a, b)
		if d < EPS {
			return nil, nil, singular(fmt.Sprintf("stations %d and %d coincide", i, i+1))
		}
		dx := (b.X() - a.X()) / d
		dy := (b.Y() - a.Y()) / d
		set(i, i+1, -dx, -dy)
		set(i, i+2, dx, dy)
		L.SetVec(i, in.Distances[i]-d)
	}

	// Angle rows
	for i := 0; i <= nd; i++ {
		row := nd + i
		b, s, f := pts[i], pts[i+1], pts[i+2]
		db2 := SQ(Dist(s, b))
		df2 := SQ(Dist(s, f))
		if db2 < EPS || df2 < EPS {
			return nil, nil, singular(fmt.Sprintf("zero sight length at angle %d", i))
		}
		// d(az s->p)/d(xp, yp) = (Δy, -Δx) / d²
		fx := (f.Y() - s.Y()) / df2 * RHO
		fy := -(f.X() - s.X()) / df2 * RHO
		bx := (b.Y() - s.Y()) / db2 * RHO
		by := -(b.X() - s.X()) / db2 * RHO
		set(row, i+2, fx, fy)
		set(row, i, -bx, -by)
		set(row, i+1, -fx+bx, -fy+by)
		L.SetVec(row, WrapDeg(in.Angles[i]-HorizAngle(b, s, f))*DMS)
	}

	return J, L, nil
}

// traversePrecision fills residuals, adjusted observations and covariances at the final stations
// - V = L_b - F(X)
// - σ0² = V^t P V / (n - u), Σx = σ0² (J^t P J)^-1, Σl = J Σx J^t
// - Σ(L_b) = σ0_priori² P^-1, Σ(V) = Σl + Σ(L_b)
func traversePrecision(rslt *TraverseSol, pts []orb.Point, in *TraverseInput, opt *TraverseOpt, P *mat.DiagDense) error {
	nd := len(in.Distances)

	J, L, err := traverseModel(pts, in)
	if err != nil {
		return err
	}
	n, u := J.Dims()

	// The shared engine with a zero correction vector gives V = -L
	prec, err := CalcPrecision(J, L, P, mat.NewVecDense(u, nil), n > u)
	if err != nil {
		return err
	}
	rslt.Sigma0Sq = prec.Sigma0Sq
	rslt.Dof = prec.Dof
	rslt.Cx = prec.Cx
	rslt.Cl = prec.Cl

	rslt.CLb = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		rslt.CLb.SetSym(i, i, SQ(opt.Sigma0Priori)/P.At(i, i))
	}
	rslt.CV = mat.NewSymDense(n, nil)
	rslt.CV.AddSym(rslt.Cl, rslt.CLb)

	sdx := SqrtDiag(rslt.Cx)
	rslt.Stations = make([]orb.Point, nd-1)
	rslt.StationSD = make([]orb.Point, nd-1)
	for j := range rslt.Stations {
		rslt.Stations[j] = pts[j+2]
		rslt.StationSD[j] = orb.Point{sdx[2*j], sdx[2*j+1]}
	}
	rslt.Chain = append(orb.LineString{}, pts[1:nd+2]...)

	sdl := SqrtDiag(rslt.Cl)
	sdb := SqrtDiag(rslt.CLb)
	rslt.AdjDist = make([]float64, nd)
	rslt.DistRes = make([]float64, nd)
	rslt.DistSD = make([]float64, nd)
	rslt.AdjDistSD = make([]float64, nd)
	for i := 0; i < nd; i++ {
		rslt.AdjDist[i] = Dist(pts[i+1], pts[i+2])
		rslt.DistRes[i] = L.AtVec(i)
		rslt.DistSD[i] = sdb[i]
		rslt.AdjDistSD[i] = sdl[i]
	}
	rslt.AdjAngle = make([]float64, nd+1)
	rslt.AngleRes = make([]float64, nd+1)
	rslt.AngleSD = make([]float64, nd+1)
	rslt.AdjAngleSD = make([]float64, nd+1)
	for i := 0; i <= nd; i++ {
		rslt.AdjAngle[i] = HorizAngle(pts[i], pts[i+1], pts[i+2])
		rslt.AngleRes[i] = L.AtVec(nd + i)
		rslt.AngleSD[i] = sdb[nd+i]
		rslt.AdjAngleSD[i] = sdl[nd+i]
	}

	logger.Debug("traverse adjusted",
		zap.Stringer("status", rslt.Status),
		zap.Int("iterations", rslt.Iterations),
		zap.Float64("sigma0sq", rslt.Sigma0Sq))

	return nil
}
