// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

// Implements 3D forward intersection by the minimum-distance method.

package goadjust

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// IntersectOpt contains the options of a forward intersection
type IntersectOpt struct {
	Weighted bool // Second solve weighted by inverse slant range
}

// NewIntersectOpt creates a new IntersectOpt with default values
func NewIntersectOpt() *IntersectOpt {
	return &IntersectOpt{
		Weighted: false, // Single unweighted solve
	}
}

// IntersectSol contains the result of a forward intersection
type IntersectSol struct {
	Point     PosXYZ        // Intersected point
	PointSD   PosXYZ        // Standard deviation of the point coordinates
	Ranges    []float64     // Slant range from each station
	RangeSD   []float64     // Standard deviation of the slant ranges
	Weights   []float64     // Weight of each station (1 when unweighted)
	Sigma0Sq  float64       // A posteriori variance of unit weight (0 with two stations)
	Redundant bool          // More than two stations
	Cx        *mat.SymDense // Covariance of (X, Y, Z, s_1..s_m)
	Prec      *Precision    // Residual and covariance details
}

// Intersect estimates the point sighted from several known stations
// Each station i contributes P - s_i u_i = S_i, u_i being the unit line of sight
// from azimuth and zenith angle [deg]. The point and the slant ranges s_i are solved together.
//
// Parameters:
//   - stations: Known station coordinates
//   - azimuths: Azimuth from each station [deg], clockwise from +Y
//   - zeniths: Zenith angle from each station [deg], from +Z
//   - opt: Options (nil for defaults)
//
// Returns:
//   - IntersectSol: the point, slant ranges and precision
//   - error: ErrDimensionMismatch, ErrInsufficientObservations or ErrSingularSystem
func Intersect(stations []PosXYZ, azimuths, zeniths []float64, opt *IntersectOpt) (*IntersectSol, error) {

	if opt == nil {
		opt = NewIntersectOpt()
	}
	m := len(stations)
	if len(azimuths) != m || len(zeniths) != m {
		return nil, mismatch("%d stations, %d azimuths, %d zeniths", m, len(azimuths), len(zeniths))
	}
	if m < MIN_INTERSECT_ST {
		return nil, insufficient("forward intersection stations", m, MIN_INTERSECT_ST)
	}

	// Two stations give the point as the midpoint of the common perpendicular;
	// the remaining degree of freedom is the gap between the rays.
	redundant := m > MIN_INTERSECT_ST

	w := make([]float64, m)
	for i := range w {
		w[i] = 1
	}

	// First stage: unweighted
	sys := buildIntersection(stations, azimuths, zeniths, w)
	ls, err := Solve(sys)
	if err != nil {
		return nil, err
	}

	// Second stage: inverse-distance weights from the first solution
	if opt.Weighted {
		for i := range w {
			s := ls.X.AtVec(3 + i)
			if s < 0 {
				s = -s
			}
			if s < EPS {
				return nil, singular("station coincides with the intersected point")
			}
			w[i] = 1 / s
		}
		logger.Debug("intersection weights", zap.Float64s("weights", w))
		sys = buildIntersection(stations, azimuths, zeniths, w)
		ls, err = Solve(sys)
		if err != nil {
			return nil, err
		}
	}

	prec, err := CalcPrecision(sys.A, sys.L, sys.P, ls.X, redundant)
	if err != nil {
		return nil, err
	}

	sd := SqrtDiag(prec.Cx)
	rslt := &IntersectSol{
		Point:     PosXYZ{X: ls.X.AtVec(0), Y: ls.X.AtVec(1), Z: ls.X.AtVec(2)},
		PointSD:   PosXYZ{X: sd[0], Y: sd[1], Z: sd[2]},
		Ranges:    make([]float64, m),
		RangeSD:   sd[3:],
		Weights:   w,
		Sigma0Sq:  prec.Sigma0Sq,
		Redundant: redundant,
		Cx:        prec.Cx,
		Prec:      prec,
	}
	for i := range rslt.Ranges {
		rslt.Ranges[i] = ls.X.AtVec(3 + i)
	}

	logger.Debug("forward intersection",
		zap.Int("stations", m),
		zap.Stringer("point", &rslt.Point),
		zap.Float64("sigma0sq", rslt.Sigma0Sq))

	return rslt, nil
}

// buildIntersection sets up the identity block, the -u_i range columns and L = stations
func buildIntersection(stations []PosXYZ, azimuths, zeniths []float64, w []float64) *LinearSystem {
	m := len(stations)
	A := mat.NewDense(3*m, 3+m, nil)
	L := mat.NewVecDense(3*m, nil)
	pw := make([]float64, 3*m)
	for i, st := range stations {
		u := LineOfSight(azimuths[i], zeniths[i])
		r := 3 * i
		A.Set(r, 0, 1)
		A.Set(r+1, 1, 1)
		A.Set(r+2, 2, 1)
		A.Set(r, 3+i, -u.X)
		A.Set(r+1, 3+i, -u.Y)
		A.Set(r+2, 3+i, -u.Z)
		L.SetVec(r, st.X)
		L.SetVec(r+1, st.Y)
		L.SetVec(r+2, st.Z)
		pw[r], pw[r+1], pw[r+2] = w[i], w[i], w[i]
	}
	return &LinearSystem{A: A, L: L, P: mat.NewDiagDense(3*m, pw), Cause: "lines of sight are parallel"}
}
