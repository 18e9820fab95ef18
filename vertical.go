// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package goadjust

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// VerticalModel selects the shape of the height correction field
type VerticalModel int

const (
	Constant VerticalModel = iota // Δz = c
	Plane                         // Δz = a x + b y + c
)

func (m VerticalModel) String() string {
	switch m {
	case Constant:
		return "constant"
	case Plane:
		return "plane"
	default:
		return "UNKNOWN!"
	}
}

func (m VerticalModel) MinPoints() int {
	if m == Plane {
		return 3
	}
	return 1
}

func (m *VerticalModel) Set(s string) error {
	return m.UnmarshalText([]byte(s))
}

func (m VerticalModel) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *VerticalModel) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "constant", "offset":
		*m = Constant
	case "plane", "tilted":
		*m = Plane
	default:
		return fmt.Errorf("unknown vertical model %q (valid: constant, plane)", string(text))
	}
	return nil
}

// VerticalSample is one control point of a vertical datum fit
type VerticalSample struct {
	Pos          orb.Point // Horizontal position
	RefHeight    float64   // Height on the reference surface
	SampleHeight float64   // Height in the sampled datum
}

// VerticalSol contains the fitted correction field Δz(x, y)
type VerticalSol struct {
	Model       VerticalModel
	Params      []float64  // [c] or [a, b, c]
	ParamSD     []float64  // Standard deviation of the parameters
	Adjusted    []float64  // RefHeight + Δz, per sample
	Residuals   []float64  // Δz - (SampleHeight - RefHeight), per sample
	AdjustedVar []float64  // Variance of the adjusted heights (diagonal of Σl)
	RMSE        float64    // sqrt(V^t V / n)
	Sigma0Sq    float64    // A posteriori variance of unit weight (0 in the minimum case)
	Redundant   bool       // More samples than the minimum
	Prec        *Precision // Residual and covariance details
}

// Correction evaluates Δz at a horizontal position
func (s *VerticalSol) Correction(p orb.Point) float64 {
	if s.Model == Plane {
		return s.Params[0]*p.X() + s.Params[1]*p.Y() + s.Params[2]
	}
	return s.Params[0]
}

// FitVertical estimates the height correction between a reference surface and sampled heights
func FitVertical(samples []VerticalSample, model VerticalModel) (*VerticalSol, error) {

	if len(samples) < model.MinPoints() {
		return nil, insufficient(model.String()+" vertical fit", len(samples), model.MinPoints())
	}

	sys, red := buildVertical(samples, model)

	ls, err := Solve(sys)
	if err != nil {
		return nil, err
	}

	prec, err := CalcPrecision(sys.A, sys.L, sys.P, ls.X, ls.Redundant)
	if err != nil {
		return nil, err
	}
	prec.Cx = red.Cov(prec.Cx)

	rslt := &VerticalSol{
		Model:       model,
		Params:      mat.Col(nil, 0, red.Params(ls.X)),
		ParamSD:     SqrtDiag(prec.Cx),
		Adjusted:    make([]float64, len(samples)),
		Residuals:   mat.Col(nil, 0, prec.V),
		AdjustedVar: make([]float64, len(samples)),
		RMSE:        prec.RMSE,
		Sigma0Sq:    prec.Sigma0Sq,
		Redundant:   ls.Redundant,
		Prec:        prec,
	}
	for i, s := range samples {
		rslt.Adjusted[i] = s.RefHeight + rslt.Correction(s.Pos)
		rslt.AdjustedVar[i] = prec.Cl.At(i, i)
	}

	logger.Debug("vertical fit",
		zap.Stringer("model", model),
		zap.Int("points", len(samples)),
		zap.Float64s("params", rslt.Params),
		zap.Float64("rmse", rslt.RMSE))

	return rslt, nil
}

// buildVertical sets up the height-difference model
// Plane positions are reduced to their centroid; the returned Reduction restores c.
func buildVertical(samples []VerticalSample, model VerticalModel) (*LinearSystem, *Reduction) {
	n := len(samples)
	u := 1
	var red *Reduction
	var c orb.Point
	if model == Plane {
		u = 3
		pos := make([]orb.Point, n)
		for i, s := range samples {
			pos[i] = s.Pos
		}
		c = Centroid(pos)
		// c = c' - a·cx - b·cy
		T := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, -c.X(), -c.Y(), 1})
		red = &Reduction{T: T, C: mat.NewVecDense(3, nil)}
	}
	A := mat.NewDense(n, u, nil)
	L := mat.NewVecDense(n, nil)
	for i, s := range samples {
		if model == Plane {
			A.SetRow(i, []float64{s.Pos.X() - c.X(), s.Pos.Y() - c.Y(), 1})
		} else {
			A.Set(i, 0, 1)
		}
		L.SetVec(i, s.SampleHeight-s.RefHeight)
	}
	return &LinearSystem{A: A, L: L, P: IdentityWeights(n), Cause: "vertical control points are collinear"}, red
}
