package goadjust

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// True geometry: BackSight, Start, S1, S2, S3, End, ForeSight
var traverseTruth = []orb.Point{
	{1000.000, 900.000},
	{1000.000, 1000.000},
	{1100.350, 1052.120},
	{1210.870, 1021.440},
	{1302.150, 1101.730},
	{1400.000, 1080.000},
	{1510.000, 1150.000},
}

// synthTraverse derives error-free observations from the true geometry
func synthTraverse() *TraverseInput {
	p := traverseTruth
	nd := len(p) - 3
	in := &TraverseInput{
		BackSight: p[0],
		Start:     p[1],
		End:       p[nd+1],
		ForeSight: p[nd+2],
		Distances: make([]float64, nd),
		Angles:    make([]float64, nd+1),
	}
	for i := 0; i < nd; i++ {
		in.Distances[i] = Dist(p[i+1], p[i+2])
	}
	for i := 0; i <= nd; i++ {
		in.Angles[i] = HorizAngle(p[i], p[i+1], p[i+2])
	}
	return in
}

// noisyTraverse disturbs the distances by a few millimetres and the angles by a few arcseconds
func noisyTraverse() *TraverseInput {
	in := synthTraverse()
	dd := []float64{0.004, -0.006, 0.003, -0.002}
	da := []float64{4, -3, 6, -5, 2}
	for i := range in.Distances {
		in.Distances[i] += dd[i]
	}
	for i := range in.Angles {
		in.Angles[i] += da[i] / DMS
	}
	return in
}

func TestAdjustTraverseNoiseFree(t *testing.T) {
	sol, err := AdjustTraverse(synthTraverse(), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, sol.Status)
	assert.True(t, sol.Converged())
	assert.NoError(t, sol.Err())
	assert.Equal(t, 1, sol.Iterations)
	assert.Equal(t, 3, sol.Dof)

	assert.InDelta(t, 0, sol.Misclosure.Linear, 1e-8)
	assert.InDelta(t, 0, sol.Misclosure.Angular, 1e-6)
	assert.True(t, math.IsInf(sol.Misclosure.Relative, 1) || sol.Misclosure.Relative > 1e9)

	require.Len(t, sol.Stations, 3)
	for j, p := range sol.Stations {
		assert.InDelta(t, traverseTruth[j+2].X(), p.X(), 1e-6)
		assert.InDelta(t, traverseTruth[j+2].Y(), p.Y(), 1e-6)
	}
	for _, v := range sol.DistRes {
		assert.InDelta(t, 0, v, 1e-7)
	}
	for _, v := range sol.AngleRes {
		assert.InDelta(t, 0, v, 1e-4)
	}
	assert.InDelta(t, 0, sol.Sigma0Sq, 1e-9)
	assert.Len(t, sol.Chain, 5)
}

func TestAdjustTraverseNoisy(t *testing.T) {
	in := noisyTraverse()
	sol, err := AdjustTraverse(in, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, sol.Status)
	assert.LessOrEqual(t, sol.Iterations, DEF_MAX_ITER)
	assert.Less(t, sol.MaxCorrection, DEF_TOLERANCE)
	assert.Greater(t, sol.Misclosure.Linear, 0.0)
	assert.InDelta(t, 449.6, sol.Misclosure.Length, 0.5)
	assert.NotZero(t, sol.Misclosure.Angular)

	for j, p := range sol.Stations {
		assert.InDelta(t, traverseTruth[j+2].X(), p.X(), 0.05)
		assert.InDelta(t, traverseTruth[j+2].Y(), p.Y(), 0.05)
		assert.Greater(t, sol.StationSD[j].X(), 0.0)
		assert.Greater(t, sol.StationSD[j].Y(), 0.0)
	}

	// V = L_b - F(X) is consistent with the adjusted observations
	for i, d := range sol.AdjDist {
		assert.InDelta(t, in.Distances[i]-d, sol.DistRes[i], 1e-9)
	}
	for i, a := range sol.AdjAngle {
		assert.InDelta(t, WrapDeg(in.Angles[i]-a)*DMS, sol.AngleRes[i], 1e-6)
	}

	// σ0² = V^t P V / (n - u)
	opt := NewTraverseOpt()
	vtpv := 0.0
	for i, v := range sol.DistRes {
		vtpv += SQ(v) / SQ(opt.DistSigma(in.Distances[i]))
	}
	for _, v := range sol.AngleRes {
		vtpv += SQ(v) / SQ(opt.AngleArcsec)
	}
	assert.InDelta(t, vtpv/3, sol.Sigma0Sq, 1e-9)
	assert.Greater(t, sol.Sigma0Sq, 0.0)

	// Σ(V) = Σl + Σ(L_b)
	n, _ := sol.CV.Dims()
	for i := 0; i < n; i++ {
		assert.InDelta(t, sol.Cl.At(i, i)+sol.CLb.At(i, i), sol.CV.At(i, i), 1e-15)
	}
}

func TestAdjustTraversePPMIncreasesDistanceSD(t *testing.T) {
	low := NewTraverseOpt()
	low.DistPPM = 1
	high := NewTraverseOpt()
	high.DistPPM = 10

	a, err := AdjustTraverse(noisyTraverse(), low)
	require.NoError(t, err)
	b, err := AdjustTraverse(noisyTraverse(), high)
	require.NoError(t, err)

	require.Equal(t, len(a.DistSD), len(b.DistSD))
	for i := range a.DistSD {
		assert.Greater(t, b.DistSD[i], a.DistSD[i], "distance %d", i)
	}
	// Angle precision is unaffected
	for i := range a.AngleSD {
		assert.InDelta(t, a.AngleSD[i], b.AngleSD[i], 1e-12)
	}
}

func TestAdjustTraverseMaxIterations(t *testing.T) {
	opt := NewTraverseOpt()
	opt.MaxIter = 1
	opt.Tolerance = 1e-12

	sol, err := AdjustTraverse(noisyTraverse(), opt)
	require.NoError(t, err)
	assert.Equal(t, StatusMaxIterExceeded, sol.Status)
	assert.False(t, sol.Converged())
	assert.ErrorIs(t, sol.Err(), ErrMaxIterations)
	assert.Equal(t, 1, sol.Iterations)
	assert.Len(t, sol.Stations, 3)

	opt.FailOnMaxIter = true
	sol, err = AdjustTraverse(noisyTraverse(), opt)
	assert.Nil(t, sol)
	assert.ErrorIs(t, err, ErrMaxIterations)
}

func TestAdjustTraverseValidation(t *testing.T) {
	in := synthTraverse()
	in.Angles = in.Angles[:len(in.Angles)-1]
	_, err := AdjustTraverse(in, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	short := &TraverseInput{
		BackSight: orb.Point{0, 0},
		Start:     orb.Point{0, 100},
		End:       orb.Point{100, 100},
		ForeSight: orb.Point{100, 200},
		Distances: []float64{100},
		Angles:    []float64{270, 270},
	}
	_, err = AdjustTraverse(short, nil)
	assert.ErrorIs(t, err, ErrInsufficientObservations)

	tests := []struct {
		name string
		set  func(o *TraverseOpt)
	}{
		{"no iterations", func(o *TraverseOpt) { o.MaxIter = 0 }},
		{"zero tolerance", func(o *TraverseOpt) { o.Tolerance = 0 }},
		{"zero distance sigma", func(o *TraverseOpt) { o.DistBaseMM, o.DistPPM = 0, 0 }},
		{"negative distance sigma", func(o *TraverseOpt) { o.DistBaseMM, o.DistPPM = -5, 1 }},
		{"zero angle sigma", func(o *TraverseOpt) { o.AngleArcsec = 0 }},
		{"zero unit weight", func(o *TraverseOpt) { o.Sigma0Priori = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := NewTraverseOpt()
			tt.set(opt)
			sol, err := AdjustTraverse(noisyTraverse(), opt)
			assert.Nil(t, sol)
			assert.ErrorIs(t, err, ErrInvalidOptions)
			assert.NotErrorIs(t, err, ErrSingularSystem)
		})
	}

	// Proportional part alone is a valid weight model
	opt := NewTraverseOpt()
	opt.DistBaseMM = 0
	_, err = AdjustTraverse(noisyTraverse(), opt)
	assert.NoError(t, err)
}

func TestTraverseJacobianMatchesFiniteDifferences(t *testing.T) {
	in := synthTraverse()
	pts := append([]orb.Point{}, traverseTruth...)
	// Move the unknown stations off the truth so every row is non-trivial
	for j := 2; j <= 4; j++ {
		pts[j] = orb.Point{pts[j].X() + 0.7, pts[j].Y() - 0.4}
	}

	J, _, err := traverseModel(pts, in)
	require.NoError(t, err)
	n, u := J.Dims()

	const h = 1e-5
	for c := 0; c < u; c++ {
		j := 2 + c/2
		plus := append([]orb.Point{}, pts...)
		minus := append([]orb.Point{}, pts...)
		if c%2 == 0 {
			plus[j] = orb.Point{pts[j].X() + h, pts[j].Y()}
			minus[j] = orb.Point{pts[j].X() - h, pts[j].Y()}
		} else {
			plus[j] = orb.Point{pts[j].X(), pts[j].Y() + h}
			minus[j] = orb.Point{pts[j].X(), pts[j].Y() - h}
		}
		_, Lp, err := traverseModel(plus, in)
		require.NoError(t, err)
		_, Lm, err := traverseModel(minus, in)
		require.NoError(t, err)
		for r := 0; r < n; r++ {
			// L = L_obs - F, so dF/dx = -dL/dx
			num := -(Lp.AtVec(r) - Lm.AtVec(r)) / (2 * h)
			assert.InDelta(t, num, J.At(r, c), 1e-3*math.Max(1, math.Abs(num)), "row %d col %d", r, c)
		}
	}
}

func TestTraverseStatusString(t *testing.T) {
	assert.Equal(t, "INITIAL_APPROXIMATION", StatusInitialApproximation.String())
	assert.Equal(t, "ITERATE", StatusIterate.String())
	assert.Equal(t, "CONVERGED", StatusConverged.String())
	assert.Equal(t, "MAX_ITER_EXCEEDED", StatusMaxIterExceeded.String())
}
