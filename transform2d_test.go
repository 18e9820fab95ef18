package goadjust

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const epsilon = 1e-9

// Source points of a small georeferencing job
var srcPoints = []orb.Point{
	{102.5, 204.1},
	{310.2, 188.7},
	{295.4, 402.9},
	{120.8, 390.3},
	{205.0, 300.0},
	{250.6, 150.2},
}

// Small deterministic disturbances added to the target coordinates
var noise = []orb.Point{
	{0.012, -0.008},
	{-0.010, 0.015},
	{0.004, 0.009},
	{-0.013, -0.006},
	{0.007, -0.011},
	{0.002, 0.010},
}

var trueTransforms = map[TransformKind]Transform{
	Translation: TranslationParams{Tx: 5000.25, Ty: -1200.75},
	Conformal:   ConformalParams{A: 1.2 * math.Cos(0.3), B: 1.2 * math.Sin(0.3), C: 5000.25, D: -1200.75},
	Affine:      AffineParams{A: 1.1, B: 0.05, C: 5000.25, D: -0.03, E: 0.95, F: -1200.75},
}

func targets(t Transform, src []orb.Point, withNoise bool) []orb.Point {
	dst := TransformPoints(t, src)
	if withNoise {
		for i := range dst {
			dst[i] = orb.Point{dst[i].X() + noise[i].X(), dst[i].Y() + noise[i].Y()}
		}
	}
	return dst
}

func TestEstimateTransform2DMinimumCase(t *testing.T) {
	for _, kind := range []TransformKind{Translation, Conformal, Affine} {
		t.Run(kind.String(), func(t *testing.T) {
			src := srcPoints[:kind.MinPoints()]
			dst := targets(trueTransforms[kind], src, true)

			sol, err := EstimateTransform2D(src, dst, kind)
			require.NoError(t, err)

			assert.False(t, sol.Redundant)
			assert.Equal(t, 0.0, sol.Sigma0Sq)
			assert.InDelta(t, 0, sol.RMSE, 1e-8)
			for i := range src {
				assert.InDelta(t, 0, sol.Residuals[i].X(), 1e-8)
				assert.InDelta(t, 0, sol.Residuals[i].Y(), 1e-8)
				assert.Equal(t, 0.0, sol.SD[i].X())
				assert.Equal(t, 0.0, sol.SD[i].Y())
			}
		})
	}
}

func TestEstimateTransform2DRecoversParameters(t *testing.T) {
	for _, kind := range []TransformKind{Translation, Conformal, Affine} {
		t.Run(kind.String(), func(t *testing.T) {
			want := trueTransforms[kind]
			sol, err := EstimateTransform2D(srcPoints, targets(want, srcPoints, false), kind)
			require.NoError(t, err)

			assert.True(t, sol.Redundant)
			assert.Equal(t, kind, sol.Transform.Kind())
			got := sol.Transform.Params()
			for i, p := range want.Params() {
				assert.InDelta(t, p, got[i], 1e-6, "param %d", i)
			}
			assert.InDelta(t, 0, sol.RMSE, 1e-6)
		})
	}
}

func TestEstimateTransform2DSigma0MatchesResiduals(t *testing.T) {
	for _, kind := range []TransformKind{Translation, Conformal, Affine} {
		t.Run(kind.String(), func(t *testing.T) {
			dst := targets(trueTransforms[kind], srcPoints, true)
			sol, err := EstimateTransform2D(srcPoints, dst, kind)
			require.NoError(t, err)

			// Recompute residuals independently from the returned transform
			vtv := 0.0
			for i, p := range srcPoints {
				q := sol.Transform.Forward(p)
				vtv += SQ(q.X()-dst[i].X()) + SQ(q.Y()-dst[i].Y())
			}
			dof := 2*len(srcPoints) - kind.NumParams()

			assert.InDelta(t, vtv/float64(dof), sol.Sigma0Sq, 1e-10)
			assert.InDelta(t, math.Sqrt(vtv/float64(len(srcPoints))), sol.RMSE, 1e-10)
			assert.Greater(t, sol.Sigma0Sq, 0.0)
			for i := range srcPoints {
				assert.Greater(t, sol.SD[i].X(), 0.0)
				assert.Greater(t, sol.SD[i].Y(), 0.0)
			}
		})
	}
}

func TestEstimateTransform2DTranslationIsMeanShift(t *testing.T) {
	dst := targets(trueTransforms[Translation], srcPoints, true)
	sol, err := EstimateTransform2D(srcPoints, dst, Translation)
	require.NoError(t, err)

	var mx, my float64
	for i := range srcPoints {
		mx += dst[i].X() - srcPoints[i].X()
		my += dst[i].Y() - srcPoints[i].Y()
	}
	n := float64(len(srcPoints))
	p := sol.Transform.Params()
	assert.InDelta(t, mx/n, p[0], epsilon)
	assert.InDelta(t, my/n, p[1], epsilon)
}

func TestEstimateTransform2DCollinear(t *testing.T) {
	line := []orb.Point{{0, 0}, {10, 10}, {20, 20}, {30, 30}}
	c := trueTransforms[Conformal]

	_, err := EstimateTransform2D(line, targets(c, line, false), Conformal)
	require.ErrorIs(t, err, ErrSingularSystem)
	assert.Contains(t, err.Error(), ALIGNED_VECTORS)

	_, err = EstimateTransform2D(line, targets(trueTransforms[Affine], line, false), Affine)
	require.ErrorIs(t, err, ErrSingularSystem)

	// Same points moved off the line
	moved := []orb.Point{{0, 0}, {10, 10.6}, {20, 19.3}, {30, 30.4}}
	dst := targets(c, moved, true)
	sol, err := EstimateTransform2D(moved, dst, Conformal)
	require.NoError(t, err)
	r, cc := sol.Prec.Cx.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < cc; j++ {
			v := sol.Prec.Cx.At(i, j)
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "Cx(%d,%d)=%v", i, j, v)
		}
		assert.Greater(t, sol.Prec.Cx.At(i, i), 0.0)
	}
}

func TestEstimateTransform2DCoincidentPoints(t *testing.T) {
	src := []orb.Point{{5, 5}, {5, 5}}
	_, err := EstimateTransform2D(src, src, Conformal)
	assert.ErrorIs(t, err, ErrSingularSystem)
}

func TestEstimateTransform2DValidation(t *testing.T) {
	tests := []struct {
		name string
		src  []orb.Point
		dst  []orb.Point
		kind TransformKind
		err  error
	}{
		{"no points", nil, nil, Translation, ErrInsufficientObservations},
		{"conformal with one point", srcPoints[:1], srcPoints[:1], Conformal, ErrInsufficientObservations},
		{"affine with two points", srcPoints[:2], srcPoints[:2], Affine, ErrInsufficientObservations},
		{"length mismatch", srcPoints[:3], srcPoints[:2], Conformal, ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol, err := EstimateTransform2D(tt.src, tt.dst, tt.kind)
			assert.Nil(t, sol)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEstimateTransform2DConformalScaleRotation(t *testing.T) {
	dst := targets(trueTransforms[Conformal], srcPoints, false)
	sol, err := EstimateTransform2D(srcPoints, dst, Conformal)
	require.NoError(t, err)

	c, ok := sol.Transform.(ConformalParams)
	require.True(t, ok)
	assert.InDelta(t, 1.2, c.Scale(), 1e-9)
	assert.InDelta(t, 0.3, c.Rotation(), 1e-9)
}

// Map-grid coordinates: same layout as srcPoints, far from the origin
var gridBase = orb.Point{512345, 4567890}

func gridPoints() []orb.Point {
	out := make([]orb.Point, len(srcPoints))
	for i, p := range srcPoints {
		out[i] = orb.Point{gridBase.X() + p.X(), gridBase.Y() + p.Y()}
	}
	return out
}

func TestEstimateTransform2DGridCoordinates(t *testing.T) {
	grid := gridPoints()
	for _, kind := range []TransformKind{Conformal, Affine} {
		t.Run(kind.String(), func(t *testing.T) {
			want := trueTransforms[kind]

			t.Run("minimum", func(t *testing.T) {
				src := grid[:kind.MinPoints()]
				dst := targets(want, src, false)
				sol, err := EstimateTransform2D(src, dst, kind)
				require.NoError(t, err)
				assert.False(t, sol.Redundant)
				for i, p := range src {
					q := sol.Transform.Forward(p)
					assert.InDelta(t, dst[i].X(), q.X(), 1e-5)
					assert.InDelta(t, dst[i].Y(), q.Y(), 1e-5)
				}
			})

			t.Run("redundant", func(t *testing.T) {
				dst := targets(want, grid, false)
				sol, err := EstimateTransform2D(grid, dst, kind)
				require.NoError(t, err)
				got := sol.Transform.Params()
				for i, p := range want.Params() {
					assert.InDelta(t, p, got[i], 1e-6*math.Max(1, math.Abs(p)), "param %d", i)
				}
				assert.InDelta(t, 0, sol.RMSE, 1e-5)
			})

			t.Run("same precision as near the origin", func(t *testing.T) {
				near, err := EstimateTransform2D(srcPoints, targets(want, srcPoints, true), kind)
				require.NoError(t, err)
				far, err := EstimateTransform2D(grid, targets(want, grid, true), kind)
				require.NoError(t, err)

				assert.InDelta(t, near.Sigma0Sq, far.Sigma0Sq, 1e-9)
				for i := range srcPoints {
					assert.InDelta(t, near.Residuals[i].X(), far.Residuals[i].X(), 1e-6)
					assert.InDelta(t, near.Residuals[i].Y(), far.Residuals[i].Y(), 1e-6)
					assert.InDelta(t, near.SD[i].X(), far.SD[i].X(), 1e-6)
					assert.InDelta(t, near.SD[i].Y(), far.SD[i].Y(), 1e-6)
				}
				// Linear parameters do not depend on the origin
				assert.InDelta(t, near.ParamSD[0], far.ParamSD[0], 1e-9)
				assert.InDelta(t, near.ParamSD[1], far.ParamSD[1], 1e-9)
				// Translation terms carry the lever arm to the origin
				assert.Greater(t, far.ParamSD[2], near.ParamSD[2])
				for _, sd := range far.ParamSD {
					assert.False(t, math.IsNaN(sd) || math.IsInf(sd, 0))
				}
			})
		})
	}
}

func TestTransformReductionRestoresOrigin(t *testing.T) {
	cs := orb.Point{1000, 2000}
	cd := orb.Point{-30, 45}
	for _, kind := range []TransformKind{Conformal, Affine} {
		want := trueTransforms[kind]
		// Parameters of the same mapping between reduced coordinates
		reduced := append([]float64{}, want.Params()...)
		q := want.Forward(cs)
		switch kind {
		case Conformal:
			reduced[2], reduced[3] = q.X()-cd.X(), q.Y()-cd.Y()
		case Affine:
			reduced[2], reduced[5] = q.X()-cd.X(), q.Y()-cd.Y()
		}
		got := kind.reduction(cs, cd).Params(mat.NewVecDense(len(reduced), reduced))
		for i, p := range want.Params() {
			assert.InDelta(t, p, got.AtVec(i), 1e-9, "%s param %d", kind, i)
		}
	}
	assert.Nil(t, Translation.reduction(cs, cd))
}
