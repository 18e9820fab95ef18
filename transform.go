// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Two-dimensional transformation models and their forward/inverse mappings.

package goadjust

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// TransformKind selects the 2D transformation model
type TransformKind int

const (
	Translation TransformKind = iota // 2 parameters: tx, ty
	Conformal                        // 4 parameters: a, b, c, d (Helmert)
	Affine                           // 6 parameters: a, b, c, d, e, f
)

func (k TransformKind) String() string {
	switch k {
	case Translation:
		return "translation"
	case Conformal:
		return "conformal"
	case Affine:
		return "affine"
	default:
		return "UNKNOWN!"
	}
}

// MinPoints is the number of correspondences that determine the model exactly
func (k TransformKind) MinPoints() int {
	switch k {
	case Translation:
		return 1
	case Conformal:
		return 2
	default:
		return 3
	}
}

// NumParams is the number of unknowns of the model
func (k TransformKind) NumParams() int {
	return 2 * k.MinPoints()
}

// Set implements flag.Value
func (k *TransformKind) Set(s string) error {
	return k.UnmarshalText([]byte(s))
}

func (k TransformKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *TransformKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "translation", "shift":
		*k = Translation
	case "conformal", "helmert", "similarity":
		*k = Conformal
	case "affine":
		*k = Affine
	default:
		return fmt.Errorf("unknown transformation %q (valid: translation, conformal, affine)", string(text))
	}
	return nil
}

// rows returns the two design-matrix rows of one source point
func (k TransformKind) rows(p orb.Point) (rx, ry []float64) {
	x, y := p.X(), p.Y()
	switch k {
	case Translation:
		return []float64{1, 0}, []float64{0, 1}
	case Conformal:
		return []float64{x, -y, 1, 0}, []float64{y, x, 0, 1}
	default:
		return []float64{x, y, 1, 0, 0, 0}, []float64{0, 0, 0, x, y, 1}
	}
}

// reduction converts parameters solved on centroid-reduced coordinates
// (source reduced by cs, target by cd) back to the original origins
func (k TransformKind) reduction(cs, cd orb.Point) *Reduction {
	u := k.NumParams()
	T := mat.NewDense(u, u, nil)
	for i := 0; i < u; i++ {
		T.Set(i, i, 1)
	}
	C := mat.NewVecDense(u, nil)
	switch k {
	case Translation:
		return nil
	case Conformal:
		// c = c' + cdx - a·csx + b·csy, d = d' + cdy - b·csx - a·csy
		T.Set(2, 0, -cs.X())
		T.Set(2, 1, cs.Y())
		T.Set(3, 0, -cs.Y())
		T.Set(3, 1, -cs.X())
		C.SetVec(2, cd.X())
		C.SetVec(3, cd.Y())
	default:
		// c = c' + cdx - a·csx - b·csy, f = f' + cdy - d·csx - e·csy
		T.Set(2, 0, -cs.X())
		T.Set(2, 1, -cs.Y())
		T.Set(5, 3, -cs.X())
		T.Set(5, 4, -cs.Y())
		C.SetVec(2, cd.X())
		C.SetVec(5, cd.Y())
	}
	return &Reduction{T: T, C: C}
}

// Transform maps points between the source and the target plane
type Transform interface {
	Kind() TransformKind
	Params() []float64
	Forward(p orb.Point) orb.Point
	Inverse(p orb.Point) (orb.Point, error)
}

// NewTransform builds the transform of a kind from its parameter vector
func NewTransform(kind TransformKind, x []float64) (Transform, error) {
	if len(x) != kind.NumParams() {
		return nil, mismatch("%s transform takes %d parameters, got %d", kind, kind.NumParams(), len(x))
	}
	switch kind {
	case Translation:
		return TranslationParams{Tx: x[0], Ty: x[1]}, nil
	case Conformal:
		return ConformalParams{A: x[0], B: x[1], C: x[2], D: x[3]}, nil
	case Affine:
		return AffineParams{A: x[0], B: x[1], C: x[2], D: x[3], E: x[4], F: x[5]}, nil
	default:
		return nil, fmt.Errorf("unknown transformation kind %d", int(kind))
	}
}

// TransformPoints applies the forward transform to every point
func TransformPoints(t Transform, points []orb.Point) []orb.Point {
	result := make([]orb.Point, len(points))
	for i, p := range points {
		result[i] = t.Forward(p)
	}
	return result
}

//-------------------------------------------------------------------
// Translation
//-------------------------------------------------------------------

// Xt = x + Tx, Yt = y + Ty
type TranslationParams struct {
	Tx, Ty float64
}

func (TranslationParams) Kind() TransformKind { return Translation }

func (t TranslationParams) Params() []float64 { return []float64{t.Tx, t.Ty} }

func (t TranslationParams) Forward(p orb.Point) orb.Point {
	return orb.Point{p.X() + t.Tx, p.Y() + t.Ty}
}

func (t TranslationParams) Inverse(p orb.Point) (orb.Point, error) {
	return orb.Point{p.X() - t.Tx, p.Y() - t.Ty}, nil
}

//-------------------------------------------------------------------
// Conformal (Helmert)
//-------------------------------------------------------------------

// Xt = A x - B y + C, Yt = B x + A y + D
// A = scale·cos(θ), B = scale·sin(θ)
type ConformalParams struct {
	A, B, C, D float64
}

func (ConformalParams) Kind() TransformKind { return Conformal }

func (t ConformalParams) Params() []float64 { return []float64{t.A, t.B, t.C, t.D} }

func (t ConformalParams) Forward(p orb.Point) orb.Point {
	return orb.Point{
		t.A*p.X() - t.B*p.Y() + t.C,
		t.B*p.X() + t.A*p.Y() + t.D,
	}
}

func (t ConformalParams) Inverse(p orb.Point) (orb.Point, error) {
	det := t.A*t.A + t.B*t.B
	if det < EPS {
		return orb.Point{}, singular("conformal transformation has zero scale")
	}
	dx := p.X() - t.C
	dy := p.Y() - t.D
	return orb.Point{
		(t.A*dx + t.B*dy) / det,
		(-t.B*dx + t.A*dy) / det,
	}, nil
}

// Scale factor of the similarity
func (t ConformalParams) Scale() float64 {
	return math.Hypot(t.A, t.B)
}

// Rotation angle [rad], counter-clockwise in the x/y plane
func (t ConformalParams) Rotation() float64 {
	return math.Atan2(t.B, t.A)
}

//-------------------------------------------------------------------
// Affine
//-------------------------------------------------------------------

// Xt = A x + B y + C, Yt = D x + E y + F
type AffineParams struct {
	A, B, C, D, E, F float64
}

func (AffineParams) Kind() TransformKind { return Affine }

func (t AffineParams) Params() []float64 { return []float64{t.A, t.B, t.C, t.D, t.E, t.F} }

func (t AffineParams) Forward(p orb.Point) orb.Point {
	return orb.Point{
		t.A*p.X() + t.B*p.Y() + t.C,
		t.D*p.X() + t.E*p.Y() + t.F,
	}
}

func (t AffineParams) Inverse(p orb.Point) (orb.Point, error) {
	det := t.A*t.E - t.B*t.D
	if math.Abs(det) < EPS {
		return orb.Point{}, singular("affine transformation is not invertible")
	}
	dx := p.X() - t.C
	dy := p.Y() - t.F
	return orb.Point{
		(t.E*dx - t.B*dy) / det,
		(-t.D*dx + t.A*dy) / det,
	}, nil
}
