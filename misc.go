// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.14
//

package goadjust

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ------------------------------------
// Mini functions
// ------------------------------------

func SQ(x float64) float64 {
	return x * x
}

func ToDeg(rad float64) float64 {
	return rad / PI * 180.0
}

func ToRad(deg float64) float64 {
	return deg / 180.0 * PI
}

// Normalize an angle in degrees to [0, 360)
func NormDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Wrap an angle difference in degrees to (-180, 180]
func WrapDeg(deg float64) float64 {
	deg = NormDeg(deg)
	if deg > 180 {
		deg -= 360
	}
	return deg
}

// Largest absolute element of a vector
func MaxAbs(v mat.Vector) float64 {
	a := make([]float64, v.Len())
	for i := range a {
		a[i] = math.Abs(v.AtVec(i))
	}
	if len(a) == 0 {
		return 0
	}
	return floats.Max(a)
}

// Square roots of the diagonal of a symmetric matrix (standard deviations from a covariance)
func SqrtDiag(c mat.Symmetric) []float64 {
	n := c.SymmetricDim()
	sd := make([]float64, n)
	for i := range sd {
		sd[i] = math.Sqrt(math.Max(c.At(i, i), 0))
	}
	return sd
}

// ------------------------------------
// Debug print function
// ------------------------------------

func PrintMat(name string, X mat.Matrix) {
	if ce := logger.Check(zap.DebugLevel, name); ce != nil {
		r, c := X.Dims()
		fa := mat.Formatted(X, mat.Prefix(""), mat.Squeeze())
		ce.Write(zap.String("dims", fmt.Sprintf("%d x %d", r, c)), zap.String("value", fmt.Sprintf("\n%v", fa)))
	}
}
