// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package goadjust

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

//-------------------------------------------------------------------
// Plane coordinates (orb.Point: [0]=X easting, [1]=Y northing)
//-------------------------------------------------------------------

// Grid azimuth from a to b [rad], clockwise from +Y, in [0, 2π)
func Azimuth(a, b orb.Point) float64 {
	az := math.Atan2(b.X()-a.X(), b.Y()-a.Y())
	if az < 0 {
		az += 2 * PI
	}
	return az
}

// Horizontal distance between a and b
func Dist(a, b orb.Point) float64 {
	return planar.Distance(a, b)
}

// Point reached from p along azimuth az [rad] after distance d
func Polar(p orb.Point, az, d float64) orb.Point {
	return orb.Point{p.X() + d*math.Sin(az), p.Y() + d*math.Cos(az)}
}

// Mean of the points
func Centroid(points []orb.Point) orb.Point {
	if len(points) == 0 {
		return orb.Point{}
	}
	var cx, cy float64
	for _, p := range points {
		cx += p.X()
		cy += p.Y()
	}
	n := float64(len(points))
	return orb.Point{cx / n, cy / n}
}

// Clockwise horizontal angle at station from back to fore [deg], in [0, 360)
func HorizAngle(back, station, fore orb.Point) float64 {
	return NormDeg(ToDeg(Azimuth(station, fore) - Azimuth(station, back)))
}

//-------------------------------------------------------------------
// PosXYZ
//-------------------------------------------------------------------

type PosXYZ struct {
	X float64
	Y float64
	Z float64
}

func NewPosXYZ(x, y, z float64) *PosXYZ {
	return &PosXYZ{
		X: x,
		Y: y,
		Z: z,
	}
}

func EucDist(a, b *PosXYZ) float64 {
	return math.Sqrt(SQ(a.X-b.X) + SQ(a.Y-b.Y) + SQ(a.Z-b.Z))
}

// Unit line-of-sight vector for an azimuth and a zenith angle [deg]
func LineOfSight(az, zen float64) PosXYZ {
	a := ToRad(az)
	z := ToRad(zen)
	return PosXYZ{
		X: math.Sin(z) * math.Sin(a),
		Y: math.Sin(z) * math.Cos(a),
		Z: math.Cos(z),
	}
}

// Azimuth and zenith angle [deg] of the line of sight from pos to target
func (pos *PosXYZ) Direction(target PosXYZ) (az, zen float64) {
	dx := target.X - pos.X
	dy := target.Y - pos.Y
	dz := target.Z - pos.Z
	az = NormDeg(ToDeg(math.Atan2(dx, dy)))
	zen = ToDeg(math.Atan2(math.Hypot(dx, dy), dz))
	return
}

func (pos *PosXYZ) Point() orb.Point {
	return orb.Point{pos.X, pos.Y}
}

// Convert to string
func (pos *PosXYZ) String() string {
	return fmt.Sprintf("%.4f %.4f %.4f", pos.X, pos.Y, pos.Z)
}
