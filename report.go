// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package goadjust

import (
	"fmt"
	"io"
	"math"
)

// PrintReport writes a fixed-width text report of a job result
func PrintReport(w io.Writer, r *JobResult) {
	fmt.Fprintf(w, "%% job       : %s\n", r.Job.Name)
	fmt.Fprintf(w, "%% type      : %s\n", r.Job.Type)
	switch {
	case r.Transform2D != nil:
		printTransform2D(w, r)
	case r.Vertical != nil:
		printVertical(w, r)
	case r.Traverse != nil:
		printTraverse(w, r)
	case r.Intersection != nil:
		printIntersection(w, r)
	}
}

func printTransform2D(w io.Writer, r *JobResult) {
	s := r.Transform2D
	fmt.Fprintf(w, "%% model     : %s\n", s.Kind)
	fmt.Fprintf(w, "%% redundant : %t\n", s.Redundant)
	for i, p := range s.Transform.Params() {
		fmt.Fprintf(w, "%% param %d   : %18.9f %14.9f\n", i, p, s.ParamSD[i])
	}
	if c, ok := s.Transform.(ConformalParams); ok {
		fmt.Fprintf(w, "%% scale     : %.9f\n", c.Scale())
		fmt.Fprintf(w, "%% rotation  : %s\n", FormatDMS(ToDeg(c.Rotation()), 2))
	}
	fmt.Fprintf(w, "%% rmse      : %.4f\n", s.RMSE)
	fmt.Fprintf(w, "%% sigma0^2  : %.6f\n", s.Sigma0Sq)
	fmt.Fprintf(w, "%%  id              x_adj          y_adj         vx         vy        sdx        sdy\n")
	for i, p := range s.Adjusted {
		fmt.Fprintf(w, "%-10s %14.4f %14.4f %10.4f %10.4f %10.4f %10.4f\n", r.Job.Transform2D.Points[i].ID,
			p.X(), p.Y(), s.Residuals[i].X(), s.Residuals[i].Y(), s.SD[i].X(), s.SD[i].Y())
	}
}

func printVertical(w io.Writer, r *JobResult) {
	s := r.Vertical
	fmt.Fprintf(w, "%% model     : %s\n", s.Model)
	fmt.Fprintf(w, "%% params    : %v\n", s.Params)
	fmt.Fprintf(w, "%% rmse      : %.4f\n", s.RMSE)
	fmt.Fprintf(w, "%% sigma0^2  : %.6f\n", s.Sigma0Sq)
	fmt.Fprintf(w, "%%  id                  x              y      h_adj          v         sd\n")
	for i, e := range r.Job.Vertical.Samples {
		fmt.Fprintf(w, "%-10s %14.4f %14.4f %10.4f %10.4f %10.4f\n", e.ID, e.X, e.Y,
			s.Adjusted[i], s.Residuals[i], math.Sqrt(s.AdjustedVar[i]))
	}
}

func printTraverse(w io.Writer, r *JobResult) {
	s := r.Traverse
	mc := s.Misclosure
	fmt.Fprintf(w, "%% status    : %s (%d iterations, max|dx|=%.6f, tol=%g)\n", s.Status, s.Iterations, s.MaxCorrection, s.Tolerance)
	fmt.Fprintf(w, "%% misclosure: fx=%.4f fy=%.4f f=%.4f length=%.3f 1:%.0f angular=%.1f\"\n", mc.Fx, mc.Fy, mc.Linear, mc.Length, mc.Relative, mc.Angular)
	fmt.Fprintf(w, "%% sigma0^2  : %.6f (dof %d)\n", s.Sigma0Sq, s.Dof)
	fmt.Fprintf(w, "%%  id                  x              y        sdx        sdy\n")
	for j, p := range s.Stations {
		fmt.Fprintf(w, "%-10s %14.4f %14.4f %10.4f %10.4f\n", r.Job.Traverse.StationName(j), p.X(), p.Y(), s.StationSD[j].X(), s.StationSD[j].Y())
	}
	fmt.Fprintf(w, "%%  leg        d_adj          v[m]      sd_apr[m]\n")
	for i, d := range s.AdjDist {
		fmt.Fprintf(w, "%4d %14.4f %12.4f %12.4f\n", i+1, d, s.DistRes[i], s.DistSD[i])
	}
	fmt.Fprintf(w, "%%  angle            a_adj    v[\"]  sd_apr[\"]\n")
	for i, a := range s.AdjAngle {
		fmt.Fprintf(w, "%4d %18s %8.2f %10.2f\n", i+1, FormatDMS(a, 1), s.AngleRes[i], s.AngleSD[i])
	}
}

func printIntersection(w io.Writer, r *JobResult) {
	s := r.Intersection
	fmt.Fprintf(w, "%% point     : %14.4f %14.4f %14.4f\n", s.Point.X, s.Point.Y, s.Point.Z)
	fmt.Fprintf(w, "%% sd        : %14.4f %14.4f %14.4f\n", s.PointSD.X, s.PointSD.Y, s.PointSD.Z)
	fmt.Fprintf(w, "%% sigma0^2  : %.6f\n", s.Sigma0Sq)
	fmt.Fprintf(w, "%%  id              range         sd     weight\n")
	for i, st := range r.Job.Intersection.Stations {
		fmt.Fprintf(w, "%-10s %12.4f %10.4f %10.6f\n", st.ID, s.Ranges[i], s.RangeSD[i], s.Weights[i])
	}
}
