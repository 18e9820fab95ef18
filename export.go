// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package goadjust

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection returns the adjusted points of a job result as GeoJSON features
// Coordinates are written as they are (plane coordinates, no CRS).
func (r *JobResult) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	switch {
	case r.Transform2D != nil:
		pts := r.Job.Transform2D.Points
		for i, p := range r.Transform2D.Adjusted {
			f := geojson.NewFeature(p)
			f.Properties["id"] = pts[i].ID
			f.Properties["vx"] = r.Transform2D.Residuals[i].X()
			f.Properties["vy"] = r.Transform2D.Residuals[i].Y()
			f.Properties["sdx"] = r.Transform2D.SD[i].X()
			f.Properties["sdy"] = r.Transform2D.SD[i].Y()
			fc.Append(f)
		}
	case r.Vertical != nil:
		smp := r.Job.Vertical.Samples
		for i, s := range smp {
			f := geojson.NewFeature(orb.Point{s.X, s.Y})
			f.Properties["id"] = s.ID
			f.Properties["height"] = r.Vertical.Adjusted[i]
			f.Properties["residual"] = r.Vertical.Residuals[i]
			f.Properties["variance"] = r.Vertical.AdjustedVar[i]
			fc.Append(f)
		}
	case r.Traverse != nil:
		line := geojson.NewFeature(r.Traverse.Chain)
		line.Properties["status"] = r.Traverse.Status.String()
		line.Properties["iterations"] = r.Traverse.Iterations
		fc.Append(line)
		for j, p := range r.Traverse.Stations {
			f := geojson.NewFeature(p)
			f.Properties["id"] = r.Job.Traverse.StationName(j)
			f.Properties["sdx"] = r.Traverse.StationSD[j].X()
			f.Properties["sdy"] = r.Traverse.StationSD[j].Y()
			fc.Append(f)
		}
	case r.Intersection != nil:
		s := r.Intersection
		f := geojson.NewFeature(s.Point.Point())
		f.Properties["z"] = s.Point.Z
		f.Properties["sdx"] = s.PointSD.X
		f.Properties["sdy"] = s.PointSD.Y
		f.Properties["sdz"] = s.PointSD.Z
		fc.Append(f)
		for i, st := range r.Job.Intersection.Stations {
			g := geojson.NewFeature(orb.Point{st.X, st.Y})
			g.Properties["id"] = st.ID
			g.Properties["z"] = st.Z
			g.Properties["range"] = s.Ranges[i]
			fc.Append(g)
		}
	}
	return fc
}

// SaveGeoJSON writes the feature collection of a job result to a file
func SaveGeoJSON(path string, r *JobResult) error {
	data, err := r.FeatureCollection().MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing geojson file: %w", err)
	}
	return nil
}
