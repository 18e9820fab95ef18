// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Adjustment jobs read from YAML files.

package goadjust

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Job types
const (
	JobTransform2D  = "transform2d"
	JobVertical     = "vertical"
	JobTraverse     = "traverse"
	JobIntersection = "intersection"
)

var jobTypes = []string{JobTransform2D, JobVertical, JobTraverse, JobIntersection}

// Job is one adjustment described in a YAML file. Only the section named by Type is used.
type Job struct {
	Name         string           `yaml:"name"`
	Type         string           `yaml:"type"`
	Transform2D  *Transform2DJob  `yaml:"transform2d,omitempty"`
	Vertical     *VerticalJob     `yaml:"vertical,omitempty"`
	Traverse     *TraverseJob     `yaml:"traverse,omitempty"`
	Intersection *IntersectionJob `yaml:"intersection,omitempty"`
}

type Transform2DJob struct {
	Kind   TransformKind    `yaml:"kind"`
	Points []PointPairEntry `yaml:"points"`
}

type PointPairEntry struct {
	ID  string     `yaml:"id"`
	Src [2]float64 `yaml:"src"`
	Dst [2]float64 `yaml:"dst"`
}

type VerticalJob struct {
	Model   VerticalModel `yaml:"model"`
	Samples []SampleEntry `yaml:"samples"`
}

type SampleEntry struct {
	ID     string  `yaml:"id"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Ref    float64 `yaml:"ref"`
	Sample float64 `yaml:"sample"`
}

type TraverseJob struct {
	BackSight     [2]float64 `yaml:"backsight"`
	Start         [2]float64 `yaml:"start"`
	End           [2]float64 `yaml:"end"`
	ForeSight     [2]float64 `yaml:"foresight"`
	Stations      []string   `yaml:"stations,omitempty"` // Names of the unknown stations
	Distances     []float64  `yaml:"distances"`
	Angles        []string   `yaml:"angles"` // DMS strings
	Tolerance     float64    `yaml:"tolerance,omitempty"`
	MaxIter       int        `yaml:"max_iter,omitempty"`
	DistBaseMM    *float64   `yaml:"dist_base_mm,omitempty"`
	DistPPM       *float64   `yaml:"dist_ppm,omitempty"`
	AngleArcsec   float64    `yaml:"angle_arcsec,omitempty"`
	Sigma0Priori  float64    `yaml:"sigma0_priori,omitempty"`
	FailOnMaxIter bool       `yaml:"fail_on_max_iter,omitempty"`
}

type IntersectionJob struct {
	Weighted bool           `yaml:"weighted"`
	Stations []StationEntry `yaml:"stations"`
}

type StationEntry struct {
	ID      string  `yaml:"id"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Z       float64 `yaml:"z"`
	Azimuth string  `yaml:"azimuth"` // DMS string
	Zenith  string  `yaml:"zenith"`  // DMS string
}

// JobResult holds the solution of the job's type
type JobResult struct {
	Job          *Job
	Transform2D  *Transform2DSol
	Vertical     *VerticalSol
	Traverse     *TraverseSol
	Intersection *IntersectSol
}

// LoadJob loads an adjustment job from a YAML file
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job file not found: %s", path)
		}
		return nil, fmt.Errorf("reading job file: %w", err)
	}
	return ParseJob(data)
}

// ParseJob decodes and validates a YAML job
func ParseJob(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parsing job YAML: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks that the section of the job's type is present
func (j *Job) Validate() error {
	if !slices.Contains(jobTypes, j.Type) {
		return fmt.Errorf("job type %q is invalid (valid: %v)", j.Type, jobTypes)
	}
	switch j.Type {
	case JobTransform2D:
		if j.Transform2D == nil || len(j.Transform2D.Points) == 0 {
			return fmt.Errorf("transform2d.points is required")
		}
	case JobVertical:
		if j.Vertical == nil || len(j.Vertical.Samples) == 0 {
			return fmt.Errorf("vertical.samples is required")
		}
	case JobTraverse:
		if j.Traverse == nil || len(j.Traverse.Distances) == 0 {
			return fmt.Errorf("traverse.distances is required")
		}
		if n := len(j.Traverse.Stations); n > 0 && n != len(j.Traverse.Distances)-1 {
			return fmt.Errorf("traverse.stations has %d names for %d unknown stations", n, len(j.Traverse.Distances)-1)
		}
	case JobIntersection:
		if j.Intersection == nil || len(j.Intersection.Stations) == 0 {
			return fmt.Errorf("intersection.stations is required")
		}
		for i, st := range j.Intersection.Stations {
			if st.Azimuth == "" || st.Zenith == "" {
				return fmt.Errorf("intersection.stations[%d] needs azimuth and zenith", i)
			}
		}
	}
	return nil
}

// Run executes the job. base supplies the traverse defaults (nil for NewTraverseOpt).
func (j *Job) Run(base *TraverseOpt) (*JobResult, error) {
	rslt := &JobResult{Job: j}
	var err error
	switch j.Type {
	case JobTransform2D:
		src, dst := j.Transform2D.pairs()
		rslt.Transform2D, err = EstimateTransform2D(src, dst, j.Transform2D.Kind)
	case JobVertical:
		rslt.Vertical, err = FitVertical(j.Vertical.samples(), j.Vertical.Model)
	case JobTraverse:
		var in *TraverseInput
		in, err = j.Traverse.Input()
		if err != nil {
			return nil, err
		}
		rslt.Traverse, err = AdjustTraverse(in, j.Traverse.Options(base))
	case JobIntersection:
		var st []PosXYZ
		var az, zen []float64
		st, az, zen, err = j.Intersection.observations()
		if err != nil {
			return nil, err
		}
		rslt.Intersection, err = Intersect(st, az, zen, &IntersectOpt{Weighted: j.Intersection.Weighted})
	default:
		err = fmt.Errorf("job type %q is invalid", j.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s job %q failed: %w", j.Type, j.Name, err)
	}
	return rslt, nil
}

func (t *Transform2DJob) pairs() (src, dst []orb.Point) {
	for _, p := range t.Points {
		src = append(src, orb.Point(p.Src))
		dst = append(dst, orb.Point(p.Dst))
	}
	return
}

func (v *VerticalJob) samples() []VerticalSample {
	s := make([]VerticalSample, len(v.Samples))
	for i, e := range v.Samples {
		s[i] = VerticalSample{Pos: orb.Point{e.X, e.Y}, RefHeight: e.Ref, SampleHeight: e.Sample}
	}
	return s
}

// Input converts the job to a TraverseInput, parsing the DMS angles
func (t *TraverseJob) Input() (*TraverseInput, error) {
	in := &TraverseInput{
		BackSight: orb.Point(t.BackSight),
		Start:     orb.Point(t.Start),
		End:       orb.Point(t.End),
		ForeSight: orb.Point(t.ForeSight),
		Distances: t.Distances,
		Angles:    make([]float64, len(t.Angles)),
	}
	for i, a := range t.Angles {
		deg, err := ParseDMS(a)
		if err != nil {
			return nil, fmt.Errorf("traverse.angles[%d]: %w", i, err)
		}
		in.Angles[i] = deg
	}
	return in, nil
}

// Options overlays the job's settings on base
func (t *TraverseJob) Options(base *TraverseOpt) *TraverseOpt {
	opt := NewTraverseOpt()
	if base != nil {
		*opt = *base
	}
	if t.Tolerance > 0 {
		opt.Tolerance = t.Tolerance
	}
	if t.MaxIter > 0 {
		opt.MaxIter = t.MaxIter
	}
	if t.DistBaseMM != nil {
		opt.DistBaseMM = *t.DistBaseMM
	}
	if t.DistPPM != nil {
		opt.DistPPM = *t.DistPPM
	}
	if t.AngleArcsec > 0 {
		opt.AngleArcsec = t.AngleArcsec
	}
	if t.Sigma0Priori > 0 {
		opt.Sigma0Priori = t.Sigma0Priori
	}
	opt.FailOnMaxIter = opt.FailOnMaxIter || t.FailOnMaxIter
	return opt
}

// StationName returns the name of unknown station j (0-based)
func (t *TraverseJob) StationName(j int) string {
	if j < len(t.Stations) {
		return t.Stations[j]
	}
	return fmt.Sprintf("S%d", j+1)
}

func (i *IntersectionJob) observations() ([]PosXYZ, []float64, []float64, error) {
	st := make([]PosXYZ, len(i.Stations))
	az := make([]float64, len(i.Stations))
	zen := make([]float64, len(i.Stations))
	for k, e := range i.Stations {
		st[k] = *NewPosXYZ(e.X, e.Y, e.Z)
		var err error
		if az[k], err = ParseDMS(e.Azimuth); err != nil {
			return nil, nil, nil, fmt.Errorf("intersection.stations[%d].azimuth: %w", k, err)
		}
		if zen[k], err = ParseDMS(e.Zenith); err != nil {
			return nil, nil, nil, fmt.Errorf("intersection.stations[%d].zenith: %w", k, err)
		}
	}
	return st, az, zen, nil
}
