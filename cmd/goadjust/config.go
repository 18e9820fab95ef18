// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	m "github.com/mkhts/goadjust"
)

// Config holds the process defaults read from GOADJUST_* environment variables
type Config struct {
	LogLevel    string  `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string  `envconfig:"LOG_FORMAT" default:"text"`
	Tolerance   float64 `envconfig:"TOLERANCE" default:"0.0001"`
	MaxIter     int     `envconfig:"MAX_ITER" default:"10"`
	DistBaseMM  float64 `envconfig:"DIST_BASE_MM" default:"2"`
	DistPPM     float64 `envconfig:"DIST_PPM" default:"2"`
	AngleArcsec float64 `envconfig:"ANGLE_ARCSEC" default:"5"`
}

// loadConfig reads an optional .env file, then the environment
func loadConfig(envFile string) (Config, error) {
	var cfg Config
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading %s: %w", envFile, err)
	}
	if err := envconfig.Process("GOADJUST", &cfg); err != nil {
		return cfg, fmt.Errorf("processing environment: %w", err)
	}
	return cfg, nil
}

// traverseOpt converts the defaults to traverse options
func (c Config) traverseOpt() *m.TraverseOpt {
	opt := m.NewTraverseOpt()
	opt.Tolerance = c.Tolerance
	opt.MaxIter = c.MaxIter
	opt.DistBaseMM = c.DistBaseMM
	opt.DistPPM = c.DistPPM
	opt.AngleArcsec = c.AngleArcsec
	return opt
}
