// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.12
//

package goadjust

const (
	PI  = 3.1415926535897932  // Pi
	RHO = 180.0 * 3600.0 / PI // Arcseconds per radian
	DMS = 3600.0              // Arcseconds per degree
	MM  = 1000.0              // Millimetres per metre
	PPM = 1.0e-6              // Parts per million
	EPS = 1.0e-12             // Threshold below which a length is treated as zero
)

// Solver constants
const (
	MAX_COND          = 1.0e12 // Largest condition number of the equilibrated normal matrix accepted as regular
	DEF_TOLERANCE     = 1.0e-4 // Default traverse convergence threshold [m]
	DEF_MAX_ITER      = 10     // Default traverse iteration cap
	DEF_DIST_BASE_MM  = 2.0    // Default distance standard deviation, constant part [mm]
	DEF_DIST_PPM      = 2.0    // Default distance standard deviation, proportional part [ppm]
	DEF_ANGLE_ARCSEC  = 5.0    // Default angle standard deviation [arcsec]
	DEF_SIGMA0_PRIORI = 1.0    // Default a priori standard deviation of unit weight
	MIN_INTERSECT_ST  = 2      // Minimum number of stations for forward intersection
	MIN_TRAVERSE_LEGS = 2      // Minimum number of distances for a traverse with unknown stations
)
