// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.13
//

package goadjust

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseDMS converts a sexagesimal angle to decimal degrees
// Accepted forms: 123°45'06.7", 123 45 06.7, 123-45-06.7, 123:45:06.7, 123.751861
// A leading '-' or a trailing S/W makes the angle negative.
func ParseDMS(s string) (float64, error) {
	str := strings.TrimSpace(s)
	if len(str) == 0 {
		return 0, fmt.Errorf("empty angle")
	}

	sign := 1.0
	if strings.HasPrefix(str, "-") {
		sign = -1
		str = str[1:]
	} else if strings.HasPrefix(str, "+") {
		str = str[1:]
	}
	switch str[len(str)-1] {
	case 'S', 's', 'W', 'w':
		sign = -sign
		str = str[:len(str)-1]
	case 'N', 'n', 'E', 'e':
		str = str[:len(str)-1]
	}

	// Separators become blanks
	str = strings.NewReplacer("°", " ", "º", " ", "d", " ", "D", " ", "'", " ", "′", " ", "\"", " ", "″", " ", "-", " ", ":", " ").Replace(str)
	f := strings.Fields(str)
	if len(f) == 0 || len(f) > 3 {
		return 0, fmt.Errorf("invalid angle %q", s)
	}

	var v [3]float64
	for i, a := range f {
		x, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid angle %q: %w", s, err)
		}
		if x < 0 || (i > 0 && x >= 60) {
			return 0, fmt.Errorf("invalid angle %q: field %d out of range", s, i+1)
		}
		v[i] = x
	}
	return sign * (v[0] + v[1]/60 + v[2]/3600), nil
}

// FormatDMS converts decimal degrees to DDD°MM'SS.ss"
func FormatDMS(deg float64, prec int) string {
	sign := ""
	if deg < 0 {
		sign = "-"
		deg = -deg
	}
	scale := math.Pow(10, float64(prec))
	sec := math.Round(deg*DMS*scale) / scale
	d := math.Floor(sec / DMS)
	sec -= d * DMS
	m := math.Floor(sec / 60)
	sec -= m * 60
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%s%d°%02d'%0*.*f\"", sign, int(d), int(m), prec+3-boolInt(prec == 0), prec, sec)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
