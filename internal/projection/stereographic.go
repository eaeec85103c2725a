// Package projection converts rasters between geographic coordinates and the
// south polar stereographic frame and flattens them into tabulated cells.
//
// The stereographic formulas are the ellipsoidal polar aspect with a true
// scale latitude (Snyder, Map Projections: A Working Manual, eqs. 15-9,
// 21-33 to 21-40), evaluated for the south pole.
package projection

import (
	"fmt"
	"math"
)

// WGS84 ellipsoid.
const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi

	inverseTolerance = 1e-12
	inverseMaxIter   = 30
)

// Transformer converts between geographic degrees and a CRS's coordinates.
type Transformer interface {
	Forward(lon, lat float64) (x, y float64)
	Inverse(x, y float64) (lon, lat float64)
}

// Geographic is the identity transform for longitude/latitude rasters.
type Geographic struct{}

func (Geographic) Forward(lon, lat float64) (x, y float64) { return lon, lat }
func (Geographic) Inverse(x, y float64) (lon, lat float64) { return x, y }

// Stereographic is a south polar stereographic projection on WGS84.
type Stereographic struct {
	e     float64
	lon0  float64
	scale float64 // a * m_c / t_c
}

// NewSouthPolarStereographic builds the projection for a true-scale latitude
// in the southern hemisphere and a central meridian, both in degrees.
func NewSouthPolarStereographic(latTS, lon0 float64) (*Stereographic, error) {
	if latTS >= 0 || latTS < -90 {
		return nil, fmt.Errorf("stereographic: true scale latitude %v must be in [-90, 0)", latTS)
	}
	if lon0 < -180 || lon0 > 180 {
		return nil, fmt.Errorf("stereographic: central meridian %v out of range", lon0)
	}
	e := math.Sqrt(2*flattening - flattening*flattening)
	s := &Stereographic{e: e, lon0: lon0 * degToRad}

	phiC := -latTS * degToRad
	if latTS == -90 {
		// True scale at the pole: k0 = 1 (Snyder 21-33 limit).
		s.scale = 2 * semiMajor / math.Sqrt(math.Pow(1+e, 1+e)*math.Pow(1-e, 1-e))
		return s, nil
	}
	sinC := math.Sin(phiC)
	mc := math.Cos(phiC) / math.Sqrt(1-e*e*sinC*sinC)
	s.scale = semiMajor * mc / s.tsfn(phiC)
	return s, nil
}

// tsfn is Snyder's t for a latitude measured toward the projection pole.
func (s *Stereographic) tsfn(phi float64) float64 {
	es := s.e * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-es)/(1+es), s.e/2)
}

// Forward projects degrees to metres.
func (s *Stereographic) Forward(lon, lat float64) (x, y float64) {
	phi := -lat * degToRad
	lam := lon*degToRad - s.lon0
	rho := s.scale * s.tsfn(phi)
	return rho * math.Sin(lam), rho * math.Cos(lam)
}

// Inverse projects metres back to degrees.
func (s *Stereographic) Inverse(x, y float64) (lon, lat float64) {
	rho := math.Hypot(x, y)
	if rho == 0 {
		return s.lon0 * radToDeg, -90
	}
	t := rho / s.scale
	phi := math.Pi/2 - 2*math.Atan(t)
	for range inverseMaxIter {
		es := s.e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), s.e/2))
		if math.Abs(next-phi) < inverseTolerance {
			phi = next
			break
		}
		phi = next
	}
	lam := math.Atan2(x, y) + s.lon0
	return normalizeLon(lam * radToDeg), -phi * radToDeg
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
