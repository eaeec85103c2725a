package projection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// ParseProj splits a PROJ string into its +key=value parameters. Flags
// without a value map to "".
func ParseProj(s string) map[string]string {
	params := make(map[string]string)
	for _, tok := range strings.Fields(s) {
		tok = strings.TrimPrefix(tok, "+")
		if tok == "" {
			continue
		}
		k, v, _ := strings.Cut(tok, "=")
		params[strings.ToLower(k)] = v
	}
	return params
}

// ForCRS returns the transformer for a CRS. Only geographic WGS84 and south
// polar stereographic are supported.
func ForCRS(crs domain.CRS) (Transformer, error) {
	switch strings.ToUpper(crs.Code) {
	case "EPSG:4326":
		return Geographic{}, nil
	case "EPSG:3031":
		return NewSouthPolarStereographic(-71, 0)
	}

	p := ParseProj(crs.Proj)
	switch p["proj"] {
	case "longlat", "latlong":
		return Geographic{}, nil
	case "stere":
		lat0, err := floatParam(p, "lat_0", 0)
		if err != nil {
			return nil, err
		}
		if lat0 != -90 {
			return nil, fmt.Errorf("%w: stereographic lat_0=%v, only the south polar aspect is supported", domain.ErrUnsupportedCRS, lat0)
		}
		latTS, err := floatParam(p, "lat_ts", -90)
		if err != nil {
			return nil, err
		}
		lon0, err := floatParam(p, "lon_0", 0)
		if err != nil {
			return nil, err
		}
		for _, k := range []string{"x_0", "y_0"} {
			if v, err := floatParam(p, k, 0); err != nil || v != 0 {
				return nil, fmt.Errorf("%w: false easting/northing not supported", domain.ErrUnsupportedCRS)
			}
		}
		return NewSouthPolarStereographic(latTS, lon0)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedCRS, crs)
	}
}

func floatParam(p map[string]string, key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: +%s=%s", domain.ErrUnsupportedCRS, key, v)
	}
	return f, nil
}
