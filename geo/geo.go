// Package geo turns GeoJSON values into the grid cell strings stored in
// geometry indexes.
package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/andreyvit/docindex/value"
)

var ErrInvalidGeometry = errors.New("invalid geometry")

// Params bound the number of cells produced for one geometry.
type Params struct {
	MaxCells   int     `yaml:"max_cells"`
	MinCells   int     `yaml:"min_cells"`
	MaxSplits  int     `yaml:"max_splits"`
	SplitRatio float64 `yaml:"split_ratio"`
}

var DefaultParams = Params{
	MaxCells:   16,
	MinCells:   4,
	MaxSplits:  12,
	SplitRatio: 8,
}

type Hasher interface {
	// Hash returns the cells covering a geometry.
	Hash(v value.Value, p Params) ([]string, error)
	// HashPoint returns the single cell of a point.
	HashPoint(v value.Value) (string, error)
}

// GridHasher covers geometries with geohash cells. Points are hashed at
// Precision characters; other geometries are covered by their bounding box at
// the finest level that respects Params.
type GridHasher struct {
	Precision int
}

var DefaultHasher Hasher = GridHasher{Precision: 12}

func (h GridHasher) precision() int {
	if h.Precision <= 0 || h.Precision > 12 {
		return 12
	}
	return h.Precision
}

func (h GridHasher) HashPoint(v value.Value) (string, error) {
	typ, coords, err := parseGeoJSON(v)
	if err != nil {
		return "", err
	}
	if typ != "Point" {
		return "", fmt.Errorf("%w: expected Point, got %s", ErrInvalidGeometry, typ)
	}
	lon, lat, err := position(coords)
	if err != nil {
		return "", err
	}
	return Encode(lat, lon, h.precision()), nil
}

func (h GridHasher) Hash(v value.Value, p Params) ([]string, error) {
	typ, coords, err := parseGeoJSON(v)
	if err != nil {
		return nil, err
	}
	if typ == "Point" {
		lon, lat, err := position(coords)
		if err != nil {
			return nil, err
		}
		return []string{Encode(lat, lon, h.precision())}, nil
	}

	var b bbox
	b.reset()
	if err := b.extend(coords); err != nil {
		return nil, err
	}
	if b.empty() {
		return nil, fmt.Errorf("%w: %s without coordinates", ErrInvalidGeometry, typ)
	}
	return h.cover(b, p), nil
}

func (h GridHasher) cover(b bbox, p Params) []string {
	if p.MaxCells <= 0 {
		p = DefaultParams
	}
	level := 1
	cells := coverLevel(b, level)
	for splits := 0; splits < p.MaxSplits && level < h.precision(); splits++ {
		next := coverLevel(b, level+1)
		if len(next) > p.MaxCells {
			break
		}
		if len(cells) >= p.MinCells && p.SplitRatio > 0 && float64(len(next)) > float64(len(cells))*p.SplitRatio {
			break
		}
		level++
		cells = next
	}
	return cells
}

func coverLevel(b bbox, level int) []string {
	bits := 5 * level
	lonBits := (bits + 1) / 2
	latBits := bits / 2
	w := 360 / math.Exp2(float64(lonBits))
	hgt := 180 / math.Exp2(float64(latBits))

	seen := make(map[string]bool)
	var cells []string
	lat0 := math.Floor((b.minLat+90)/hgt)*hgt - 90
	lon0 := math.Floor((b.minLon+180)/w)*w - 180
	for lat := lat0; lat <= b.maxLat; lat += hgt {
		for lon := lon0; lon <= b.maxLon; lon += w {
			c := Encode(math.Min(lat+hgt/2, 90), math.Min(lon+w/2, 180), level)
			if !seen[c] {
				seen[c] = true
				cells = append(cells, c)
			}
		}
	}
	sort.Strings(cells)
	return cells
}

const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the geohash of a position.
func Encode(lat, lon float64, precision int) string {
	minLat, maxLat := -90.0, 90.0
	minLon, maxLon := -180.0, 180.0
	out := make([]byte, 0, precision)
	var ch, bit int
	even := true
	for len(out) < precision {
		if even {
			mid := (minLon + maxLon) / 2
			if lon >= mid {
				ch |= 1 << (4 - bit)
				minLon = mid
			} else {
				maxLon = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out = append(out, base32[ch])
			bit, ch = 0, 0
		}
	}
	return string(out)
}

func parseGeoJSON(v value.Value) (string, value.Value, error) {
	m, ok := v.(*value.Map)
	if !ok {
		return "", nil, fmt.Errorf("%w: expected GeoJSON object, got %v", ErrInvalidGeometry, v.Kind())
	}
	tv, ok := m.Get("type")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing type", ErrInvalidGeometry)
	}
	typ, ok := tv.(value.String)
	if !ok {
		return "", nil, fmt.Errorf("%w: type must be a string", ErrInvalidGeometry)
	}
	switch typ {
	case "Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon":
	default:
		return "", nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidGeometry, string(typ))
	}
	coords, ok := m.Get("coordinates")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing coordinates", ErrInvalidGeometry)
	}
	return string(typ), coords, nil
}

func position(v value.Value) (lon, lat float64, err error) {
	arr, ok := v.(value.Array)
	if !ok || len(arr) < 2 {
		return 0, 0, fmt.Errorf("%w: position must be [lon, lat]", ErrInvalidGeometry)
	}
	lon, ok1 := value.ToFloat64(arr[0])
	lat, ok2 := value.ToFloat64(arr[1])
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("%w: position must be numeric", ErrInvalidGeometry)
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: position [%v, %v] out of range", ErrInvalidGeometry, lon, lat)
	}
	return lon, lat, nil
}

type bbox struct {
	minLon, minLat, maxLon, maxLat float64
}

func (b *bbox) reset() {
	b.minLon, b.minLat = math.Inf(1), math.Inf(1)
	b.maxLon, b.maxLat = math.Inf(-1), math.Inf(-1)
}

func (b *bbox) empty() bool {
	return b.minLon > b.maxLon
}

// extend walks nested coordinate arrays down to positions.
func (b *bbox) extend(v value.Value) error {
	arr, ok := v.(value.Array)
	if !ok {
		return fmt.Errorf("%w: coordinates must be arrays", ErrInvalidGeometry)
	}
	if len(arr) > 0 && arr[0].Kind() != value.KindArray {
		lon, lat, err := position(arr)
		if err != nil {
			return err
		}
		b.minLon, b.maxLon = math.Min(b.minLon, lon), math.Max(b.maxLon, lon)
		b.minLat, b.maxLat = math.Min(b.minLat, lat), math.Max(b.maxLat, lat)
		return nil
	}
	for _, item := range arr {
		if err := b.extend(item); err != nil {
			return err
		}
	}
	return nil
}
