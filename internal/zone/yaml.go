package zone

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/fenceline/zonewatch/internal/geometry"
)

// fileZone is the on-disk YAML shape. Vertices are [lat, lon] pairs.
type fileZone struct {
	ID           string      `yaml:"id"`
	Name         string      `yaml:"name"`
	Entities     []string    `yaml:"entities"`
	ToleranceDeg float64     `yaml:"tolerance_deg"`
	Vertices     [][]float64 `yaml:"vertices"`
}

type zoneFile struct {
	Zones []fileZone `yaml:"zones"`
}

// LoadFile reads a zones YAML file and returns validated zones.
func LoadFile(path string) ([]Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zone: read %s", path)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a zones document and validates each zone.
func ParseYAML(data []byte) ([]Zone, error) {
	var f zoneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "zone: decode yaml")
	}

	zones := make([]Zone, 0, len(f.Zones))
	for _, fz := range f.Zones {
		z := Zone{
			ID:           fz.ID,
			Name:         fz.Name,
			Entities:     fz.Entities,
			ToleranceDeg: fz.ToleranceDeg,
		}
		for i, v := range fz.Vertices {
			if len(v) != 2 {
				return nil, eris.Wrapf(ErrInvalidVertex, "zone %q vertex %d: want [lat, lon], got %d values", fz.ID, i, len(v))
			}
			z.Vertices = append(z.Vertices, geometry.Point{Lat: v[0], Lon: v[1]})
		}
		if err := z.Validate(); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, nil
}
