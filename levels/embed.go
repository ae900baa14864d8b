package levels

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

//go:embed *.geojson
var LevelsFS embed.FS

const DefaultLevel = "arena.geojson"

var ErrNoWalkableArea = errors.New("levels: no walkable area")

// Feature kinds, read from the "kind" property.
const (
	KindWalkable    = "walkable"
	KindObstacle    = "obstacle"
	KindPatrolPoint = "patrol_point"
	KindSpawn       = "spawn"
	KindPlayer      = "player"
	KindPlayerRoute = "player_route"
)

// Marker is a named position. GeoJSON [x, y] maps to world X and Z; the
// optional "y" property gives the height.
type Marker struct {
	Name     string
	Position mgl64.Vec3
}

type Level struct {
	Name         string
	Walkable     orb.Polygon
	Obstacles    []orb.Polygon
	PatrolPoints []Marker
	Spawns       []mgl64.Vec3
	PlayerStart  mgl64.Vec3
	HasPlayer    bool
	PlayerRoute  []mgl64.Vec3
}

// Load reads a level, preferring levels/ on disk over the embedded copy.
func Load(name string) (*Level, error) {
	if name == "" {
		name = DefaultLevel
	}
	clean := strings.TrimPrefix(filepath.ToSlash(name), "levels/")
	data, err := os.ReadFile(filepath.Join("levels", filepath.FromSlash(clean)))
	if err != nil {
		data, err = LevelsFS.ReadFile(clean)
		if err != nil {
			return nil, fmt.Errorf("levels: read %s: %w", name, err)
		}
	}
	lvl, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("levels: parse %s: %w", name, err)
	}
	if lvl.Name == "" {
		lvl.Name = strings.TrimSuffix(filepath.Base(clean), filepath.Ext(clean))
	}
	return lvl, nil
}

// Parse decodes a GeoJSON FeatureCollection into a level.
func Parse(data []byte) (*Level, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	lvl := &Level{}
	if name, ok := fc.ExtraMembers["name"].(string); ok {
		lvl.Name = name
	}
	for i, f := range fc.Features {
		if err := lvl.addFeature(f); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
	}
	if len(lvl.Walkable) == 0 {
		return nil, ErrNoWalkableArea
	}
	return lvl, nil
}

func (l *Level) addFeature(f *geojson.Feature) error {
	kind := f.Properties.MustString("kind", "")
	name := f.Properties.MustString("name", "")
	height := f.Properties.MustFloat64("y", 0)
	if f.Geometry == nil {
		return fmt.Errorf("%q has no geometry", kind)
	}

	switch kind {
	case KindWalkable:
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return fmt.Errorf("walkable must be a Polygon, got %s", f.Geometry.GeoJSONType())
		}
		if len(l.Walkable) != 0 {
			return errors.New("more than one walkable area")
		}
		l.Walkable = poly
	case KindObstacle:
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			l.Obstacles = append(l.Obstacles, g)
		case orb.MultiPolygon:
			l.Obstacles = append(l.Obstacles, g...)
		default:
			return fmt.Errorf("obstacle must be a Polygon, got %s", f.Geometry.GeoJSONType())
		}
	case KindPatrolPoint, KindSpawn, KindPlayer:
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return fmt.Errorf("%s must be a Point, got %s", kind, f.Geometry.GeoJSONType())
		}
		pos := toVec(pt, height)
		switch kind {
		case KindPatrolPoint:
			if name == "" {
				name = fmt.Sprintf("point-%d", len(l.PatrolPoints))
			}
			l.PatrolPoints = append(l.PatrolPoints, Marker{Name: name, Position: pos})
		case KindSpawn:
			l.Spawns = append(l.Spawns, pos)
		case KindPlayer:
			l.PlayerStart = pos
			l.HasPlayer = true
		}
	case KindPlayerRoute:
		line, ok := f.Geometry.(orb.LineString)
		if !ok {
			return fmt.Errorf("player_route must be a LineString, got %s", f.Geometry.GeoJSONType())
		}
		for _, pt := range line {
			l.PlayerRoute = append(l.PlayerRoute, toVec(pt, height))
		}
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	return nil
}

func toVec(p orb.Point, height float64) mgl64.Vec3 {
	return mgl64.Vec3{p.X(), height, p.Y()}
}

// Bounds is the extent of the walkable area.
func (l *Level) Bounds() orb.Bound {
	return l.Walkable.Bound()
}
