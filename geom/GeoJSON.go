package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RectFeature converts a rect to a polygon feature
func RectFeature(r Rect, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(r.Bound().ToPolygon())
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// RouteFeature converts a route to a linestring feature
func RouteFeature(r Route, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(r.LineString())
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// PointFeature wraps a single position
func PointFeature(p orb.Point, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(p)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// EnvironmentFeatures appends the obstacles and the no-go zone to fc
func EnvironmentFeatures(fc *geojson.FeatureCollection, env Environment) {
	for _, o := range env.Obstacles {
		fc.Append(RectFeature(o.Rect, map[string]interface{}{"kind": "obstacle", "id": o.ID}))
	}
	if env.Zone.IsValid() {
		fc.Append(RectFeature(env.Zone.Rect, map[string]interface{}{"kind": "nogozone", "active": env.Zone.Active}))
	}
}
