package application

import (
	"encoding/json"
	"fmt"
	"time"

	tripDomain "github.com/tripjournal/service-trips/internal/domain/trip"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string                 `json:"type"`
	Geometry   geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

// routeGeoJSON renders a trip as a FeatureCollection: one Point per waypoint, plus a
// LineString through all of them once there are at least two. Positions are
// [longitude, latitude, altitude].
func routeGeoJSON(t *tripDomain.Trip, waypoints []tripDomain.LocationData) ([]byte, error) {
	features := make([]feature, 0, len(waypoints)+1)

	if len(waypoints) >= 2 {
		line := make([][3]float64, len(waypoints))
		for i, wp := range waypoints {
			line[i] = position(wp)
		}
		features = append(features, feature{
			Type:     "Feature",
			Geometry: geometry{Type: "LineString", Coordinates: line},
			Properties: map[string]interface{}{
				"tripId":         t.ID(),
				"name":           t.Name(),
				"color":          t.Color(),
				"distanceMeters": routeLength(waypoints),
				"waypointCount":  len(waypoints),
			},
		})
	}

	for i, wp := range waypoints {
		features = append(features, feature{
			Type:     "Feature",
			Geometry: geometry{Type: "Point", Coordinates: position(wp)},
			Properties: map[string]interface{}{
				"waypointId": wp.ID,
				"sequence":   i + 1,
				"roadName":   wp.RoadName,
				"address":    wp.Address,
				"timestamp":  wp.Timestamp.Format(time.RFC3339),
				"comment":    wp.Comment,
			},
		})
	}

	out, err := json.Marshal(featureCollection{Type: "FeatureCollection", Features: features})
	if err != nil {
		return nil, fmt.Errorf("failed to encode route: %w", err)
	}
	return out, nil
}

func position(wp tripDomain.LocationData) [3]float64 {
	return [3]float64{wp.Coordinate.Longitude, wp.Coordinate.Latitude, wp.Altitude}
}
