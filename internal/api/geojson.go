// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"github.com/atlashq/profilemap/internal/models"
)

// GeoJSON types for the map endpoints (RFC 7946). Coordinates are
// [longitude, latitude], the reverse of the Leaflet convention used
// elsewhere.

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON feature.
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Geometry is a GeoJSON point geometry.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// locationsToGeoJSON converts user locations to a GeoJSON feature
// collection for the Leaflet map. Features is never nil so empty
// datasets serialize as an empty array, not null.
func locationsToGeoJSON(locations []models.UserLocation) *FeatureCollection {
	fc := &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(locations)),
	}

	for i := range locations {
		loc := &locations[i]
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{loc.Longitude, loc.Latitude},
			},
			Properties: map[string]interface{}{
				"user_id":      loc.UserID,
				"username":     loc.Username,
				"home_address": loc.HomeAddress,
				"updated_at":   loc.UpdatedAt,
			},
		})
	}

	return fc
}
