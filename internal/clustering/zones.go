package clustering

import (
	"fmt"
	"strings"

	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/distance"
	"itinerary-optimizer/internal/models"
)

// DynamicJoinRadiusKm is how close an unmatched activity must be to an
// existing dynamic cluster to join it
const DynamicJoinRadiusKm = 2.0

// UnlocatedZoneID groups activities that have neither a zone match nor coordinates
const UnlocatedZoneID = "unlocated"

// GeoCluster is a named geographic group of activities within a city
type GeoCluster struct {
	ZoneID        string             `json:"zone_id"`
	Name          string             `json:"name"`
	City          string             `json:"city"`
	Centroid      models.Coordinates `json:"centroid"`
	Activities    []models.Activity  `json:"activities"`
	IconicScore   float64            `json:"iconic_score"`
	AvgPopularity float64            `json:"avg_popularity"`
	Dynamic       bool               `json:"dynamic"`
}

// Add appends an activity and recomputes the derived fields
func (c *GeoCluster) Add(a models.Activity) {
	c.Activities = append(c.Activities, a)
	c.recompute()
}

func (c *GeoCluster) recompute() {
	if len(c.Activities) == 0 {
		c.IconicScore = 0
		c.AvgPopularity = 0
		return
	}

	var iconic, popularity float64
	var points []models.Coordinates
	for i := range c.Activities {
		iconic += float64(IconicScore(&c.Activities[i]))
		popularity += float64(c.Activities[i].Popularity)
		if c.Activities[i].HasCoords() {
			points = append(points, *c.Activities[i].Coords)
		}
	}
	n := float64(len(c.Activities))
	c.IconicScore = iconic / n
	c.AvgPopularity = popularity / n

	// Known zones keep their reference centroid
	if c.Dynamic {
		if centroid, ok := distance.Centroid(points); ok {
			c.Centroid = centroid
		}
	}
}

// Clusterer groups activities into zones of a city
type Clusterer struct {
	resolver *cities.Resolver
}

// NewClusterer creates a clusterer backed by the resolver's catalog
func NewClusterer(resolver *cities.Resolver) *Clusterer {
	return &Clusterer{resolver: resolver}
}

// ClusterByZone assigns each activity to a known zone (by area/keyword, then
// by radius containment) or to a greedy dynamic cluster. The dynamic pass is
// order-sensitive.
func (c *Clusterer) ClusterByZone(activities []models.Activity, city string) []GeoCluster {
	var zones []cities.Zone
	canonical := c.resolver.Normalize(city)
	if entry, ok := c.resolver.Catalog().City(canonical); ok {
		zones = entry.Zones
	}

	var clusters []*GeoCluster
	known := make(map[string]*GeoCluster)
	var dynamic []*GeoCluster
	var unlocated *GeoCluster

	for _, act := range activities {
		if zone := matchZone(&act, zones); zone != nil {
			cl, ok := known[zone.ID]
			if !ok {
				cl = &GeoCluster{ZoneID: zone.ID, Name: zone.Name, City: canonical, Centroid: zone.Centroid}
				known[zone.ID] = cl
				clusters = append(clusters, cl)
			}
			cl.Add(act)
			continue
		}

		if !act.HasCoords() {
			if unlocated == nil {
				unlocated = &GeoCluster{ZoneID: UnlocatedZoneID, Name: "Unlocated", City: canonical}
				clusters = append(clusters, unlocated)
			}
			unlocated.Add(act)
			continue
		}

		var nearest *GeoCluster
		nearestDist := 0.0
		for _, cl := range dynamic {
			d := distance.Between(cl.Centroid, *act.Coords)
			if d <= DynamicJoinRadiusKm && (nearest == nil || d < nearestDist) {
				nearest = cl
				nearestDist = d
			}
		}
		if nearest == nil {
			nearest = &GeoCluster{
				ZoneID:   fmt.Sprintf("dynamic-%d", len(dynamic)+1),
				Name:     fmt.Sprintf("Area around %s", act.DisplayName()),
				City:     canonical,
				Centroid: *act.Coords,
				Dynamic:  true,
			}
			dynamic = append(dynamic, nearest)
			clusters = append(clusters, nearest)
		}
		nearest.Add(act)
	}

	out := make([]GeoCluster, len(clusters))
	for i, cl := range clusters {
		out[i] = *cl
	}
	return out
}

// ZoneCount returns the number of distinct zones among the activities
func (c *Clusterer) ZoneCount(activities []models.Activity, city string) int {
	n := 0
	for _, cl := range c.ClusterByZone(activities, city) {
		if cl.ZoneID != UnlocatedZoneID {
			n++
		}
	}
	return n
}

func matchZone(act *models.Activity, zones []cities.Zone) *cities.Zone {
	if len(zones) == 0 {
		return nil
	}

	area := cities.Fold(act.Area)
	if area != "" {
		for i := range zones {
			if cities.Fold(zones[i].Name) == area || strings.TrimPrefix(zones[i].ID, zonePrefix(zones[i].ID)) == area {
				return &zones[i]
			}
		}
	}

	text := cities.Fold(act.Title + " " + act.Area + " " + act.Description)
	for i := range zones {
		for _, kw := range zones[i].Keywords {
			if strings.Contains(text, kw) {
				return &zones[i]
			}
		}
	}

	if !act.HasCoords() {
		return nil
	}
	var best *cities.Zone
	bestDist := 0.0
	for i := range zones {
		d := distance.Between(zones[i].Centroid, *act.Coords)
		if d <= zones[i].RadiusKm && (best == nil || d < bestDist) {
			best = &zones[i]
			bestDist = d
		}
	}
	return best
}

func zonePrefix(id string) string {
	if idx := strings.Index(id, "-"); idx >= 0 {
		return id[:idx+1]
	}
	return ""
}
