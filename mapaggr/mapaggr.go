// Package mapaggr clusters incident coordinates into S2 cells so the live
// map stays readable at any zoom level.
package mapaggr

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"linkrelief/models"
)

// ViewPort is the visible bounding box of the map.
type ViewPort struct {
	LatMin float64 `form:"latmin" json:"latMin"`
	LonMin float64 `form:"lonmin" json:"lonMin"`
	LatMax float64 `form:"latmax" json:"latMax"`
	LonMax float64 `form:"lonmax" json:"lonMax"`
}

// Center returns the midpoint of the viewport.
func (vp *ViewPort) Center() (float64, float64) {
	return (vp.LatMin + vp.LatMax) / 2, (vp.LonMin + vp.LonMax) / 2
}

type aggrUnit struct {
	cnt      int64
	origCell s2.CellID
}

// Aggregator buckets points into S2 cells of a level picked so the
// viewport holds roughly expectedCells clusters.
type Aggregator struct {
	level int
	aggrs map[s2.CellID]*aggrUnit
}

const (
	expectedCells = 160
	minLevel      = 6
	maxLevel      = 16
)

func cellBaseLevel(vp *ViewPort) int {
	minLL := s2.LatLngFromDegrees(vp.LatMin, vp.LonMin)
	maxLL := s2.LatLngFromDegrees(vp.LatMax, vp.LonMax)

	rect := s2.Rect{
		Lat: r1.Interval{
			Lo: minLL.Lat.Radians(),
			Hi: maxLL.Lat.Radians()},
		Lng: s1.Interval{
			Lo: minLL.Lng.Radians(),
			Hi: maxLL.Lng.Radians()},
	}

	vpArea := rect.Area()

	centerLat, centerLon := vp.Center()
	centerCell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(centerLat, centerLon))

	for lv := maxLevel; lv >= minLevel; lv-- {
		cc := s2.CellFromCellID(centerCell.Parent(lv))
		if vpArea/cc.ApproxArea() < expectedCells {
			return lv
		}
	}
	return minLevel // Large enough level
}

// New picks an aggregation level for the viewport.
func New(vp *ViewPort) *Aggregator {
	return &Aggregator{
		level: cellBaseLevel(vp),
		aggrs: make(map[s2.CellID]*aggrUnit),
	}
}

// AddPoint buckets one incident coordinate.
func (a *Aggregator) AddPoint(lat, lon float64) {
	pc := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))
	parent := pc.Parent(a.level)
	if _, ok := a.aggrs[parent]; !ok {
		a.aggrs[parent] = &aggrUnit{}
	}
	a.aggrs[parent].cnt++
	a.aggrs[parent].origCell = pc
}

// ToArray flattens the buckets. Singleton clusters keep their original
// coordinate so isolated incidents don't jump to cell centers.
func (a *Aggregator) ToArray() []models.MapPoint {
	r := make([]models.MapPoint, 0, len(a.aggrs))
	for c, unit := range a.aggrs {
		ll := c.LatLng()
		if unit.cnt == 1 {
			ll = unit.origCell.LatLng()
		}
		r = append(r, models.MapPoint{
			Latitude:  ll.Lat.Degrees(),
			Longitude: ll.Lng.Degrees(),
			Count:     unit.cnt,
		})
	}
	return r
}
