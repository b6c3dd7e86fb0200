// Package geo tracks driver presence for targeted request delivery.
package geo

import (
	"math"
	"sync"
	"time"

	"github.com/henriqu3-99/Lehgo/internal/models"
)

// Presence is the minimal interface the ride handlers need: who is near a
// pickup point, and where drivers last reported themselves.
type Presence interface {
	Nearby(lat, long float64, limit int) []models.DriverLocation
	Upsert(id, name string, lat, long float64)
	Remove(id string)
}

type entry struct {
	name    string
	lat     float64
	long    float64
	updated time.Time
}

type Index struct {
	mu      sync.RWMutex
	drivers map[string]entry
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]entry)}
}

func (g *Index) Upsert(id, name string, lat, long float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drivers[id] = entry{name: name, lat: lat, long: long, updated: time.Now()}
}

func (g *Index) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.drivers, id)
}

// naive scan; in prod use geo-hash or H3
func (g *Index) Nearby(lat, long float64, limit int) []models.DriverLocation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		loc  models.DriverLocation
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for id, e := range g.drivers {
		dist := Haversine(lat, long, e.lat, e.long)
		arr = append(arr, pair{models.DriverLocation{ID: id, Name: e.name, Lat: e.lat, Long: e.long, DistanceM: dist}, dist})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.DriverLocation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].loc)
	}
	return out
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
