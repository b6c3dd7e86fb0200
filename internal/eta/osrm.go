package eta

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OSRMClient performs route/eta lookups against an OSRM HTTP server.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMClient(endpoint string) *OSRMClient {
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// EstimateSeconds queries OSRM /route between points and returns duration in seconds.
func (o *OSRMClient) EstimateSeconds(fromLat, fromLong, toLat, toLong float64) (float64, error) {
	// OSRM route query: /route/v1/driving/{lon1},{lat1};{lon2},{lat2}?overview=false
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false", o.Endpoint, fromLong, fromLat, toLong, toLat)
	resp, err := o.Client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var out struct {
		Routes []struct {
			Duration float64 `json:"duration"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return 0, fmt.Errorf("osrm no route: %v", out.Code)
	}
	return out.Routes[0].Duration, nil
}

// Cached wraps a Client with the in-memory Cache.
type Cached struct {
	Inner Client
	Cache *Cache
}

func (c *Cached) EstimateSeconds(fromLat, fromLong, toLat, toLong float64) (float64, error) {
	if v, ok := c.Cache.Get(fromLat, fromLong, toLat, toLong); ok {
		return v, nil
	}
	v, err := c.Inner.EstimateSeconds(fromLat, fromLong, toLat, toLong)
	if err != nil {
		return 0, err
	}
	c.Cache.Set(fromLat, fromLong, toLat, toLong, v)
	return v, nil
}
