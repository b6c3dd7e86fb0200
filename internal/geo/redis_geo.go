package geo

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/henriqu3-99/Lehgo/internal/models"
)

// RedisGeo implements Presence using Redis GEO commands, shared across
// gateway replicas.
type RedisGeo struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key, ctx: context.Background()}
}

func (r *RedisGeo) Upsert(id, name string, lat, long float64) {
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: long, Latitude: lat, Name: id}).Result()
	_ = r.client.HSet(r.ctx, metaKey(id), map[string]interface{}{"name": name}).Err()
}

func (r *RedisGeo) Remove(id string) {
	_ = r.client.ZRem(r.ctx, r.key, id).Err()
	_ = r.client.Del(r.ctx, metaKey(id)).Err()
}

func (r *RedisGeo) Nearby(lat, long float64, limit int) []models.DriverLocation {
	res, err := r.client.GeoRadius(r.ctx, r.key, long, lat, &redis.GeoRadiusQuery{Radius: 5000, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC"}).Result()
	if err != nil {
		return nil
	}
	out := make([]models.DriverLocation, 0, len(res))
	for _, g := range res {
		loc := models.DriverLocation{ID: g.Name, Lat: g.Latitude, Long: g.Longitude, DistanceM: g.Dist}
		if m, err := r.client.HGetAll(r.ctx, metaKey(g.Name)).Result(); err == nil {
			loc.Name = m["name"]
		}
		out = append(out, loc)
	}
	return out
}

func metaKey(id string) string { return "driver:meta:" + id }
