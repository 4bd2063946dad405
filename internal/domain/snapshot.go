package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the current merged document of one place. An empty Tags map
// means nothing is currently approved; it does not mean the place is gone.
type Snapshot struct {
	ID        uuid.UUID
	Tags      Tags
	UpdatedAt time.Time
}

// Coordinate keys. "lng" is accepted as an alias of "lon".
const (
	KeyLat       = "lat"
	KeyLon       = "lon"
	KeyLng       = "lng"
	KeyOSMID     = "osm_id"
	KeyWikipedia = "wikipedia"
	AddrPrefix   = "addr:"
)

// Coordinates extracts latitude and longitude from tags.
func Coordinates(tags Tags) (lat, lon float64, ok bool) {
	v, has := tags[KeyLat]
	if !has {
		return 0, 0, false
	}
	lat, ok = v.Float()
	if !ok {
		return 0, 0, false
	}
	lv, has := tags[KeyLon]
	if !has {
		lv, has = tags[KeyLng]
	}
	if !has {
		return 0, 0, false
	}
	lon, ok = lv.Float()
	if !ok || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}
