package usage

import (
	"net/http"
	"strings"
)

// Kind distinguishes reads from writes.
type Kind string

const (
	KindHit   Kind = "cache-hit"
	KindWrite Kind = "cache-write"
)

// Version is the schema version stamped on every data point.
const Version = "v1"

// Sentinels used in place of missing geo fields. The analytics store indexes
// on presence, so empty values are never written.
const (
	UnknownLatitude  = "unknownLatitude"
	UnknownLongitude = "unknownLongitude"
	UnknownCountry   = "unknownCountry"
	UnknownCity      = "unknownCity"
)

// Visitor location headers set by the edge proxy.
const (
	HeaderCountry   = "CF-IPCountry"
	HeaderCity      = "CF-IPCity"
	HeaderLatitude  = "CF-IPLatitude"
	HeaderLongitude = "CF-IPLongitude"
)

// Geo is the best-effort client location.
type Geo struct {
	Country   string `json:"country"`
	City      string `json:"city"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// GeoFromRequest reads the visitor location headers. Missing headers stay
// empty; defaulting happens when the event is converted.
func GeoFromRequest(r *http.Request) Geo {
	if r == nil {
		return Geo{}
	}
	return Geo{
		Country:   strings.TrimSpace(r.Header.Get(HeaderCountry)),
		City:      strings.TrimSpace(r.Header.Get(HeaderCity)),
		Latitude:  strings.TrimSpace(r.Header.Get(HeaderLatitude)),
		Longitude: strings.TrimSpace(r.Header.Get(HeaderLongitude)),
	}
}

// Event describes one cache read or write.
type Event struct {
	Kind          Kind   `json:"kind"`
	Version       string `json:"version"`
	Key           string `json:"key"`
	OperationName string `json:"operationName"`
	Service       string `json:"service"`
	Name          string `json:"name"`
	Identifier    string `json:"identifier"`
	Geo           Geo    `json:"geo"`
}

// Normalize fills the version and geo sentinels.
func (e Event) Normalize() Event {
	if e.Version == "" {
		e.Version = Version
	}
	e.Geo.Latitude = orDefault(e.Geo.Latitude, UnknownLatitude)
	e.Geo.Longitude = orDefault(e.Geo.Longitude, UnknownLongitude)
	e.Geo.Country = orDefault(e.Geo.Country, UnknownCountry)
	e.Geo.City = orDefault(e.Geo.City, UnknownCity)
	return e
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// DataPoint is the wide flat record written to a Sink.
type DataPoint struct {
	Blobs   []string  `json:"blobs"`
	Doubles []float64 `json:"doubles,omitempty"`
	Indexes []string  `json:"indexes"`
}

// DataPoint converts the event, applying defaults first. Blob order is
// kind, version, key, operationName, service, name, identifier, latitude,
// longitude, country, city.
func (e Event) DataPoint() DataPoint {
	e = e.Normalize()
	return DataPoint{
		Blobs: []string{
			string(e.Kind),
			e.Version,
			e.Key,
			e.OperationName,
			e.Service,
			e.Name,
			e.Identifier,
			e.Geo.Latitude,
			e.Geo.Longitude,
			e.Geo.Country,
			e.Geo.City,
		},
		Indexes: []string{e.Key},
	}
}
