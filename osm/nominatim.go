package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"git.fiblab.net/sim/streetcover/geo"
)

const (
	// 单次Nominatim请求超时
	NOMINATIM_TIMEOUT = 20 * time.Second

	DefaultNominatimEndpoint = "https://nominatim.openstreetmap.org/search"
)

type NominatimClient struct {
	HTTP     *http.Client
	Endpoint string
}

func NewNominatimClient() *NominatimClient {
	return &NominatimClient{
		HTTP:     &http.Client{},
		Endpoint: DefaultNominatimEndpoint,
	}
}

// Nominatim返回的一个候选
type nominatimEntry struct {
	DisplayName string          `json:"display_name"`
	AddressType string          `json:"addresstype"`
	Type        string          `json:"type"`
	PlaceRank   int             `json:"place_rank"`
	BoundingBox []string        `json:"boundingbox"`
	Lat         string          `json:"lat"`
	Lon         string          `json:"lon"`
	GeoJSON     json.RawMessage `json:"geojson"`
}

// 解析出的城市定位
type Place struct {
	DisplayName string
	Bounds      geo.Bounds
	Center      geo.LatLng
	Boundary    *Boundary
}

// 候选打分，权重见对应分支
func rankEntry(e nominatimEntry, city string) float64 {
	score := 0.0
	token := strings.ToLower(strings.TrimSpace(strings.Split(city, ",")[0]))
	display := strings.ToLower(e.DisplayName)
	if strings.HasPrefix(display, token) {
		score += 42
	} else if strings.Contains(display, token) {
		score += 12
	}
	switch e.AddressType {
	case "city", "town", "municipality":
		score += 120
	case "village", "borough", "suburb", "hamlet":
		score += 72
	case "county", "state", "region", "country":
		score -= 130
	}
	if e.Type == e.AddressType && e.Type != "" {
		score += 55
	}
	score += math.Max(-24, 22-math.Abs(16-float64(e.PlaceRank))*4)
	return score
}

func (e nominatimEntry) bounds() (geo.Bounds, bool) {
	if len(e.BoundingBox) != 4 {
		return geo.Bounds{}, false
	}
	vals := make([]float64, 4)
	for i, s := range e.BoundingBox {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return geo.Bounds{}, false
		}
		vals[i] = v
	}
	b := geo.Bounds{South: vals[0], North: vals[1], West: vals[2], East: vals[3]}
	if b.South >= b.North || b.West >= b.East {
		return geo.Bounds{}, false
	}
	return b, true
}

// geojson的Polygon/MultiPolygon坐标转为边界环列表
// 其余几何类型与解析失败一律忽略
func parseBoundary(raw json.RawMessage) *Boundary {
	if len(raw) == 0 {
		return nil
	}
	var gj struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &gj); err != nil {
		return nil
	}
	toRing := func(coords [][]float64) []geo.LatLng {
		ring := make([]geo.LatLng, 0, len(coords))
		for _, c := range coords {
			if len(c) < 2 {
				continue
			}
			ring = append(ring, geo.LatLng{Lat: c[1], Lon: c[0]})
		}
		return ring
	}
	rings := make([][]geo.LatLng, 0)
	switch gj.Type {
	case "Polygon":
		var poly [][][]float64
		if err := json.Unmarshal(gj.Coordinates, &poly); err != nil {
			return nil
		}
		for _, r := range poly {
			if ring := toRing(r); len(ring) >= 3 {
				rings = append(rings, ring)
			}
		}
	case "MultiPolygon":
		var multi [][][][]float64
		if err := json.Unmarshal(gj.Coordinates, &multi); err != nil {
			return nil
		}
		for _, poly := range multi {
			for _, r := range poly {
				if ring := toRing(r); len(ring) >= 3 {
					rings = append(rings, ring)
				}
			}
		}
	default:
		return nil
	}
	if len(rings) == 0 {
		return nil
	}
	return &Boundary{Rings: rings}
}

// 解析城市：取得分最高且包围盒合法的候选
func (c *NominatimClient) Resolve(ctx context.Context, city string) (*Place, error) {
	if strings.TrimSpace(city) == "" {
		return nil, ErrBadCityQuery
	}
	var lastErr error
	for _, variant := range CityVariants(city) {
		place, err := c.resolveOne(ctx, variant)
		if err != nil {
			lastErr = err
			continue
		}
		return place, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNominatimUnresolved, lastErr)
	}
	return nil, ErrNominatimUnresolved
}

func (c *NominatimClient) resolveOne(ctx context.Context, city string) (*Place, error) {
	ctx, cancel := context.WithTimeout(ctx, NOMINATIM_TIMEOUT)
	defer cancel()
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("limit", "8")
	q.Set("polygon_geojson", "1")
	q.Set("q", city)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %s", c.Endpoint, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var entries []nominatimEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}

	bestScore := math.Inf(-1)
	var best *Place
	for _, e := range entries {
		b, ok := e.bounds()
		if !ok {
			continue
		}
		score := rankEntry(e, city)
		if score <= bestScore {
			continue
		}
		lat, errLat := strconv.ParseFloat(e.Lat, 64)
		lon, errLon := strconv.ParseFloat(e.Lon, 64)
		center := b.Center()
		if errLat == nil && errLon == nil {
			center = geo.LatLng{Lat: lat, Lon: lon}
		}
		bestScore = score
		best = &Place{
			DisplayName: e.DisplayName,
			Bounds:      b,
			Center:      center,
			Boundary:    parseBoundary(e.GeoJSON),
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no usable bounding box for %q", city)
	}
	log.Infof("resolved %q to %q (score %.0f)", city, best.DisplayName, bestScore)
	return best, nil
}
