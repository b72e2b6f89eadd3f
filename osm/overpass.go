package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"git.fiblab.net/sim/streetcover/geo"
)

const (
	// 单次Overpass请求超时
	OVERPASS_TIMEOUT = 55 * time.Second
)

// Overpass端点池，按序故障转移
var DefaultOverpassEndpoints = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://lz4.overpass-api.de/api/interpreter",
}

type OverpassClient struct {
	HTTP      *http.Client
	Endpoints []string
}

func NewOverpassClient() *OverpassClient {
	return &OverpassClient{
		HTTP:      &http.Client{},
		Endpoints: DefaultOverpassEndpoints,
	}
}

// 城市名的尝试变体：原文、首个逗号段、前两个逗号段、原文+", USA"
func CityVariants(city string) []string {
	city = strings.TrimSpace(city)
	variants := []string{city}
	parts := lo.Map(strings.Split(city, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	if len(parts) > 1 {
		variants = append(variants, parts[0])
		variants = append(variants, parts[0]+", "+parts[1])
	}
	variants = append(variants, city+", USA")
	return lo.Uniq(variants)
}

// 按行政区名解析的area查询
func AreaQuery(city string) string {
	return fmt.Sprintf(`[out:json][timeout:120];
(area["name"=%[1]q]["boundary"="administrative"]["admin_level"~"5|6|7|8|9"];
 relation["name"=%[1]q]["boundary"="administrative"];)->.searchArea;
(way["highway"](area.searchArea););
out body; >; out skel qt;`, city)
}

// 包围盒查询
func BBoxQuery(b geo.Bounds) string {
	return fmt.Sprintf(`[out:json][timeout:120];
(way["highway"](%f,%f,%f,%f););
out body; >; out skel qt;`, b.South, b.West, b.North, b.East)
}

// 中心点半径查询，半径由包围盒对角线缩放并截断在5~24km
func AroundQuery(center geo.LatLng, diagonalKm float64) string {
	radiusKm := lo.Clamp(diagonalKm*0.32, 5, 24)
	radiusM := math.Ceil(radiusKm * 1000)
	return fmt.Sprintf(`[out:json][timeout:120];
(way["highway"](around:%.0f,%f,%f););
out body; >; out skel qt;`, radiusM, center.Lat, center.Lon)
}

// 向端点池逐个POST查询，返回首个含way的载荷
func (c *OverpassClient) fetch(ctx context.Context, query string) (*Payload, error) {
	var lastErr error
	for _, endpoint := range c.Endpoints {
		payload, err := c.fetchOne(ctx, endpoint, query)
		if err != nil {
			log.Warnf("overpass endpoint %s failed: %v", endpoint, err)
			lastErr = err
			continue
		}
		return payload, nil
	}
	if lastErr == nil {
		lastErr = ErrOverpassUnreachable
	}
	return nil, lastErr
}

func (c *OverpassClient) fetchOne(ctx context.Context, endpoint, query string) (*Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, OVERPASS_TIMEOUT)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %s", endpoint, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	hasWay := false
	for _, el := range payload.Elements {
		if el.Type == "way" {
			hasWay = true
			break
		}
	}
	if !hasWay {
		return nil, fmt.Errorf("%s: payload has no ways", endpoint)
	}
	return &payload, nil
}

// 拉取城市街道：三种查询模板按失败顺序尝试，城市名按变体轮换
// bounds与center来自Nominatim解析，可为空（此时跳过依赖它们的模板）
func (c *OverpassClient) FetchCityStreets(
	ctx context.Context, city string, bounds *geo.Bounds,
) (*Payload, error) {
	if strings.TrimSpace(city) == "" {
		return nil, ErrBadCityQuery
	}
	queries := make([]string, 0, 3)
	for _, variant := range CityVariants(city) {
		queries = append(queries, AreaQuery(variant))
	}
	if bounds != nil {
		queries = append(queries, BBoxQuery(*bounds))
		queries = append(queries, AroundQuery(bounds.Center(), bounds.DiagonalKm()))
	}
	for _, q := range queries {
		payload, err := c.fetch(ctx, q)
		if err != nil {
			continue
		}
		return payload, nil
	}
	return nil, ErrOverpassUnreachable
}
