package serial

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"git.fiblab.net/sim/streetcover/geo"
)

const (
	// 外部地图链接允许的最大途经点数
	MAX_WAYPOINTS = 10
)

// 按固定步长采样中间途经点
func sampleWaypoints(points []geo.LatLng) []geo.LatLng {
	if len(points) <= 2 {
		return nil
	}
	inner := points[1 : len(points)-1]
	stride := int(math.Max(1, math.Ceil(float64(len(inner))/MAX_WAYPOINTS)))
	sampled := make([]geo.LatLng, 0, MAX_WAYPOINTS)
	for i := 0; i < len(inner) && len(sampled) < MAX_WAYPOINTS; i += stride {
		sampled = append(sampled, inner[i])
	}
	return sampled
}

func fmtLatLng(p geo.LatLng) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Google Maps步行导航直链
func GoogleMapsURL(points []geo.LatLng) string {
	if len(points) == 0 {
		return ""
	}
	origin := fmtLatLng(points[0])
	destination := fmtLatLng(points[len(points)-1])
	waypoints := make([]string, 0, MAX_WAYPOINTS)
	for _, p := range sampleWaypoints(points) {
		waypoints = append(waypoints, fmtLatLng(p))
	}
	q := url.Values{}
	q.Set("api", "1")
	q.Set("travelmode", "walking")
	q.Set("origin", origin)
	q.Set("destination", destination)
	q.Set("waypoints", strings.Join(waypoints, "|"))
	return "https://www.google.com/maps/dir/?" + q.Encode()
}

// Apple Maps步行导航直链
func AppleMapsURL(points []geo.LatLng) string {
	if len(points) == 0 {
		return ""
	}
	q := url.Values{}
	q.Set("saddr", fmtLatLng(points[0]))
	q.Set("daddr", fmtLatLng(points[len(points)-1]))
	q.Set("dirflg", "w")
	return "https://maps.apple.com/?" + q.Encode()
}
