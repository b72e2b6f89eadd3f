package serial

import (
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/tkrajina/gpxgo/gpx"

	"git.fiblab.net/sim/streetcover/geo"
)

var (
	// 错误：文件扩展名不支持或CSV缺少必需列
	ErrUnsupportedImport = errors.New("unsupported import format")
	// 错误：解析成功但有效点不足
	ErrEmptyImport = errors.New("import yielded no usable points")
)

// 解析活动文件为轨迹点列表，按扩展名分派
// 解析器错误不重试
func ParseActivityPoints(filename string, data []byte) ([]geo.LatLng, error) {
	var points []geo.LatLng
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gpx":
		points, err = parseGPXPoints(data)
	case ".csv":
		points, err = parseCSVPoints(data)
	case ".aml":
		points, err = parseAMLPoints(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImport, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, ErrEmptyImport
	}
	return points, nil
}

func parseGPXPoints(data []byte) ([]geo.LatLng, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	points := make([]geo.LatLng, 0)
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				points = append(points, geo.LatLng{Lat: p.Latitude, Lon: p.Longitude})
			}
		}
	}
	// 无track时回退到route与waypoint
	if len(points) == 0 {
		for _, rte := range doc.Routes {
			for _, p := range rte.Points {
				points = append(points, geo.LatLng{Lat: p.Latitude, Lon: p.Longitude})
			}
		}
	}
	if len(points) == 0 {
		for _, p := range doc.Waypoints {
			points = append(points, geo.LatLng{Lat: p.Latitude, Lon: p.Longitude})
		}
	}
	return points, nil
}

// CSV要求lat/lon两列（容忍latitude/longitude别名），逐行解析并跳过坏行
func parseCSVPoints(data []byte) ([]geo.LatLng, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyImport
	}
	latCol, lonCol := -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "lat", "latitude":
			latCol = i
		case "lon", "lng", "longitude":
			lonCol = i
		}
	}
	if latCol == -1 || lonCol == -1 {
		return nil, fmt.Errorf("%w: csv missing lat/lon columns", ErrUnsupportedImport)
	}
	points := make([]geo.LatLng, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) <= latCol || len(rec) <= lonCol {
			continue
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec[latCol]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec[lonCol]), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		points = append(points, geo.LatLng{Lat: lat, Lon: lon})
	}
	return points, nil
}

func parseAMLPoints(data []byte) ([]geo.LatLng, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse aml: %w", err)
	}
	points := make([]geo.LatLng, 0)
	for _, el := range doc.FindElements("//route/point") {
		lat, errLat := strconv.ParseFloat(el.SelectAttrValue("lat", ""), 64)
		lon, errLon := strconv.ParseFloat(el.SelectAttrValue("lon", ""), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		points = append(points, geo.LatLng{Lat: lat, Lon: lon})
	}
	return points, nil
}
