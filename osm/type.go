package osm

import (
	"errors"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "osm")

var (
	// 错误：城市输入为空
	ErrBadCityQuery = errors.New("empty city query")
	// 错误：所有Overpass端点对所有查询都失败
	ErrOverpassUnreachable = errors.New("all overpass endpoints failed")
	// 错误：Nominatim各变体均未返回可用包围盒
	ErrNominatimUnresolved = errors.New("nominatim returned no usable bounding box")
	// 错误：边界过滤后无街道
	ErrNoStreetsInBoundary = errors.New("no streets inside city boundary")
)

// Overpass载荷中的一个元素，node与way共用一个宽松结构
// 缺失字段保持零值，解析失败的元素被跳过
type Element struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat,omitempty"`
	Lon   float64           `json:"lon,omitempty"`
	Nodes []int64           `json:"nodes,omitempty"`
	Tags  map[string]string `json:"tags,omitempty"`
}

type Payload struct {
	Elements []Element `json:"elements"`
}
