package planner

import (
	"errors"
	"fmt"

	"git.fiblab.net/sim/streetcover/geo"
)

const (
	SOURCE_OSM    = "osm"
	SOURCE_MANUAL = "manual"
)

var (
	// 错误：候选集或图构建失败、无起点、无未完成街道或规划未走出任何边
	ErrPlanInfeasible = errors.New("plan infeasible")
)

// 一段可跑的街道
// Path[0]与Path[last]分别对应StartNodeID与EndNodeID
// 数据集加载后不可变，仅Completed可被翻转
type StreetSegment struct {
	ID          string       `json:"id" bson:"id"`
	Name        string       `json:"name" bson:"name"`
	Path        []geo.LatLng `json:"path" bson:"path"`
	StartNodeID string       `json:"startNodeId,omitempty" bson:"startNodeId,omitempty"`
	EndNodeID   string       `json:"endNodeId,omitempty" bson:"endNodeId,omitempty"`
	Completed   bool         `json:"completed" bson:"completed"`
	Source      string       `json:"source" bson:"source"`
}

// 端点坐标量化到5位小数，作为缺省结点id
func QuantizedNodeID(p geo.LatLng) string {
	return fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lon)
}

// 路段两端的结点id，OSM来源用其自带id，否则由端点坐标量化得到
func (s *StreetSegment) NodeIDs() (string, string) {
	start, end := s.StartNodeID, s.EndNodeID
	if start == "" {
		start = QuantizedNodeID(s.Path[0])
	}
	if end == "" {
		end = QuantizedNodeID(s.Path[len(s.Path)-1])
	}
	return start, end
}

// 规划产出的完整路线
type SuggestedRoute struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Points         []geo.LatLng `json:"points"`
	StreetIDs      []string     `json:"streetIds"`
	StreetNames    []string     `json:"streetNames"`
	DistanceKm     float64      `json:"distanceKm"`
	Strategy       string       `json:"strategy"`
	NodeIDsCovered []string     `json:"nodeIdsCovered"`
	NodePoints     []geo.LatLng `json:"nodePoints"`
	AvailableNodes []string     `json:"availableNodes"`
}
