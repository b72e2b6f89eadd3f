package planner

import "git.fiblab.net/sim/streetcover/geo"

const (
	// 活动轨迹判定街道完成的采样距离阈值/m
	ACTIVITY_MATCH_METERS = 25
	// 判定完成所需落在阈值内的路径点占比
	ACTIVITY_MATCH_RATIO = 0.7
)

// 由导入的活动轨迹找出已跑完的街道
// 路段至少七成路径点落在轨迹25米内视为完成，返回命中的街道id
func CompletedByActivity(streets []*StreetSegment, activity []geo.LatLng) []string {
	if len(activity) < 2 {
		return nil
	}
	completed := make([]string, 0)
	for _, s := range streets {
		if s.Completed || len(s.Path) < 2 {
			continue
		}
		within := 0
		for _, p := range s.Path {
			if geo.PointToPathMeters(p, activity) <= ACTIVITY_MATCH_METERS {
				within++
			}
		}
		if float64(within) >= ACTIVITY_MATCH_RATIO*float64(len(s.Path)) {
			completed = append(completed, s.ID)
		}
	}
	return completed
}
