package algo

const (
	// 结点覆盖判定半径/m（20英尺）
	NODE_CAPTURE_RADIUS_METERS = 6.096

	// 相邻路段拼接时允许跳过重复端点的距离阈值/m
	SEAMLESS_JOIN_METERS = 18

	// 不存在的前驱结点/边
	NO_PREV = -1
)
