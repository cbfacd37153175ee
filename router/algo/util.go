package algo

func TimeToIndex(time float64) int {
	// 输入time返回对应时间片下标，跨日时间取模
	if time < 0 {
		return 0
	}
	index := int(time/TIME_SLICE_INTERVAL) % TIME_SLICE_LENGTH
	return index
}
