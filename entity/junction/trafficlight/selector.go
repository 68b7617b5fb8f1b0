package trafficlight

// NextLane 选择下一个获得绿灯的车道
// 功能：从current+1开始按循环顺序扫描，返回第一个密度超过空车道阈值的车道
// 参数：current-当前绿灯车道，densities-逐车道密度
// 返回：选中的车道与是否找到；所有车道都为空时返回(current+1)%N与false
// 说明：只按循环顺序选取，不比较各车道密度大小，保证每条有车的车道都能轮到
func (p Policy) NextLane(current int, densities []float64) (int, bool) {
	n := len(densities)
	if n == 0 {
		return 0, false
	}
	for offset := 1; offset <= n; offset++ {
		idx := mod(current+offset, n)
		if p.Occupied(densities[idx]) {
			return idx, true
		}
	}
	return mod(current+1, n), false
}

// mod 非负取模
func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
