package junction

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
)

// Lights 逐车道信号灯状态
// 功能：绿灯车道为绿灯，其余车道为红灯；green越界时全部为红灯
func Lights(numLanes, green int) []mapv2.LightState {
	return lo.Times(numLanes, func(i int) mapv2.LightState {
		if i == green {
			return mapv2.LightState_LIGHT_STATE_GREEN
		}
		return mapv2.LightState_LIGHT_STATE_RED
	})
}
