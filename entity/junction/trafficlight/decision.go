package trafficlight

import (
	"math"

	"github.com/samber/lo"
)

// Decision 一次配时决策的结果
type Decision struct {
	Lane     int       // 下一个绿灯车道
	Duration int       // 绿灯时长（秒）
	Timers   []float64 // 逐车道配时
	Learned  bool      // 是否使用了学习到的倍率
	Fallback bool      // 是否因缺少检测数据而沿用上一次的配时
}

// DecisionManager 配时决策管理器
// 功能：组合规则配时、车道轮转与倍率学习智能体，产生每个周期的决策
// 说明：lastTimers总是最近一次完整计算出的配时，只用于缺少检测数据时的降级决策
type DecisionManager struct {
	numLanes   int
	policy     Policy
	lastTimers []float64
	agent      *MultiplierAgent // 可选
}

// NewDecisionManager 创建配时决策管理器
// 参数：numLanes-车道数，policy-规则配时参数
// 返回：决策管理器，车道数非法时返回错误
func NewDecisionManager(numLanes int, policy Policy) (*DecisionManager, error) {
	if numLanes <= 0 || numLanes > MaxLanes {
		return nil, ErrTooManyLanes
	}
	return &DecisionManager{
		numLanes:   numLanes,
		policy:     policy,
		lastTimers: lo.Times(numLanes, func(_ int) float64 { return policy.MinGreen }),
	}, nil
}

// InitAgent 创建并挂载倍率学习智能体
func (m *DecisionManager) InitAgent(opts AgentOptions) (*MultiplierAgent, error) {
	agent, err := NewMultiplierAgent(m.numLanes, opts)
	if err != nil {
		return nil, err
	}
	m.agent = agent
	return agent, nil
}

// Agent 当前挂载的智能体，未挂载时为nil
func (m *DecisionManager) Agent() *MultiplierAgent {
	return m.agent
}

// Policy 规则配时参数
func (m *DecisionManager) Policy() Policy {
	return m.policy
}

// NumLanes 车道数
func (m *DecisionManager) NumLanes() int {
	return m.numLanes
}

// LastTimers 最近一次的逐车道配时拷贝
func (m *DecisionManager) LastTimers() []float64 {
	return append([]float64(nil), m.lastTimers...)
}

// SetLastTimers 覆盖最近一次的配时（用于恢复运行状态），长度不符时忽略
func (m *DecisionManager) SetLastTimers(timers []float64) {
	if len(timers) != m.numLanes {
		return
	}
	m.lastTimers = append([]float64(nil), timers...)
}

// Decide 计算下一个周期的车道与绿灯时长
// 功能：根据密度计算规则配时，按循环顺序选择下一车道，可选地用智能体调整所选车道的时长
// 参数：densities-逐车道密度（nil表示本周期没有检测数据），current-当前绿灯车道，
// rain/peak-环境状态，preferLearned-是否使用学习到的倍率
// 算法说明：
// 1. 密度缺失或长度不符：下一车道为current+1，时长为上一次配时，配时不变
// 2. 计算所有车道的规则配时
// 3. 没有车道超过空车道阈值：下一车道为current+1，时长为MinGreen
// 4. 使用学习倍率：只调整所选车道，记录经验（奖励为总密度的相反数）
// 5. 否则使用规则配时，并以中性倍率记录经验供离线训练
func (m *DecisionManager) Decide(densities []float64, current int, rain, peak, preferLearned bool) Decision {
	if densities == nil || len(densities) != m.numLanes {
		next := mod(current+1, m.numLanes)
		return Decision{
			Lane:     next,
			Duration: roundSeconds(m.lastTimers[next]),
			Timers:   m.LastTimers(),
			Fallback: true,
		}
	}

	timers := m.policy.RuleTimers(densities, rain, peak)
	next, ok := m.policy.NextLane(current, densities)
	if !ok {
		m.lastTimers = m.policy.EmptyTimers(densities)
		return Decision{
			Lane:     next,
			Duration: roundSeconds(m.policy.MinGreen),
			Timers:   m.LastTimers(),
		}
	}

	reward := -lo.Sum(densities)
	if preferLearned && m.agent != nil {
		action := m.agent.ChooseAction(densities)
		timers[next] = lo.Clamp(timers[next]*m.agent.Multiplier(action), 0, m.policy.MaxGreen)
		m.agent.Store(densities, action, reward, densities)
		m.lastTimers = timers
		return Decision{
			Lane:     next,
			Duration: roundSeconds(timers[next]),
			Timers:   m.LastTimers(),
			Learned:  true,
		}
	}

	if m.agent != nil {
		m.agent.Store(densities, m.agent.NeutralAction(), reward, densities)
	}
	m.lastTimers = timers
	return Decision{
		Lane:     next,
		Duration: roundSeconds(lo.Clamp(timers[next], m.policy.MinGreen, m.policy.MaxGreen)),
		Timers:   m.LastTimers(),
	}
}

// Train 使用经验池训练智能体，未挂载智能体时返回0
func (m *DecisionManager) Train(iterations int) int {
	if m.agent == nil {
		return 0
	}
	return m.agent.Train(iterations)
}

// roundSeconds 四舍六入五成双取整
func roundSeconds(t float64) int {
	return int(math.RoundToEven(t))
}
