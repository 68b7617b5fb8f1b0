package trafficlight

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/utils/container"
	"github.com/Code-trac/aito-dep/utils/randengine"
	"github.com/samber/lo"
)

// MaxLanes 单个路口支持的最大车道数（离散状态键的定长上限）
const MaxLanes = 16

var (
	ErrCheckpointMismatch = errors.New("agent: checkpoint does not match agent shape")
	ErrTooManyLanes       = fmt.Errorf("agent: lane count must be in [1, %d]", MaxLanes)
)

// StateKey 离散化后的密度状态，每条车道一个分箱编号，未使用的位置为0
type StateKey [MaxLanes]uint8

// Format 以JSON数组形式输出前n条车道的分箱编号，例如"[0,1,4,0]"
func (k StateKey) Format(n int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(k[i])))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseStateKey 解析Format的输出，要求恰好n个分箱编号
func ParseStateKey(s string, n int) (StateKey, error) {
	var k StateKey
	body := strings.TrimSpace(s)
	if !strings.HasPrefix(body, "[") || !strings.HasSuffix(body, "]") {
		return k, fmt.Errorf("agent: bad state key %q", s)
	}
	body = strings.TrimSpace(body[1 : len(body)-1])
	parts := []string{}
	if body != "" {
		parts = strings.Split(body, ",")
	}
	if len(parts) != n {
		return k, fmt.Errorf("%w: state key %q has %d lanes, want %d", ErrCheckpointMismatch, s, len(parts), n)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return k, fmt.Errorf("agent: bad bin %q in state key %q", p, s)
		}
		k[i] = uint8(v)
	}
	return k, nil
}

// Transition 一条经验
type Transition struct {
	State  []float64
	Action int
	Reward float64
	Next   []float64
}

// AgentOptions 智能体参数
type AgentOptions struct {
	Bins        []float64 // 密度分箱边界
	Multipliers []float64 // 候选倍率
	Alpha       float64   // 学习率
	Gamma       float64   // 折扣因子
	Epsilon     float64   // 探索率
	BufferSize  int       // 经验池容量
	Seed        uint64
}

// DefaultAgentOptions 默认智能体参数
func DefaultAgentOptions() AgentOptions {
	return AgentOptions{
		Bins:        []float64{0, 20, 40, 60, 80, 100},
		Multipliers: []float64{0.75, 1.0, 1.25, 1.5},
		Alpha:       0.2,
		Gamma:       0.95,
		Epsilon:     0.2,
		BufferSize:  20000,
		Seed:        42,
	}
}

// AgentStats 智能体统计信息
type AgentStats struct {
	Epsilon   float64 `json:"eps"`
	BufferLen int     `json:"buffer_len"`
	States    int     `json:"states"`
}

// MultiplierAgent 倍率学习智能体（表格型Q-learning）
// 功能：以离散化的密度状态为键维护Q表，动作为候选倍率的下标
// 说明：非线程安全，由调用方保证Decide与Train处于同一把锁下
type MultiplierAgent struct {
	numLanes int
	bins     []float64
	mults    []float64
	alpha    float64
	gamma    float64
	eps      float64

	q      map[StateKey][]float64       // Q表，首次访问时以全0初始化
	buffer *container.Ring[Transition] // 经验池

	generator *randengine.Engine
}

// NewMultiplierAgent 创建倍率学习智能体
// 参数：numLanes-车道数，opts-智能体参数
// 返回：智能体实例，参数非法时返回错误
func NewMultiplierAgent(numLanes int, opts AgentOptions) (*MultiplierAgent, error) {
	if numLanes <= 0 || numLanes > MaxLanes {
		return nil, ErrTooManyLanes
	}
	if len(opts.Bins) < 2 || len(opts.Bins) > 256 {
		return nil, fmt.Errorf("agent: need 2..256 bin boundaries, got %d", len(opts.Bins))
	}
	if len(opts.Multipliers) == 0 {
		return nil, errors.New("agent: no candidate multipliers")
	}
	return &MultiplierAgent{
		numLanes:  numLanes,
		bins:      append([]float64(nil), opts.Bins...),
		mults:     append([]float64(nil), opts.Multipliers...),
		alpha:     opts.Alpha,
		gamma:     opts.Gamma,
		eps:       opts.Epsilon,
		q:         make(map[StateKey][]float64),
		buffer:    container.NewRing[Transition](opts.BufferSize),
		generator: randengine.New(opts.Seed),
	}, nil
}

// Discretize 将密度向量离散化为状态键
// 算法说明：密度先限制在[0, 100]，再从第0个分箱开始，只要超过下一个边界就前进一个分箱
func (a *MultiplierAgent) Discretize(densities []float64) StateKey {
	var k StateKey
	for i, d := range densities {
		if i >= a.numLanes {
			break
		}
		dd := lo.Clamp(d, 0, 100)
		idx := 0
		for idx+1 < len(a.bins) && dd > a.bins[idx+1] {
			idx++
		}
		k[i] = uint8(idx)
	}
	return k
}

// values 获取状态的Q值向量，不存在时插入全0向量
func (a *MultiplierAgent) values(k StateKey) []float64 {
	if v, ok := a.q[k]; ok {
		return v
	}
	v := make([]float64, len(a.mults))
	a.q[k] = v
	return v
}

// ChooseAction 选择倍率下标
// 功能：以概率eps均匀随机探索，否则取当前状态Q值最大的下标（相同时取最小下标）
// 说明：探索时不访问Q表，只有贪心选择才会插入新状态
func (a *MultiplierAgent) ChooseAction(densities []float64) int {
	if a.generator.PTrue(a.eps) {
		return a.generator.Intn(len(a.mults))
	}
	return argmax(a.values(a.Discretize(densities)))
}

// Learn 单步Q-learning更新
// 功能：Q[s][a] += alpha * (r + gamma * max(Q[s']) - Q[s][a])，s'未访问过时max(Q[s'])为0
func (a *MultiplierAgent) Learn(state []float64, action int, reward float64, next []float64) {
	if action < 0 || action >= len(a.mults) {
		log.Warnf("agent: ignore transition with action %d out of range", action)
		return
	}
	v := a.values(a.Discretize(state))
	nextMax := 0.
	if nv, ok := a.q[a.Discretize(next)]; ok {
		nextMax = lo.Max(nv)
	}
	target := reward + a.gamma*nextMax
	v[action] += a.alpha * (target - v[action])
}

// Store 写入一条经验，经验池满时淘汰最旧的经验
func (a *MultiplierAgent) Store(state []float64, action int, reward float64, next []float64) {
	a.buffer.Push(Transition{
		State:  append([]float64(nil), state...),
		Action: action,
		Reward: reward,
		Next:   append([]float64(nil), next...),
	})
}

// Train 经验回放训练
// 功能：从经验池中有放回地均匀采样iterations条经验并逐条执行Learn
// 返回：实际执行的更新次数，经验池为空时为0
func (a *MultiplierAgent) Train(iterations int) int {
	if a.buffer.Len() == 0 || iterations <= 0 {
		return 0
	}
	for range iterations {
		t := a.buffer.At(a.generator.Intn(a.buffer.Len()))
		a.Learn(t.State, t.Action, t.Reward, t.Next)
	}
	return iterations
}

// Multiplier 下标对应的倍率
func (a *MultiplierAgent) Multiplier(action int) float64 {
	return a.mults[action]
}

// NeutralAction 倍率1.0对应的下标，不存在时为1
func (a *MultiplierAgent) NeutralAction() int {
	if idx := lo.IndexOf(a.mults, 1.0); idx >= 0 {
		return idx
	}
	return 1
}

// SetEpsilon 设置探索率
func (a *MultiplierAgent) SetEpsilon(eps float64) {
	a.eps = lo.Clamp(eps, 0, 1)
}

// QValues 状态的Q值拷贝，未访问过的状态返回nil
func (a *MultiplierAgent) QValues(densities []float64) []float64 {
	v, ok := a.q[a.Discretize(densities)]
	if !ok {
		return nil
	}
	return append([]float64(nil), v...)
}

// Stats 统计信息
func (a *MultiplierAgent) Stats() AgentStats {
	return AgentStats{Epsilon: a.eps, BufferLen: a.buffer.Len(), States: len(a.q)}
}

// Checkpoint 导出Q表与超参数
func (a *MultiplierAgent) Checkpoint() entity.AgentCheckpoint {
	q := make(map[string][]float64, len(a.q))
	for k, v := range a.q {
		q[k.Format(a.numLanes)] = append([]float64(nil), v...)
	}
	return entity.AgentCheckpoint{
		NumLanes: a.numLanes,
		Alpha:    a.alpha,
		Gamma:    a.gamma,
		Epsilon:  a.eps,
		Q:        q,
	}
}

// Restore 从存档恢复Q表与超参数
// 说明：存档的车道数或动作数与当前智能体不一致时返回ErrCheckpointMismatch，当前状态保持不变
func (a *MultiplierAgent) Restore(cp entity.AgentCheckpoint) error {
	if cp.NumLanes != a.numLanes {
		return fmt.Errorf("%w: checkpoint has %d lanes, agent has %d", ErrCheckpointMismatch, cp.NumLanes, a.numLanes)
	}
	q := make(map[StateKey][]float64, len(cp.Q))
	for ks, v := range cp.Q {
		k, err := ParseStateKey(ks, a.numLanes)
		if err != nil {
			return err
		}
		if len(v) != len(a.mults) {
			return fmt.Errorf("%w: state %s has %d actions, agent has %d", ErrCheckpointMismatch, ks, len(v), len(a.mults))
		}
		q[k] = append([]float64(nil), v...)
	}
	a.q = q
	a.alpha = cp.Alpha
	a.gamma = cp.Gamma
	a.eps = cp.Epsilon
	return nil
}

// argmax 最大值下标，相同时取最小下标
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
