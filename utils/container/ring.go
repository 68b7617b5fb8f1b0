package container

// Ring 定长先进先出环形队列
// 功能：保存最近capacity个元素，写满后覆盖最旧的元素
// 说明：非线程安全，由调用方负责加锁
type Ring[T any] struct {
	data  []T // 底层存储
	start int // 最旧元素的位置
	size  int // 当前元素数量
}

// NewRing 创建环形队列
// 功能：以给定容量初始化环形队列，容量小于1时按1处理
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push 加入元素
// 功能：在队尾加入元素，队列已满时丢弃队首（最旧）元素
// 返回：是否发生了淘汰
func (r *Ring[T]) Push(v T) (evicted bool) {
	if r.size < len(r.data) {
		r.data[(r.start+r.size)%len(r.data)] = v
		r.size++
		return false
	}
	r.data[r.start] = v
	r.start = (r.start + 1) % len(r.data)
	return true
}

// Len 当前元素数量
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap 队列容量
func (r *Ring[T]) Cap() int {
	return len(r.data)
}

// At 按从旧到新的顺序获取第i个元素，越界时panic
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("container: ring index out of range")
	}
	return r.data[(r.start+i)%len(r.data)]
}

// Values 按从旧到新的顺序返回所有元素的拷贝
func (r *Ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}
