package task

import (
	"context"
	"sync"
	"time"
)

const (
	persistTimeout   = 5 * time.Second // 单次持久化写入的超时时间
	persistQueueSize = 256             // 待写入队列长度
)

// persistJob 一次持久化写入，fn为nil时只用于Flush
type persistJob struct {
	what string
	fn   func(context.Context) error
	done chan struct{}
}

// writer 持久化写入协程
// 功能：按提交顺序在独立goroutine中执行写入，控制循环只负责入队
// 说明：队列满时丢弃新的写入并记录日志，控制循环永远不会等待存储
type writer struct {
	mtx     sync.Mutex
	closed  bool
	jobs    chan persistJob
	stopped chan struct{}
}

func newWriter(size int) *writer {
	w := &writer{
		jobs:    make(chan persistJob, size),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) run() {
	defer close(w.stopped)
	for job := range w.jobs {
		if job.fn != nil {
			pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			if err := job.fn(pctx); err != nil {
				log.Warnf("failed to persist %s: %v", job.what, err)
			}
			cancel()
		}
		if job.done != nil {
			close(job.done)
		}
	}
}

// submit 非阻塞入队
func (w *writer) submit(what string, fn func(context.Context) error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if w.closed {
		log.Warnf("writer closed, dropping %s", what)
		return
	}
	select {
	case w.jobs <- persistJob{what: what, fn: fn}:
	default:
		log.Warnf("persist queue full, dropping %s", what)
	}
}

// flush 等待此前提交的写入全部完成
func (w *writer) flush(c context.Context) error {
	done := make(chan struct{})
	w.mtx.Lock()
	if w.closed {
		w.mtx.Unlock()
		return ErrClosed
	}
	select {
	case w.jobs <- persistJob{what: "flush", done: done}:
	case <-c.Done():
		w.mtx.Unlock()
		return c.Err()
	}
	w.mtx.Unlock()
	select {
	case <-done:
		return nil
	case <-c.Done():
		return c.Err()
	}
}

// close 停止接收写入，等待队列中的写入完成
func (w *writer) close() {
	w.mtx.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mtx.Unlock()
	<-w.stopped
}
