// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/wfunc/cardroom/logger"
)

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager 延迟任务调度。回调在锁外、各自的 goroutine 中执行，
// 回调里可以再次调用 AddTimer / RemoveTimer。
type TimerManager struct {
	queue      TimerQueue
	mutex      sync.Mutex
	nextId     int64
	resolution time.Duration
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewTimerManager 以 resolution 为精度启动调度器，<=0 时使用 100ms
func NewTimerManager(resolution time.Duration) *TimerManager {
	if resolution <= 0 {
		resolution = 100 * time.Millisecond
	}
	manager := &TimerManager{
		queue:      make(TimerQueue, 0),
		nextId:     1,
		resolution: resolution,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

// AddTimer 在 delay 后执行 callback，interval > 0 时周期执行
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	return task.Id
}

// RemoveTimer 取消任务。已经触发的回调不受影响。
func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.Id == timerId {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// Pending 队列中尚未触发的任务数
func (m *TimerManager) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop 停止调度并等待正在执行的回调结束
func (m *TimerManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
		m.wg.Wait()
	})
}

func (m *TimerManager) process() {
	defer close(m.done)
	ticker := time.NewTicker(m.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			for _, task := range m.due(now) {
				m.wg.Add(1)
				go m.run(task)
			}
		}
	}
}

// due 取出所有到期任务，周期任务重新入队
func (m *TimerManager) due(now time.Time) []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var ready []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}
		heap.Pop(&m.queue)
		ready = append(ready, task)

		if task.Interval > 0 {
			next := *task
			next.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, &next)
		}
	}
	return ready
}

func (m *TimerManager) run(task *TimerTask) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorw("timer callback panicked", "timer_id", task.Id, "panic", r)
		}
	}()
	task.Callback()
}
