package worker

import (
	"context"
	"sync"
	"time"
	"ustp_things/pkg/logger"
	"ustp_things/pkg/metrics"

	"go.uber.org/zap"
)

// Task 异步任务，Run 返回错误时按 Retry 次数重新入队
type Task struct {
	Name  string
	Run   func(ctx context.Context) error
	Retry int // 已重试次数
}

type WorkerPool struct {
	TaskQueue  chan Task
	RetryQueue chan Task // 重试队列
	WorkerNum  int
	MaxRetry   int           // 最大重试次数
	Backoff    time.Duration // 第 n 次重试前等待 n*Backoff
	Timeout    time.Duration // 单次执行超时

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewWorkerPool(workerNum int, bufferSize int) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize < 2 {
		bufferSize = 2
	}
	return &WorkerPool{
		TaskQueue:  make(chan Task, bufferSize),
		RetryQueue: make(chan Task, bufferSize/2),
		WorkerNum:  workerNum,
		MaxRetry:   3, // 最多重试3次
		Backoff:    time.Second,
		Timeout:    10 * time.Second,
		stopCh:     make(chan struct{}),
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	logger.Log.Info("worker pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 停止接收新任务并等待工作协程退出，队列中剩余任务记为失败
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case task := <-p.TaskQueue:
			p.process(id, task)
		}
	}
}

func (p *WorkerPool) process(id int, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	err := task.Run(ctx)
	cancel()

	if err == nil {
		metrics.GetGlobalCollector().RecordWorkerTask("success")
		return
	}

	logger.Log.Warn("worker task failed",
		zap.Int("worker", id),
		zap.String("task", task.Name),
		zap.Int("attempt", task.Retry),
		zap.Error(err),
	)

	// 如果未达到最大重试次数，加入重试队列
	if task.Retry >= p.MaxRetry {
		p.logFailedTask(task, err)
		return
	}

	task.Retry++
	select {
	case p.RetryQueue <- task:
		metrics.GetGlobalCollector().RecordWorkerTask("retry")
	default:
		p.logFailedTask(task, err)
	}
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case task := <-p.RetryQueue:
			// 线性退避
			select {
			case <-time.After(time.Duration(task.Retry) * p.Backoff):
			case <-p.stopCh:
				p.logFailedTask(task, nil)
				return
			}

			select {
			case p.TaskQueue <- task:
			default:
				p.logFailedTask(task, nil)
			}
		}
	}
}

func (p *WorkerPool) logFailedTask(task Task, err error) {
	metrics.GetGlobalCollector().RecordWorkerTask("dropped")
	logger.Log.Error("worker task failed permanently",
		zap.String("task", task.Name),
		zap.Int("attempts", task.Retry),
		zap.Error(err),
	)
}

// AddTask 入队，队列满返回 false
func (p *WorkerPool) AddTask(task Task) bool {
	select {
	case p.TaskQueue <- task:
		return true
	default:
		p.logFailedTask(task, nil)
		return false
	}
}
