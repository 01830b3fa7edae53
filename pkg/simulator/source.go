// Package simulator 定时推送的模拟数据源
package simulator

import (
	"errors"
	"sync"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/timeutil"
)

// Source 实现 core.Stream，每个间隔生成一条新记录
type Source struct {
	gen       *Generator
	config    *Config
	events    chan core.StreamEvent // 事件输出通道
	stopChan  chan struct{}         // 停止信号通道
	wg        sync.WaitGroup        // 等待组，用于优雅关闭
	running   bool                  // 运行状态
	runningMu sync.RWMutex          // 保护running状态的锁
}

// NewSource 创建并立即启动模拟数据源
func NewSource(gen *Generator, clock timeutil.Clock, config *Config) (*Source, error) {
	if gen == nil {
		return nil, errors.New("必须提供数据生成器")
	}

	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = timeutil.RealClock{}
	}

	s := &Source{
		gen:      gen,
		config:   config,
		events:   make(chan core.StreamEvent, config.BufferSize),
		stopChan: make(chan struct{}),
		running:  true,
	}

	// 通道为空，打开事件一定能写入
	s.events <- core.StreamEvent{Kind: core.EventOpen}

	// 打点器须在协程启动前创建
	ticker := clock.NewTicker(config.Interval)

	s.wg.Add(1)
	go s.loop(ticker)

	return s, nil
}

// Events 实现 core.Stream 接口
func (s *Source) Events() <-chan core.StreamEvent {
	return s.events
}

// Close 实现 core.Stream 接口
func (s *Source) Close() {
	s.runningMu.Lock()
	if !s.running {
		s.runningMu.Unlock()
		return
	}
	s.running = false
	s.runningMu.Unlock()

	// 发送停止信号
	close(s.stopChan)

	// 等待生成协程结束
	s.wg.Wait()

	// 关闭事件通道
	close(s.events)
}

// loop 按间隔生成记录直到收到停止信号
func (s *Source) loop(ticker timeutil.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	nextID := s.config.FirstID
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C():
			s.send(s.gen.Generate(nextID))
			nextID++
		}
	}
}

// send 发送一条记录，消费方跟不上时丢弃
func (s *Source) send(reading core.Reading) {
	select {
	case s.events <- core.StreamEvent{Kind: core.EventReading, Reading: reading}:
	case <-s.stopChan:
	default:
		// 通道满了，丢弃这个数据点
	}
}
