// Package core 数据源接口定义
package core

import (
	"context"
	"time"
)

// QueryKind 批量查询类型
type QueryKind int

const (
	QueryRecent QueryKind = iota // 最近N条
	QueryToday                   // 今天的数据
	QueryRange                   // 起止时间范围
)

// String 返回查询类型名称
func (k QueryKind) String() string {
	switch k {
	case QueryRecent:
		return "recent"
	case QueryToday:
		return "today"
	case QueryRange:
		return "range"
	default:
		return "unknown"
	}
}

// Query 批量查询参数
type Query struct {
	Kind  QueryKind
	Limit int       // recent/today 使用
	Start time.Time // range 使用
	End   time.Time // range 使用
}

// RecentQuery 构造最近N条查询
func RecentQuery(limit int) Query {
	return Query{Kind: QueryRecent, Limit: limit}
}

// TodayQuery 构造今日数据查询
func TodayQuery(limit int) Query {
	return Query{Kind: QueryToday, Limit: limit}
}

// RangeQuery 构造时间范围查询
func RangeQuery(start, end time.Time) Query {
	return Query{Kind: QueryRange, Start: start, End: end}
}

// BatchFetcher 批量获取历史数据
type BatchFetcher interface {
	// FetchBatch 执行一次查询，失败时返回 *FetchError
	FetchBatch(ctx context.Context, q Query) ([]Reading, error)
}

// EventKind 实时流事件类型
type EventKind int

const (
	EventOpen    EventKind = iota // 连接已建立
	EventReading                  // 收到一条有效数据
	EventError                    // 连接失败或中断，之后通道关闭
)

// StreamEvent 实时流推送的单个事件
type StreamEvent struct {
	Kind    EventKind
	Reading Reading // EventReading 时有效
	Err     error   // EventError 时有效
}

// Stream 定义了实时数据连接句柄的标准接口
// 模拟定时器与SSE读取器都实现这个接口
type Stream interface {
	// Events 返回一个只读通道，连接结束后通道被关闭
	Events() <-chan StreamEvent

	// Close 中止底层读取并释放资源
	// 可重复调用，之后不会再有新的事件
	Close()
}

// StreamOpener 打开实时数据连接
type StreamOpener interface {
	// OpenStream 立即返回句柄，连接在后台建立
	// ctx 取消等同于调用 Close
	OpenStream(ctx context.Context) Stream
}
