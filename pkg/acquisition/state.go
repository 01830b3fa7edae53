package acquisition

import (
	"fmt"
	"time"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// State 采集周期所处的状态
type State int

const (
	StateIdle          State = iota // 尚未开始任何采集周期
	StateAwaitingInput              // 自定义范围缺少起止时间
	StateLoading                    // 批量数据请求中
	StateStreaming                  // 实时连接已打开
	StateStatic                     // 单次批量数据已加载，不再更新
	StateDisconnected               // 请求或连接失败
	StateStopped                    // 控制器已关闭
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting-input"
	case StateLoading:
		return "loading"
	case StateStreaming:
		return "streaming"
	case StateStatic:
		return "static"
	case StateDisconnected:
		return "disconnected"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ViewModel 展示层唯一依赖的只读快照
type ViewModel struct {
	Readings         []core.Reading     // 经过日期范围过滤的窗口数据，从旧到新
	ConnectionStatus bool               // 连接是否正常
	IsLoading        bool               // 是否有批量请求在进行
	Mode             core.Mode          // 数据来源模式
	State            State              // 当前状态
	DateRange        core.DateRangeMode // 日期范围模式
	Failure          core.FailureKind   // 最近一次失败的类型
	LastError        string             // 最近一次失败的描述
	Epoch            uint64             // 采集周期编号
	WindowSize       int                // 过滤前的窗口长度
	UpdatedAt        time.Time          // 快照生成时间
}
