// Package settings 看板偏好设置，以YAML文件持久化
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Kevin-Rudy/gospeed/pkg/analytics"
	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// MaxDataPointsLimit 窗口长度上限，看板可选 50 到 200 条，文件中可以写得更大
const MaxDataPointsLimit = 10000

// Panels 面板开关
type Panels struct {
	ShowLaneDistribution     bool `yaml:"showLaneDistribution"`
	ShowSensorStats          bool `yaml:"showSensorStats"`
	ShowSpeedChart           bool `yaml:"showSpeedChart"`
	ShowHourlyTrend          bool `yaml:"showHourlyTrend"`
	ShowSpeedRecords         bool `yaml:"showSpeedRecords"`
	ShowSpeedDistribution    bool `yaml:"showSpeedDistribution"`
	ShowAverageSpeedBySensor bool `yaml:"showAverageSpeedBySensor"`
	ShowActivityHeatmap      bool `yaml:"showActivityHeatmap"`
	ShowTopSensors           bool `yaml:"showTopSensors"`
	ShowTimePeriodAnalysis   bool `yaml:"showTimePeriodAnalysis"`
}

// Settings 看板设置
type Settings struct {
	// 数据过滤
	SelectedSensors []string    `yaml:"selectedSensors"`
	SelectedLanes   []core.Lane `yaml:"selectedLanes"`

	UpdateInterval int `yaml:"updateInterval"` // 毫秒
	MaxDataPoints  int `yaml:"maxDataPoints"`

	DateRangeMode   core.DateRangeMode `yaml:"dateRangeMode"`
	CustomStartDate *time.Time         `yaml:"customStartDate,omitempty"`
	CustomEndDate   *time.Time         `yaml:"customEndDate,omitempty"`

	// 告警阈值
	SpeedThresholdMin float64 `yaml:"speedThresholdMin"`
	SpeedThresholdMax float64 `yaml:"speedThresholdMax"`
	EnableAlerts      bool    `yaml:"enableAlerts"`

	Panels `yaml:",inline"`
}

// Default 返回默认设置
func Default() *Settings {
	return &Settings{
		SelectedSensors:   []string{},
		SelectedLanes:     []core.Lane{core.LaneLeft, core.LaneRight},
		UpdateInterval:    3000,
		MaxDataPoints:     120,
		DateRangeMode:     core.RangeRealtime,
		SpeedThresholdMin: 80,
		SpeedThresholdMax: 350,
		EnableAlerts:      false,
		Panels: Panels{
			ShowLaneDistribution:     true,
			ShowSensorStats:          true,
			ShowSpeedChart:           true,
			ShowHourlyTrend:          true,
			ShowSpeedRecords:         true,
			ShowSpeedDistribution:    true,
			ShowAverageSpeedBySensor: true,
			ShowActivityHeatmap:      true,
			ShowTopSensors:           true,
			ShowTimePeriodAnalysis:   true,
		},
	}
}

// Load 读取设置文件，文件中的值覆盖默认值；文件不存在时返回默认设置
func Load(path string) (*Settings, error) {
	s := Default()

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取设置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("解析设置文件 %s 失败: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("设置文件 %s 无效: %w", path, err)
	}
	return s, nil
}

// Save 写入设置文件，先写临时文件再重命名
func (s *Settings) Save(path string) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("序列化设置失败: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建设置目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("写入设置失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入设置失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("保存设置文件失败: %w", err)
	}
	return nil
}

// Validate 验证设置
func (s *Settings) Validate() error {
	if s.UpdateInterval <= 0 {
		return errors.New("updateInterval 必须大于0")
	}
	if s.MaxDataPoints <= 0 || s.MaxDataPoints > MaxDataPointsLimit {
		return fmt.Errorf("maxDataPoints 必须在 1 到 %d 之间", MaxDataPointsLimit)
	}
	for _, lane := range s.SelectedLanes {
		if lane != core.LaneLeft && lane != core.LaneRight {
			return fmt.Errorf("无效的车道: %d", int(lane))
		}
	}
	switch s.DateRangeMode {
	case core.RangeRealtime, core.RangeToday, core.RangeCustom:
	default:
		return fmt.Errorf("无效的日期范围模式: %d", int(s.DateRangeMode))
	}
	if s.CustomStartDate != nil && s.CustomEndDate != nil && s.CustomStartDate.After(*s.CustomEndDate) {
		return errors.New("customStartDate 晚于 customEndDate")
	}
	if s.SpeedThresholdMin < 0 || s.SpeedThresholdMin > s.SpeedThresholdMax {
		return fmt.Errorf("速度阈值无效: [%.1f, %.1f]", s.SpeedThresholdMin, s.SpeedThresholdMax)
	}
	return nil
}

// Interval 返回更新间隔
func (s *Settings) Interval() time.Duration {
	return time.Duration(s.UpdateInterval) * time.Millisecond
}

// HasCustomBounds 判断自定义范围是否完整
func (s *Settings) HasCustomBounds() bool {
	return s.CustomStartDate != nil && s.CustomEndDate != nil
}

// Params 返回给定数据模式下的采集参数，时间值会被复制
func (s *Settings) Params(mode core.Mode) core.Params {
	return core.Params{
		Mode:          mode,
		DateRange:     s.DateRangeMode,
		CustomStart:   copyTime(s.CustomStartDate),
		CustomEnd:     copyTime(s.CustomEndDate),
		PollInterval:  s.Interval(),
		MaxDataPoints: s.MaxDataPoints,
	}
}

// Criteria 返回看板过滤条件
func (s *Settings) Criteria() analytics.Criteria {
	return analytics.Criteria{
		Sensors:      append([]string(nil), s.SelectedSensors...),
		Lanes:        append([]core.Lane(nil), s.SelectedLanes...),
		EnableAlerts: s.EnableAlerts,
		ThresholdMin: s.SpeedThresholdMin,
		ThresholdMax: s.SpeedThresholdMax,
	}
}

// CycleLanes 依次切换车道过滤：全部 → 左 → 右 → 全部
func (s *Settings) CycleLanes() {
	switch {
	case len(s.SelectedLanes) == 1 && s.SelectedLanes[0] == core.LaneLeft:
		s.SelectedLanes = []core.Lane{core.LaneRight}
	case len(s.SelectedLanes) == 1 && s.SelectedLanes[0] == core.LaneRight:
		s.SelectedLanes = []core.Lane{core.LaneLeft, core.LaneRight}
	default:
		s.SelectedLanes = []core.Lane{core.LaneLeft}
	}
}

// LaneLabel 返回当前车道过滤的文本
func (s *Settings) LaneLabel() string {
	switch len(s.SelectedLanes) {
	case 0:
		return "none"
	case 1:
		return s.SelectedLanes[0].String()
	default:
		return "all"
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
