// Package core 线上数据格式与转换
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// WireLane 线上的车道编码，只允许0或1
type WireLane int

const (
	WireLaneLeft  WireLane = 0
	WireLaneRight WireLane = 1
)

// Lane 将线上车道转换为内部车道
func (w WireLane) Lane() (Lane, error) {
	switch w {
	case WireLaneLeft:
		return LaneLeft, nil
	case WireLaneRight:
		return LaneRight, nil
	default:
		return 0, &ValidationError{Field: "lane", Reason: fmt.Sprintf("必须为0或1，实际为 %d", int(w))}
	}
}

// Wire 将内部车道转换回线上编码
func (l Lane) Wire() WireLane {
	switch l {
	case LaneRight:
		return WireLaneRight
	default:
		return WireLaneLeft
	}
}

// MaxPlausibleSpeed 校验允许的最大速度 (km/h)
const MaxPlausibleSpeed = 500.0

// WireReading API返回的测速记录
type WireReading struct {
	ID         int64    `json:"id"`
	SensorName *string  `json:"sensor_name"`
	Speed      float64  `json:"speed"`
	Lane       WireLane `json:"lane"`
	CreatedAt  string   `json:"created_at"`
}

// wireRecord 解码用的宽松结构，用指针区分缺失字段
type wireRecord struct {
	ID         *int64   `json:"id"`
	SensorName *string  `json:"sensor_name"`
	Speed      *float64 `json:"speed"`
	Lane       *int     `json:"lane"`
	CreatedAt  *string  `json:"created_at"`
}

// ParseWireReading 解码并校验单条记录
func ParseWireReading(data []byte) (Reading, error) {
	var rec wireRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Reading{}, &ValidationError{Reason: "JSON格式错误", Err: err}
	}
	return rec.toReading()
}

// ParseWireReadings 解码并校验记录数组，任一记录失败即整体失败
func ParseWireReadings(data []byte) ([]Reading, error) {
	var recs []wireRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, &ValidationError{Reason: "JSON数组格式错误", Err: err}
	}

	readings := make([]Reading, 0, len(recs))
	for i, rec := range recs {
		reading, err := rec.toReading()
		if err != nil {
			return nil, fmt.Errorf("第 %d 条记录: %w", i, err)
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

// toReading 校验字段并转换为内部结构
func (rec wireRecord) toReading() (Reading, error) {
	if rec.ID == nil {
		return Reading{}, &ValidationError{Field: "id", Reason: "缺失"}
	}
	if *rec.ID <= 0 {
		return Reading{}, &ValidationError{Field: "id", Reason: fmt.Sprintf("必须为正整数，实际为 %d", *rec.ID)}
	}

	if rec.Speed == nil {
		return Reading{}, &ValidationError{Field: "speed", Reason: "缺失"}
	}
	speed := *rec.Speed
	if math.IsNaN(speed) || speed < 0 || speed > MaxPlausibleSpeed {
		return Reading{}, &ValidationError{Field: "speed", Reason: fmt.Sprintf("超出范围 [0, %.0f]: %v", MaxPlausibleSpeed, speed)}
	}

	if rec.Lane == nil {
		return Reading{}, &ValidationError{Field: "lane", Reason: "缺失"}
	}
	lane, err := WireLane(*rec.Lane).Lane()
	if err != nil {
		return Reading{}, err
	}

	if rec.CreatedAt == nil {
		return Reading{}, &ValidationError{Field: "created_at", Reason: "缺失"}
	}
	ts, err := time.Parse(time.RFC3339Nano, *rec.CreatedAt)
	if err != nil {
		return Reading{}, &ValidationError{Field: "created_at", Reason: "不是ISO-8601时间", Err: err}
	}

	var sensor string
	if rec.SensorName != nil {
		sensor = *rec.SensorName
	}

	return Reading{
		ID:        *rec.ID,
		Sensor:    sensor,
		Speed:     speed,
		Lane:      lane,
		Timestamp: ts,
	}, nil
}

// ToWire 将内部记录转换为线上格式
func ToWire(r Reading) WireReading {
	var sensor *string
	if r.Sensor != "" {
		name := r.Sensor
		sensor = &name
	}
	return WireReading{
		ID:         r.ID,
		SensorName: sensor,
		Speed:      r.Speed,
		Lane:       r.Lane.Wire(),
		CreatedAt:  r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// WireNewReading POST /api/speeds 的请求体
type WireNewReading struct {
	SensorName *string  `json:"sensor_name,omitempty"`
	Speed      float64  `json:"speed"`
	Lane       WireLane `json:"lane"`
}

// ToWireNew 将待提交数据转换为请求体
func ToWireNew(n NewReading) WireNewReading {
	var sensor *string
	if n.Sensor != "" {
		name := n.Sensor
		sensor = &name
	}
	return WireNewReading{SensorName: sensor, Speed: n.Speed, Lane: n.Lane.Wire()}
}

// ParseWireNewReading 解码并校验请求体
func ParseWireNewReading(data []byte) (NewReading, error) {
	var rec struct {
		SensorName *string  `json:"sensor_name"`
		Speed      *float64 `json:"speed"`
		Lane       *int     `json:"lane"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return NewReading{}, &ValidationError{Reason: "JSON格式错误", Err: err}
	}

	if rec.Speed == nil || math.IsNaN(*rec.Speed) || *rec.Speed < 0 || *rec.Speed > MaxPlausibleSpeed {
		return NewReading{}, &ValidationError{Field: "speed", Reason: fmt.Sprintf("缺失或超出范围 [0, %.0f]", MaxPlausibleSpeed)}
	}
	if rec.Lane == nil {
		return NewReading{}, &ValidationError{Field: "lane", Reason: "缺失"}
	}
	lane, err := WireLane(*rec.Lane).Lane()
	if err != nil {
		return NewReading{}, err
	}

	var sensor string
	if rec.SensorName != nil {
		sensor = *rec.SensorName
	}
	return NewReading{Sensor: sensor, Speed: *rec.Speed, Lane: lane}, nil
}
