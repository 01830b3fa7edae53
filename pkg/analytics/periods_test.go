package analytics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

func at(hour, minute int, sensor string, speed float64) core.Reading {
	return core.Reading{Sensor: sensor, Speed: speed, Timestamp: time.Date(2025, 12, 5, hour, minute, 0, 0, time.Local)}
}

func TestActivityHeatmap(t *testing.T) {
	readings := []core.Reading{
		at(14, 5, "Turn 1", 100),
		at(9, 0, "Turn 1", 100),
		at(9, 59, "Turn 1", 100),
		at(14, 30, "", 100),
		at(9, 10, "Pit Entry", 100),
	}

	want := Heatmap{
		Sensors: []string{"Pit Entry", "Turn 1", UnknownSensor},
		Hours:   []int{9, 14},
		Counts: [][]int{
			{1, 0},
			{2, 1},
			{0, 1},
		},
		Max: 2,
	}
	if diff := cmp.Diff(want, ActivityHeatmap(readings)); diff != "" {
		t.Errorf("热力图不符 (-want +got):\n%s", diff)
	}

	empty := ActivityHeatmap(nil)
	assert.Empty(t, empty.Sensors)
	assert.Empty(t, empty.Hours)
	assert.Equal(t, 0, empty.Max)
}

func TestPeriodOf(t *testing.T) {
	tests := map[int]TimePeriod{
		0: PeriodNight, 5: PeriodNight, 6: PeriodMorning, 11: PeriodMorning,
		12: PeriodAfternoon, 17: PeriodAfternoon, 18: PeriodEvening, 21: PeriodEvening,
		22: PeriodNight, 23: PeriodNight,
	}
	for hour, want := range tests {
		assert.Equal(t, want, PeriodOf(hour), "hour %d", hour)
	}
}

func TestTimePeriods(t *testing.T) {
	readings := []core.Reading{
		at(7, 0, "A", 100),
		at(11, 59, "A", 201),
		at(12, 0, "A", 150),
		at(23, 30, "A", 90),
		at(2, 0, "A", 110),
	}

	got := TimePeriods(readings)
	want := []PeriodStats{
		{Period: PeriodMorning, Count: 2, Avg: 150.5, Max: 201},
		{Period: PeriodAfternoon, Count: 1, Avg: 150, Max: 150},
		{Period: PeriodEvening},
		{Period: PeriodNight, Count: 2, Avg: 100, Max: 110},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("时段统计不符 (-want +got):\n%s", diff)
	}

	assert.Len(t, TimePeriods(nil), 4, "没有数据时仍返回四个时段")
	assert.Equal(t, "夜间", PeriodNight.String())
}
