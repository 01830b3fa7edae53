// Package backend 开发用的遥测API服务：sqlite存储、JSON接口、SSE推送和模拟数据注入
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// ErrNotFound 没有任何记录
var ErrNotFound = errors.New("没有测速记录")

const schema = `
	CREATE TABLE IF NOT EXISTS speeds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sensor_name TEXT,
		speed DOUBLE NOT NULL,
		lane INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_speeds_created_at ON speeds (created_at);
`

// Store 测速记录存储，created_at 以Unix毫秒保存
type Store struct {
	db *sql.DB
}

// OpenStore 打开或创建数据库，path 可为 ":memory:"
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite 只允许一个写连接，内存库也只能共享一个连接
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping 检查数据库连接
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert 写入一条记录并返回带编号的结果
func (s *Store) Insert(ctx context.Context, n core.NewReading, at time.Time) (core.Reading, error) {
	var sensor sql.NullString
	if n.Sensor != "" {
		sensor = sql.NullString{String: n.Sensor, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO speeds (sensor_name, speed, lane, created_at) VALUES (?, ?, ?, ?)",
		sensor, n.Speed, int(n.Lane.Wire()), at.UnixMilli())
	if err != nil {
		return core.Reading{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Reading{}, err
	}

	return core.Reading{
		ID:        id,
		Sensor:    n.Sensor,
		Speed:     n.Speed,
		Lane:      n.Lane,
		Timestamp: time.UnixMilli(at.UnixMilli()),
	}, nil
}

// Latest 返回最新一条记录
func (s *Store) Latest(ctx context.Context) (core.Reading, error) {
	readings, err := s.query(ctx, "SELECT id, sensor_name, speed, lane, created_at FROM speeds ORDER BY created_at DESC, id DESC LIMIT 1")
	if err != nil {
		return core.Reading{}, err
	}
	if len(readings) == 0 {
		return core.Reading{}, ErrNotFound
	}
	return readings[0], nil
}

// Recent 返回最新的 limit 条记录，按时间倒序
func (s *Store) Recent(ctx context.Context, limit int) ([]core.Reading, error) {
	return s.query(ctx,
		"SELECT id, sensor_name, speed, lane, created_at FROM speeds ORDER BY created_at DESC, id DESC LIMIT ?",
		limit)
}

// Paginated 按时间倒序分页
func (s *Store) Paginated(ctx context.Context, offset, limit int) ([]core.Reading, error) {
	return s.query(ctx,
		"SELECT id, sensor_name, speed, lane, created_at FROM speeds ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
}

// Between 返回 [start, end] 内的记录，按时间正序，limit 不大于0时不限制
func (s *Store) Between(ctx context.Context, start, end time.Time, limit int) ([]core.Reading, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx,
		"SELECT id, sensor_name, speed, lane, created_at FROM speeds WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC, id ASC LIMIT ?",
		start.UnixMilli(), end.UnixMilli(), limit)
}

// Today 返回 now 所在本地自然日的记录
func (s *Store) Today(ctx context.Context, now time.Time, limit int) ([]core.Reading, error) {
	start, next := core.LocalDayBounds(now)
	return s.Between(ctx, start, next.Add(-time.Millisecond), limit)
}

// Count 返回记录总数
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM speeds").Scan(&n)
	return n, err
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]core.Reading, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []core.Reading{}
	for rows.Next() {
		var (
			r       core.Reading
			sensor  sql.NullString
			lane    int
			created int64
		)
		if err := rows.Scan(&r.ID, &sensor, &r.Speed, &lane, &created); err != nil {
			return nil, err
		}
		r.Lane, err = core.WireLane(lane).Lane()
		if err != nil {
			return nil, fmt.Errorf("记录 %d: %w", r.ID, err)
		}
		r.Sensor = sensor.String
		r.Timestamp = time.UnixMilli(created)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}
