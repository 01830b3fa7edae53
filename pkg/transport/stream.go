// Package transport SSE实时流读取
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

const (
	maxFrameBytes   = 1 << 20  // 单行SSE数据的长度上限
	readBufferBytes = 64 << 10 // 读取缓冲区大小
)

// errServerClosed 服务端正常结束响应体
var errServerClosed = errors.New("服务端关闭了连接")

// sseStream 实现 core.Stream
type sseStream struct {
	client *Client
	events chan core.StreamEvent
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// OpenStream 实现 core.StreamOpener 接口，连接在后台建立
func (c *Client) OpenStream(ctx context.Context) core.Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &sseStream{
		client: c,
		events: make(chan core.StreamEvent, c.config.StreamBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.run(ctx)
	return s
}

// Events 实现 core.Stream 接口
func (s *sseStream) Events() <-chan core.StreamEvent {
	return s.events
}

// Close 实现 core.Stream 接口，等待读取协程退出
func (s *sseStream) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// run 建立连接并逐帧解码，结束时关闭事件通道
func (s *sseStream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.streamEndpoint(), nil)
	if err != nil {
		s.fail(ctx, &core.StreamError{Err: err})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	s.client.authorize(req)

	resp, err := s.client.stream.Do(req)
	if err != nil {
		s.client.metrics.observeRequest("stream", "error")
		s.fail(ctx, &core.StreamError{Err: err})
		return
	}
	defer resp.Body.Close()

	s.client.metrics.observeRequest("stream", strconv.Itoa(resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.fail(ctx, &core.StreamError{Status: resp.StatusCode, Err: statusCause(resp.StatusCode, nil)})
		return
	}

	if !s.send(ctx, core.StreamEvent{Kind: core.EventOpen}) {
		return
	}

	err = s.decode(ctx, resp.Body)
	if err == nil {
		err = errServerClosed
	}
	s.fail(ctx, &core.StreamError{Err: err})
}

// decode 按行读取SSE帧，空行结束一帧
// 返回 nil 表示读到了EOF
func (s *sseStream) decode(ctx context.Context, body io.Reader) error {
	reader := bufio.NewReaderSize(body, readBufferBytes)

	var (
		event   string
		data    []string
		dropped bool // 当前帧含有超长行，整帧丢弃
		buf     []byte
	)

	for {
		line, tooLong, err := readLine(reader, buf[:0])
		buf = line
		if err == io.EOF {
			// 不完整的最后一帧直接丢弃
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case tooLong:
			s.client.metrics.frameRejected()
			s.client.logger.Printf("WARN 丢弃超过 %d 字节的实时数据行", maxFrameBytes)
			dropped = true
		case len(line) == 0:
			if !dropped && (len(data) > 0 || event != "") {
				if err := s.dispatch(ctx, event, strings.Join(data, "\n")); err != nil {
					return err
				}
			}
			event, data, dropped = "", data[:0], false
		case line[0] == ':':
			// 注释或心跳
		case !dropped:
			field, value := splitField(string(line))
			switch field {
			case "event":
				event = value
			case "data":
				data = append(data, value)
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// readLine 读取一行并去掉行尾换行符
// 超过 maxFrameBytes 的行会被读完并丢弃，此时 tooLong 为真
func readLine(r *bufio.Reader, buf []byte) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxFrameBytes+2 {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch err {
		case bufio.ErrBufferFull:
			continue
		case nil:
			return bytes.TrimRight(buf, "\r\n"), tooLong, nil
		default:
			return buf, tooLong, err
		}
	}
}

// splitField 拆分 "field: value"，冒号后的一个空格会被忽略
func splitField(line string) (string, string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}

// dispatch 处理一帧完整的数据，返回非空错误表示连接应结束
func (s *sseStream) dispatch(ctx context.Context, event, payload string) error {
	if event == "error" {
		return fmt.Errorf("中继报告错误: %s", payload)
	}
	if event != "" && event != "message" {
		return nil
	}

	reading, err := core.ParseWireReading([]byte(payload))
	if err != nil {
		s.client.metrics.frameRejected()
		s.client.logger.Printf("WARN 丢弃无效的实时数据帧: %v", err)
		return nil
	}

	s.client.metrics.frameDecoded()
	if !s.send(ctx, core.StreamEvent{Kind: core.EventReading, Reading: reading}) {
		return ctx.Err()
	}
	return nil
}

// send 投递事件，连接被取消时返回false
func (s *sseStream) send(ctx context.Context, ev core.StreamEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail 投递终止事件，取消引起的结束保持静默
func (s *sseStream) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	s.send(ctx, core.StreamEvent{Kind: core.EventError, Err: err})
}
