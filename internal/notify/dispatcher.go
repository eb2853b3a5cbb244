package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// 相同文本的告警在冷却窗口内只发送一次
	defaultCooldown = 30 * time.Minute
	// 任意两条告警之间的最小投递间隔
	defaultThrottle = 3 * time.Second

	deliverTimeout = 15 * time.Second
)

// Transport 告警投递通道
type Transport interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Dispatcher 告警分发器。
// 按消息文本去重（冷却窗口），并对全部通道施加全局限速；
// 投递在独立协程中完成，调用方永远不会被网络阻塞。
type Dispatcher struct {
	logger     *zap.Logger
	serverName string
	transports []Transport

	mu       sync.Mutex
	history  map[string]time.Time // 消息文本 -> 最近接受时间
	lastSlot time.Time            // 最近分配的投递时间槽

	cooldown time.Duration
	throttle time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

// NewDispatcher 创建分发器，transports 为空时降级为仅记录日志
func NewDispatcher(logger *zap.Logger, serverName string, transports ...Transport) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		serverName: serverName,
		transports: transports,
		history:    make(map[string]time.Time),
		cooldown:   defaultCooldown,
		throttle:   defaultThrottle,
		now:        time.Now,
	}
}

// SendAlert 发送告警，尽力而为，不返回错误。
// 同一文本在冷却窗口内重复调用会被静默丢弃；
// 通过的告警按时间槽排队，保证投递间隔不小于限速窗口。
func (d *Dispatcher) SendAlert(message string) {
	now := d.now()

	d.mu.Lock()
	if last, ok := d.history[message]; ok && now.Sub(last) < d.cooldown {
		d.mu.Unlock()
		d.logger.Debug("重复告警处于冷却期，跳过", zap.String("message", message))
		return
	}
	d.history[message] = now

	// 预定下一个空闲投递时间槽
	slot := d.lastSlot.Add(d.throttle)
	if slot.Before(now) {
		slot = now
	}
	d.lastSlot = slot
	delay := slot.Sub(now)
	d.mu.Unlock()

	if len(d.transports) == 0 {
		d.logger.Warn("未配置通知通道，跳过告警发送", zap.String("message", message))
		return
	}

	text := d.envelope(message)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if delay > 0 {
			time.Sleep(delay)
		}
		d.deliver(text)
	}()
}

func (d *Dispatcher) deliver(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	for _, transport := range d.transports {
		if err := transport.Send(ctx, text); err != nil {
			d.logger.Error("发送通知失败",
				zap.String("transport", transport.Name()),
				zap.Error(err))
		}
	}
}

// envelope 拼装固定信封：告警标记、服务器标识、正文
func (d *Dispatcher) envelope(message string) string {
	return fmt.Sprintf("🚨 *Mini-Ops Alert* [%s] 🚨\n\n%s", d.serverName, message)
}

// Sweep 清理超出冷却窗口的去重记录，限制内存增长
func (d *Dispatcher) Sweep() int {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for message, last := range d.history {
		if now.Sub(last) >= d.cooldown {
			delete(d.history, message)
			removed++
		}
	}
	return removed
}

// Wait 等待在途投递完成，仅用于优雅退出
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
