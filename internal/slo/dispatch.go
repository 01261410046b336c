// 本文件用于违规通知的通道路由与发送
package slo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slo-watch/internal/logger"
)

const defaultChannelTimeout = 10 * time.Second

// 通道名固定 路由配置按名引用
const (
	ChannelLog   = "log"
	ChannelEmail = "email"
	ChannelChat  = "chat"
)

// Channel 表示一个告警通知通道
type Channel interface {
	Name() string
	Send(ctx context.Context, violation Violation) error
}

// Routing 表示级别到通道名的路由表
type Routing map[Severity][]string

// DefaultRouting 返回默认路由策略
// critical 全通道触达 warning 走聊天 info 仅记录日志
func DefaultRouting() Routing {
	return Routing{
		SeverityCritical: {ChannelLog, ChannelEmail, ChannelChat},
		SeverityWarning:  {ChannelLog, ChannelChat},
		SeverityInfo:     {ChannelLog},
	}
}

// Dispatcher 负责把违规分发到各通道
// 单通道失败只计入结果 不中断其余通道也不上抛到巡检循环
type Dispatcher struct {
	channels map[string]Channel
	routing  Routing
	timeout  time.Duration
}

// NewDispatcher 创建分发器
// 路由表引用了未注册的通道时直接失败 属于启动期配置错误
func NewDispatcher(channels []Channel, routing Routing, timeout time.Duration) (*Dispatcher, error) {
	if routing == nil {
		routing = DefaultRouting()
	}
	if timeout <= 0 {
		timeout = defaultChannelTimeout
	}
	registered := make(map[string]Channel, len(channels))
	for _, channel := range channels {
		if channel == nil {
			continue
		}
		registered[channel.Name()] = channel
	}
	for severity, names := range routing {
		for _, name := range names {
			if _, ok := registered[name]; !ok {
				return nil, fmt.Errorf("路由 %s 引用了未注册通道: %s", severity, name)
			}
		}
	}
	return &Dispatcher{
		channels: registered,
		routing:  routing,
		timeout:  timeout,
	}, nil
}

// Dispatch 按级别路由发送一次违规
func (d *Dispatcher) Dispatch(ctx context.Context, violation Violation) DispatchResult {
	result := DispatchResult{Violation: violation}
	if d == nil {
		return result
	}
	for _, name := range d.routing[violation.Severity] {
		channel := d.channels[name]
		if channel == nil {
			continue
		}
		result.Channels = append(result.Channels, d.sendOne(ctx, channel, violation))
	}
	return result
}

// sendOne 用于隔离执行单通道发送
// 超时按通道失败处理 挂死的 webhook 不能拖垮整轮巡检
func (d *Dispatcher) sendOne(ctx context.Context, channel Channel, violation Violation) ChannelResult {
	if ctx == nil {
		ctx = context.Background()
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := channel.Send(sendCtx, violation); err != nil {
		logger.Error("通道 %s 发送告警失败: %s/%s: %v", channel.Name(), violation.Category, violation.Metric, err)
		return ChannelResult{Channel: channel.Name(), OK: false, Error: err.Error()}
	}
	return ChannelResult{Channel: channel.Name(), OK: true}
}

// severityIcon 用于返回级别图标
func severityIcon(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "🚨"
	case SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// BuildTitle 构建告警标题行
func BuildTitle(violation Violation) string {
	return fmt.Sprintf("%s SLO Violation: %s/%s", severityIcon(violation.Severity), violation.Category, violation.Metric)
}

// BuildMarkdown 构建聊天通道的字段表
func BuildMarkdown(violation Violation) string {
	return fmt.Sprintf("### %s\n\n- category: %s\n- metric: `%s`\n- value: %s\n- target: %s\n- severity: %s\n- percentage: %.1f%%\n- time: %s",
		BuildTitle(violation),
		violation.Category,
		violation.Metric,
		formatNumber(violation.Value),
		formatNumber(violation.Target),
		violation.Severity,
		violation.Percentage,
		formatTime(violation.Timestamp),
	)
}

// BuildSubject 构建邮件主题
func BuildSubject(violation Violation) string {
	return fmt.Sprintf("SLO告警 [%s] %s/%s", strings.ToUpper(string(violation.Severity)), violation.Category, violation.Metric)
}

// BuildEmailBody 构建邮件正文
func BuildEmailBody(violation Violation) string {
	return fmt.Sprintf("分类: %s\n指标: %s\n类型: %s\n观测值: %s\n目标值: %s\n级别: %s\n目标占比: %.1f%%\n时间: %s\n",
		violation.Category,
		violation.Metric,
		violation.Type,
		formatNumber(violation.Value),
		formatNumber(violation.Target),
		violation.Severity,
		violation.Percentage,
		formatTime(violation.Timestamp),
	)
}

// formatNumber 用于格式化输出内容
func formatNumber(value float64) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d", int64(value))
	}
	return fmt.Sprintf("%.2f", value)
}

// LogChannel 把违规以结构化日志落盘
type LogChannel struct{}

// Name 返回通道名
func (c *LogChannel) Name() string { return ChannelLog }

// Send 记录一条结构化告警日志
func (c *LogChannel) Send(_ context.Context, violation Violation) error {
	line := fmt.Sprintf("SLO违规 category=%s metric=%s type=%s value=%s target=%s severity=%s percentage=%.1f time=%s",
		violation.Category,
		violation.Metric,
		violation.Type,
		formatNumber(violation.Value),
		formatNumber(violation.Target),
		violation.Severity,
		violation.Percentage,
		formatTime(violation.Timestamp),
	)
	if violation.Severity == SeverityCritical {
		logger.Error("%s", line)
	} else {
		logger.Warn("%s", line)
	}
	return nil
}

// ChatSender 表示聊天机器人发送能力 钉钉与企业微信均可实现
type ChatSender interface {
	SendMarkdown(ctx context.Context, title, text string) error
}

// ChatChannel 通过聊天 webhook 发送告警
type ChatChannel struct {
	Sender ChatSender
}

// Name 返回通道名
func (c *ChatChannel) Name() string { return ChannelChat }

// Send 发送聊天告警
func (c *ChatChannel) Send(ctx context.Context, violation Violation) error {
	if c == nil || c.Sender == nil {
		return fmt.Errorf("聊天通道未配置")
	}
	return c.Sender.SendMarkdown(ctx, BuildTitle(violation), BuildMarkdown(violation))
}

// MailSender 表示邮件发送能力
type MailSender interface {
	SendMessage(ctx context.Context, subject, body string) error
}

// EmailChannel 通过邮件发送告警
type EmailChannel struct {
	Sender MailSender
}

// Name 返回通道名
func (c *EmailChannel) Name() string { return ChannelEmail }

// Send 发送邮件告警
func (c *EmailChannel) Send(ctx context.Context, violation Violation) error {
	if c == nil || c.Sender == nil {
		return fmt.Errorf("邮件通道未配置")
	}
	return c.Sender.SendMessage(ctx, BuildSubject(violation), BuildEmailBody(violation))
}

// ParseRouting 把配置中的路由表转换为内部结构
func ParseRouting(raw map[string][]string) (Routing, error) {
	if len(raw) == 0 {
		return DefaultRouting(), nil
	}
	routing := DefaultRouting()
	for rawSeverity, names := range raw {
		severity := Severity(strings.ToLower(strings.TrimSpace(rawSeverity)))
		if severity.Rank() == 0 {
			return nil, fmt.Errorf("路由配置包含无效级别: %s", rawSeverity)
		}
		cleaned := make([]string, 0, len(names))
		for _, name := range names {
			trimmed := strings.ToLower(strings.TrimSpace(name))
			if trimmed == "" {
				continue
			}
			cleaned = append(cleaned, trimmed)
		}
		routing[severity] = cleaned
	}
	return routing, nil
}
