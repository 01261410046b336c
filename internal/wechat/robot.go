// 本文件用于企业微信机器人 Markdown 告警推送

package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"slo-watch/internal/logger"
)

const (
	webhookURLFormat = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=%s"
)

// Robot 企业微信机器人
type Robot struct {
	robotKey string
}

type message struct {
	MsgType  string   `json:"msgtype"`
	Markdown markdown `json:"markdown"`
}

type markdown struct {
	Content string `json:"content"`
}

// NewRobot 创建新的企业微信机器人。
func NewRobot(robotKey string) *Robot {
	return &Robot{
		robotKey: robotKey,
	}
}

// SendMarkdown 发送 Markdown 消息到企业微信机器人。
// 企业微信的 markdown 消息没有独立标题字段，标题作为首行加粗内容拼进正文。
func (r *Robot) SendMarkdown(ctx context.Context, title, text string) error {
	if r.robotKey == "" {
		return fmt.Errorf("企业微信机器人 key 不能为空")
	}

	msg := message{
		MsgType: "markdown",
		Markdown: markdown{
			Content: fmt.Sprintf("**%s**\n%s", title, text),
		},
	}

	jsonReq, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	if err := sendRequest(ctx, buildWebhookURL(r.robotKey), jsonReq); err != nil {
		return err
	}

	logger.Info("企业微信机器人消息发送成功")
	return nil
}

func buildWebhookURL(robotKey string) string {
	return fmt.Sprintf(webhookURLFormat, robotKey)
}

func sendRequest(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ctx != nil {
		req = req.WithContext(ctx)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("企业微信机器人消息发送失败，状态码: %d", resp.StatusCode)
	}
	return nil
}
