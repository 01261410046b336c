// 本文件用于从指标采集端拉取 SLO 评估所需的快照
// 采集端以 JSON 暴露各分类下的指标当前值 未知分类直接丢弃

package metricsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"slo-watch/internal/logger"
	"slo-watch/internal/metrics"
	"slo-watch/internal/slo"
)

const defaultFetchTimeout = 10 * time.Second

// HTTPSource 通过 HTTP 拉取指标快照
type HTTPSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSource 创建 HTTP 快照源
func NewHTTPSource(endpoint string, timeout time.Duration) (*HTTPSource, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("指标采集地址不能为空")
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Snapshot 拉取一次指标快照
// 任何网络或解码失败都返回错误 由调用方决定跳过本轮评估
func (s *HTTPSource) Snapshot(ctx context.Context) (slo.Snapshot, error) {
	if s == nil {
		return nil, fmt.Errorf("指标源未初始化")
	}

	started := time.Now()
	req, err := http.NewRequest(http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("创建指标请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ctx != nil {
		req = req.WithContext(ctx)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("拉取指标快照失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("指标采集端状态码异常: %d", resp.StatusCode)
	}

	var raw map[string]map[string]slo.MetricValue
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("解析指标快照失败: %w", err)
	}

	metrics.Global().ObserveSnapshotFetch(time.Since(started).Seconds())
	return buildSnapshot(raw), nil
}

// buildSnapshot 将原始 JSON 映射到内部快照结构
// 未知分类名不视为错误 仅记录日志后跳过
func buildSnapshot(raw map[string]map[string]slo.MetricValue) slo.Snapshot {
	snapshot := make(slo.Snapshot, len(raw))
	for name, values := range raw {
		category, ok := slo.ParseCategory(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			logger.Debug("忽略未知指标分类: %s", name)
			continue
		}
		if len(values) == 0 {
			continue
		}
		group := make(map[string]slo.MetricValue, len(values))
		for metric, value := range values {
			metric = strings.TrimSpace(metric)
			if metric == "" {
				continue
			}
			group[metric] = value
		}
		if len(group) > 0 {
			snapshot[category] = group
		}
	}
	return snapshot
}
