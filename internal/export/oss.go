// 本文件用于违规归档的 OSS 周期导出
// 文件职责：实现当前模块的核心业务逻辑与数据流转
// 关键路径：入口参数先校验再执行业务处理 最后返回统一结果
// 边界与容错：异常场景显式返回错误 由上层决定重试或降级

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	sdk "github.com/aliyun/aliyun-oss-go-sdk/oss"

	"slo-watch/internal/logger"
	"slo-watch/internal/slo"
)

const defaultExportInterval = 1 * time.Hour

// ArchiveReader 提供可导出的归档记录
type ArchiveReader interface {
	Recent(limit int) ([]slo.Violation, error)
}

// Options 描述 OSS 导出配置
type Options struct {
	Bucket     string
	AK         string
	SK         string
	Endpoint   string
	DisableSSL bool
	Interval   time.Duration
	BatchLimit int
}

// Exporter 负责把违规归档周期性导出到 OSS
type Exporter struct {
	bucket   *sdk.Bucket
	archive  ArchiveReader
	interval time.Duration
	limit    int
	hostName string

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewExporter 创建 OSS 导出器
func NewExporter(opts Options, archive ArchiveReader) (*Exporter, error) {
	if archive == nil {
		return nil, fmt.Errorf("归档读取器不能为空")
	}
	endpoint, err := normalizeOSSEndpoint(opts.Endpoint, opts.DisableSSL)
	if err != nil {
		return nil, err
	}
	ossClient, err := sdk.New(endpoint, opts.AK, opts.SK)
	if err != nil {
		return nil, fmt.Errorf("创建OSS客户端失败: %w", err)
	}
	bucket, err := ossClient.Bucket(opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("获取OSS Bucket失败: %w", err)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	limit := opts.BatchLimit
	if limit <= 0 {
		limit = 1000
	}
	return &Exporter{
		bucket:   bucket,
		archive:  archive,
		interval: interval,
		limit:    limit,
		hostName: normalizeHostName(),
	}, nil
}

// Start 启动周期导出循环
func (e *Exporter) Start(parent context.Context) error {
	if e == nil {
		return fmt.Errorf("导出器未初始化")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("导出循环已在运行")
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	go e.run(ctx)
	return nil
}

// Stop 停止导出循环并等待退出
func (e *Exporter) Stop() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	done := e.done
	e.running = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (e *Exporter) run(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.ExportOnce(ctx); err != nil {
				logger.Warn("归档导出失败: %v", err)
			}
		}
	}
}

// ExportOnce 导出最近一批违规归档到 OSS
// 对象按主机与时间戳命名 同一实例的多次导出互不覆盖
func (e *Exporter) ExportOnce(ctx context.Context) error {
	if e == nil || e.bucket == nil {
		return fmt.Errorf("OSS Bucket未初始化")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	records, err := e.archive.Recent(e.limit)
	if err != nil {
		return fmt.Errorf("读取归档失败: %w", err)
	}
	if len(records) == 0 {
		logger.Debug("归档为空 跳过本次导出")
		return nil
	}

	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化归档失败: %w", err)
	}

	objectKey := e.buildObjectKey(time.Now())
	reader := &contextReader{
		ctx:    ctx,
		reader: bytes.NewReader(payload),
	}
	err = e.bucket.PutObject(
		objectKey,
		reader,
		sdk.ContentLength(int64(len(payload))),
		sdk.ContentType("application/json"),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("OSS上传失败: %w", err)
	}
	logger.Info("归档导出成功: %s 共 %d 条", objectKey, len(records))
	return nil
}

// buildObjectKey 用于构建后续流程所需的数据
func (e *Exporter) buildObjectKey(now time.Time) string {
	hostName := strings.TrimSpace(e.hostName)
	if hostName == "" {
		hostName = "unknown-host"
	}
	return fmt.Sprintf("slo-violations/%s/%s.json", hostName, now.UTC().Format("20060102T150405Z"))
}

// normalizeOSSEndpoint 用于统一 OSS Endpoint 格式
func normalizeOSSEndpoint(endpoint string, disableSSL bool) (string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return "", fmt.Errorf("OSS Endpoint不能为空")
	}
	parsed, err := url.Parse(trimmed)
	if err == nil && parsed.Scheme != "" && parsed.Host != "" {
		return trimmed, nil
	}
	parsed, err = url.Parse("//" + trimmed)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("无效的 OSS Endpoint: %s", endpoint)
	}
	scheme := "https"
	if disableSSL {
		scheme = "http"
	}
	return scheme + "://" + parsed.Host + strings.TrimSuffix(parsed.Path, "/"), nil
}

// contextReader 用于让上传过程响应上下文取消
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

// Read 在读取前检查上下文，避免取消后继续上传
func (r *contextReader) Read(p []byte) (int, error) {
	if r == nil {
		return 0, io.EOF
	}
	if r.ctx != nil {
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
	}
	if r.reader == nil {
		return 0, io.EOF
	}
	n, err := r.reader.Read(p)
	if err != nil {
		return n, err
	}
	if r.ctx != nil {
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
	}
	return n, nil
}

// normalizeHostName 用于统一数据格式便于比较与存储
func normalizeHostName() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	host = strings.TrimSpace(host)
	host = strings.ReplaceAll(host, "/", "-")
	host = strings.ReplaceAll(host, "\\", "-")
	if host == "" {
		return "unknown-host"
	}
	return host
}
