// 本文件用于对外提供面板与查询 API
// 文件职责：实现当前模块的核心业务逻辑与数据流转
// 关键路径：入口参数先校验再执行业务处理 最后返回统一结果
// 边界与容错：异常场景显式返回错误 由上层决定重试或降级

package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"slo-watch/internal/logger"
	"slo-watch/internal/metrics"
	"slo-watch/internal/models"
	"slo-watch/internal/slo"
)

const defaultViolationListLimit = 50

// SystemProber 提供本机资源使用情况
type SystemProber interface {
	Usage() slo.SystemUsage
}

// ArchiveReader 提供归档违规查询
type ArchiveReader interface {
	Recent(limit int) ([]slo.Violation, error)
}

// Deps 汇总 API 依赖的运行期组件
// 可选组件允许为 nil 对应接口自动降级
type Deps struct {
	State   *slo.State
	History *slo.History
	Source  slo.Source
	Probe   SystemProber
	Archive ArchiveReader
}

// Server wraps the HTTP API server.
type Server struct {
	httpServer *http.Server
}

type handler struct {
	cfg  *models.Config
	deps Deps
}

// NewServer builds the HTTP server for console/API consumption.
func NewServer(cfg *models.Config, deps Deps) *Server {
	h := &handler{cfg: cfg, deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dashboard", h.dashboard)
	mux.HandleFunc("/api/violations", h.violations)
	mux.HandleFunc("/api/archive", h.archive)
	mux.HandleFunc("/api/recommendations", h.recommendations)
	mux.HandleFunc("/api/health", h.health)
	mux.HandleFunc("/metrics", h.metrics)

	srv := &http.Server{
		Addr:         cfg.APIBind,
		Handler:      withCORS(cfg, withAPIAuth(cfg, mux)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return &Server{httpServer: srv}
}

// Start boots the API server asynchronously.
func (s *Server) Start() {
	go func() {
		logger.Info("API 服务监听 %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API 服务异常退出: %v", err)
		}
	}()
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if h.deps.State == nil || h.deps.History == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "runtime state not ready"})
		return
	}
	var system *slo.SystemUsage
	if h.deps.Probe != nil {
		usage := h.deps.Probe.Usage()
		system = &usage
	}
	writeJSON(w, http.StatusOK, h.deps.State.Dashboard(h.deps.History, system))
}

func (h *handler) violations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if h.deps.History == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "runtime state not ready"})
		return
	}
	limit := parseLimit(r, defaultViolationListLimit)
	records := h.deps.History.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"total":      h.deps.History.Len(),
		"violations": records,
	})
}

func (h *handler) archive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if h.deps.Archive == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "archive disabled"})
		return
	}
	limit := parseLimit(r, defaultViolationListLimit)
	records, err := h.deps.Archive.Recent(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"violations": records,
	})
}

// recommendations 基于实时快照与系统资源给出优化建议
// 快照不可用时返回 503 由前端提示稍后重试
func (h *handler) recommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if h.deps.Source == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "metric source not ready"})
		return
	}
	snapshot, err := h.deps.Source.Snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	var system *slo.SystemUsage
	if h.deps.Probe != nil {
		usage := h.deps.Probe.Usage()
		system = &usage
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": slo.Recommend(snapshot, system),
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	var stats slo.Stats
	if h.deps.State != nil {
		stats = h.deps.State.Stats()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"sweeps":     stats.Sweeps,
		"violations": stats.Violations,
	})
}

func (h *handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(metrics.MustGlobalPrometheus()))
}

func parseLimit(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// withAPIAuth 校验请求头中的 API Token
// token 为空或保留占位符时视为未启用鉴权
func withAPIAuth(cfg *models.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAPIAuthEnabled(cfg) {
			next.ServeHTTP(w, r)
			return
		}
		token := extractAPIToken(r)
		if token == "" || token != strings.TrimSpace(cfg.APIAuthToken) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAPIAuthEnabled(cfg *models.Config) bool {
	if cfg == nil {
		return false
	}
	token := strings.TrimSpace(cfg.APIAuthToken)
	if token == "" {
		return false
	}
	// 配置模板未替换的 ${...} 占位符按未配置处理
	if strings.HasPrefix(token, "${") && strings.HasSuffix(token, "}") {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("API_AUTH_DISABLED")), "true") {
		return false
	}
	return true
}

func extractAPIToken(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}

// withCORS 处理跨域请求
// 未显式配置来源白名单时 放行回环地址与同主机来源
func withCORS(cfg *models.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !isOriginAllowed(cfg, origin, r.Host) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "origin not allowed"})
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isOriginAllowed(cfg *models.Config, origin, host string) bool {
	if cfg == nil {
		return true
	}
	allowList := splitOrigins(cfg.APICORSOrigins)
	if len(allowList) > 0 {
		for _, allowed := range allowList {
			if strings.EqualFold(allowed, origin) {
				return true
			}
		}
		return false
	}
	// 鉴权关闭且未配置白名单时视为内网部署 放行全部来源
	if !isAPIAuthEnabled(cfg) {
		return true
	}
	originHost := extractHost(origin)
	if originHost == "" {
		return false
	}
	if isLoopbackHost(originHost) {
		return true
	}
	return strings.EqualFold(originHost, extractHost("//"+host))
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func extractHost(origin string) string {
	trimmed := strings.TrimSpace(origin)
	trimmed = strings.TrimPrefix(trimmed, "http://")
	trimmed = strings.TrimPrefix(trimmed, "https://")
	trimmed = strings.TrimPrefix(trimmed, "//")
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if host, _, err := net.SplitHostPort(trimmed); err == nil {
		return host
	}
	return trimmed
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
