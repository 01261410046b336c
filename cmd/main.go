// 本文件用于程序启动入口
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"slo-watch/internal/api"
	"slo-watch/internal/config"
	"slo-watch/internal/dingtalk"
	"slo-watch/internal/email"
	"slo-watch/internal/export"
	"slo-watch/internal/logger"
	"slo-watch/internal/metricsource"
	"slo-watch/internal/models"
	"slo-watch/internal/slo"
	"slo-watch/internal/store"
	"slo-watch/internal/watcher"
	"slo-watch/internal/wechat"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("程序退出: %v", err)
	}
}

func run() error {
	configPath := parseFlags()
	log.Printf("程序启动，配置文件: %s", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()

	logConfig(cfg)

	sweepInterval, err := slo.ParseDuration(cfg.SweepInterval, 60*time.Second)
	if err != nil {
		return err
	}
	channelTimeout, err := slo.ParseDuration(cfg.ChannelTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	metricsTimeout, err := slo.ParseDuration(cfg.MetricsTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	policy, err := buildCooldownPolicy(cfg)
	if err != nil {
		return err
	}

	// 目标表在启动期加载并校验 无效目标直接拒绝启动
	targetSet, err := slo.LoadTargets(cfg.TargetsFile)
	if err != nil {
		return err
	}
	registry, err := slo.NewRegistry(targetSet)
	if err != nil {
		return err
	}
	evaluator := slo.NewEvaluator(registry)

	source, err := metricsource.NewHTTPSource(cfg.MetricsURL, metricsTimeout)
	if err != nil {
		return err
	}

	kvStore := slo.NewMemoryStore(sweepInterval)
	defer kvStore.Close()
	cooldown := slo.NewCooldown(kvStore, policy)
	history := slo.NewHistory(cfg.HistoryCapacity)
	state := slo.NewState()

	channels := buildChannels(cfg)
	routing, err := slo.ParseRouting(cfg.Routing)
	if err != nil {
		return err
	}
	routing = pruneRouting(routing, channels)
	dispatcher, err := slo.NewDispatcher(channels, routing, channelTimeout)
	if err != nil {
		return err
	}

	// 归档初始化失败降级为仅内存模式 不阻断告警主链路
	var archive *store.Archive
	if cfg.ArchiveEnabled {
		archive, err = store.NewArchive(cfg.ArchiveDataDir, cfg.ArchiveMaxRows)
		if err != nil {
			logger.Warn("违规归档初始化失败 降级为仅内存模式: %v", err)
			archive = nil
		} else {
			defer archive.Close()
		}
	}

	sweeperOpts := slo.SweeperOptions{
		Evaluator:  evaluator,
		Source:     source,
		Cooldown:   cooldown,
		History:    history,
		Dispatcher: dispatcher,
		State:      state,
		Interval:   sweepInterval,
	}
	if archive != nil {
		sweeperOpts.Archive = archive
	}
	sweeper, err := slo.NewSweeper(sweeperOpts)
	if err != nil {
		return err
	}
	if err := sweeper.ReloadTargets(targetSet, cfg.TargetsFile); err != nil {
		return err
	}

	targetsWatcher, err := watcher.NewTargetsWatcher(cfg.TargetsFile, sweeper)
	if err != nil {
		logger.Error("创建目标表监听器失败: %v", err)
		return err
	}
	if err := targetsWatcher.Start(); err != nil {
		return err
	}

	var exporter *export.Exporter
	if cfg.ExportEnabled && archive != nil {
		exportInterval, err := slo.ParseDuration(cfg.ExportInterval, time.Hour)
		if err != nil {
			return err
		}
		exporter, err = export.NewExporter(export.Options{
			Bucket:     cfg.Bucket,
			AK:         cfg.AK,
			SK:         cfg.SK,
			Endpoint:   cfg.Endpoint,
			DisableSSL: cfg.DisableSSL,
			Interval:   exportInterval,
		}, archive)
		if err != nil {
			logger.Warn("OSS导出初始化失败 归档仅保留在本地: %v", err)
			exporter = nil
		} else if err := exporter.Start(context.Background()); err != nil {
			logger.Warn("OSS导出启动失败: %v", err)
			exporter = nil
		}
	}

	apiDeps := api.Deps{
		State:   state,
		History: history,
		Source:  source,
	}
	if cfg.SystemProbeEnabled {
		apiDeps.Probe = metricsource.NewSystemProbe(0)
	}
	if archive != nil {
		apiDeps.Archive = archive
	}
	apiServer := api.NewServer(cfg, apiDeps)
	apiServer.Start()

	sweeper.Start()

	waitForShutdown(sweeper, targetsWatcher, exporter, apiServer)
	return nil
}

func parseFlags() string {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()
	return configPath
}

func logConfig(cfg *models.Config) {
	logger.Info("配置加载成功")
	logger.Info("SLO 目标表: %s", cfg.TargetsFile)
	logger.Info("指标快照地址: %s", cfg.MetricsURL)
	logger.Info("巡检周期: %s", cfg.SweepInterval)
	logger.Info("历史容量: %d", cfg.HistoryCapacity)
	logger.Info("聊天通道类型: %s", cfg.ChatProvider)
	if cfg.EmailHost != "" {
		logger.Info("邮件通道: %s:%d", cfg.EmailHost, cfg.EmailPort)
	}
	logger.Info("日志级别: %s", cfg.LogLevel)
	if cfg.LogFile != "" {
		logger.Info("日志文件: %s", cfg.LogFile)
	}
	logger.Info("违规归档: %v", cfg.ArchiveEnabled)
	logger.Info("OSS导出: %v", cfg.ExportEnabled)
}

// buildCooldownPolicy 把配置中的冷却窗口转换为内部策略
func buildCooldownPolicy(cfg *models.Config) (slo.CooldownPolicy, error) {
	info, err := slo.ParseDuration(cfg.CooldownInfo, time.Hour)
	if err != nil {
		return nil, err
	}
	warning, err := slo.ParseDuration(cfg.CooldownWarning, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	critical, err := slo.ParseDuration(cfg.CooldownCritical, 0)
	if err != nil {
		return nil, err
	}
	return slo.CooldownPolicy{
		slo.SeverityInfo:     info,
		slo.SeverityWarning:  warning,
		slo.SeverityCritical: critical,
	}, nil
}

// buildChannels 按配置装配可用的告警通道
// 日志通道始终可用 聊天与邮件按配置裁剪
func buildChannels(cfg *models.Config) []slo.Channel {
	channels := []slo.Channel{&slo.LogChannel{}}

	switch strings.ToLower(strings.TrimSpace(cfg.ChatProvider)) {
	case "wecom":
		if strings.TrimSpace(cfg.WeComRobotKey) != "" {
			channels = append(channels, &slo.ChatChannel{Sender: wechat.NewRobot(cfg.WeComRobotKey)})
		}
	default:
		if strings.TrimSpace(cfg.DingTalkWebhook) != "" {
			channels = append(channels, &slo.ChatChannel{Sender: dingtalk.NewRobot(cfg.DingTalkWebhook, cfg.DingTalkSecret)})
		}
	}

	if strings.TrimSpace(cfg.EmailHost) != "" {
		sender := email.NewSender(email.Options{
			Host:     cfg.EmailHost,
			Port:     cfg.EmailPort,
			User:     cfg.EmailUser,
			Password: cfg.EmailPass,
			From:     cfg.EmailFrom,
			To:       strings.Split(cfg.EmailTo, ","),
			UseTLS:   cfg.EmailUseTLS,
		})
		channels = append(channels, &slo.EmailChannel{Sender: &tolerantMailSender{inner: sender}})
	}
	return channels
}

// tolerantMailSender 包装 SMTP 发送器
// 邮件已投递后的 QUIT 失败不算通道失败 只记录警告
type tolerantMailSender struct {
	inner *email.Sender
}

func (s *tolerantMailSender) SendMessage(ctx context.Context, subject, body string) error {
	err := s.inner.SendMessage(ctx, subject, body)
	if err != nil && email.IsQuitError(err) {
		logger.Warn("邮件已发送 QUIT 阶段失败: %v", err)
		return nil
	}
	return err
}

// pruneRouting 去掉路由中未装配的通道
// 未配置聊天或邮件时对应级别自动降级到剩余通道
func pruneRouting(routing slo.Routing, channels []slo.Channel) slo.Routing {
	available := make(map[string]bool, len(channels))
	for _, channel := range channels {
		available[channel.Name()] = true
	}
	pruned := make(slo.Routing, len(routing))
	for severity, names := range routing {
		kept := make([]string, 0, len(names))
		for _, name := range names {
			if available[name] {
				kept = append(kept, name)
				continue
			}
			logger.Warn("通道 %s 未配置 级别 %s 的该路由被忽略", name, severity)
		}
		pruned[severity] = kept
	}
	return pruned
}

func waitForShutdown(sweeper *slo.Sweeper, targetsWatcher *watcher.TargetsWatcher, exporter *export.Exporter, apiServer *api.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	<-signalChan
	logger.Info("收到退出信号，正在关闭服务...")

	if targetsWatcher != nil {
		if err := targetsWatcher.Close(); err != nil {
			logger.Error("关闭目标表监听器失败: %v", err)
		}
	}
	sweeper.Stop()
	if exporter != nil {
		exporter.Stop()
	}
	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Warn("关闭 API 服务失败: %v", err)
		}
	}

	logger.Info("程序已退出")
}
