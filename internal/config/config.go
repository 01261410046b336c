package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"slo-watch/internal/models"
)

// LoadConfig 加载配置文件
func LoadConfig(configFile string) (*models.Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	// 设置默认值
	if config.SweepInterval == "" {
		config.SweepInterval = "60s"
	}
	if config.HistoryCapacity <= 0 {
		config.HistoryCapacity = 100
	}
	if config.ChannelTimeout == "" {
		config.ChannelTimeout = "10s"
	}
	if config.CooldownInfo == "" {
		config.CooldownInfo = "1h"
	}
	if config.CooldownWarning == "" {
		config.CooldownWarning = "15m"
	}
	if config.CooldownCritical == "" {
		config.CooldownCritical = "0s"
	}
	if config.MetricsTimeout == "" {
		config.MetricsTimeout = "10s"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.ChatProvider == "" {
		config.ChatProvider = "dingtalk"
	}
	if config.ArchiveMaxRows <= 0 {
		config.ArchiveMaxRows = 10000
	}
	if config.ExportInterval == "" {
		config.ExportInterval = "1h"
	}

	return &config, nil
}

// ValidateConfig 验证配置
// 配置错误在启动期直接失败 避免进程带病运行后静默漏报
func ValidateConfig(config *models.Config) error {
	if config.TargetsFile == "" {
		return fmt.Errorf("SLO 目标表文件不能为空")
	}
	if config.MetricsURL == "" {
		return fmt.Errorf("指标快照地址不能为空")
	}
	switch strings.ToLower(strings.TrimSpace(config.ChatProvider)) {
	case "dingtalk":
		// webhook 为空时表示不启用聊天通道 由路由层自行降级
	case "wecom":
	default:
		return fmt.Errorf("无效的聊天通道类型: %s", config.ChatProvider)
	}
	if config.EmailHost != "" {
		if config.EmailPort <= 0 {
			return fmt.Errorf("邮件端口无效")
		}
		if config.EmailFrom == "" {
			return fmt.Errorf("邮件发件人不能为空")
		}
		if strings.TrimSpace(config.EmailTo) == "" {
			return fmt.Errorf("邮件收件人不能为空")
		}
	}
	for severity, channels := range config.Routing {
		switch severity {
		case "info", "warning", "critical":
		default:
			return fmt.Errorf("路由配置包含无效级别: %s", severity)
		}
		for _, channel := range channels {
			switch channel {
			case "log", "email", "chat":
			default:
				return fmt.Errorf("路由配置包含无效通道: %s", channel)
			}
		}
	}
	if config.ExportEnabled {
		if config.Bucket == "" {
			return fmt.Errorf("OSS Bucket不能为空")
		}
		if config.AK == "" || config.SK == "" {
			return fmt.Errorf("OSS认证信息不能为空")
		}
		if config.Endpoint == "" {
			return fmt.Errorf("OSS Endpoint不能为空")
		}
	}
	return nil
}
