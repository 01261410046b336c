// 本文件用于定义配置与业务模型
package models

// Config 配置结构体
type Config struct {
	TargetsFile      string `yaml:"targets_file"`      // SLO 目标表文件路径
	SweepInterval    string `yaml:"sweep_interval"`    // 巡检周期
	HistoryCapacity  int    `yaml:"history_capacity"`  // 历史环形缓冲容量
	ChannelTimeout   string `yaml:"channel_timeout"`   // 单通道发送超时
	CooldownInfo     string `yaml:"cooldown_info"`     // info 级冷却窗口
	CooldownWarning  string `yaml:"cooldown_warning"`  // warning 级冷却窗口
	CooldownCritical string `yaml:"cooldown_critical"` // critical 级冷却窗口 0 表示不抑制

	MetricsURL     string `yaml:"metrics_url"`     // 指标采集端快照地址
	MetricsTimeout string `yaml:"metrics_timeout"` // 快照拉取超时

	ChatProvider    string `yaml:"chat_provider"` // dingtalk 或 wecom
	DingTalkWebhook string `yaml:"dingtalk_webhook"`
	DingTalkSecret  string `yaml:"dingtalk_secret"`
	WeComRobotKey   string `yaml:"wecom_robot_key"`

	EmailHost   string `yaml:"email_host"`
	EmailPort   int    `yaml:"email_port"`
	EmailUser   string `yaml:"email_user"`
	EmailPass   string `yaml:"email_pass"`
	EmailFrom   string `yaml:"email_from"`
	EmailTo     string `yaml:"email_to"`
	EmailUseTLS bool   `yaml:"email_use_tls"`

	Routing map[string][]string `yaml:"routing"` // severity -> 通道列表 为空走默认策略

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	APIBind        string `yaml:"api_bind"` // API 服务监听地址
	APIAuthToken   string `yaml:"api_auth_token"`
	APICORSOrigins string `yaml:"api_cors_origins"`

	SystemProbeEnabled bool `yaml:"system_probe_enabled"` // 本机资源探测开关

	ArchiveEnabled bool   `yaml:"archive_enabled"` // 违规归档到 SQLite
	ArchiveDataDir string `yaml:"archive_data_dir"`
	ArchiveMaxRows int    `yaml:"archive_max_rows"`

	ExportEnabled  bool   `yaml:"export_enabled"` // 归档快照导出到 OSS
	ExportInterval string `yaml:"export_interval"`
	Bucket         string `yaml:"bucket"`
	AK             string `yaml:"ak"`
	SK             string `yaml:"sk"`
	Endpoint       string `yaml:"endpoint"`
	DisableSSL     bool   `yaml:"disable_ssl"`
}
