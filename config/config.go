package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Network  NetworkConfig  `mapstructure:"network"`
	Order    OrderConfig    `mapstructure:"order"`
	Sign     SignConfig     `mapstructure:"sign"`
	Callback CallbackConfig `mapstructure:"callback"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 分钟
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	ExpireHour int    `mapstructure:"expire_hour"` // Token过期时间(小时)
}

// NetworkConfig 链网络配置
// mode 决定运行时使用主网还是测试网参数
type NetworkConfig struct {
	Mode    string      `mapstructure:"mode"` // mainnet / testnet
	Mainnet ChainConfig `mapstructure:"mainnet"`
	Testnet ChainConfig `mapstructure:"testnet"`
}

type ChainConfig struct {
	TronscanAPI           string `mapstructure:"tronscan_api"`
	TrongridAPI           string `mapstructure:"trongrid_api"`
	TronscanAPIKey        string `mapstructure:"tronscan_api_key"`
	TrongridAPIKey        string `mapstructure:"trongrid_api_key"`
	USDTContract          string `mapstructure:"usdt_contract"`
	RequiredConfirmations int    `mapstructure:"required_confirmations"`
	ScanInterval          int    `mapstructure:"scan_interval"` // 秒
	LockTTL               int    `mapstructure:"lock_ttl"`      // 秒
	ScanWindowSeconds     int    `mapstructure:"scan_window_seconds"`
	ScanLimit             int    `mapstructure:"scan_limit"`
}

type OrderConfig struct {
	ExpireMinutes int `mapstructure:"expire_minutes"` // 订单过期时间(分钟)
}

// SignConfig API签名配置
type SignConfig struct {
	Mode           string `mapstructure:"mode"` // off / hmac-sha256
	Secret         string `mapstructure:"secret"`
	MaxSkewSeconds int    `mapstructure:"max_skew_seconds"`
}

// CallbackConfig 到账回调配置
type CallbackConfig struct {
	URL            string `mapstructure:"url"`             // 为空则不回调
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 单次回调超时
	Secret         string `mapstructure:"secret"`          // 回调签名密钥，为空则复用sign.secret
}

var cfg *Config

// getExeDir 获取可执行文件所在目录
func getExeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	exeDir := getExeDir()

	// 按优先级添加配置路径
	viper.AddConfigPath(exeDir)
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/obelisk-usdt")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// 配置文件不存在，创建默认配置
			if err := createDefaultConfig(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func Get() *Config {
	return cfg
}

// Chain 返回当前网络模式对应的链配置
func (c *Config) Chain() ChainConfig {
	if c.Network.Mode == "testnet" {
		return c.Network.Testnet
	}
	return c.Network.Mainnet
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 6090)

	// Database
	viper.SetDefault("database.host", "127.0.0.1")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.user", "obelisk")
	viper.SetDefault("database.password", "obelisk123")
	viper.SetDefault("database.dbname", "obelisk_usdt")
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Redis
	viper.SetDefault("redis.addr", "127.0.0.1:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// JWT
	viper.SetDefault("jwt.secret", "change-this-secret-key-in-production")
	viper.SetDefault("jwt.expire_hour", 24)

	// Network
	viper.SetDefault("network.mode", "mainnet")

	viper.SetDefault("network.mainnet.tronscan_api", "https://apilist.tronscanapi.com")
	viper.SetDefault("network.mainnet.trongrid_api", "https://api.trongrid.io")
	viper.SetDefault("network.mainnet.usdt_contract", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	viper.SetDefault("network.mainnet.required_confirmations", 6)
	viper.SetDefault("network.mainnet.scan_interval", 5)
	viper.SetDefault("network.mainnet.lock_ttl", 900)
	viper.SetDefault("network.mainnet.scan_window_seconds", 1200)
	viper.SetDefault("network.mainnet.scan_limit", 200)

	viper.SetDefault("network.testnet.tronscan_api", "https://shastapi.tronscan.org")
	viper.SetDefault("network.testnet.trongrid_api", "https://api.shasta.trongrid.io")
	viper.SetDefault("network.testnet.usdt_contract", "TG3XXyExBkPp9nzdajDZsozEu4BkaSJozs")
	viper.SetDefault("network.testnet.required_confirmations", 3)
	viper.SetDefault("network.testnet.scan_interval", 3)
	viper.SetDefault("network.testnet.lock_ttl", 600)
	viper.SetDefault("network.testnet.scan_window_seconds", 1200)
	viper.SetDefault("network.testnet.scan_limit", 200)

	// Order
	viper.SetDefault("order.expire_minutes", 15)

	// Sign
	viper.SetDefault("sign.mode", "hmac-sha256")
	viper.SetDefault("sign.secret", "")
	viper.SetDefault("sign.max_skew_seconds", 300)

	// Callback
	viper.SetDefault("callback.url", "")
	viper.SetDefault("callback.timeout_seconds", 10)
	viper.SetDefault("callback.secret", "")
}

func createDefaultConfig() error {
	configContent := `# ObeliskUSDT 配置文件
# 运行时可调参数(确认数/扫描间隔/锁TTL等)在管理后台中管理

server:
  host: "0.0.0.0"
  port: 6090

database:
  host: "127.0.0.1"
  port: 3306
  user: "obelisk"
  password: "obelisk123"
  dbname: "obelisk_usdt"
  max_open_conns: 100
  max_idle_conns: 10
  conn_max_lifetime: 60

redis:
  addr: "127.0.0.1:6379"
  password: ""
  db: 0

jwt:
  secret: "change-this-secret-key-in-production"
  expire_hour: 24

network:
  mode: "mainnet"
  mainnet:
    tronscan_api: "https://apilist.tronscanapi.com"
    trongrid_api: "https://api.trongrid.io"
    tronscan_api_key: ""
    trongrid_api_key: ""
    usdt_contract: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
    required_confirmations: 6
    scan_interval: 5
    lock_ttl: 900
    scan_window_seconds: 1200
    scan_limit: 200
  testnet:
    tronscan_api: "https://shastapi.tronscan.org"
    trongrid_api: "https://api.shasta.trongrid.io"
    tronscan_api_key: ""
    trongrid_api_key: ""
    usdt_contract: "TG3XXyExBkPp9nzdajDZsozEu4BkaSJozs"
    required_confirmations: 3
    scan_interval: 3
    lock_ttl: 600
    scan_window_seconds: 1200
    scan_limit: 200

order:
  expire_minutes: 15

sign:
  mode: "hmac-sha256"
  secret: ""
  max_skew_seconds: 300

callback:
  url: ""
  timeout_seconds: 10
  secret: ""
`

	configPath := filepath.Join(getExeDir(), "config.yaml")
	return os.WriteFile(configPath, []byte(configContent), 0644)
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
