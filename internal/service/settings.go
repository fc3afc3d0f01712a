package service

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/config"
	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
	"gorm.io/gorm"
)

// SettingStore 运行时配置存取接口
type SettingStore interface {
	// Get 读取配置值，不存在时返回空字符串
	Get(key string) (string, error)
	// Set 写入配置值，不存在则创建
	Set(key, value, description string) error
}

// dbSettingStore 基于数据库的配置存储
type dbSettingStore struct{}

func (s *dbSettingStore) Get(key string) (string, error) {
	var setting model.Setting
	err := model.GetDB().Where("`key` = ?", key).First(&setting).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

func (s *dbSettingStore) Set(key, value, description string) error {
	var setting model.Setting
	err := model.GetDB().Where("`key` = ?", key).First(&setting).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.GetDB().Create(&model.Setting{
				Key:         key,
				Value:       value,
				Description: description,
			}).Error
		}
		return err
	}
	updates := map[string]interface{}{"value": value}
	if description != "" {
		updates["description"] = description
	}
	return model.GetDB().Model(&setting).Updates(updates).Error
}

// MemorySettingStore 进程内配置存储，用于测试
type MemorySettingStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySettingStore() *MemorySettingStore {
	return &MemorySettingStore{values: make(map[string]string)}
}

func (s *MemorySettingStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemorySettingStore) Set(key, value, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// SettingsService 运行时配置服务
// 所有取值都带范围钳制，数据库未配置时回落到配置文件
type SettingsService struct {
	store SettingStore
	cfg   *config.Config
}

var (
	settingsService *SettingsService
	settingsOnce    sync.Once
)

func GetSettingsService() *SettingsService {
	settingsOnce.Do(func() {
		settingsService = &SettingsService{
			store: &dbSettingStore{},
			cfg:   config.Get(),
		}
	})
	return settingsService
}

// NewSettingsService 使用指定存储构建配置服务
func NewSettingsService(store SettingStore, cfg *config.Config) *SettingsService {
	return &SettingsService{store: store, cfg: cfg}
}

func (s *SettingsService) getInt(key string, fallback int) int {
	v, err := s.store.Get(key)
	if err != nil || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func (s *SettingsService) getString(key, fallback string) string {
	v, err := s.store.Get(key)
	if err != nil || strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// NetworkMode 当前网络模式: mainnet / testnet
func (s *SettingsService) NetworkMode() string {
	mode := s.getString(model.SettingKeyNetworkMode, s.cfg.Network.Mode)
	if mode != "testnet" {
		return "mainnet"
	}
	return "testnet"
}

// Chain 当前网络模式对应的链配置
func (s *SettingsService) Chain() config.ChainConfig {
	if s.NetworkMode() == "testnet" {
		return s.cfg.Network.Testnet
	}
	return s.cfg.Network.Mainnet
}

// RequiredConfirmations 到账所需区块确认数，范围1~20
func (s *SettingsService) RequiredConfirmations() int {
	chain := s.Chain()
	v := s.getInt(model.SettingKeyConfirmationsPrefix+s.NetworkMode(), chain.RequiredConfirmations)
	return clampInt(v, 1, 20)
}

// ScanInterval 链上扫描间隔，最小1秒
func (s *SettingsService) ScanInterval() time.Duration {
	chain := s.Chain()
	v := s.getInt(model.SettingKeyScanIntervalPrefix+s.NetworkMode(), chain.ScanInterval)
	if v < 1 {
		v = 1
	}
	return time.Duration(v) * time.Second
}

// LockTTL 金额分配锁生存时间，最小60秒
func (s *SettingsService) LockTTL() time.Duration {
	chain := s.Chain()
	v := s.getInt(model.SettingKeyLockTTLPrefix+s.NetworkMode(), chain.LockTTL)
	if v < 60 {
		v = 60
	}
	return time.Duration(v) * time.Second
}

// OrderExpireMinutes 订单有效期(分钟)，范围5~60
func (s *SettingsService) OrderExpireMinutes() int {
	v := s.getInt(model.SettingKeyOrderExpireMinutes, s.cfg.Order.ExpireMinutes)
	return clampInt(v, 5, 60)
}

// ScanWindow 扫描回看时间窗口，最小60秒
func (s *SettingsService) ScanWindow() time.Duration {
	chain := s.Chain()
	v := s.getInt(model.SettingKeyScanWindowSeconds, chain.ScanWindowSeconds)
	if v < 60 {
		v = 60
	}
	return time.Duration(v) * time.Second
}

// ScanLimit 单次扫描拉取转账条数，范围20~1000
func (s *SettingsService) ScanLimit() int {
	chain := s.Chain()
	v := s.getInt(model.SettingKeyScanLimit, chain.ScanLimit)
	return clampInt(v, 20, 1000)
}

// SignMode 签名校验模式: off / hmac-sha256
func (s *SettingsService) SignMode() string {
	return s.cfg.Sign.Mode
}

// SignSecret 签名密钥，数据库优先
func (s *SettingsService) SignSecret() string {
	return s.getString(model.SettingKeySignSecret, s.cfg.Sign.Secret)
}

// SignMaxSkew 签名时间戳允许偏差，上限1小时
func (s *SettingsService) SignMaxSkew() time.Duration {
	v := s.getInt(model.SettingKeySignSkewSeconds, s.cfg.Sign.MaxSkewSeconds)
	if v <= 0 {
		v = 300
	}
	if v > 3600 {
		v = 3600
	}
	return time.Duration(v) * time.Second
}

// NonceTTL nonce防重放记录保留时间，取签名偏差的2倍并钳制在60秒~2小时
func (s *SettingsService) NonceTTL() time.Duration {
	v := int(s.SignMaxSkew()/time.Second) * 2
	return time.Duration(clampInt(v, 60, 7200)) * time.Second
}

// UpdateSetting 写入运行时配置
func (s *SettingsService) UpdateSetting(key, value, description string) error {
	return s.store.Set(key, value, description)
}

// GetSetting 读取原始配置值
func (s *SettingsService) GetSetting(key string) (string, error) {
	return s.store.Get(key)
}
