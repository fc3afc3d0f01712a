package service

import (
	"testing"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/config"
	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Network: config.NetworkConfig{
			Mode: "mainnet",
			Mainnet: config.ChainConfig{
				RequiredConfirmations: 6,
				ScanInterval:          5,
				LockTTL:               900,
				ScanWindowSeconds:     1200,
				ScanLimit:             200,
			},
			Testnet: config.ChainConfig{
				RequiredConfirmations: 3,
				ScanInterval:          3,
				LockTTL:               600,
				ScanWindowSeconds:     1200,
				ScanLimit:             200,
			},
		},
		Order: config.OrderConfig{ExpireMinutes: 15},
		Sign:  config.SignConfig{Mode: "hmac-sha256", Secret: "s", MaxSkewSeconds: 300},
	}
}

func TestSettingsFallbackToConfig(t *testing.T) {
	s := NewSettingsService(NewMemorySettingStore(), testConfig())

	if s.NetworkMode() != "mainnet" {
		t.Errorf("NetworkMode = %s", s.NetworkMode())
	}
	if s.RequiredConfirmations() != 6 {
		t.Errorf("RequiredConfirmations = %d", s.RequiredConfirmations())
	}
	if s.ScanInterval() != 5*time.Second {
		t.Errorf("ScanInterval = %v", s.ScanInterval())
	}
	if s.LockTTL() != 900*time.Second {
		t.Errorf("LockTTL = %v", s.LockTTL())
	}
	if s.OrderExpireMinutes() != 15 {
		t.Errorf("OrderExpireMinutes = %d", s.OrderExpireMinutes())
	}
}

func TestSettingsStoreOverride(t *testing.T) {
	store := NewMemorySettingStore()
	s := NewSettingsService(store, testConfig())

	store.Set(model.SettingKeyNetworkMode, "testnet", "")
	if s.NetworkMode() != "testnet" {
		t.Errorf("NetworkMode = %s, want testnet", s.NetworkMode())
	}
	// 切换模式后按模式读取对应键
	if s.RequiredConfirmations() != 3 {
		t.Errorf("RequiredConfirmations = %d, want 3", s.RequiredConfirmations())
	}

	store.Set(model.SettingKeyConfirmationsPrefix+"testnet", "10", "")
	if s.RequiredConfirmations() != 10 {
		t.Errorf("RequiredConfirmations = %d, want 10", s.RequiredConfirmations())
	}
}

func TestSettingsClamps(t *testing.T) {
	store := NewMemorySettingStore()
	s := NewSettingsService(store, testConfig())

	store.Set(model.SettingKeyConfirmationsPrefix+"mainnet", "100", "")
	if s.RequiredConfirmations() != 20 {
		t.Errorf("确认数应钳制到20, got %d", s.RequiredConfirmations())
	}
	store.Set(model.SettingKeyConfirmationsPrefix+"mainnet", "0", "")
	if s.RequiredConfirmations() != 1 {
		t.Errorf("确认数应钳制到1, got %d", s.RequiredConfirmations())
	}

	store.Set(model.SettingKeyOrderExpireMinutes, "1", "")
	if s.OrderExpireMinutes() != 5 {
		t.Errorf("过期时间下限应为5分钟, got %d", s.OrderExpireMinutes())
	}
	store.Set(model.SettingKeyOrderExpireMinutes, "500", "")
	if s.OrderExpireMinutes() != 60 {
		t.Errorf("过期时间上限应为60分钟, got %d", s.OrderExpireMinutes())
	}

	store.Set(model.SettingKeyLockTTLPrefix+"mainnet", "10", "")
	if s.LockTTL() != 60*time.Second {
		t.Errorf("锁TTL下限应为60秒, got %v", s.LockTTL())
	}

	store.Set(model.SettingKeyScanLimit, "5", "")
	if s.ScanLimit() != 20 {
		t.Errorf("扫描条数下限应为20, got %d", s.ScanLimit())
	}
	store.Set(model.SettingKeyScanLimit, "99999", "")
	if s.ScanLimit() != 1000 {
		t.Errorf("扫描条数上限应为1000, got %d", s.ScanLimit())
	}

	// 非法值回落到配置
	store.Set(model.SettingKeyScanIntervalPrefix+"mainnet", "abc", "")
	if s.ScanInterval() != 5*time.Second {
		t.Errorf("非法值应回落配置, got %v", s.ScanInterval())
	}
}

func TestSignSkewAndNonceTTL(t *testing.T) {
	store := NewMemorySettingStore()
	s := NewSettingsService(store, testConfig())

	if s.SignMaxSkew() != 300*time.Second {
		t.Errorf("SignMaxSkew = %v", s.SignMaxSkew())
	}
	if s.NonceTTL() != 600*time.Second {
		t.Errorf("NonceTTL应为偏差2倍, got %v", s.NonceTTL())
	}

	store.Set(model.SettingKeySignSkewSeconds, "7200", "")
	if s.SignMaxSkew() != 3600*time.Second {
		t.Errorf("偏差上限应为1小时, got %v", s.SignMaxSkew())
	}
	if s.NonceTTL() != 7200*time.Second {
		t.Errorf("NonceTTL上限应为2小时, got %v", s.NonceTTL())
	}

	store.Set(model.SettingKeySignSkewSeconds, "10", "")
	if s.NonceTTL() != 60*time.Second {
		t.Errorf("NonceTTL下限应为60秒, got %v", s.NonceTTL())
	}

	store.Set(model.SettingKeySignSecret, "db-secret", "")
	if s.SignSecret() != "db-secret" {
		t.Errorf("SignSecret应优先取数据库值, got %s", s.SignSecret())
	}
}
