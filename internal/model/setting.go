package model

import "time"

// Setting 运行时配置表
// 存储可在线调整的支付参数，缺省值由配置文件兜底
type Setting struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"key"`
	Value       string    `gorm:"type:varchar(500)" json:"value"`
	Description string    `gorm:"type:varchar(200)" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "obl_payment_settings"
}

// 运行时配置键
const (
	SettingKeyNetworkMode         = "payment_network_mode"          // mainnet / testnet
	SettingKeyOrderExpireMinutes  = "payment_order_expire_minutes"  // 订单过期时间(分钟)
	SettingKeyConfirmationsPrefix = "payment_required_confirmations_" // + 网络模式
	SettingKeyScanIntervalPrefix  = "payment_scan_interval_"          // + 网络模式，单位秒
	SettingKeyLockTTLPrefix       = "payment_lock_ttl_"               // + 网络模式，单位秒
	SettingKeyScanWindowSeconds   = "payment_scan_time_window_seconds"
	SettingKeyScanLimit           = "payment_scan_trc20_limit"
	SettingKeySignSkewSeconds     = "payment_api_sign_max_skew_seconds"
	SettingKeySignSecret          = "payment_api_auth_token"
)
