package domain

import "time"

type SettingType string

const (
	SettingTypeString  SettingType = "string"
	SettingTypeNumber  SettingType = "number"
	SettingTypeBoolean SettingType = "boolean"
	SettingTypeJSON    SettingType = "json"
)

const SettingRateLimit = "RATE_LIMIT"

type SystemSetting struct {
	Key       string      `gorm:"primaryKey;size:100" json:"key"`
	Value     string      `gorm:"type:text;not null" json:"value"`
	Type      SettingType `gorm:"size:16;not null;default:string" json:"type"`
	UpdatedAt time.Time   `json:"updated_at"`
}
