package models

// SettingModel is a singleton-per-key user preference (e.g. last theme).
// Value holds the JSON-encoded setting payload.
type SettingModel struct {
	Base
	Key   string `json:"key"   gorm:"uniqueIndex;not null"`
	Value string `json:"value" gorm:"type:text"`
}

func (SettingModel) TableName() string { return "settings" }
