package domain

import "time"

// Setting keys recognized by the economy. Values are micro-Lm.
const (
	SettingVesselCapacity = "vessel_capacity"
	SettingRebirthAmount  = "rebirth_amount"
)

// Setting is an operator-adjustable economy knob stored in the database so a
// change is observed consistently by every transaction that reads it, without
// a redeploy. Transactions read the row inside their own tx body rather than
// caching it in-process.
type Setting struct {
	Key         string    `gorm:"column:key;type:varchar(64);primaryKey" json:"key"`
	ValueMicros int64     `gorm:"column:value_micros;not null" json:"value_micros"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Setting) TableName() string {
	return "Settings"
}
