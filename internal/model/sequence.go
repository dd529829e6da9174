package model

// DailySequence holds the last transaction number issued for a calendar day.
type DailySequence struct {
	Day   string `gorm:"type:varchar(8);primaryKey" json:"day"`
	Value int    `gorm:"not null" json:"value"`
}

func (DailySequence) TableName() string {
	return "daily_sequences"
}
