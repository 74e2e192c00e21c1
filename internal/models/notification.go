package models

import "time"

// Notification is stored in influencer_notifications or seller_notifications
// depending on Audience.
type Notification struct {
	ID          string     `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	RecipientID string     `gorm:"size:128;not null;index" bson:"recipientId" json:"recipientId"`
	Audience    string     `gorm:"-" bson:"-" json:"audience"`
	Type        string     `gorm:"size:50;not null;index" bson:"type" json:"type"`
	Title       string     `gorm:"size:255" bson:"title" json:"title"`
	Body        string     `gorm:"type:text" bson:"body" json:"body"`
	Data        string     `gorm:"type:text" bson:"data,omitempty" json:"data"` // JSON payload
	ReadAt      *time.Time `bson:"readAt,omitempty" json:"readAt"`
	CreatedAt   time.Time  `gorm:"index" bson:"createdAt" json:"createdAt"`
}

// DeviceToken is an FCM registration token for one user device.
type DeviceToken struct {
	Token     string    `gorm:"primaryKey;size:512" bson:"_id" json:"token"`
	UserID    string    `gorm:"size:128;not null;index" bson:"userId" json:"userId"`
	Platform  string    `gorm:"size:20" bson:"platform" json:"platform"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (DeviceToken) TableName() string { return "device_tokens" }
