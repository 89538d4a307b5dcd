package models

import "time"

// PushToken is a device registration for notifications
type PushToken struct {
	ID            string    `json:"id"`
	FamilyID      string    `json:"family_id"`
	ChildID       *string   `json:"child_id"`
	ExpoPushToken string    `json:"expo_push_token"`
	DeviceType    *string   `json:"device_type"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewPushToken is the upsert shape for a device registration
type NewPushToken struct {
	FamilyID      string  `json:"family_id"`
	ChildID       *string `json:"child_id,omitempty"`
	ExpoPushToken string  `json:"expo_push_token"`
	DeviceType    *string `json:"device_type,omitempty"`
	IsActive      bool    `json:"is_active"`
}
