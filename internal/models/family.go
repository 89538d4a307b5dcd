package models

import (
	"math"
	"time"
)

// SubscriptionStatus is the billing state of a family account
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// TrialLength is how long a new family gets free access
const TrialLength = 7 * 24 * time.Hour

// Family represents the parent account; its ID is the auth user ID
type Family struct {
	ID                    string             `json:"id"`
	Email                 string             `json:"email"`
	ParentName            string             `json:"parent_name"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	SubscriptionExpiresAt *time.Time         `json:"subscription_expires_at"`
	TrialEndsAt           time.Time          `json:"trial_ends_at"`
	RevenueCatCustomerID  *string            `json:"revenucat_customer_id"`
	Timezone              string             `json:"timezone"`
	OnboardingCompleted   bool               `json:"onboarding_completed"`
}

// NewFamily is the insert shape used at sign-up
type NewFamily struct {
	ID                  string             `json:"id"`
	Email               string             `json:"email"`
	ParentName          string             `json:"parent_name"`
	SubscriptionStatus  SubscriptionStatus `json:"subscription_status"`
	TrialEndsAt         time.Time          `json:"trial_ends_at"`
	Timezone            string             `json:"timezone"`
	OnboardingCompleted bool               `json:"onboarding_completed"`
}

// Subscription is the subset of family columns needed for access checks
type Subscription struct {
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	TrialEndsAt           *time.Time         `json:"trial_ends_at"`
	SubscriptionExpiresAt *time.Time         `json:"subscription_expires_at"`
}

// TrialInfo describes how much of the free trial is left
type TrialInfo struct {
	IsTrialActive bool
	DaysRemaining int
	TrialEndDate  *time.Time
}

// TrialInfo computes the remaining trial days relative to now.
// Partial days round up, so a trial ending later today still counts as one day.
func (s Subscription) TrialInfo(now time.Time) TrialInfo {
	if s.SubscriptionStatus != SubscriptionTrial || s.TrialEndsAt == nil {
		return TrialInfo{}
	}

	end := *s.TrialEndsAt
	days := int(math.Ceil(end.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}

	return TrialInfo{
		IsTrialActive: days > 0,
		DaysRemaining: days,
		TrialEndDate:  &end,
	}
}

// HasAccess reports whether the family may use the app at now
func (s Subscription) HasAccess(now time.Time) bool {
	switch s.SubscriptionStatus {
	case SubscriptionTrial:
		return s.TrialEndsAt != nil && !now.After(*s.TrialEndsAt)
	case SubscriptionActive:
		return s.SubscriptionExpiresAt != nil && !now.After(*s.SubscriptionExpiresAt)
	}
	return false
}

// Subscription returns the access-related columns of the family
func (f *Family) Subscription() Subscription {
	trialEnd := f.TrialEndsAt
	return Subscription{
		SubscriptionStatus:    f.SubscriptionStatus,
		TrialEndsAt:           &trialEnd,
		SubscriptionExpiresAt: f.SubscriptionExpiresAt,
	}
}
