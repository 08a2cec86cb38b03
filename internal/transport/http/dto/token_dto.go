package dto

import "time"

type TokenStatusResponse struct {
	DeviceID           string     `json:"device_id"`
	TotalTokens        int        `json:"total_tokens"`
	UsedTokens         int        `json:"used_tokens"`
	RemainingTokens    int        `json:"remaining_tokens"`
	FreeTrialAvailable bool       `json:"free_trial_available"`
	IsUnlimited        bool       `json:"is_unlimited"`
	UnlimitedUntil     *time.Time `json:"unlimited_until,omitempty"`
}

type AdminResetResponse struct {
	OK       bool   `json:"ok"`
	DeviceID string `json:"device_id"`
}
