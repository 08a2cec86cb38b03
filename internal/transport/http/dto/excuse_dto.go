package dto

type GenerateRequest struct {
	DeviceID string `json:"device_id"`
	Category string `json:"category"`
	Urgency  string `json:"urgency,omitempty"`
	Context  string `json:"context,omitempty"`
	Language string `json:"language,omitempty"`
}

type ExcuseItem struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
	Tip  string `json:"tip"`
}

type GenerateResponse struct {
	Excuses         []ExcuseItem `json:"excuses"`
	Category        string       `json:"category"`
	Urgency         string       `json:"urgency"`
	TokensRemaining int          `json:"tokens_remaining"`
	IsFreeTrial     bool         `json:"is_free_trial"`
	TokenSource     string       `json:"token_source"`
}

type CategoryItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type CategoriesResponse struct {
	Categories []CategoryItem `json:"categories"`
}

type UrgencyItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type UrgencyLevelsResponse struct {
	UrgencyLevels []UrgencyItem `json:"urgency_levels"`
}
