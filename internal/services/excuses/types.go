package excuses

import "strings"

type Category string

const (
	CategoryLate      Category = "late"
	CategorySickLeave Category = "sick_leave"
	CategoryDecline   Category = "decline"
	CategoryForgot    Category = "forgot"
	CategoryDeadline  Category = "deadline"
	CategoryMeeting   Category = "meeting"
	CategoryHomework  Category = "homework"
	CategoryOther     Category = "other"
)

type Urgency string

const (
	UrgencyNormal  Urgency = "normal"
	UrgencyUrgent  Urgency = "urgent"
	UrgencyExtreme Urgency = "extreme"
)

type Params struct {
	Category Category
	Urgency  Urgency
	Context  string
	Language string
}

type Excuse struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
	Tip  string `json:"tip"`
}

// CategoryInfo feeds the static catalog endpoint.
type CategoryInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type UrgencyInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CategoryLate, CategorySickLeave, CategoryDecline, CategoryForgot,
		CategoryDeadline, CategoryMeeting, CategoryHomework, CategoryOther:
		return c, true
	default:
		return "", false
	}
}

func ParseUrgency(raw string) (Urgency, bool) {
	if strings.TrimSpace(raw) == "" {
		return UrgencyNormal, true
	}
	u := Urgency(strings.ToLower(strings.TrimSpace(raw)))
	switch u {
	case UrgencyNormal, UrgencyUrgent, UrgencyExtreme:
		return u, true
	default:
		return "", false
	}
}

func Categories() []CategoryInfo {
	return []CategoryInfo{
		{ID: "late", Name: "Being Late", Icon: "⏰"},
		{ID: "sick_leave", Name: "Sick Leave", Icon: "🤒"},
		{ID: "decline", Name: "Declining Invitations", Icon: "🙅"},
		{ID: "forgot", Name: "Forgetting Things", Icon: "🤔"},
		{ID: "deadline", Name: "Missing Deadlines", Icon: "📅"},
		{ID: "meeting", Name: "Missing Meetings", Icon: "📋"},
		{ID: "homework", Name: "Homework/Assignments", Icon: "📚"},
		{ID: "other", Name: "Other", Icon: "💭"},
	}
}

func UrgencyLevels() []UrgencyInfo {
	return []UrgencyInfo{
		{ID: "normal", Name: "Normal", Description: "Believable and reasonable", Icon: "😊"},
		{ID: "urgent", Name: "Urgent", Description: "Slightly dramatic but plausible", Icon: "😰"},
		{ID: "extreme", Name: "Extreme", Description: "Wild and dramatic!", Icon: "🤯"},
	}
}
