package domain

import "time"

// ConversationMessage is one persisted turn of a reading conversation.
type ConversationMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	UserTurn  int       `json:"user_turn"`
	CreatedAt time.Time `json:"created_at"`
}

// CrisisLevel is the outcome of the crisis detector for one user message.
type CrisisLevel int

const (
	CrisisNone CrisisLevel = iota
	CrisisMedium
	CrisisHigh
)

func (l CrisisLevel) String() string {
	switch l {
	case CrisisHigh:
		return "high"
	case CrisisMedium:
		return "medium"
	default:
		return "none"
	}
}

// ReadingMode selects the response contract of a streaming turn.
type ReadingMode string

const (
	ModeSaju  ReadingMode = "saju"
	ModeAstro ReadingMode = "astro"
	ModeTarot ReadingMode = "tarot"
)

// ReadingRequest is the inbound payload of one streaming turn.
type ReadingRequest struct {
	SessionID    string       `json:"session_id"`
	Mode         ReadingMode  `json:"mode"`
	Theme        string       `json:"theme"`
	Locale       string       `json:"locale"`
	Question     string       `json:"question"`
	SajuPayload  ChartPayload `json:"saju_payload,omitempty"`
	AstroPayload ChartPayload `json:"astro_payload,omitempty"`
	DrawnCards   []DrawnCard  `json:"drawn_cards,omitempty"`
	Persona      UserPersona  `json:"persona,omitempty"`
}

// UserPersona carries per-user counselling context for the composer.
type UserPersona struct {
	SessionCount    int      `json:"session_count,omitempty"`
	RecurringTopics []string `json:"recurring_topics,omitempty"`
	PersonalityType string   `json:"personality_type,omitempty"`
	CVText          string   `json:"cv_text,omitempty"`
	Age             int      `json:"age,omitempty"`
}
