package domain

import "time"

// QuestionType distinguishes how a question is answered and aggregated.
type QuestionType string

// Question types supported in microclimate sessions.
const (
	QuestionLikert         QuestionType = "likert"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionOpenText       QuestionType = "open_text"
	QuestionRating         QuestionType = "rating"
)

// HasOptions reports whether answers carry an option index.
func (t QuestionType) HasOptions() bool {
	return t == QuestionLikert || t == QuestionMultipleChoice || t == QuestionRating
}

// OrderedScale reports whether option position encodes sentiment
// (first option most negative, last most positive).
func (t QuestionType) OrderedScale() bool {
	return t == QuestionLikert || t == QuestionRating
}

// Question is one prompt in a microclimate session.
type Question struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
}

// Scheduling holds the time parameters a session's status derives from.
type Scheduling struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Timezone        string    `json:"timezone"`
	AutoClose       bool      `json:"auto_close"`
}

// Targeting limits who the session reaches.
type Targeting struct {
	MaxParticipants int `json:"max_participants"`
}

// Settings are the per-session feature toggles.
type Settings struct {
	Anonymous              bool    `json:"anonymous"`
	ShowLiveResults        bool    `json:"show_live_results"`
	SentimentEnabled       bool    `json:"sentiment_enabled"`
	WordCloudEnabled       bool    `json:"word_cloud_enabled"`
	ParticipationThreshold float64 `json:"participation_threshold"`
}

// Microclimate is a short, time-boxed real-time feedback session.
// Owned exclusively by the coordinator service; mutated only through its API.
type Microclimate struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Status     Status     `json:"status"`
	Scheduling Scheduling `json:"scheduling"`
	Targeting  Targeting  `json:"targeting"`
	Settings   Settings   `json:"settings"`
	Questions  []Question `json:"questions"`

	ResponseCount          int          `json:"response_count"`
	TargetParticipantCount int          `json:"target_participant_count"`
	LiveResults            *LiveResults `json:"live_results"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMicroclimate creates a draft session with an empty results snapshot.
func NewMicroclimate(id, companyID, title, createdBy string, now time.Time) *Microclimate {
	return &Microclimate{
		ID:          id,
		CompanyID:   companyID,
		Title:       title,
		Status:      StatusDraft,
		CreatedBy:   createdBy,
		LiveResults: NewLiveResults(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Question returns the question with the given ID, or nil.
func (m *Microclimate) Question(questionID string) *Question {
	for i := range m.Questions {
		if m.Questions[i].ID == questionID {
			return &m.Questions[i]
		}
	}
	return nil
}

// AcceptsResponses reports whether a submission is allowed under the given
// resolved status. allowPaused is a product configuration: some deployments
// keep collecting while a facilitator has the session on hold.
func (m *Microclimate) AcceptsResponses(resolved Status, allowPaused bool) bool {
	if resolved == StatusActive {
		return true
	}
	return allowPaused && resolved == StatusPaused
}

// TimeRemaining returns the time left in the response window, zero if the
// window has closed or never opened.
func (m *Microclimate) TimeRemaining(now time.Time) time.Duration {
	end := m.Scheduling.End()
	if !now.Before(end) {
		return 0
	}
	if now.Before(m.Scheduling.StartTime) {
		return m.Scheduling.End().Sub(m.Scheduling.StartTime)
	}
	return end.Sub(now)
}

// ParticipationRate recomputes the clamped participation percentage.
func (m *Microclimate) ParticipationRate() float64 {
	return participationRate(m.ResponseCount, m.TargetParticipantCount)
}

// ValidateConfiguration rejects sessions that can never run correctly.
// Configuration errors are rejected at creation, never repaired later.
func (m *Microclimate) ValidateConfiguration() error {
	if m.Scheduling.DurationMinutes <= 0 {
		return errInvalidConfiguration("duration_minutes must be positive")
	}
	if m.Scheduling.StartTime.IsZero() {
		return errInvalidConfiguration("start_time is required")
	}
	if len(m.Questions) == 0 {
		return errInvalidConfiguration("at least one question is required")
	}
	for _, q := range m.Questions {
		if q.Type.HasOptions() && len(q.Options) < 2 {
			return errInvalidConfiguration("question " + q.ID + " needs at least two options")
		}
	}
	return nil
}
