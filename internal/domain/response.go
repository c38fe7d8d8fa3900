package domain

import "time"

// Answer is one question's answer inside a response.
// Either OptionIndex (choice questions) or FreeText (open questions) is set.
type Answer struct {
	QuestionID  string `json:"question_id"`
	OptionIndex *int   `json:"option_index,omitempty"`
	FreeText    string `json:"free_text,omitempty"`
}

// Response is one participant's full submission for a session.
// ParticipantID is empty for anonymous sessions. Responses are append-only:
// once created they are never updated or deleted.
type Response struct {
	ID             string    `json:"id"`
	MicroclimateID string    `json:"microclimate_id"`
	ParticipantID  string    `json:"participant_id,omitempty"`
	Answers        []Answer  `json:"answers"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// NewResponse creates an immutable response record.
func NewResponse(id, microclimateID, participantID string, answers []Answer, now time.Time) *Response {
	return &Response{
		ID:             id,
		MicroclimateID: microclimateID,
		ParticipantID:  participantID,
		Answers:        answers,
		SubmittedAt:    now,
	}
}
