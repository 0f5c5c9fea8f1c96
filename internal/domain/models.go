package domain

import "time"

// Question is a single validated entry of a question bank. Correct holds
// sorted, unique indices into Choices; multi-select questions have more
// than one.
type Question struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Choices     []string `json:"choices"`
	Correct     []int    `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
}

// Bank is an ordered, validated collection of questions.
type Bank struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// QuestionView is what clients see while answering: a question with the
// answer key stripped.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

// View returns the answerable projection of q.
func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, Prompt: q.Prompt, Choices: q.Choices}
}

// AnswerResult is the per-submission feedback for reveal mode.
type AnswerResult struct {
	QuestionID  string `json:"questionId"`
	Correct     bool   `json:"correct"`
	CorrectSet  []int  `json:"correctSet"`
	Explanation string `json:"explanation,omitempty"`
}

// Progress is the running state of a session, pushed to subscribers.
type Progress struct {
	SessionID string    `json:"sessionId"`
	Answered  int       `json:"answered"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is the result of grading a session. Grading is a pure read:
// it may be requested repeatedly and reflects the selections at call time.
type Summary struct {
	SessionID string    `json:"sessionId"`
	Correct   int       `json:"correct"`
	Total     int       `json:"total"`
	GradedAt  time.Time `json:"gradedAt"`
}

// ReviewEntry pairs one question with the user's selection for the
// end-of-quiz review.
type ReviewEntry struct {
	Question    QuestionView `json:"question"`
	Selected    []int        `json:"selected"`
	Correct     []int        `json:"correct"`
	IsCorrect   bool         `json:"isCorrect"`
	Explanation string       `json:"explanation,omitempty"`
}

// Review is the full per-question breakdown of a session.
type Review struct {
	SessionID string        `json:"sessionId"`
	Entries   []ReviewEntry `json:"entries"`
	Summary   Summary       `json:"summary"`
}
