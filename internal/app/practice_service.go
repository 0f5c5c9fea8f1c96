package app

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"practice-test-service/internal/domain"

	"github.com/google/uuid"
)

// SessionRepository abstracts how practice sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// BankRepository loads and stores question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.Bank, error)
	SaveBank(ctx context.Context, bank domain.Bank) error
}

// StartOptions control how the per-session question list is materialized.
type StartOptions struct {
	ShuffleQuestions bool
	ShuffleChoices   bool
	// Seed makes shuffles deterministic; nil seeds from the clock.
	Seed *int64
	// TimeLimit of zero means no deadline.
	TimeLimit time.Duration
}

// PracticeService contains the quiz-taking use cases: start a session
// against a bank, record selections, grade, review.
type PracticeService struct {
	sessions SessionRepository
	banks    BankRepository
}

func NewPracticeService(sessions SessionRepository, banks BankRepository) *PracticeService {
	return &PracticeService{sessions: sessions, banks: banks}
}

// Start materializes a session from a bank and returns its ID together with
// the answerable question views.
func (s *PracticeService) Start(ctx context.Context, bankID string, opts StartOptions) (string, []domain.QuestionView, error) {
	bank, err := s.banks.GetBank(ctx, bankID)
	if err != nil {
		return "", nil, err
	}

	questions := materializeQuestions(bank.Questions, opts)
	session := newSession(uuid.NewString(), bankID, questions, opts.TimeLimit)
	s.sessions.Put(session)

	views := make([]domain.QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, q.View())
	}
	return session.ID(), views, nil
}

// Select records (or overwrites) the user's answer for one question and
// returns reveal feedback. An empty choices slice clears the selection.
func (s *PracticeService) Select(ctx context.Context, sessionID, questionID string, choices []int) (domain.AnswerResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	return session.selectAnswer(questionID, choices)
}

// Grade computes the current score. It is a pure read of session state and
// may be called any number of times; unanswered questions count as wrong.
func (s *PracticeService) Grade(_ context.Context, sessionID string) (domain.Summary, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Summary{}, domain.ErrSessionNotFound
	}
	return session.grade(), nil
}

// Review returns the per-question breakdown with the answer key revealed.
func (s *PracticeService) Review(_ context.Context, sessionID string) (domain.Review, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Review{}, domain.ErrSessionNotFound
	}
	return session.review(), nil
}

// Subscribe returns a channel that receives progress updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *PracticeService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Progress, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Discard drops a session. Loading a new document starts from a clean slate.
func (s *PracticeService) Discard(_ context.Context, sessionID string) {
	s.sessions.Delete(sessionID)
}

// materializeQuestions copies the bank's questions, applying the requested
// shuffles. Choice shuffling remaps the correct indices so the answer key
// stays aligned with the reordered choices.
func materializeQuestions(src []domain.Question, opts StartOptions) []domain.Question {
	var r *rand.Rand
	if opts.Seed != nil {
		r = rand.New(rand.NewSource(*opts.Seed))
	} else {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	questions := make([]domain.Question, len(src))
	for i, q := range src {
		q.Choices = append([]string(nil), q.Choices...)
		q.Correct = append([]int(nil), q.Correct...)
		questions[i] = q
	}

	if opts.ShuffleQuestions {
		r.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	if opts.ShuffleChoices {
		for i := range questions {
			shuffleChoices(&questions[i], r)
		}
	}
	return questions
}

func shuffleChoices(q *domain.Question, r *rand.Rand) {
	order := r.Perm(len(q.Choices))

	shuffled := make([]string, len(q.Choices))
	newIndex := make([]int, len(q.Choices))
	for pos, old := range order {
		shuffled[pos] = q.Choices[old]
		newIndex[old] = pos
	}

	remapped := make([]int, len(q.Correct))
	for i, old := range q.Correct {
		remapped[i] = newIndex[old]
	}
	sort.Ints(remapped)

	q.Choices = shuffled
	q.Correct = remapped
}

// Session holds one user's in-progress answers against a materialized
// question list. It is created empty and discarded when a new document is
// loaded or the service restarts.
type Session struct {
	id        string
	bankID    string
	questions []domain.Question
	byID      map[string]int
	createdAt time.Time
	deadline  time.Time
	now       func() time.Time

	mu          sync.RWMutex
	answers     map[string][]int
	subscribers map[chan domain.Progress]struct{}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id, bankID string, questions []domain.Question, timeLimit time.Duration) *Session {
	return newSession(id, bankID, questions, timeLimit)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id, bankID string, questions []domain.Question, timeLimit time.Duration, now func() time.Time) *Session {
	s := newSessionWithClock(id, bankID, questions, now)
	if timeLimit > 0 {
		s.deadline = s.createdAt.Add(timeLimit)
	}
	return s
}

func newSession(id, bankID string, questions []domain.Question, timeLimit time.Duration) *Session {
	s := newSessionWithClock(id, bankID, questions, time.Now)
	if timeLimit > 0 {
		s.deadline = s.createdAt.Add(timeLimit)
	}
	return s
}

func newSessionWithClock(id, bankID string, questions []domain.Question, now func() time.Time) *Session {
	byID := make(map[string]int, len(questions))
	for i, q := range questions {
		byID[q.ID] = i
	}
	return &Session{
		id:          id,
		bankID:      bankID,
		questions:   questions,
		byID:        byID,
		createdAt:   now(),
		now:         now,
		answers:     make(map[string][]int),
		subscribers: make(map[chan domain.Progress]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// BankID returns the bank this session was started from.
func (s *Session) BankID() string { return s.bankID }

func (s *Session) selectAnswer(questionID string, choices []int) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deadline.IsZero() && s.now().After(s.deadline) {
		return domain.AnswerResult{}, domain.ErrSessionExpired
	}

	idx, ok := s.byID[questionID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	question := s.questions[idx]

	for _, c := range choices {
		if c < 0 || c >= len(question.Choices) {
			return domain.AnswerResult{}, domain.ErrChoiceNotFound
		}
	}

	if len(choices) == 0 {
		// Skip: clear any previous selection.
		delete(s.answers, questionID)
	} else {
		s.answers[questionID] = normalizeSelection(choices)
	}
	s.broadcastLocked()

	selected := s.answers[questionID]
	return domain.AnswerResult{
		QuestionID:  questionID,
		Correct:     setsEqual(selected, question.Correct),
		CorrectSet:  append([]int(nil), question.Correct...),
		Explanation: question.Explanation,
	}, nil
}

func (s *Session) grade() domain.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() domain.Summary {
	correct := 0
	for _, q := range s.questions {
		if setsEqual(s.answers[q.ID], q.Correct) {
			correct++
		}
	}
	return domain.Summary{
		SessionID: s.id,
		Correct:   correct,
		Total:     len(s.questions),
		GradedAt:  s.now(),
	}
}

func (s *Session) review() domain.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.ReviewEntry, 0, len(s.questions))
	for _, q := range s.questions {
		selected := append([]int(nil), s.answers[q.ID]...)
		entries = append(entries, domain.ReviewEntry{
			Question:    q.View(),
			Selected:    selected,
			Correct:     append([]int(nil), q.Correct...),
			IsCorrect:   setsEqual(selected, q.Correct),
			Explanation: q.Explanation,
		})
	}
	return domain.Review{
		SessionID: s.id,
		Entries:   entries,
		Summary:   s.summaryLocked(),
	}
}

func (s *Session) subscribe() (<-chan domain.Progress, func()) {
	ch := make(chan domain.Progress, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.progressLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	progress := s.progressLocked()
	for ch := range s.subscribers {
		select {
		case ch <- progress:
		default:
			// Drop the stale update so slow readers never block a select.
			select {
			case <-ch:
			default:
			}
			ch <- progress
		}
	}
}

func (s *Session) progressLocked() domain.Progress {
	score := 0
	for _, q := range s.questions {
		if selected, ok := s.answers[q.ID]; ok && setsEqual(selected, q.Correct) {
			score++
		}
	}
	return domain.Progress{
		SessionID: s.id,
		Answered:  len(s.answers),
		Score:     score,
		Total:     len(s.questions),
		UpdatedAt: s.now(),
	}
}

func normalizeSelection(choices []int) []int {
	set := make(map[int]struct{}, len(choices))
	for _, c := range choices {
		set[c] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// setsEqual compares a selection to the answer key, all-or-nothing. Both
// slices are sorted and deduplicated before they get here.
func setsEqual(selected, correct []int) bool {
	if len(selected) == 0 || len(selected) != len(correct) {
		return false
	}
	for i := range selected {
		if selected[i] != correct[i] {
			return false
		}
	}
	return true
}
