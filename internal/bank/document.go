package bank

import (
	"encoding/json"
	"fmt"
	"sort"

	"practice-test-service/internal/domain"
)

// Parse decodes and validates a question document. The document is either a
// JSON array of questions or an object with a "questions" field. Questions
// without an explicit id get a positional one ("q1", "q2", ...), stepping
// around any explicit id already claiming that name. Any structural problem
// rejects the whole document with an error wrapping
// domain.ErrMalformedDocument; nothing is partially accepted.
func Parse(data []byte) (domain.Bank, error) {
	var doc wireDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		// Fall back to a bare array of questions.
		var questions []wireQuestion
		if arrErr := json.Unmarshal(data, &questions); arrErr != nil {
			return domain.Bank{}, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
		}
		doc.Questions = questions
	}

	// An explicit empty array is a valid (if useless) bank; a document
	// without a questions field is not.
	if doc.Questions == nil {
		return domain.Bank{}, fmt.Errorf("%w: no questions field", domain.ErrMalformedDocument)
	}

	bank := domain.Bank{
		ID:        doc.ID,
		Title:     doc.Title,
		Questions: make([]domain.Question, 0, len(doc.Questions)),
	}
	explicit := make(map[string]struct{}, len(doc.Questions))
	for _, wq := range doc.Questions {
		if wq.ID != "" {
			explicit[wq.ID] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(doc.Questions))
	for i, wq := range doc.Questions {
		label := wq.ID
		if label == "" {
			label = positionalID(i, explicit)
		}
		q, err := wq.validate(label)
		if err != nil {
			return domain.Bank{}, err
		}
		if _, dup := seen[q.ID]; dup {
			return domain.Bank{}, fmt.Errorf("%w: duplicate question id %q", domain.ErrMalformedDocument, q.ID)
		}
		seen[q.ID] = struct{}{}
		bank.Questions = append(bank.Questions, q)
	}
	return bank, nil
}

// positionalID names a question by its 1-based position. When an explicit id
// elsewhere in the document claims that name, a numeric suffix keeps the
// generated id unique without rejecting the document.
func positionalID(pos int, taken map[string]struct{}) string {
	id := fmt.Sprintf("q%d", pos+1)
	for n := 2; ; n++ {
		if _, ok := taken[id]; !ok {
			return id
		}
		id = fmt.Sprintf("q%d-%d", pos+1, n)
	}
}

type wireDocument struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Questions []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	ID          string    `json:"id"`
	Prompt      string    `json:"prompt"`
	Choices     []string  `json:"choices"`
	Correct     answerKey `json:"correct"`
	Answer      answerKey `json:"answer"` // accepted alias for "correct"
	Explanation string    `json:"explanation"`
}

func (wq wireQuestion) validate(label string) (domain.Question, error) {
	if wq.Prompt == "" {
		return domain.Question{}, fmt.Errorf("%w: question %s: missing prompt", domain.ErrMalformedDocument, label)
	}
	if len(wq.Choices) == 0 {
		return domain.Question{}, fmt.Errorf("%w: question %s: empty choices", domain.ErrMalformedDocument, label)
	}

	key := wq.Correct
	if key.empty() {
		key = wq.Answer
	}
	correct, err := key.resolve(wq.Choices)
	if err != nil {
		return domain.Question{}, fmt.Errorf("%w: question %s: %v", domain.ErrMalformedDocument, label, err)
	}

	return domain.Question{
		ID:          label,
		Prompt:      wq.Prompt,
		Choices:     append([]string(nil), wq.Choices...),
		Correct:     correct,
		Explanation: wq.Explanation,
	}, nil
}

// answerKey decodes the "correct" field of a question, which may be a
// choice index, the text of a choice, or an array mixing both.
type answerKey struct {
	entries []answerEntry
}

type answerEntry struct {
	index  int
	text   string
	isText bool
}

func (k *answerKey) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range v {
			entry, err := toAnswerEntry(item)
			if err != nil {
				return err
			}
			k.entries = append(k.entries, entry)
		}
		return nil
	default:
		entry, err := toAnswerEntry(raw)
		if err != nil {
			return err
		}
		k.entries = []answerEntry{entry}
		return nil
	}
}

func toAnswerEntry(v any) (answerEntry, error) {
	switch val := v.(type) {
	case float64:
		if val != float64(int(val)) {
			return answerEntry{}, fmt.Errorf("answer index %v is not an integer", val)
		}
		return answerEntry{index: int(val)}, nil
	case string:
		return answerEntry{text: val, isText: true}, nil
	default:
		return answerEntry{}, fmt.Errorf("unsupported answer value %v", v)
	}
}

func (k answerKey) empty() bool {
	return len(k.entries) == 0
}

// resolve normalizes the key against the question's choices into sorted
// unique indices. Text entries must match a choice exactly.
func (k answerKey) resolve(choices []string) ([]int, error) {
	if len(k.entries) == 0 {
		return nil, fmt.Errorf("missing correct answer")
	}
	set := make(map[int]struct{}, len(k.entries))
	for _, entry := range k.entries {
		idx := entry.index
		if entry.isText {
			idx = indexOfChoice(choices, entry.text)
			if idx < 0 {
				return nil, fmt.Errorf("answer %q does not match any choice", entry.text)
			}
		} else if idx < 0 || idx >= len(choices) {
			return nil, fmt.Errorf("answer index %d out of range (choices: %d)", idx, len(choices))
		}
		set[idx] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

func indexOfChoice(choices []string, text string) int {
	for i, c := range choices {
		if c == text {
			return i
		}
	}
	return -1
}
