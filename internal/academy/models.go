package academy

import (
	"encoding/json"
	"fmt"
	"time"
)

// User is the public profile returned alongside fresh tokens
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Subject groups units, e.g. "Financial Accounting"
type Subject struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Units []Unit `json:"units,omitempty"`
}

type Unit struct {
	ID          int    `json:"id"`
	Subject     int    `json:"subject,omitempty"`
	Title       string `json:"title"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// Material is an uploaded study file. FileURL is the link the API builds for the
// file, which may be pre-signed.
type Material struct {
	ID            int       `json:"id"`
	Unit          *Unit     `json:"unit,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	File          string    `json:"file"`
	FileURL       string    `json:"file_url"`
	FileType      string    `json:"file_type"`
	UploadedBy    *int      `json:"uploaded_by"`
	UploadDate    time.Time `json:"upload_date"`
	Tags          []string  `json:"tags"`
	IsPublic      bool      `json:"is_public"`
	DownloadCount int       `json:"download_count"`
}

// MaterialPage is one page of the paginated materials listing
type MaterialPage struct {
	Count    int        `json:"count"`
	Next     string     `json:"next"`
	Previous string     `json:"previous"`
	Results  []Material `json:"results"`
}

type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Choices accepts both [{"id":"A","text":"..."}] and bare strings. Bare strings are
// given letter IDs in order.
type Choices []Choice

func (c *Choices) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("choices must be a list: %w", err)
	}
	out := make(Choices, 0, len(raw))
	for i, item := range raw {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			out = append(out, Choice{ID: string(rune('A' + i)), Text: text})
			continue
		}
		var choice Choice
		if err := json.Unmarshal(item, &choice); err != nil {
			return fmt.Errorf("choice %d: %w", i, err)
		}
		out = append(out, choice)
	}
	*c = out
	return nil
}

type Question struct {
	ID          int     `json:"id"`
	Text        string  `json:"text"`
	Choices     Choices `json:"choices"`
	Points      int     `json:"points"`
	Explanation string  `json:"explanation"`
}

type QuestionSet struct {
	ID          int        `json:"id"`
	Unit        int        `json:"unit"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Answer picks one choice for one question
type Answer struct {
	QuestionID int    `json:"question_id"`
	Choice     string `json:"choice"`
}

// QuizAttempt is the graded result of a submission
type QuizAttempt struct {
	ID          int        `json:"id"`
	User        int        `json:"user"`
	QuestionSet int        `json:"question_set"`
	Score       int        `json:"score"`
	Total       int        `json:"total"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

// Percent returns the score as a percentage of the total, 0 when nothing was gradable
func (a *QuizAttempt) Percent() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Score) * 100 / float64(a.Total)
}
