package academy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// SortByDownloads orders materials most-downloaded first
const SortByDownloads = "downloads"

// ListSubjects returns every subject with its units
func (s *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/subjects/", &raw); err != nil {
		return nil, err
	}
	return decodeList[Subject](raw)
}

// UnitQuery filters the unit listing. Search matches title, code, description and
// subject name.
type UnitQuery struct {
	ID     int
	Search string
}

func (q UnitQuery) values() url.Values {
	v := url.Values{}
	if q.ID > 0 {
		v.Set("id", strconv.Itoa(q.ID))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// ListUnits returns units in display order
func (s *Service) ListUnits(ctx context.Context, q UnitQuery) ([]Unit, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, withQuery("/subjects/units/", q.values()), &raw); err != nil {
		return nil, err
	}
	return decodeList[Unit](raw)
}

// MaterialQuery filters the public material listing
type MaterialQuery struct {
	Unit   int
	Search string
	Sort   string
	Page   int
}

func (q MaterialQuery) values() url.Values {
	v := url.Values{}
	if q.Unit > 0 {
		v.Set("unit", strconv.Itoa(q.Unit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// ListMaterials returns one page of materials. Servers without pagination return
// everything as a single page.
func (s *Service) ListMaterials(ctx context.Context, q MaterialQuery) (*MaterialPage, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, withQuery("/materials/", q.values()), &raw); err != nil {
		return nil, err
	}

	var page MaterialPage
	if isArray(raw) {
		if err := json.Unmarshal(raw, &page.Results); err != nil {
			return nil, fmt.Errorf("failed to decode materials: %w", err)
		}
		page.Count = len(page.Results)
		return &page, nil
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("failed to decode materials: %w", err)
		}
	}
	return &page, nil
}

// GetMaterial fetches one material
func (s *Service) GetMaterial(ctx context.Context, id int) (*Material, error) {
	var m Material
	if err := s.client.Get(ctx, fmt.Sprintf("/materials/%d/", id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MaterialDownloadPath is the API path that serves a material's file
func MaterialDownloadPath(id int) string {
	return fmt.Sprintf("/materials/%d/download/", id)
}

// GetQuestionSet fetches a quiz with its questions. Correct answers are not included.
func (s *Service) GetQuestionSet(ctx context.Context, id int) (*QuestionSet, error) {
	var qs QuestionSet
	if err := s.client.Get(ctx, fmt.Sprintf("/quizzes/sets/%d/", id), &qs); err != nil {
		return nil, err
	}
	return &qs, nil
}

// SubmitAttempt sends answers for grading. Requires a signed-in user.
func (s *Service) SubmitAttempt(ctx context.Context, setID int, answers []Answer) (*QuizAttempt, error) {
	if answers == nil {
		answers = []Answer{}
	}
	body := struct {
		QuestionSet int      `json:"question_set"`
		Answers     []Answer `json:"answers"`
	}{setID, answers}

	var attempt QuizAttempt
	if err := s.client.Post(ctx, "/quizzes/attempts/", body, &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// decodeList accepts a bare JSON array or a paginated {"results": [...]} envelope
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if isArray(raw) {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return items, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return page.Results, nil
}
