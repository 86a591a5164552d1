package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"
)

// ErrProblemMissing is returned when the content service has no such
// problem, or is unreachable — both map to RE termination per spec §4.5.
var ErrProblemMissing = errors.New("problem not found in content service")

const defaultContentTimeout = 5 * time.Second

// ContentServiceClient talks to the surrounding content service over HTTP,
// per spec §4.3/§4.7. The content service's own API is not owned by this
// module, so a bounded plain net/http client is the correct idiom — no HTTP
// client library appears anywhere in the example pack for this concern.
type ContentServiceClient struct {
	baseURL string
	http    *http.Client
}

func NewContentServiceClient(baseURL string) *ContentServiceClient {
	return &ContentServiceClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultContentTimeout},
	}
}

type contentProblemResponse struct {
	TestCases []struct {
		InputData  string `json:"input_data"`
		OutputData string `json:"output_data"`
	} `json:"test_cases"`
	TimeLimit   float64 `json:"time_limit"`
	MemoryLimit float64 `json:"memory_limit"`
}

// FetchProblem loads the judging-relevant projection of a problem, per
// spec §4.3. time_limit/memory_limit default when absent or zero.
func (c *ContentServiceClient) FetchProblem(ctx context.Context, problemID int64) (*ProblemSpec, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultContentTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/problems/%d", c.baseURL, problemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ErrProblemMissing
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ErrProblemMissing
	}

	var body contentProblemResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ErrProblemMissing
	}

	spec := &ProblemSpec{TimeLimitS: body.TimeLimit, MemoryLimitMiB: body.MemoryLimit}
	if spec.TimeLimitS <= 0 {
		spec.TimeLimitS = 10
	}
	if spec.MemoryLimitMiB <= 0 {
		spec.MemoryLimitMiB = 128
	}
	for _, tc := range body.TestCases {
		spec.TestCases = append(spec.TestCases, TestCase{Input: tc.InputData, ExpectedOutput: tc.OutputData})
	}
	return spec, nil
}

// PostSolvedNotification tells the content service a problem was solved.
// Best-effort: failures are returned for logging only, never surfaced to
// the judge pipeline as a terminal error, per spec §4.5 step 5.
func (c *ContentServiceClient) PostSolvedNotification(ctx context.Context, problemID int64, authorID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultContentTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/problems/solved/%d?user_id=%s", c.baseURL, problemID, url.QueryEscape(authorID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("solved notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ContestSolutionsFilter narrows a contest solutions listing, per spec §4.7.
type ContestSolutionsFilter struct {
	AuthorID  string
	ProblemID string
}

// ContestSolutionsQuery implements C7: joining the content service's
// contest-membership view against the submission store.
type ContestSolutionsQuery struct {
	content *ContentServiceClient
	subs    SubmissionRepository
}

func NewContestSolutionsQuery(content *ContentServiceClient, subs SubmissionRepository) *ContestSolutionsQuery {
	return &ContestSolutionsQuery{content: content, subs: subs}
}

// contestTaskEntry/contestParticipantEntry mirror the content service's bare
// JSON arrays of objects (original `list_contest_solutions`: `[t["id"] for t
// in tasks]`, `[u["keycloak_id"] for u in participants]`), not a wrapper
// object.
type contestTaskEntry struct {
	ID int64 `json:"id"`
}

type contestParticipantEntry struct {
	KeycloakID string `json:"keycloak_id"`
}

// List implements spec §4.7's five steps. A transport failure on either
// outbound call surfaces as a single error — no partial results.
func (q *ContestSolutionsQuery) List(ctx context.Context, contestID int64, filter ContestSolutionsFilter, offset, limit int) ([]SubmissionListItem, error) {
	tasks, err := q.fetchTasks(ctx, contestID)
	if err != nil {
		return nil, err
	}
	participants, err := q.fetchParticipants(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 || len(participants) == 0 {
		return nil, nil
	}

	// Participants are filtered here, so pagination is applied afterwards.
	items, err := q.subs.ListByIDs(ctx, tasks, filter.AuthorID, filter.ProblemID, 0, math.MaxInt32)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		allowed[p] = struct{}{}
	}
	filtered := items[:0]
	for _, it := range items {
		if _, ok := allowed[it.AuthorID]; ok {
			filtered = append(filtered, it)
		}
	}
	if offset >= len(filtered) || limit <= 0 {
		return nil, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}

func (q *ContestSolutionsQuery) fetchTasks(ctx context.Context, contestID int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultContentTimeout)
	defer cancel()
	u := fmt.Sprintf("%s/contests/%d/tasks", q.content.baseURL, contestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := q.content.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch contest tasks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch contest tasks: status %d", resp.StatusCode)
	}
	var entries []contestTaskEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode contest tasks: %w", err)
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (q *ContestSolutionsQuery) fetchParticipants(ctx context.Context, contestID int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultContentTimeout)
	defer cancel()
	u := fmt.Sprintf("%s/contests/%d/participants", q.content.baseURL, contestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := q.content.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch contest participants: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch contest participants: status %d", resp.StatusCode)
	}
	var entries []contestParticipantEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode contest participants: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.KeycloakID)
	}
	return ids, nil
}
