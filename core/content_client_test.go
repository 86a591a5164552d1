package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchProblemDefaultsLimits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/problems/5" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"test_cases": []map[string]string{
				{"input_data": "1 2", "output_data": "3"},
			},
		})
	}))
	defer srv.Close()

	client := NewContentServiceClient(srv.URL)
	spec, err := client.FetchProblem(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchProblem: %v", err)
	}
	if spec.TimeLimitS != 10 || spec.MemoryLimitMiB != 128 {
		t.Fatalf("expected default limits, got %+v", spec)
	}
	if len(spec.TestCases) != 1 || spec.TestCases[0].ExpectedOutput != "3" {
		t.Fatalf("got test cases %+v", spec.TestCases)
	}
}

func TestFetchProblemMissingReturnsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewContentServiceClient(srv.URL)
	if _, err := client.FetchProblem(context.Background(), 1); err != ErrProblemMissing {
		t.Fatalf("got %v, want ErrProblemMissing", err)
	}
}

func TestContestSolutionsQueryFiltersByParticipant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contests/9/tasks":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 100}})
		case "/contests/9/participants":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"keycloak_id": "alice"}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	subs := &fakeSubmissionRepo{
		items: []SubmissionListItem{
			{ID: 1, AuthorID: "alice", ProblemID: 100},
			{ID: 2, AuthorID: "mallory", ProblemID: 100},
		},
	}
	client := NewContentServiceClient(srv.URL)
	q := NewContestSolutionsQuery(client, subs)

	items, err := q.List(context.Background(), 9, ContestSolutionsFilter{}, 0, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].AuthorID != "alice" {
		t.Fatalf("got %+v, want only alice's submission", items)
	}
}

func TestContestSolutionsQueryNoParticipantsShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contests/9/tasks":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 100}})
		case "/contests/9/participants":
			_ = json.NewEncoder(w).Encode([]map[string]any{})
		}
	}))
	defer srv.Close()

	subs := &fakeSubmissionRepo{shouldNotBeCalled: true}
	client := NewContentServiceClient(srv.URL)
	q := NewContestSolutionsQuery(client, subs)

	items, err := q.List(context.Background(), 9, ContestSolutionsFilter{}, 0, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %+v, want empty", items)
	}
}

type fakeSubmissionRepo struct {
	items             []SubmissionListItem
	shouldNotBeCalled bool
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, authorID string, problemID int64, code, language string) (*Submission, error) {
	return nil, nil
}
func (f *fakeSubmissionRepo) Get(ctx context.Context, id int64) (*Submission, error) { return nil, nil }
func (f *fakeSubmissionRepo) UpdateTerminal(ctx context.Context, id int64, status Verdict, timeUsed, memoryUsed, fasterThan *float64, perTest []PerTestResultRow) error {
	return nil
}
func (f *fakeSubmissionRepo) ListByProblem(ctx context.Context, problemID int64, offset, limit int) ([]SubmissionListItem, error) {
	return nil, nil
}
func (f *fakeSubmissionRepo) ListByProblemAndUser(ctx context.Context, problemID int64, authorID string, offset, limit int) ([]SubmissionListItem, error) {
	return nil, nil
}
func (f *fakeSubmissionRepo) ListByIDs(ctx context.Context, ids []int64, authorID, problemID string, offset, limit int) ([]SubmissionListItem, error) {
	if f.shouldNotBeCalled {
		panic("ListByIDs should not be called when no participants exist")
	}
	return f.items, nil
}
func (f *fakeSubmissionRepo) Percentile(ctx context.Context, problemID int64, elapsedS float64) (float64, error) {
	return 100, nil
}
