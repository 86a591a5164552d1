package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSandbox struct {
	result RunResult
}

func (f *fakeSandbox) Run(ctx context.Context, code, languageKey string, testCases []TestCase, timeLimitS, memoryLimitMiB float64) RunResult {
	return f.result
}
func (f *fakeSandbox) PrePullImages(ctx context.Context, images []string) {}

type fakeFullSubRepo struct {
	fakeSubmissionRepo
	sub             *Submission
	updateCalls     int
	lastStatus      Verdict
	lastFasterThan  *float64
	percentileValue float64
}

func (f *fakeFullSubRepo) Get(ctx context.Context, id int64) (*Submission, error) {
	if f.sub == nil {
		return nil, ErrSubmissionNotFound
	}
	return f.sub, nil
}

func (f *fakeFullSubRepo) UpdateTerminal(ctx context.Context, id int64, status Verdict, timeUsed, memoryUsed, fasterThan *float64, perTest []PerTestResultRow) error {
	f.updateCalls++
	f.lastStatus = status
	f.lastFasterThan = fasterThan
	return nil
}

func (f *fakeFullSubRepo) Percentile(ctx context.Context, problemID int64, elapsedS float64) (float64, error) {
	return f.percentileValue, nil
}

func TestWorkerProcessorSkipsAlreadyTerminal(t *testing.T) {
	sub := &Submission{ID: 1, Status: VerdictAC, ProblemID: 1, AuthorID: "alice"}
	repo := &fakeFullSubRepo{sub: sub}
	srv := httptestContentServer(t)
	content := NewContentServiceClient(srv)
	p := NewWorkerProcessor(repo, content, &fakeSandbox{})

	verdict, err := p.Process(context.Background(), "1")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if verdict != VerdictAC {
		t.Fatalf("got %s, want AC (unchanged)", verdict)
	}
	if repo.updateCalls != 0 {
		t.Fatalf("expected no persistence on already-terminal submission, got %d calls", repo.updateCalls)
	}
}

func TestWorkerProcessorPersistsREOnFetchFailure(t *testing.T) {
	sub := &Submission{ID: 2, Status: VerdictPending, ProblemID: 999, AuthorID: "bob"}
	repo := &fakeFullSubRepo{sub: sub}
	content := NewContentServiceClient("http://127.0.0.1:0") // unreachable
	p := NewWorkerProcessor(repo, content, &fakeSandbox{})

	verdict, err := p.Process(context.Background(), "2")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if verdict != VerdictRE {
		t.Fatalf("got %s, want RE", verdict)
	}
	if repo.updateCalls != 1 || repo.lastStatus != VerdictRE {
		t.Fatalf("expected one RE persistence, got calls=%d status=%s", repo.updateCalls, repo.lastStatus)
	}
}

func TestWorkerProcessorComputesPercentileOnAC(t *testing.T) {
	sub := &Submission{ID: 3, Status: VerdictPending, ProblemID: 1, AuthorID: "carol"}
	repo := &fakeFullSubRepo{sub: sub, percentileValue: 87.5}
	srv := httptestContentServer(t)
	content := NewContentServiceClient(srv)
	sandbox := &fakeSandbox{result: RunResult{
		Overall: VerdictAC,
		MaxTime: 0.2,
		PerTest: []PerTestResult{{Status: VerdictAC, ElapsedS: 0.2}},
	}}
	p := NewWorkerProcessor(repo, content, sandbox)

	verdict, err := p.Process(context.Background(), "3")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if verdict != VerdictAC {
		t.Fatalf("got %s, want AC", verdict)
	}
	if repo.updateCalls != 1 || repo.lastStatus != VerdictAC {
		t.Fatalf("expected one AC persistence, got calls=%d status=%s", repo.updateCalls, repo.lastStatus)
	}
	if repo.lastFasterThan == nil || *repo.lastFasterThan != 87.5 {
		t.Fatalf("expected faster_than 87.5 to be persisted, got %v", repo.lastFasterThan)
	}
}

func TestWorkerProcessorInvalidJobIDErrors(t *testing.T) {
	repo := &fakeFullSubRepo{}
	content := NewContentServiceClient("http://127.0.0.1:0")
	p := NewWorkerProcessor(repo, content, &fakeSandbox{})

	if _, err := p.Process(context.Background(), "not-a-number"); err == nil {
		t.Fatalf("expected error for non-numeric job id")
	}
}

func httptestContentServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"test_cases": []map[string]string{{"input_data": "1", "output_data": "1"}},
			})
		case http.MethodPost:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// timeLimitDuration is only reached when a container runs, which no unit test
// does; here we just confirm a zero time limit doesn't block forever.
func TestTimeLimitDurationFloor(t *testing.T) {
	if d := timeLimitDuration(0); d <= 0 || d > time.Second {
		t.Fatalf("got %v, want a small positive duration", d)
	}
}
