package core

import (
	"context"
	"log"
	"strconv"
)

// WorkerProcessor consumes submission IDs off the queue and runs them
// through C2/C3/C6, per spec §4.5.
type WorkerProcessor struct {
	subRepo SubmissionRepository
	content *ContentServiceClient
	sandbox SandboxRunner
}

func NewWorkerProcessor(subRepo SubmissionRepository, content *ContentServiceClient, sandbox SandboxRunner) *WorkerProcessor {
	return &WorkerProcessor{subRepo: subRepo, content: content, sandbox: sandbox}
}

// Process takes a submission ID (as a string from the queue payload) and
// executes the full judge pipeline, per spec §4.5's six steps.
func (p *WorkerProcessor) Process(ctx context.Context, jobID string) (Verdict, error) {
	id, err := strconv.ParseInt(jobID, 10, 64)
	if err != nil {
		return "", err
	}

	sub, err := p.subRepo.Get(ctx, id)
	if err != nil {
		log.Printf("judge.load: submission %d not found: %v", id, err)
		return "", nil
	}

	// Idempotency: a submission that is no longer pending is a no-op,
	// closing the gap spec.md flags as unenforced in the source. A
	// submission another worker is still judging reads as pending.
	if sub.Status != VerdictPending {
		log.Printf("judge.skip: submission %d already terminal (%s)", id, sub.Status)
		return sub.Status, nil
	}

	problem, err := p.content.FetchProblem(ctx, sub.ProblemID)
	if err != nil {
		log.Printf("judge.fetch: submission %d problem %d: %v", id, sub.ProblemID, err)
		if uerr := p.subRepo.UpdateTerminal(ctx, id, VerdictRE, nil, nil, nil, nil); uerr != nil {
			log.Printf("judge.persist: submission %d: %v", id, uerr)
		}
		return VerdictRE, nil
	}

	log.Printf("judge.sandbox: submission %d running %d test case(s)", id, len(problem.TestCases))
	result := p.sandbox.Run(ctx, sub.Code, sub.Language, problem.TestCases, problem.TimeLimitS, problem.MemoryLimitMiB)

	perTest := make([]PerTestResultRow, 0, len(result.PerTest))
	for i, pt := range result.PerTest {
		var timeMS *int32
		if pt.ElapsedS > 0 {
			t := int32(pt.ElapsedS * 1000.0)
			timeMS = &t
		}
		perTest = append(perTest, PerTestResultRow{TestIndex: i, Status: pt.Status, TimeMS: timeMS})
	}

	var fasterThan *float64
	if result.Overall == VerdictAC {
		if err := p.content.PostSolvedNotification(ctx, sub.ProblemID, sub.AuthorID); err != nil {
			log.Printf("judge.notify: submission %d: %v", id, err)
		}
		if pct, err := p.subRepo.Percentile(ctx, sub.ProblemID, firstElapsed(result.PerTest)); err != nil {
			log.Printf("judge.percentile: submission %d: %v", id, err)
		} else {
			fasterThan = &pct
		}
	}

	timeUsed := &result.MaxTime
	if len(result.PerTest) == 0 {
		timeUsed = nil
	}

	log.Printf("judge.persist: submission %d verdict=%s", id, result.Overall)
	if err := p.subRepo.UpdateTerminal(ctx, id, result.Overall, timeUsed, nil, fasterThan, perTest); err != nil {
		log.Printf("judge.persist: submission %d: %v", id, err)
	}

	return result.Overall, nil
}

// firstElapsed returns the first test case's elapsed time, per spec §4.5
// step 5's FasterThan computation.
func firstElapsed(perTest []PerTestResult) float64 {
	if len(perTest) == 0 {
		return 0
	}
	return perTest[0].ElapsedS
}
