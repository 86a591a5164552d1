package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"os/user"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"oj-judge/core"
)

func main() {
	cfg := core.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "worker.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	languages, err := core.LoadLanguages(cfg.LanguagesConfigPath)
	if err != nil {
		log.Fatalf("failed to load language registry: %v", err)
	}

	sandbox, err := core.NewDockerSandboxRunner(languages, cfg.ScratchDir)
	if err != nil {
		log.Fatalf("failed to connect to docker: %v", err)
	}
	sandbox.PrePullImages(ctx, languages.RequiredImages())

	queue := core.NewRedisQueue(redisClient)
	subRepo := core.NewPgSubmissionRepository(db)
	content := core.NewContentServiceClient(cfg.ContentServiceURL)
	processor := core.NewWorkerProcessor(subRepo, content, sandbox)

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	workerID := core.NewWorkerID()
	hostname, _ := os.Hostname()
	currentUser, _ := user.Current()
	username := "unknown"
	if currentUser != nil && currentUser.Username != "" {
		username = currentUser.Username
	}
	log.Printf("worker started. id=%s concurrency=%d queue=%s content=%s user=%s", workerID, concurrency, core.PendingQueueKey, cfg.ContentServiceURL, username)

	const pendingKey = core.PendingQueueKey
	const processingKey = core.ProcessingQueueKey
	visibility := core.DefaultVisibilityTimeout
	reclaimInterval := 15 * time.Second

	state := core.NewHeartbeatState(workerID, hostname, concurrency)
	go state.Start(ctx, redisClient)

	// requeue jobs a worker reserved but never acked within the visibility window.
	go func() {
		ticker := time.NewTicker(reclaimInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if jobs, err := queue.RequeueExpired(ctx, processingKey, pendingKey, time.Now()); err != nil {
					log.Printf("[reclaimer] requeue expired error: %v", err)
				} else if len(jobs) > 0 {
					log.Printf("[reclaimer] requeued %d expired jobs", len(jobs))
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				job, err := queue.Reserve(ctx, pendingKey, processingKey, visibility)
				if err != nil {
					if errors.Is(err, redis.Nil) {
						select {
						case <-ctx.Done():
							return
						case <-time.After(100 * time.Millisecond):
							continue
						}
					}
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					log.Printf("[worker %d] dequeue error: %v", workerID, err)
					time.Sleep(time.Second)
					continue
				}

				log.Printf("[worker %d] received job %s", workerID, job)
				state.JobStarted(job)

				verdict, procErr := processor.Process(ctx, job)
				if procErr != nil {
					log.Printf("[worker %d] job %s failed: %v", workerID, job, procErr)
				} else if verdict != "" {
					log.Printf("[worker %d] job %s finished with verdict=%s", workerID, job, verdict)
				}

				if err := queue.Ack(ctx, processingKey, job); err != nil {
					log.Printf("[worker %d] ack failed for job %s: %v", workerID, job, err)
				}
				state.JobFinished(job, procErr)
			}
		}(i + 1)
	}

	wg.Wait()
}
