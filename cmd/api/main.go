package main

import (
	"context"
	"fmt"
	"log"

	"oj-judge/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
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

	verifier, err := core.NewTokenVerifier(cfg.JWTPublicKeyPath, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		log.Fatalf("failed to build token verifier: %v", err)
	}

	userRepo := core.NewPgUserRepository(db)
	authService := core.NewRepositoryAuthService(userRepo)
	if err := core.BootstrapAdmin(ctx, userRepo, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	subRepo := core.NewPgSubmissionRepository(db)
	problemRepo := core.NewPgProblemRepository(db)
	content := core.NewContentServiceClient(cfg.ContentServiceURL)
	contests := core.NewContestSolutionsQuery(content, subRepo)
	queue := core.NewRedisQueue(redisClient)

	router := core.NewRouter(core.RouterDeps{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
		SubRepo:     subRepo,
		ProblemRepo: problemRepo,
		Queue:       queue,
		Verifier:    verifier,
		Languages:   languages,
		Contests:    contests,
		AuthService: authService,
		UserRepo:    userRepo,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
