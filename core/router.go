package core

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// RouterDeps bundles every collaborator the HTTP surface delegates to,
// per spec §4.8.
type RouterDeps struct {
	Config      Config
	DB          *pgxpool.Pool
	RedisClient *redis.Client
	SubRepo     SubmissionRepository
	ProblemRepo ProblemRepository
	Queue       RedisClient
	Verifier    *TokenVerifier
	Languages   *LanguageRegistry
	Contests    *ContestSolutionsQuery
	AuthService AuthService
	UserRepo    UserRepository
}

// NewRouter constructs the Gin engine with the submission API (C8), plus
// the ambient health/metrics surface and the admin-only problem-archive
// import tooling, per spec §6.
func NewRouter(deps RouterDeps) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()
	r.Use(CORSMiddleware(deps.Config))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	metricsService := NewMetricsService(deps.RedisClient)
	r.GET("/metrics", func(c *gin.Context) {
		ctx := c.Request.Context()
		st, err := CollectSystemStatus(ctx, metricsService, startedAt)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to collect metrics")
			return
		}
		c.JSON(http.StatusOK, st)
	})

	r.GET("/languages/", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Languages.PublicList())
	})

	solutions := r.Group("/solutions")
	solutions.Use(BearerAuthMiddleware(deps.Verifier))
	{
		solutions.POST("/", func(c *gin.Context) {
			claims, _ := ClaimsFromContext(c)

			var req struct {
				ProblemID int64  `json:"problem_id"`
				Code      string `json:"code"`
				Language  string `json:"language"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if req.ProblemID <= 0 || strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Language) == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "problem_id, code, language は必須です")
				return
			}

			ctx := c.Request.Context()
			sub, err := deps.SubRepo.Create(ctx, claims.Subject, req.ProblemID, req.Code, req.Language)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create submission")
				return
			}
			if err := deps.Queue.Enqueue(ctx, PendingQueueKey, strconv.FormatInt(sub.ID, 10)); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to enqueue")
				return
			}

			c.JSON(http.StatusCreated, submissionJSON(sub))
		})

		solutions.GET("/my/:problem_id", func(c *gin.Context) {
			claims, _ := ClaimsFromContext(c)
			problemID, err := strconv.ParseInt(c.Param("problem_id"), 10, 64)
			if err != nil || problemID <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid problem_id")
				return
			}
			offset, limit := parseOffsetLimit(c)

			ctx := c.Request.Context()
			items, err := deps.SubRepo.ListByProblemAndUser(ctx, problemID, claims.Subject, offset, limit)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch submissions")
				return
			}
			c.JSON(http.StatusOK, listItemsJSON(items))
		})
	}

	// These two routes are listed in spec §6 without requiring bearer auth.
	r.GET("/solutions/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
			return
		}
		ctx := c.Request.Context()
		sub, err := deps.SubRepo.Get(ctx, id)
		if err != nil {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "submission not found")
			return
		}
		c.JSON(http.StatusOK, submissionJSON(sub))
	})

	r.GET("/solutions/by-problem/:problem_id", func(c *gin.Context) {
		problemID, err := strconv.ParseInt(c.Param("problem_id"), 10, 64)
		if err != nil || problemID <= 0 {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid problem_id")
			return
		}
		offset, limit := parseOffsetLimit(c)
		ctx := c.Request.Context()
		items, err := deps.SubRepo.ListByProblem(ctx, problemID, offset, limit)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch submissions")
			return
		}
		c.JSON(http.StatusOK, listItemsJSON(items))
	})

	// Shares the ":id" wildcard name with the single-submission route above —
	// gin's radix tree allows only one wildcard name per path position, so
	// this must reuse "id" (here meaning contest id) rather than "contest_id".
	r.GET("/solutions/:id/solutions", func(c *gin.Context) {
		contestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || contestID <= 0 {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid contest_id")
			return
		}
		offset, limit := parseOffsetLimit(c)
		filter := ContestSolutionsFilter{
			AuthorID:  strings.TrimSpace(c.Query("user_id")),
			ProblemID: strings.TrimSpace(c.Query("problem_id")),
		}
		ctx := c.Request.Context()
		items, err := deps.Contests.List(ctx, contestID, filter, offset, limit)
		if err != nil {
			respondError(c, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to fetch contest solutions")
			return
		}
		c.JSON(http.StatusOK, listItemsJSON(items))
	})

	registerAdminRoutes(r, deps)

	return r
}

func submissionJSON(s *Submission) gin.H {
	return gin.H{
		"id":          s.ID,
		"created_by":  s.AuthorID,
		"problem_id":  s.ProblemID,
		"code":        s.Code,
		"language":    s.Language,
		"status":      s.Status,
		"time_used":   s.TimeUsed,
		"memory_used": s.MemoryUsed,
		"faster_than": s.FasterThan,
		"created_at":  s.CreatedAt,
		"updated_at":  s.UpdatedAt,
	}
}

func listItemsJSON(items []SubmissionListItem) []gin.H {
	out := make([]gin.H, 0, len(items))
	for _, it := range items {
		out = append(out, gin.H{
			"id":          it.ID,
			"created_by":  it.AuthorID,
			"problem_id":  it.ProblemID,
			"language":    it.Language,
			"status":      it.Status,
			"time_used":   it.TimeUsed,
			"memory_used": it.MemoryUsed,
			"faster_than": it.FasterThan,
			"created_at":  it.CreatedAt,
		})
	}
	return out
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func parseOffsetLimit(c *gin.Context) (int, int) {
	offset, limit := 0, defaultLimit
	if v := strings.TrimSpace(c.Query("offset")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}

// registerAdminRoutes wires the operator-facing surface (bcrypt login,
// problem-archive import) that is supplemented beyond spec.md's
// distillation, gated behind the opaque Redis-backed admin token scheme.
func registerAdminRoutes(r *gin.Engine, deps RouterDeps) {
	r.POST("/admin/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		user, err := deps.AuthService.Authenticate(req.Username, req.Password)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
			return
		}
		ctx := c.Request.Context()
		token, err := IssueAdminToken(ctx, deps.RedisClient, user.Username)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue token")
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "username": user.Username, "role": user.Role})
	})

	admin := r.Group("/admin")
	admin.Use(AdminOnly(deps.RedisClient))
	{
		admin.POST("/users", func(c *gin.Context) {
			var req struct {
				UserID   string `json:"userid"`
				Password string `json:"password"`
				Role     string `json:"role"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			req.UserID = strings.TrimSpace(req.UserID)
			req.Role = strings.TrimSpace(req.Role)
			if req.UserID == "" || req.Password == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "userid and password are required")
				return
			}
			if req.Role == "" {
				req.Role = "user"
			}
			if req.Role != "user" && req.Role != "admin" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role")
				return
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
				return
			}
			ctx := c.Request.Context()
			if _, err := deps.UserRepo.Create(ctx, req.UserID, string(hash), req.Role); err != nil {
				if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
					respondError(c, http.StatusConflict, "CONFLICT", "userid already exists")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
				return
			}
			c.Status(http.StatusCreated)
		})

		admin.POST("/users/bulk", func(c *gin.Context) {
			fileHeader, err := c.FormFile("file")
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "file フィールドに CSV を指定してください")
				return
			}
			file, err := fileHeader.Open()
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "ファイルを開けません")
				return
			}
			defer file.Close()

			reader := csv.NewReader(file)
			records, err := reader.ReadAll()
			if err != nil || len(records) == 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "CSV を読み取れません")
				return
			}
			header := records[0]
			if len(header) < 2 || strings.ToLower(strings.TrimSpace(header[0])) != "userid" || strings.ToLower(strings.TrimSpace(header[1])) != "password" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "ヘッダーは userid,password 形式にしてください")
				return
			}

			type failedRow struct {
				RowNumber int    `json:"row_number"`
				UserID    string `json:"userid"`
				Reason    string `json:"reason"`
			}
			var failed []failedRow
			created := 0

			ctx := c.Request.Context()
			for i, row := range records[1:] {
				rowNumber := i + 2
				if len(row) < 2 {
					failed = append(failed, failedRow{RowNumber: rowNumber, Reason: "INVALID_ROW"})
					continue
				}
				userid := strings.TrimSpace(row[0])
				password := row[1]
				if userid == "" || password == "" {
					failed = append(failed, failedRow{RowNumber: rowNumber, UserID: userid, Reason: "VALIDATION_ERROR"})
					continue
				}
				hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
				if err != nil {
					failed = append(failed, failedRow{RowNumber: rowNumber, UserID: userid, Reason: "INTERNAL_ERROR"})
					continue
				}
				if _, err := deps.UserRepo.Create(ctx, userid, string(hash), "user"); err != nil {
					reason := "UNKNOWN_ERROR"
					if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
						reason = "USERID_ALREADY_EXISTS"
					}
					failed = append(failed, failedRow{RowNumber: rowNumber, UserID: userid, Reason: reason})
					continue
				}
				created++
			}

			c.JSON(http.StatusOK, gin.H{
				"created_count": created,
				"failed_count":  len(failed),
				"failed_rows":   failed,
			})
		})

		admin.GET("/problems/template", func(c *gin.Context) {
			data, err := buildProblemTemplateZip()
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to build template")
				return
			}
			c.Header("Content-Type", "application/zip")
			c.Header("Content-Disposition", "attachment; filename=two-string.zip")
			c.Data(http.StatusOK, "application/zip", data)
		})

		admin.POST("/problems/import", func(c *gin.Context) {
			fileHeader, err := c.FormFile("file")
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "file フィールドに zip を指定してください")
				return
			}
			if fileHeader.Size > maxProblemImportSize {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "ファイルが大きすぎます (8MB 以下にしてください)")
				return
			}
			file, err := fileHeader.Open()
			if err != nil {
				respondError(c, http.StatusBadRequest, "INVALID_PROBLEM_PACKAGE", "ファイルを開けません")
				return
			}
			defer file.Close()
			limited := io.LimitReader(file, maxProblemImportSize+1024)
			data, err := io.ReadAll(limited)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "アップロードの読み取りに失敗しました")
				return
			}
			if int64(len(data)) > maxProblemImportSize {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "ファイルが大きすぎます (8MB 以下にしてください)")
				return
			}

			pkg, err := ParseProblemArchive(data)
			if err != nil {
				respondError(c, http.StatusBadRequest, "INVALID_PROBLEM_PACKAGE", err.Error())
				return
			}

			ctx := c.Request.Context()
			problemID, err := deps.ProblemRepo.CreateWithTestcases(ctx, pkg)
			if err != nil {
				if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
					respondError(c, http.StatusConflict, "CONFLICT", "同じ slug の問題が既に存在します")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "問題の保存に失敗しました")
				return
			}

			c.JSON(http.StatusCreated, gin.H{
				"id":              problemID,
				"title":           pkg.Title,
				"slug":            pkg.Slug,
				"time_limit_ms":   pkg.TimeLimitMS,
				"memory_limit_kb": pkg.MemoryLimitKB,
				"is_public":       pkg.IsPublic,
			})
		})

		admin.GET("/problems", func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			ctx := c.Request.Context()
			items, total, err := deps.ProblemRepo.AdminList(ctx, page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch problems")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"items":       items,
				"page":        page,
				"per_page":    perPage,
				"total_items": total,
				"total_pages": calcTotalPages(total, perPage),
			})
		})

		admin.GET("/problems/:id/download", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			ctx := c.Request.Context()
			detail, err := deps.ProblemRepo.FindDetailAdmin(ctx, id)
			if err != nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "problem not found")
				return
			}
			cases, err := deps.ProblemRepo.ListTestcases(ctx, id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load testcases")
				return
			}
			zipBytes, err := buildProblemZipFromDB(*detail, cases)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to build archive")
				return
			}
			c.Header("Content-Type", "application/zip")
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.zip", detail.Slug))
			c.Data(http.StatusOK, "application/zip", zipBytes)
		})

		admin.PATCH("/problems/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			var req struct {
				Title         *string `json:"title"`
				StatementMD   *string `json:"statement_md"`
				TimeLimitMS   *int32  `json:"time_limit_ms"`
				MemoryLimitKB *int32  `json:"memory_limit_kb"`
				IsPublic      *bool   `json:"is_public"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			ctx := c.Request.Context()
			exists, err := deps.ProblemRepo.Exists(ctx, id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch problem")
				return
			}
			if !exists {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "problem not found")
				return
			}
			if err := deps.ProblemRepo.UpdateProblem(ctx, id, ProblemUpdateInput{
				Title:         req.Title,
				StatementMD:   req.StatementMD,
				TimeLimitMS:   req.TimeLimitMS,
				MemoryLimitKB: req.MemoryLimitKB,
				IsPublic:      req.IsPublic,
			}); err != nil {
				if strings.Contains(err.Error(), "limit") {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update problem")
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.GET("/problems/:id/stats", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			ctx := c.Request.Context()
			stats, err := deps.ProblemRepo.ProblemStats(ctx, id)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "problem not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch stats")
				return
			}
			c.JSON(http.StatusOK, stats)
		})

		admin.GET("/problems/:id/submissions", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			offset, limit := parseOffsetLimit(c)
			ctx := c.Request.Context()
			exists, err := deps.ProblemRepo.Exists(ctx, id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch problem")
				return
			}
			if !exists {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "problem not found")
				return
			}
			items, err := deps.SubRepo.ListByProblem(ctx, id, offset, limit)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch submissions")
				return
			}
			c.JSON(http.StatusOK, listItemsJSON(items))
		})

		admin.GET("/queue", func(c *gin.Context) {
			ctx := c.Request.Context()
			n, err := deps.RedisClient.LLen(ctx, PendingQueueKey).Result()
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to get queue length")
				return
			}
			c.JSON(http.StatusOK, gin.H{"pending": n})
		})
	}
}

const (
	defaultPerPage       = 20
	maxPerPage           = 100
	maxProblemImportSize = 8 * 1024 * 1024 // 8MB (upload payload limit)
)

func parsePagination(pageStr, perPageStr string) (int, int, error) {
	page := 1
	perPage := defaultPerPage
	if strings.TrimSpace(pageStr) != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("page は 1 以上の整数で指定してください")
		}
		page = p
	}
	if strings.TrimSpace(perPageStr) != "" {
		p, err := strconv.Atoi(perPageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("per_page は 1 以上の整数で指定してください")
		}
		if p > maxPerPage {
			p = maxPerPage
		}
		perPage = p
	}
	return page, perPage, nil
}

func calcTotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

func buildProblemTemplateZip() ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	files := []struct {
		name    string
		content string
	}{
		{
			name: "two-string/problem.yaml",
			content: `slug: two-string
title: "Two String"

limits:
  time_ms: 2000
  memory_mb: 256
`,
		},
		{
			name:    "two-string/statement.md",
			content: "## 問題文\n2 行からなる入力で文字列 S, T が与えられます。S と T をこの順に連結した文字列を出力してください。\n\n## 制約\n- 1 ≤ |S| ≤ 100\n- 1 ≤ |T| ≤ 100\n- S, T は印字可能な ASCII 文字で構成される\n\n## 入力\n```\nS\nT\n```\n\n## 出力\n```\nS と T を連結した文字列を 1 行で出力せよ。\n```\n",
		},
		{name: "two-string/data/sample/01.in", content: "Hello\nOJ\n"},
		{name: "two-string/data/sample/01.out", content: "HelloOJ\n"},
		{name: "two-string/data/secret/01.in", content: "abc\nxyz\n"},
		{name: "two-string/data/secret/01.out", content: "abcxyz\n"},
	}

	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildProblemZipFromDB builds a problem archive from DB contents for admin download.
func buildProblemZipFromDB(detail ProblemDetail, cases []ProblemTestcase) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	write := func(name, content string) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(content))
		return err
	}

	problemYAML := fmt.Sprintf(`slug: %s
title: "%s"

limits:
  time_ms: %d
  memory_mb: %d
`, detail.Slug, detail.Title, detail.TimeLimitMS, (detail.MemoryLimitKB+1023)/1024)

	if err := write(fmt.Sprintf("%s/problem.yaml", detail.Slug), problemYAML); err != nil {
		return nil, err
	}
	if err := write(fmt.Sprintf("%s/statement.md", detail.Slug), detail.StatementMD); err != nil {
		return nil, err
	}

	sampleIdx, secretIdx := 1, 1
	for _, tc := range cases {
		prefix := "secret"
		idx := secretIdx
		if tc.IsSample {
			prefix = "sample"
			idx = sampleIdx
			sampleIdx++
		} else {
			secretIdx++
		}
		name := fmt.Sprintf("%02d", idx)
		if err := write(fmt.Sprintf("%s/data/%s/%s.in", detail.Slug, prefix, name), tc.InputText); err != nil {
			return nil, err
		}
		if err := write(fmt.Sprintf("%s/data/%s/%s.out", detail.Slug, prefix, name), tc.OutputText); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
