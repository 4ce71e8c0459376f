package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aipm/docs"
	"aipm/generator"
	"aipm/logger"
)

// Client-facing messages. Details of failures are only logged.
const (
	msgScheduleInvalid  = "프로젝트 종류와 기간 데이터가 필요합니다."
	msgReferenceInvalid = "이미지 주소, 프로젝트 종류, 사용자 요청사항 입력 데이터가 필요합니다."
	msgCuratedInvalid   = "이미지 주소 배열, 프로젝트 종류, 방향성 키워드 데이터가 필요합니다."
	msgDraftInvalid     = "이미지 주소, 시안 설명, 프로젝트 종류, 사용자 요청사항 입력 데이터가 필요합니다."
	msgInternal         = "서버 처리 중 오류가 발생했습니다."
)

// Orchestrator is the pipeline behind the API. *generator.Agent implements it.
type Orchestrator interface {
	Schedule(ctx context.Context, req generator.ScheduleRequest) (generator.ScheduleResult, error)
	ReferenceImage(ctx context.Context, req generator.ReferenceImageRequest) (generator.ImageResult, error)
	CuratedAssets(ctx context.Context, req generator.CuratedAssetsRequest) ([]string, error)
	DraftExplain(ctx context.Context, req generator.DraftExplainRequest) (string, error)
	DraftImage(ctx context.Context, req generator.DraftImageRequest) (generator.ImageResult, error)
}

type Options struct {
	Logger         logger.Logger
	RequestTimeout time.Duration
	CORSOrigins    []string
	MaxBodyBytes   int64
}

type Server struct {
	agent    Orchestrator
	log      logger.Logger
	validate *validator.Validate
	timeout  time.Duration
	maxBody  int64
	cors     map[string]bool
	docs     http.Handler
}

func New(agent Orchestrator, opts Options) (*Server, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 32 << 20
	}
	docsHandler, err := docs.Handler()
	if err != nil {
		return nil, err
	}
	return &Server{
		agent:    agent,
		log:      opts.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		timeout:  opts.RequestTimeout,
		maxBody:  opts.MaxBodyBytes,
		cors:     normalizeOrigins(opts.CORSOrigins),
		docs:     docsHandler,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ai_schedule", s.handleSchedule)
	mux.HandleFunc("POST /api/ai_reference_img", s.handleReferenceImage)
	mux.HandleFunc("POST /api/ai_curated_assets", s.handleCuratedAssets)
	mux.HandleFunc("POST /api/ai_draft_explain", s.handleDraftExplain)
	mux.HandleFunc("POST /api/ai_draft_img", s.handleDraftImage)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /api-docs", s.docs)

	return requestIDMiddleware(s.corsMiddleware(s.logMiddleware(mux)))
}

// --- Handlers ---

type scheduleReq struct {
	ProjectType string `json:"projectType" validate:"required"`
	Duration    string `json:"duration" validate:"required"`
}

type referenceImgReq struct {
	ImageURLs   []string `json:"imageURLs" validate:"required,min=1"`
	ProjectType string   `json:"projectType" validate:"required"`
	UserInput   string   `json:"userInput"`
}

type curatedAssetsReq struct {
	ImageURLs   []string `json:"imageURLs"`
	ProjectType string   `json:"projectType" validate:"required"`
	Keywords    string   `json:"keywords" validate:"required"`
}

type draftExplainReq struct {
	ImageURL    string `json:"imageURL" validate:"required"`
	ProjectType string `json:"projectType" validate:"required"`
	Keywords    string `json:"keywords" validate:"required"`
}

type draftImgReq struct {
	ImageURL    string `json:"imageURL" validate:"required"`
	Explanation string `json:"explanation" validate:"required"`
	ProjectType string `json:"projectType" validate:"required"`
	UserInput   string `json:"userInput"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	if !s.decode(w, r, &req, msgScheduleInvalid) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.agent.Schedule(ctx, generator.ScheduleRequest{
		ProjectType: req.ProjectType,
		Duration:    req.Duration,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleReferenceImage(w http.ResponseWriter, r *http.Request) {
	var req referenceImgReq
	if !s.decode(w, r, &req, msgReferenceInvalid) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.agent.ReferenceImage(ctx, generator.ReferenceImageRequest{
		ImageURLs:   req.ImageURLs,
		ProjectType: req.ProjectType,
		UserInput:   req.UserInput,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleCuratedAssets(w http.ResponseWriter, r *http.Request) {
	var req curatedAssetsReq
	if !s.decode(w, r, &req, msgCuratedInvalid) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.agent.CuratedAssets(ctx, generator.CuratedAssetsRequest{
		ImageURLs:   req.ImageURLs,
		ProjectType: req.ProjectType,
		Keywords:    req.Keywords,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleDraftExplain(w http.ResponseWriter, r *http.Request) {
	var req draftExplainReq
	if !s.decode(w, r, &req, msgDraftInvalid) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.agent.DraftExplain(ctx, generator.DraftExplainRequest{
		ImageURL:    req.ImageURL,
		ProjectType: req.ProjectType,
		Keywords:    req.Keywords,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleDraftImage(w http.ResponseWriter, r *http.Request) {
	var req draftImgReq
	if !s.decode(w, r, &req, msgDraftInvalid) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res, err := s.agent.DraftImage(ctx, generator.DraftImageRequest{
		ImageURL:    req.ImageURL,
		Explanation: req.Explanation,
		ProjectType: req.ProjectType,
		UserInput:   req.UserInput,
	})
	s.respond(w, r, res, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// --- Helpers ---

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// decode reads and validates the JSON body. On failure it writes the 400
// response and returns false; no model call is made.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, invalidMsg string) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	err := json.NewDecoder(body).Decode(dst)
	if err == nil {
		err = s.validate.Struct(dst)
	}
	if err != nil {
		s.log.Info("request rejected", logger.Fields{
			"path":       r.URL.Path,
			"request_id": RequestIDFrom(r.Context()),
			"reason":     err.Error(),
		})
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: invalidMsg})
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		fields := logger.Fields{
			"path":       r.URL.Path,
			"request_id": RequestIDFrom(r.Context()),
		}
		var pe *generator.PipelineError
		if errors.As(err, &pe) {
			fields["code"] = string(pe.Code)
			fields["stage"] = pe.Stage
		}
		s.log.WithError(err).Error("request failed", fields)
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: msgInternal})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
