package generator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"aipm/logger"
	"aipm/metrics"
)

const dateLayout = "2006-01-02"

// ErrNoUsableImages is returned when none of the reference images could be
// loaded.
var ErrNoUsableImages = errors.New("no usable reference images")

// AttachmentResolver turns image references from requests into data URIs or
// URLs the model can read. ResolveAll leaves "" in slots whose image is
// unavailable.
type AttachmentResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
	ResolveAll(ctx context.Context, refs []string) ([]string, error)
}

// AgentDeps are the collaborators of Agent. Archiver and Logger are optional.
type AgentDeps struct {
	LLM         LLMClient
	Vocabulary  *Vocabulary
	Attachments AttachmentResolver
	Archiver    *Archiver
	Logger      logger.Logger
}

// Agent 串联各端点的提示词流水线：选模板、拼提示词、调用模型、校验并抽取结果。
// 无跨请求状态，可被多个 goroutine 并发使用。
type Agent struct {
	llm       LLMClient
	prompts   *PromptBuilder
	templates *TemplateSet
	vocab     *Vocabulary
	images    AttachmentResolver
	archive   *Archiver
	log       logger.Logger
}

func NewAgent(deps AgentDeps) (*Agent, error) {
	if deps.LLM == nil {
		return nil, errors.New("llm client is required")
	}
	if deps.Vocabulary == nil {
		return nil, errors.New("tag vocabulary is required")
	}
	if deps.Attachments == nil {
		return nil, errors.New("attachment resolver is required")
	}
	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, err
	}
	templates, err := NewTemplateSet()
	if err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Agent{
		llm:       deps.LLM,
		prompts:   prompts,
		templates: templates,
		vocab:     deps.Vocabulary,
		images:    deps.Attachments,
		archive:   deps.Archiver,
		log:       log,
	}, nil
}

// Classify maps a free-text project type to a Category.
func (a *Agent) Classify(ctx context.Context, projectType string) (Category, error) {
	system, err := a.prompts.Build(TmplCategorize, nil)
	if err != nil {
		return CategoryUnspecified, err
	}
	var num int
	err = a.runStructured(ctx, Prompt{
		Stage:  StageClassify,
		System: system,
		User:   projectType,
		Schema: categorySchema,
	}, "category_num", &num)
	if err != nil {
		return CategoryUnspecified, err
	}
	return Category(num), nil
}

// Schedule classifies the project, picks the duration example, asks for a
// structured schedule and sanity-checks the dates.
func (a *Agent) Schedule(ctx context.Context, req ScheduleRequest) (ScheduleResult, error) {
	category, err := a.Classify(ctx, req.ProjectType)
	if err != nil {
		return ScheduleResult{}, err
	}

	example, err := a.templates.Select(category)
	if errors.Is(err, ErrTemplateNotFound) {
		a.log.Warn("category outside known range, using default template", logger.Fields{
			"category":     int(category),
			"project_type": req.ProjectType,
		})
		category = CategoryOther
		example, err = a.templates.Select(category)
	}
	if err != nil {
		return ScheduleResult{}, err
	}

	system, err := a.prompts.Build(TmplSchedule, Fields{"DurationExample": example})
	if err != nil {
		return ScheduleResult{}, err
	}
	var entries []ScheduleEntry
	err = a.runStructured(ctx, Prompt{
		Stage:  StageSchedule,
		System: system,
		User:   fmt.Sprintf("%s, overall period %s", req.ProjectType, req.Duration),
		Schema: scheduleSchema,
	}, "schedules", &entries)
	if err != nil {
		return ScheduleResult{}, err
	}

	if err := a.checkSchedule(entries); err != nil {
		return ScheduleResult{}, withStage(StageSchedule, err)
	}
	a.log.Info("schedule generated", logger.Fields{
		"category": category.String(),
		"items":    len(entries),
	})
	return ScheduleResult{Schedules: entries}, nil
}

// checkSchedule rejects empty schedules and unparseable or inverted dates.
// Weekend placement and overlaps are only logged.
func (a *Agent) checkSchedule(entries []ScheduleEntry) error {
	if len(entries) == 0 {
		return malformedError("schedule is empty", nil)
	}
	type span struct {
		name       string
		start, end time.Time
	}
	spans := make([]span, 0, len(entries))
	for i, e := range entries {
		start, err := time.Parse(dateLayout, e.StartDate)
		if err != nil {
			return malformedError(fmt.Sprintf("schedules[%d].start_date %q is not yyyy-mm-dd", i, e.StartDate), err)
		}
		end, err := time.Parse(dateLayout, e.EndDate)
		if err != nil {
			return malformedError(fmt.Sprintf("schedules[%d].end_date %q is not yyyy-mm-dd", i, e.EndDate), err)
		}
		if end.Before(start) {
			return malformedError(fmt.Sprintf("schedules[%d] ends before it starts", i), nil)
		}
		if isWeekend(start) || isWeekend(end) {
			a.log.Warn("schedule item placed on a weekend", logger.Fields{"name": e.Name, "start": e.StartDate, "end": e.EndDate})
		}
		spans = append(spans, span{name: e.Name, start: start, end: end})
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })
	for i := 1; i < len(spans); i++ {
		if !spans[i].start.After(spans[i-1].end) {
			a.log.Warn("schedule items overlap", logger.Fields{"first": spans[i-1].name, "second": spans[i].name})
		}
	}
	return nil
}

// ReferenceImage analyses the usable reference images, compiles a directive
// with the user's request, then generates a new image.
func (a *Agent) ReferenceImage(ctx context.Context, req ReferenceImageRequest) (ImageResult, error) {
	slots, err := a.images.ResolveAll(ctx, req.ImageURLs)
	if err != nil {
		return ImageResult{}, fmt.Errorf("load reference images: %w", err)
	}
	images := make([]string, 0, len(slots))
	for _, s := range slots {
		if s != "" {
			images = append(images, s)
		}
	}
	if len(images) == 0 {
		return ImageResult{}, fmt.Errorf("%w: %d requested", ErrNoUsableImages, len(req.ImageURLs))
	}
	if len(images) < len(slots) {
		a.log.Info("some reference images skipped", logger.Fields{"requested": len(slots), "used": len(images)})
	}

	analysisPrompt, err := a.prompts.Build(TmplReferenceAnalysis, nil)
	if err != nil {
		return ImageResult{}, err
	}
	analysis, err := a.runText(ctx, Prompt{Stage: StageReferenceAnalysis, User: analysisPrompt, Images: images})
	if err != nil {
		return ImageResult{}, err
	}

	system, err := a.prompts.Build(TmplReferenceDirective, Fields{
		"ProjectType": req.ProjectType,
		"Analysis":    analysis,
	})
	if err != nil {
		return ImageResult{}, err
	}
	directive, err := a.runText(ctx, Prompt{Stage: StageReferenceDirective, System: system, User: req.UserInput})
	if err != nil {
		return ImageResult{}, err
	}

	return a.generateImage(ctx, StageReferenceImage, "Reference", directive)
}

// CuratedAssets returns 3 to 8 search terms, all from the tag vocabulary.
func (a *Agent) CuratedAssets(ctx context.Context, req CuratedAssetsRequest) ([]string, error) {
	if len(req.ImageURLs) > 0 {
		a.log.Debug("curated assets ignores reference images", logger.Fields{"count": len(req.ImageURLs)})
	}

	system, err := a.prompts.Build(TmplCuratedAssets, Fields{
		"ProjectType": req.ProjectType,
		"Tags":        a.vocab.PromptList(),
	})
	if err != nil {
		return nil, err
	}
	var terms []string
	err = a.runStructured(ctx, Prompt{
		Stage:  StageCuratedAssets,
		System: system,
		User:   "<Keyword list> " + req.Keywords,
		Schema: curatedSchema,
	}, "curated_terms", &terms)
	if err != nil {
		return nil, err
	}

	curated := a.vocab.Filter(terms, maxCuratedTerms)
	if dropped := len(terms) - len(curated); dropped > 0 {
		a.log.Debug("curated terms filtered", logger.Fields{"returned": len(terms), "kept": len(curated)})
	}
	if len(curated) < minCuratedTerms {
		return nil, withStage(StageCuratedAssets, malformedError(
			fmt.Sprintf("only %d of %d suggested terms are in the vocabulary", len(curated), len(terms)), nil))
	}
	return curated, nil
}

// DraftExplain 以设计师本人的口吻生成韩文草稿说明。
func (a *Agent) DraftExplain(ctx context.Context, req DraftExplainRequest) (string, error) {
	image, err := a.images.Resolve(ctx, req.ImageURL)
	if err != nil {
		return "", fmt.Errorf("load draft image: %w", err)
	}
	prompt, err := a.prompts.Build(TmplDraftExplain, Fields{
		"ProjectType": req.ProjectType,
		"Keywords":    req.Keywords,
	})
	if err != nil {
		return "", err
	}
	return a.runText(ctx, Prompt{Stage: StageDraftExplain, User: prompt, Images: []string{image}})
}

// DraftImage analyses the draft, folds in the designer's explanation and
// the user's request, then generates a revised image.
func (a *Agent) DraftImage(ctx context.Context, req DraftImageRequest) (ImageResult, error) {
	image, err := a.images.Resolve(ctx, req.ImageURL)
	if err != nil {
		return ImageResult{}, fmt.Errorf("load draft image: %w", err)
	}

	analysisPrompt, err := a.prompts.Build(TmplDraftAnalysis, nil)
	if err != nil {
		return ImageResult{}, err
	}
	analysis, err := a.runText(ctx, Prompt{Stage: StageDraftAnalysis, User: analysisPrompt, Images: []string{image}})
	if err != nil {
		return ImageResult{}, err
	}

	system, err := a.prompts.Build(TmplDraftDirective, Fields{
		"ProjectType": req.ProjectType,
		"Analysis":    analysis,
		"Explanation": req.Explanation,
	})
	if err != nil {
		return ImageResult{}, err
	}
	directive, err := a.runText(ctx, Prompt{Stage: StageDraftDirective, System: system, User: req.UserInput})
	if err != nil {
		return ImageResult{}, err
	}

	return a.generateImage(ctx, StageDraftImage, "Draft", directive)
}

// --- stage helpers ---

func (a *Agent) runText(ctx context.Context, p Prompt) (string, error) {
	start := time.Now()
	raw, err := a.llm.Complete(ctx, p)
	if err == nil {
		raw, err = ExtractText(raw)
	}
	a.finishStage(p.Stage, start, err)
	if err != nil {
		return "", withStage(p.Stage, err)
	}
	return raw, nil
}

func (a *Agent) runStructured(ctx context.Context, p Prompt, field string, dst any) error {
	start := time.Now()
	raw, err := a.llm.Complete(ctx, p)
	if err == nil {
		err = ExtractField(raw, p.Schema, field, dst)
	}
	a.finishStage(p.Stage, start, err)
	return withStage(p.Stage, err)
}

func (a *Agent) generateImage(ctx context.Context, stage, kind, directive string) (ImageResult, error) {
	start := time.Now()
	img, err := a.llm.GenerateImage(ctx, ImagePrompt{Stage: stage, Prompt: directive})
	if err == nil && img.ImageData == "" {
		err = malformedError("image payload is empty", nil)
	}
	a.finishStage(stage, start, err)
	if err != nil {
		return ImageResult{}, withStage(stage, err)
	}

	if path, err := a.archive.Save(kind, img); err != nil {
		a.log.WithError(err).Warn("archive generated image failed", logger.Fields{"stage": stage})
	} else if path != "" {
		a.log.Debug("generated image archived", logger.Fields{"stage": stage, "path": path})
	}
	return img, nil
}

func (a *Agent) finishStage(stage string, start time.Time, err error) {
	elapsed := time.Since(start)
	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	metrics.StageCalls.WithLabelValues(stage, outcomeOf(err)).Inc()
	if err != nil {
		a.log.WithError(err).Warn("stage failed", logger.Fields{"stage": stage, "elapsed_ms": elapsed.Milliseconds()})
		return
	}
	a.log.Debug("stage done", logger.Fields{"stage": stage, "elapsed_ms": elapsed.Milliseconds()})
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrUpstreamFailure):
		return metrics.OutcomeUpstream
	case errors.Is(err, ErrMalformedResponse):
		return metrics.OutcomeMalformed
	}
	return metrics.OutcomeError
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
