package generator

// Pipeline stage names, used in logs, metrics and error messages.
const (
	StageClassify           = "classify"
	StageSchedule           = "schedule"
	StageReferenceAnalysis  = "reference_analysis"
	StageReferenceDirective = "reference_directive"
	StageReferenceImage     = "reference_image"
	StageCuratedAssets      = "curated_assets"
	StageDraftExplain       = "draft_explain"
	StageDraftAnalysis      = "draft_analysis"
	StageDraftDirective     = "draft_directive"
	StageDraftImage         = "draft_image"
)
