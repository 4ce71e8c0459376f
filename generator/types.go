package generator

// Image payload formats returned to clients.
const (
	ImageFormatURL    = "url"
	ImageFormatBase64 = "base64"
)

// Upstream image response formats.
const (
	ResponseFormatB64JSON = "b64_json"
	ResponseFormatURL     = "url"
)

// ScheduleRequest 的 Duration 形如 2025-01-02~2025-02-28。
type ScheduleRequest struct {
	ProjectType string
	Duration    string
}

type ScheduleEntry struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      string `json:"days"`
	Desc      string `json:"desc"`
}

type ScheduleResult struct {
	Schedules []ScheduleEntry `json:"schedules"`
}

type ReferenceImageRequest struct {
	ImageURLs   []string
	ProjectType string
	UserInput   string
}

type CuratedAssetsRequest struct {
	ImageURLs   []string
	ProjectType string
	Keywords    string
}

type DraftExplainRequest struct {
	ImageURL    string
	ProjectType string
	Keywords    string
}

type DraftImageRequest struct {
	ImageURL    string
	Explanation string
	ProjectType string
	UserInput   string
}

// ImageResult is a generated image, either a remote URL or base64 PNG data.
type ImageResult struct {
	Format    string `json:"format"`
	ImageData string `json:"image_data"`
}
