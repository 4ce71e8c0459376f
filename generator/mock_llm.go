package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// 1x1 transparent PNG.
const mockPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// Replies are deterministic and always satisfy the structured schemas.
type MockLLM struct {
	// ImageFormat is the default response format: "b64_json" or "url".
	ImageFormat string
}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	switch prompt.Stage {
	case StageClassify:
		return fmt.Sprintf(`{"category_num":%d}`, int(mockClassify(prompt.User))), nil
	case StageSchedule:
		return mockSchedule(prompt.User)
	case StageCuratedAssets:
		return mockCurated(prompt.System, prompt.User)
	case StageDraftExplain:
		return "차분한 톤의 색상과 여백을 활용하여 정돈된 인상을 주도록 구성하였습니다. 핵심 요소를 중앙에 배치해 시선이 자연스럽게 모이도록 하였습니다.", nil
	case StageReferenceAnalysis, StageDraftAnalysis:
		var sb strings.Builder
		for i := range prompt.Images {
			fmt.Fprintf(&sb, "Image %d\n", i+1)
			sb.WriteString("- Image Type: Graphic image\n")
			sb.WriteString("- Background: Solid light gray background with a subtle paper texture\n")
			sb.WriteString("- Element List:\n")
			sb.WriteString("  - Circle: One large navy circle placed at the center\n")
			sb.WriteString("  - Text Element: Short bold sans-serif title below the circle\n")
		}
		return sb.String(), nil
	case StageReferenceDirective, StageDraftDirective:
		lines := []string{
			"A graphic image.",
			"A light gray background with a subtle paper texture.",
			"One large navy circle at the center.",
			"Title text below the circle in bold sans-serif.",
		}
		if req := strings.TrimSpace(prompt.User); req != "" {
			lines = append(lines, "Requested change: "+req)
		}
		return strings.Join(lines, "\n"), nil
	}
	return prompt.User, nil
}

func (m MockLLM) GenerateImage(_ context.Context, prompt ImagePrompt) (ImageResult, error) {
	format := prompt.Format
	if format == "" {
		format = m.ImageFormat
	}
	if format == ResponseFormatURL {
		return ImageResult{Format: ImageFormatURL, ImageData: "https://placehold.co/1024x1024.png"}, nil
	}
	return ImageResult{Format: ImageFormatBase64, ImageData: mockPNG}, nil
}

var mockCategoryKeywords = []struct {
	cat      Category
	keywords []string
}{
	{CategoryLogo, []string{"로고", "명함", "LOGO"}},
	{CategoryPrint, []string{"리플렛", "전단", "홍보물", "포스터", "브로슈어", "POSTER"}},
	{CategoryDeck, []string{"소개서", "제안서", "PPT", "IR ", "IR자료", "프레젠테이션"}},
	{CategorySocial, []string{"SNS", "썸네일", "상세페이지", "인스타", "배너"}},
	{CategoryWeb, []string{"웹", "모바일", "앱", "홈페이지", "UI/UX", "WEB", "APP"}},
}

func mockClassify(projectType string) Category {
	text := strings.ToUpper(projectType)
	for _, entry := range mockCategoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.cat
			}
		}
	}
	return CategoryOther
}

var periodPattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*~\s*(\d{4}-\d{2}-\d{2})`)

type mockPhase struct {
	name    string
	meeting bool
	desc    string
}

var mockPhases = []mockPhase{
	{"킥오프 미팅", true, "프로젝트 목표와 일정, 기초 자료를 공유하는 킥오프 미팅을 진행합니다."},
	{"기획 및 리서치", false, "시장과 경쟁사 자료를 조사하고 디자인 방향을 정리합니다."},
	{"1차 시안", false, "정리된 방향을 바탕으로 1차 시안을 제작합니다."},
	{"피드백 미팅", true, "1차 시안에 대한 의견을 나누고 수정 방향을 확정합니다."},
	{"2차 시안", false, "피드백을 반영하여 2차 시안을 제작하고 세부 완성도를 높입니다."},
	{"최종 승인 미팅", true, "최종 결과물을 검토하고 승인 절차를 진행합니다."},
}

func mockSchedule(user string) (string, error) {
	start, end := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if m := periodPattern.FindStringSubmatch(user); len(m) == 3 {
		s, err1 := time.Parse(dateLayout, m[1])
		e, err2 := time.Parse(dateLayout, m[2])
		if err1 == nil && err2 == nil && !e.Before(s) {
			start, end = s, e
		}
	}

	days := weekdaysBetween(start, end)
	phases := mockPhases
	if len(days) < len(phases) {
		phases = phases[:len(days)]
	}
	meetings := 0
	for _, p := range phases {
		if p.meeting {
			meetings++
		}
	}
	work := len(phases) - meetings
	spare := len(days) - meetings

	entries := make([]ScheduleEntry, 0, len(phases))
	idx, workSeen := 0, 0
	for _, p := range phases {
		n := 1
		if !p.meeting && work > 0 {
			n = spare / work
			if workSeen < spare%work {
				n++
			}
			workSeen++
		}
		entries = append(entries, ScheduleEntry{
			Name:      p.name,
			StartDate: days[idx].Format(dateLayout),
			EndDate:   days[idx+n-1].Format(dateLayout),
			Days:      fmt.Sprintf("%d일", n),
			Desc:      p.desc,
		})
		idx += n
	}

	out, err := json.Marshal(ScheduleResult{Schedules: entries})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func weekdaysBetween(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !isWeekend(d) {
			days = append(days, d)
		}
	}
	return days
}

func mockCurated(system, user string) (string, error) {
	tags := splitTagList(between(system, "<Search term list>", "</Search term list>"))
	hay := between(system, "<Project type>", "</Project type>") + " " + user

	picked := make([]string, 0, maxCuratedTerms)
	seen := map[string]bool{}
	for _, t := range tags {
		if strings.Contains(hay, t) && !seen[t] {
			picked = append(picked, t)
			seen[t] = true
		}
	}
	for _, t := range tags {
		if len(picked) >= 5 {
			break
		}
		if !seen[t] {
			picked = append(picked, t)
			seen[t] = true
		}
	}
	if len(picked) > maxCuratedTerms {
		picked = picked[:maxCuratedTerms]
	}

	out, err := json.Marshal(map[string][]string{"curated_terms": picked})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func between(s, openTag, closeTag string) string {
	i := strings.Index(s, openTag)
	if i < 0 {
		return ""
	}
	rest := s[i+len(openTag):]
	if j := strings.Index(rest, closeTag); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func splitTagList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
