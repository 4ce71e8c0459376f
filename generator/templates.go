package generator

import (
	"embed"
	"fmt"
	"strings"
)

// Category 项目类型编号，与分类提示词中的列表一一对应。
type Category int

const (
	CategoryUnspecified Category = iota
	CategoryLogo                 // 로고/명함 디자인
	CategoryPrint                // 리플렛/홍보물/포스터 디자인
	CategoryDeck                 // 기업/서비스/IR 소개서 및 PPT 디자인
	CategorySocial               // SNS/썸네일/상세페이지 디자인
	CategoryWeb                  // 웹/모바일 디자인
	CategoryOther                // 기타
)

var categoryNames = map[Category]string{
	CategoryLogo:   "로고/명함 디자인",
	CategoryPrint:  "리플렛/홍보물/포스터 디자인",
	CategoryDeck:   "기업/서비스/IR 소개서 및 PPT 디자인",
	CategorySocial: "SNS/썸네일/상세페이지 디자인",
	CategoryWeb:    "웹/모바일 디자인",
	CategoryOther:  "기타",
}

func (c Category) Valid() bool {
	return c >= CategoryLogo && c <= CategoryOther
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

//go:embed prompts/durations/*.txt
var durationFS embed.FS

// TemplateSet holds the per-category duration examples. It is read-only
// after construction.
type TemplateSet struct {
	durations map[Category]string
}

func NewTemplateSet() (*TemplateSet, error) {
	ts := &TemplateSet{durations: make(map[Category]string, len(categoryNames))}
	for c := CategoryLogo; c <= CategoryOther; c++ {
		data, err := durationFS.ReadFile(fmt.Sprintf("prompts/durations/%d.txt", int(c)))
		if err != nil {
			return nil, fmt.Errorf("load duration example for %s: %w", c, err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return nil, fmt.Errorf("duration example for %s is empty", c)
		}
		ts.durations[c] = text
	}
	return ts, nil
}

// Select returns the duration example for c. Codes outside 1..6 fail with
// ErrTemplateNotFound.
func (ts *TemplateSet) Select(c Category) (string, error) {
	text, ok := ts.durations[c]
	if !ok {
		return "", templateNotFoundError(c)
	}
	return text, nil
}
