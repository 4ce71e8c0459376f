package docs

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed api.md
var apiMarkdown []byte

const pageTemplate = `<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="utf-8">
<title>AIPM API</title>
<style>
body { font-family: -apple-system, "Apple SD Gothic Neo", sans-serif; max-width: 920px; margin: 2rem auto; padding: 0 1rem; line-height: 1.6; }
code, pre { background: #f5f5f7; border-radius: 4px; }
pre { padding: .75rem; overflow-x: auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ddd; padding: .35rem .6rem; }
</style>
</head>
<body>
%s
</body>
</html>
`

// Render converts the embedded API reference to a standalone HTML page.
func Render() ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert(apiMarkdown, &body); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(pageTemplate, body.String())), nil
}

// Handler serves the rendered page. The page is rendered once.
func Handler() (http.Handler, error) {
	page, err := Render()
	if err != nil {
		return nil, err
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}), nil
}
