package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html.tmpl"))

// Render はダッシュボードをHTMLとして書き出す。
func Render(w io.Writer, report *Report) error {
	if err := dashboardTemplate.Execute(w, report); err != nil {
		return fmt.Errorf("ダッシュボードの描画に失敗: %w", err)
	}
	return nil
}
