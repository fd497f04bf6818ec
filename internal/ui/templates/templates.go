// Package templates renders the login page, the dashboard and the fragments
// patched into it over SSE.
package templates

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"repair-dashboard/internal/assistant"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"datastar": func() string { return datastarScript },
	"pct":      func(v float64) template.CSS { return template.CSS(formatWidth(v)) },
	"imports":  newImportsView,
}).Parse(layoutTmpl + loginTmpl + dashboardTmpl + cardsTmpl + chartsTmpl + chatTmpl + importsTmpl))

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

type loginView struct {
	Error    string
	Username string
}

func Login(username, errMsg string) templ.Component {
	return render("login", loginView{Error: errMsg, Username: username})
}

func Dashboard(v DashboardView) templ.Component {
	return render("dashboard", v)
}

// StatCards renders the element with id "stat-cards".
func StatCards(v CardsView) templ.Component {
	return render("cards", v)
}

// Charts renders the element with id "chart-panels".
func Charts(v ChartsView) templ.Component {
	return render("charts", v)
}

// ChatMessages renders the element with id "chat-messages". The system
// prompt is not shown.
func ChatMessages(history []assistant.Message) templ.Component {
	visible := make([]assistant.Message, 0, len(history))
	for _, m := range history {
		if m.Role != assistant.RoleSystem {
			visible = append(visible, m)
		}
	}
	return render("chat", visible)
}

type importsView struct {
	Imports  []importRow
	SourceID string
}

type importRow struct {
	ID        string
	Name      string
	Rows      int
	UpdatedAt string
	Active    bool
}

func newImportsView(v DashboardView) importsView {
	out := importsView{SourceID: v.SourceID}
	for _, imp := range v.Imports {
		out.Imports = append(out.Imports, importRow{
			ID:        imp.ID,
			Name:      imp.SheetName,
			Rows:      imp.RowCount,
			UpdatedAt: imp.UpdatedAt.Format("02/01/2006 15:04"),
			Active:    imp.ID == v.SourceID,
		})
	}
	return out
}
