package web

import (
	"html/template"
	"log/slog"
	"net/http"
)

const loginTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Mailwarden Login</title>
<style>
body { font-family: sans-serif; max-width: 24em; margin: 4em auto; }
label { display: block; margin-top: 1em; }
input { width: 100%; padding: 0.3em; }
button { margin-top: 1.5em; padding: 0.4em 1.5em; }
.error { color: #a00; }
</style>
</head>
<body>
<h1>Mailwarden</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<label>Username <input type="text" name="username" autofocus></label>
<label>Password <input type="password" name="password"></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`

const dashboardTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Mailwarden Status</title>
<style>
body { font-family: sans-serif; max-width: 48em; margin: 2em auto; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; }
th { background: #f4f4f4; }
form { display: inline; }
</style>
</head>
<body>
<h1>Mailwarden Status</h1>
<form method="post" action="/logout"><button type="submit">Log out</button></form>

<h2>Engine</h2>
<table>
<tr><th>State</th><td>{{.Status.State}}</td></tr>
{{if not .Status.ConnectedAt.IsZero}}<tr><th>Connected since</th><td>{{.Status.ConnectedAt.Format "2006-01-02 15:04:05"}}</td></tr>{{end}}
{{if not .Status.LastWakeup.IsZero}}<tr><th>Last wake-up</th><td>{{.Status.LastWakeup.Format "2006-01-02 15:04:05"}}</td></tr>{{end}}
<tr><th>Wake-ups</th><td>{{.Status.Wakeups}}</td></tr>
<tr><th>Messages sent</th><td>{{.Status.Sends}}</td></tr>
<tr><th>Messages rejected</th><td>{{.Status.Rejections}}</td></tr>
<tr><th>URLs proxied</th><td>{{.Status.ProxiedURLs}}</td></tr>
{{if .Status.LastError}}<tr><th>Last error</th><td>{{.Status.LastError}}</td></tr>{{end}}
</table>

<h2>Rules</h2>
<table>
<tr><th>Rule</th><th>Query</th><th>Matches</th></tr>
{{range .Rules}}
<tr><td>{{.Name}}</td><td><code>{{.Query}}</code></td><td>{{index $.Status.RuleMatches .Name}}</td></tr>
{{end}}
</table>
</body>
</html>
`

var templates = template.Must(template.Must(
	template.New("login").Parse(loginTemplate)).New("dashboard").Parse(dashboardTemplate))

func (s *Server) renderTemplate(w http.ResponseWriter, tmpl string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := templates.ExecuteTemplate(w, tmpl, data); err != nil {
		slog.Error("Failed to execute template", "template", tmpl, "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
	}
}
