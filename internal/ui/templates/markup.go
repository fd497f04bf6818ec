package templates

import "strconv"

func formatWidth(v float64) string {
	return "width: " + strconv.FormatFloat(min(max(v, 0), 100), 'f', 1, 64) + "%"
}

const layoutTmpl = `
{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Vehicle Repair Analytics</title>
<script type="module" src="{{datastar}}"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#1d2330}
header{display:flex;justify-content:space-between;align-items:center;padding:12px 24px;background:#1d2330;color:#fff}
main{padding:24px;display:grid;gap:24px}
.cards{display:grid;grid-template-columns:repeat(auto-fit,minmax(180px,1fr));gap:16px}
.card,.panel{background:#fff;border-radius:8px;padding:16px;box-shadow:0 1px 3px rgba(0,0,0,.08)}
.card .value{font-size:1.5rem;font-weight:600}
.panels{display:grid;grid-template-columns:repeat(auto-fit,minmax(320px,1fr));gap:16px}
.bar-row{display:grid;grid-template-columns:110px 1fr 140px;gap:8px;align-items:center;font-size:.85rem}
.bar{background:#4f7cff;height:10px;border-radius:4px}
.filters{display:flex;flex-wrap:wrap;gap:8px}
.msg{padding:8px 12px;border-radius:8px;margin:4px 0;white-space:pre-wrap}
.msg.user{background:#e7edff}
.msg.assistant{background:#f0f0f0}
.error{color:#b00020}
</style>
</head>{{end}}`

const loginTmpl = `
{{define "login"}}{{template "head"}}
<body>
<main style="max-width:360px;margin:10vh auto">
<form class="panel" method="post" action="/login">
<h2>Sign in</h2>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<p><label>Username<br><input name="username" value="{{.Username}}" autocomplete="username" required></label></p>
<p><label>Password<br><input name="password" type="password" autocomplete="current-password" required></label></p>
<button type="submit">Sign in</button>
</form>
</main>
</body>
</html>{{end}}`

const dashboardTmpl = `
{{define "dashboard"}}{{template "head"}}
<body data-signals="{from: '', to: '', vehicle_type: 'all', repair_type: 'all', workshop: 'all', message: '', sending: false, sheet_url: ''}">
<header>
<strong>Vehicle Repair Analytics</strong>
<form method="post" action="/logout">{{.Username}} <button type="submit">Sign out</button></form>
</header>
<main>
<section class="panel">
<div class="filters" data-on:change="@get('/sse/dashboard')">
<label>From <input type="date" data-bind:from></label>
<label>To <input type="date" data-bind:to></label>
<label>Vehicle type <select data-bind:vehicle_type><option value="all">All</option>{{range .Options.VehicleTypes}}<option>{{.}}</option>{{end}}</select></label>
<label>Repair type <select data-bind:repair_type><option value="all">All</option>{{range .Options.RepairTypes}}<option>{{.}}</option>{{end}}</select></label>
<label>Workshop <select data-bind:workshop><option value="all">All</option>{{range .Options.Workshops}}<option>{{.}}</option>{{end}}</select></label>
</div>
</section>
{{template "cards" .Cards}}
{{template "charts" .Charts}}
{{template "imports" imports .}}
<section class="panel">
<h3>Assistant</h3>
{{if not .AssistantReady}}<p class="error">API key is not configured. Add OPENAI_API_KEY to .env.local.</p>{{end}}
{{template "chat"}}
<form data-on:submit__prevent="$sending = true; @post('/sse/chat')">
<input data-bind:message placeholder="Ask about repair costs" style="width:70%">
<button type="submit" data-attr:disabled="$sending">Send</button>
</form>
</section>
</main>
</body>
</html>{{end}}`

const cardsTmpl = `
{{define "cards"}}<section id="stat-cards" class="cards">
<div class="card"><div>Repairs</div><div class="value">{{.TotalRecords}}</div></div>
<div class="card"><div>Vehicles</div><div class="value">{{.UniqueVehicles}}</div></div>
<div class="card"><div>Total cost</div><div class="value">{{.TotalCost}}</div></div>
<div class="card"><div>Average cost</div><div class="value">{{.AvgCost}}</div></div>
<div class="card"><div>Avg repair time</div><div class="value">{{.AvgRepairHours}}</div></div>
<div class="card"><div>Rejected</div><div class="value">{{.RejectedRate}}</div></div>
</section>{{end}}`

const chartsTmpl = `
{{define "bars"}}{{range .}}<div class="bar-row"><span>{{.Label}}</span><div><div class="bar" style="{{pct .Width}}"></div></div><span>{{.Value}}</span></div>
{{end}}{{end}}
{{define "charts"}}<section id="chart-panels" class="panels">
<div class="panel"><h3>Cost by month</h3>{{template "bars" .Months}}</div>
<div class="panel"><h3>Repair types</h3>{{template "bars" .RepairTypes}}</div>
<div class="panel"><h3>Workshops</h3>{{template "bars" .Workshops}}</div>
<div class="panel"><h3>Labor vs material</h3>{{template "bars" .LaborMaterial}}
<p>Approved {{.Approved}} / Rejected {{.Rejected}}</p></div>
</section>{{end}}`

const importsTmpl = `
{{define "imports"}}<section id="imports" class="panel">
<h3>Imports</h3>
<form data-on:submit__prevent="@post('/api/imports', {contentType: 'json'})">
<input data-bind:sheet_url placeholder="Google Sheets link" style="width:70%">
<button type="submit">Import</button>
</form>
<table>
<thead><tr><th>Name</th><th>Rows</th><th>Updated</th><th></th></tr></thead>
<tbody>
{{range .Imports}}<tr>
<td>{{.Name}}{{if .Active}} (active){{end}}</td>
<td>{{.Rows}}</td>
<td>{{.UpdatedAt}}</td>
<td><button data-on:click="@post('/api/imports/{{.ID}}/activate')">Use</button>
<button data-on:click="@delete('/api/imports/{{.ID}}')">Delete</button></td>
</tr>{{end}}
</tbody>
</table>
</section>{{end}}`

const chatTmpl = `
{{define "chat"}}<div id="chat-messages">
{{range .}}<div class="msg {{.Role}}">{{.Content}}</div>
{{end}}</div>{{end}}`
