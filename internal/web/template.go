package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/hydra-evse/internal/coord"
	"github.com/sweeney/hydra-evse/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"amps": func(mA int64) string {
		return status.FormatMilliamps(mA)
	},
	"errLetter": func(e coord.ErrorKind) string {
		if e == coord.ErrNone {
			return ""
		}
		return string(e.Letter())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Hydra EVSE</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.wait { color: orange; }
.err { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Hydra EVSE</h1>

<h2>Ports</h2>
<table>
<tr><th></th><td><b>Car A</b></td><td><b>Car B</b></td></tr>
<tr><th>Status</th>
{{range .Ports}}<td class="{{.Status}}">{{.Status}}{{with errLetter .Err}} ({{.}}){{end}}</td>
{{end}}</tr>
<tr><th>Pilot</th>
{{range .Ports}}<td>{{.Pilot}}{{if .AdvertisedAmps}} @ {{amps .AdvertisedAmps}}{{end}}</td>
{{end}}</tr>
<tr><th>Relay</th>
{{range .Ports}}<td>{{if .RelayClosed}}closed{{else}}open{{end}}</td>
{{end}}</tr>
<tr><th>Current</th>
{{range .Ports}}<td>{{amps .DisplayAmps}}</td>
{{end}}</tr>
<tr><th>Pilot read</th>
{{range .Ports}}<td>{{.LastRead}}</td>
{{end}}</tr>
</table>

<h2>Unit</h2>
<table>
<tr><th>Mode</th><td>{{.Coord.Mode}}</td></tr>
<tr><th>Ceiling</th><td>{{amps .Coord.MaxAmps}}</td></tr>
<tr><th>Paused</th><td>{{if .Coord.Paused}}yes{{else}}no{{end}}</td></tr>
<tr><th>GFI trips</th><td>{{.Coord.GFIRetries}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Ports  []coord.PortSnapshot
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Ports:    snap.Coord.Ports[:],
	}
	indexTmpl.Execute(w, data)
}
