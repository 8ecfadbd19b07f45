package web

import "html/template"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<title>genny</title>
<meta http-equiv="refresh" content="30">
<style>
body { font-family: monospace; margin: 2em; }
table { border-collapse: collapse; }
td { padding: 0.2em 1em 0.2em 0; }
.state { font-weight: bold; }
</style>
</head>
<body>
<h1>generator supervisor</h1>
<table>
<tr><td>State</td><td class="state">{{.State}}{{if .Manual}} (manual){{end}}</td></tr>
<tr><td>SOC</td><td>{{.Telemetry.SOC}}% (start &lt;{{.Config.StartSOC}}%, stop &ge;{{.Config.StopSOC}}%)</td></tr>
<tr><td>Battery</td><td>{{printf "%.1f" .Telemetry.BatteryVolts}}V</td></tr>
<tr><td>PV</td><td>{{.Telemetry.PVWatts}}W</td></tr>
<tr><td>Charge</td><td>{{.Telemetry.ChargeWatts}}W</td></tr>
<tr><td>Discharge</td><td>{{.Telemetry.DischargeWatts}}W</td></tr>
<tr><td>Load</td><td>{{.Telemetry.LoadWatts}}W</td></tr>
<tr><td>Failed starts</td><td>{{.Failures}}</td></tr>
{{if not .GeneratorStartedAt.IsZero}}<tr><td>Generator runtime</td><td>{{.GeneratorRuntime}}</td></tr>{{end}}
<tr><td>Uptime</td><td>{{.Uptime}}</td></tr>
<tr><td>Telemetry at</td><td>{{.TelemetryAt.Format "2006-01-02 15:04:05"}}</td></tr>
</table>
</body>
</html>
`))
