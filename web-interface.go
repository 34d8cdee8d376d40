package main

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strings"

	"botmap/internal/mapview"
	"botmap/pkg/logger"
)

// pathLine is one move segment in SVG coordinates
type pathLine struct {
	X1, Y1, X2, Y2 float64
	Opacity        float64
	Dashed         bool
}

// MapPageData holds data for the map template
type MapPageData struct {
	Frame       mapview.Frame
	Rows        [][]mapview.Cell
	XAxis       []int
	YAxis       []int
	CellSize    int
	Width       int // pixels, ruler included
	Height      int
	Lines       []pathLine
	PathColor   string
	HomeColor   string
	Version     string
	Backend     string
	Overlays    []overlayControl
	MinCellSize int
	MaxCellSize int
}

type overlayControl struct {
	Name  string
	Label string
	On    bool
}

var pageFuncs = template.FuncMap{
	"layerClass": func(l mapview.Layer) string { return "m-" + string(l) },
	"markerSize": func(m mapview.Marker, cell int) int {
		if m.Size > 0 {
			return m.Size
		}
		return int(math.Max(8, float64(cell)*0.6))
	},
	"fmtf": func(f float64) string {
		return fmt.Sprintf("%.1f", f)
	},
	"cellTitle": cellTitle,
}

var mapPage = template.Must(template.New("page").Funcs(pageFuncs).Parse(mapTemplate))

// ServeWebInterface renders the map page. ?fragment=map renders only the
// map so the page can swap it in after a frame event.
func (api *API) ServeWebInterface(w http.ResponseWriter, r *http.Request) {
	data := buildPageData(api.rc.Frame(), api.backendURL)

	name := "page"
	if r.URL.Query().Get("fragment") == "map" {
		name = "map"
	}

	var buf bytes.Buffer
	if err := mapPage.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Log.WithError(err).Error("Failed to render map page")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	buf.WriteTo(w)
}

// buildPageData lays a frame out for the template
func buildPageData(f mapview.Frame, backend string) MapPageData {
	cell := f.MapInfo.CellSize
	if cell <= 0 {
		cell = mapview.DefaultConfig().Map.CellSize
	}

	data := MapPageData{
		Frame:       f,
		CellSize:    cell,
		Width:       (f.MapInfo.Width + 1) * cell,
		Height:      (f.MapInfo.Height + 1) * cell,
		PathColor:   mapview.PathColor,
		HomeColor:   mapview.HomeMarkerColor,
		Version:     CurrentVersion.String(),
		Backend:     backend,
		MinCellSize: mapview.MinCellSize,
		MaxCellSize: mapview.MaxCellSize,
	}
	if f.Grid != nil {
		data.Rows = f.Grid.Rows()
	}
	for x := 0; x < f.MapInfo.Width; x++ {
		data.XAxis = append(data.XAxis, x)
	}
	for y := 0; y < f.MapInfo.Height; y++ {
		data.YAxis = append(data.YAxis, y)
	}

	for _, seg := range f.Path {
		rad := seg.Angle * math.Pi / 180
		data.Lines = append(data.Lines, pathLine{
			X1:      seg.X,
			Y1:      seg.Y,
			X2:      seg.X + seg.Length*math.Cos(rad),
			Y2:      seg.Y + seg.Length*math.Sin(rad),
			Opacity: seg.Opacity,
			Dashed:  seg.Style == mapview.PathDotted,
		})
	}

	t := f.Settings.Toggles
	data.Overlays = []overlayControl{
		{"homes", "Bot homes", t.Homes},
		{"interactions", "Interactions", t.Interactions},
		{"airports", "Airports", t.Airports},
		{"paths", "Move paths", t.Paths},
		{"visited", "Visited cells", t.Visited},
	}
	return data
}

// cellTitle joins the tooltip lines of a cell's markers
func cellTitle(c mapview.Cell) string {
	lines := []string{fmt.Sprintf("(%d, %d)", c.X, c.Y)}
	if c.Terrain != "" {
		lines = append(lines, c.Terrain)
	}
	for _, m := range c.Markers {
		if m.Title != "" {
			lines = append(lines, m.Title)
		}
	}
	return strings.Join(lines, "\n")
}

const mapTemplate = `{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Bot World Map</title>
	<style>
		* { box-sizing: border-box; margin: 0; padding: 0; }
		body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #f4f6f8; color: #2c3e50; padding: 16px; }
		header { display: flex; align-items: baseline; gap: 16px; margin-bottom: 12px; }
		h1 { font-size: 1.6em; }
		.subtitle { color: #7f8c8d; font-size: 0.9em; }
		.layout { display: flex; gap: 16px; align-items: flex-start; }
		.controls, .panel { background: #fff; border-radius: 8px; padding: 12px; box-shadow: 0 1px 3px rgba(0,0,0,0.12); }
		.controls { width: 220px; }
		.controls h3, .panel h3 { font-size: 1em; margin-bottom: 8px; }
		.controls label { display: block; margin: 4px 0; cursor: pointer; }
		.controls button, .panel button { margin: 4px 4px 4px 0; padding: 4px 10px; border: 1px solid #bdc3c7; border-radius: 4px; background: #ecf0f1; cursor: pointer; }
		.panel { width: 300px; min-height: 120px; font-size: 0.9em; }
		.panel .entry { border-top: 1px solid #ecf0f1; padding: 4px 0; }
		.state { font-size: 0.85em; color: #7f8c8d; margin-top: 8px; }
		.error { color: #c0392b; }
		#map-wrap { position: relative; overflow: auto; max-width: 70vw; max-height: 85vh; background: #fff; border-radius: 8px; }
		.map { display: grid; position: relative; }
		.ruler { display: flex; align-items: center; justify-content: center; font-size: 10px; color: #95a5a6; }
		.cell { position: relative; border: 1px solid rgba(0,0,0,0.05); cursor: pointer; display: flex; align-items: center; justify-content: center; flex-wrap: wrap; }
		.marker { border-radius: 50%; display: inline-flex; align-items: center; justify-content: center; font-size: 9px; color: #fff; font-weight: bold; z-index: 2; }
		.m-home { border-radius: 2px; opacity: 0.8; }
		.m-interaction { border-radius: 2px; width: 6px !important; height: 6px !important; }
		.m-airport { border: 2px solid #fff; font-size: 10px; }
		.m-visited { position: absolute; inset: 0; border-radius: 0; opacity: 0.35; z-index: 1; width: auto !important; height: auto !important; }
		svg.paths { position: absolute; top: 0; left: 0; pointer-events: none; z-index: 3; }
		.weather { font-size: 0.85em; margin-top: 8px; }
	</style>
</head>
<body>
	<header>
		<h1>Bot World Map</h1>
		<span class="subtitle">botmap {{.Version}} &middot; backend {{.Backend}}</span>
	</header>
	<div class="layout">
		<div class="controls">
			<h3>Overlays</h3>
			{{range .Overlays}}
			<label><input type="checkbox" data-layer="{{.Name}}" {{if .On}}checked{{end}}> {{.Label}}</label>
			{{end}}
			<h3 style="margin-top:12px">Zoom</h3>
			<button data-zoom="-4">&minus;</button>
			<button data-zoom="4">+</button>
			<span id="cell-size">{{.CellSize}}px</span>
			<h3 style="margin-top:12px">Path style</h3>
			<select id="path-style">
				<option value="dotted" {{if eq (print .Frame.Settings.PathStyle) "dotted"}}selected{{end}}>Dotted</option>
				<option value="solid" {{if eq (print .Frame.Settings.PathStyle) "solid"}}selected{{end}}>Solid</option>
			</select>
			<div style="margin-top:12px">
				<button id="refresh">Refresh now</button>
				<button id="deselect">Clear selection</button>
			</div>
			{{with .Frame.Weather}}
			<div class="weather">{{.Condition}} {{.Temperature}} &middot; {{.Location}}</div>
			{{end}}
		</div>
		<div id="map-wrap">{{template "map" .}}</div>
		<div class="panel" id="panel">
			<h3>Details</h3>
			<p>Click a cell, bot, home or airport.</p>
		</div>
	</div>
	<script>
	(function() {
		const minCell = {{.MinCellSize}}, maxCell = {{.MaxCellSize}};
		let cellSize = {{.CellSize}};
		const panel = document.getElementById('panel');

		function esc(s) {
			return String(s == null ? '' : s).replace(/[&<>"']/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c]));
		}

		async function call(method, url) {
			const resp = await fetch(url, {method: method, headers: {'Cache-Control': 'no-cache'}});
			const body = await resp.json().catch(() => ({}));
			if (!resp.ok) {
				throw new Error(body.error || ('Request failed: ' + resp.status));
			}
			return body;
		}

		let reloading = false;
		async function reloadMap() {
			if (reloading) return;
			reloading = true;
			try {
				const resp = await fetch('/?fragment=map', {headers: {'Cache-Control': 'no-cache'}});
				if (resp.ok) {
					document.getElementById('map-wrap').innerHTML = await resp.text();
				}
			} finally {
				reloading = false;
			}
		}

		function showLocation(info) {
			let html = '<h3>Location (' + info.point.x + ', ' + info.point.y + ')</h3>';
			if (info.home) html += '<p>Home of ' + esc(info.home.name) + '</p>';
			if (info.bots_here.length) html += '<p>Bots here: ' + info.bots_here.map(b => esc(b.name || ('Bot ' + b.id))).join(', ') + '</p>';
			(info.airports || []).forEach(a => { html += '<p>Airport: <a href="#" data-airport="' + a.id + '">' + esc(a.name) + '</a></p>'; });
			html += '<p>Total interactions: ' + info.total_interactions + '</p>';
			info.groups.forEach(g => {
				const who = (g.bot_names && g.bot_names.length) ? g.bot_names.join(' & ') : 'Bots ' + g.bot_ids.join(' & ');
				html += '<div class="entry"><strong>' + esc(who) + '</strong> (' + g.count + ')';
				g.entries.forEach(e => { html += '<br>' + esc(e.time) + ' &middot; ' + esc(e.type); });
				html += '</div>';
			});
			panel.innerHTML = html;
		}

		function showAirport(p) {
			const a = p.airport;
			let html = '<h3>' + esc(a.name) + '</h3>';
			html += '<p>Fee: ' + a.fee + ' &middot; Capacity: ' + a.capacity + '</p>';
			html += '<p>Queue: ' + p.queue_length + (a.queue.length ? ' (' + a.queue.join(', ') + ')' : '') + '</p>';
			if (a.last_departure) html += '<p>Last departure: ' + esc(a.last_departure) + '</p>';
			if (p.can_join) {
				if (p.selected_position) {
					html += '<p>Bot ' + p.selected_bot + ' is #' + p.selected_position + ' in the queue.</p>';
				} else {
					html += '<button data-join="' + a.id + '">Queue bot ' + p.selected_bot + '</button>';
				}
			} else {
				html += '<p><em>Select a bot to use this airport.</em></p>';
			}
			panel.innerHTML = html;
		}

		function showHome(h) {
			let html = '<h3>Home of ' + esc(h.name) + '</h3>';
			html += '<p>At (' + h.point.x + ', ' + h.point.y + ')</p>';
			if (h.bots_here.length) html += '<p>Currently here: ' + h.bots_here.map(b => esc(b.name || ('Bot ' + b.id))).join(', ') + '</p>';
			panel.innerHTML = html;
		}

		document.addEventListener('click', async (ev) => {
			const t = ev.target.closest('[data-bot],[data-airport],[data-home],[data-join],[data-cell],[data-zoom]');
			if (!t) return;
			ev.preventDefault();
			ev.stopPropagation();
			try {
				if (t.dataset.join) {
					const res = await call('POST', '/api/airport/' + t.dataset.join + '/join');
					alert(res.message || ('Queued at position ' + res.position_in_queue));
					showAirport(await call('GET', '/api/airport/' + t.dataset.join));
				} else if (t.dataset.bot) {
					const res = await call('POST', '/api/select/bot/' + t.dataset.bot);
					panel.innerHTML = '<h3>' + esc(res.bot.name || ('Bot ' + res.bot.id)) + '</h3><p>' + esc(res.bot.status) + '</p><p>Last seen ' + esc(res.bot.last_seen) + '</p>';
					reloadMap();
				} else if (t.dataset.airport) {
					showAirport(await call('GET', '/api/airport/' + t.dataset.airport));
				} else if (t.dataset.home) {
					showHome(await call('GET', '/api/home/' + t.dataset.home));
				} else if (t.dataset.zoom) {
					const next = Math.min(maxCell, Math.max(minCell, cellSize + parseInt(t.dataset.zoom, 10)));
					await call('POST', '/api/zoom/' + next);
					cellSize = next;
					document.getElementById('cell-size').textContent = next + 'px';
					reloadMap();
				} else if (t.dataset.cell) {
					const [x, y] = t.dataset.cell.split(',');
					showLocation(await call('GET', '/api/location/' + x + '/' + y));
				}
			} catch (err) {
				alert(err.message);
			}
		});

		document.querySelectorAll('input[data-layer]').forEach(box => {
			box.addEventListener('change', async () => {
				try {
					await call('POST', '/api/toggle/' + box.dataset.layer + '?on=' + box.checked);
					reloadMap();
				} catch (err) {
					alert(err.message);
				}
			});
		});

		document.getElementById('path-style').addEventListener('change', async (ev) => {
			await call('POST', '/api/path-style/' + ev.target.value).catch(err => alert(err.message));
			reloadMap();
		});
		document.getElementById('refresh').addEventListener('click', async () => {
			await call('POST', '/api/refresh').catch(err => alert(err.message));
			reloadMap();
		});
		document.getElementById('deselect').addEventListener('click', async () => {
			await call('POST', '/api/select/clear').catch(err => alert(err.message));
			reloadMap();
		});

		function connect() {
			const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
			const ws = new WebSocket(proto + location.host + '/ws');
			ws.onmessage = () => reloadMap();
			ws.onclose = () => setTimeout(connect, 3000);
		}
		connect();
	})();
	</script>
</body>
</html>{{end}}

{{define "map"}}
<div class="map" style="grid-template-columns: {{.CellSize}}px repeat({{len .XAxis}}, {{.CellSize}}px); grid-auto-rows: {{.CellSize}}px; width: {{.Width}}px; height: {{.Height}}px;">
	<div class="ruler"></div>
	{{range .XAxis}}<div class="ruler">{{.}}</div>{{end}}
	{{$cell := .CellSize}}
	{{range $y, $row := .Rows}}
	<div class="ruler">{{$y}}</div>
	{{range $row}}
	<div class="cell" data-cell="{{.X}},{{.Y}}" title="{{cellTitle .}}" style="background: {{.Background}};{{with .Outline}} outline: 2px solid {{.}}; outline-offset: -2px;{{end}}">
		{{range .Markers}}
		{{$size := markerSize . $cell}}
		<span class="marker {{layerClass .Layer}}"
			{{if .BotID}}{{if eq (print .Layer) "bot"}}data-bot="{{.BotID}}"{{else if eq (print .Layer) "home"}}data-home="{{.BotID}}"{{end}}{{end}}
			{{if .AirportID}}data-airport="{{.AirportID}}"{{end}}
			title="{{.Title}}"
			style="width: {{$size}}px; height: {{$size}}px; background: {{.Color}};{{with .Border}} border-color: {{.}};{{end}}">{{.Label}}</span>
		{{end}}
	</div>
	{{end}}
	{{end}}
	{{if .Lines}}
	<svg class="paths" width="{{.Width}}" height="{{.Height}}">
		{{$color := .PathColor}}
		{{range .Lines}}
		<line x1="{{fmtf .X1}}" y1="{{fmtf .Y1}}" x2="{{fmtf .X2}}" y2="{{fmtf .Y2}}" stroke="rgba({{$color}}, {{.Opacity}})" stroke-width="3"{{if .Dashed}} stroke-dasharray="5,5"{{end}}></line>
		{{end}}
	</svg>
	{{end}}
</div>
<div class="state">State: {{.Frame.State}}{{with .Frame.LastError}} &middot; <span class="error">{{.}}</span>{{end}}{{if not .Frame.UpdatedAt.IsZero}} &middot; updated {{.Frame.UpdatedAt.Format "15:04:05"}}{{end}}</div>
{{end}}
`
