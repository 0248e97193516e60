package dashboard

import (
	"fmt"
	"html/template"
	"io"

	"github.com/usagestats/usagestats/charts"
	"github.com/usagestats/usagestats/loader"
)

const EChartsAssetsURL = "https://cdn.jsdelivr.net/npm/echarts@5.4.3/dist/echarts.min.js"

// HtmlContent is the dashboard page. Every chart owns a pre-existing container;
// only rendered charts get a script binding their option to it.
const HtmlContent = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ .Title }}</title>
    <style>
        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background-color: #e0e5e8;
            color: #333;
            margin: 0;
            padding: 0;
        }
        .navbar {
            background-color: #333;
            padding: 0 20px;
            display: flex;
            gap: 10px;
        }
        .dropdown {
            position: relative;
        }
        .dropdown-toggle {
            background: none;
            border: none;
            color: white;
            padding: 14px 10px;
            cursor: pointer;
            font-size: 1em;
        }
        .dropdown-menu {
            display: none;
            position: absolute;
            background-color: white;
            min-width: 220px;
            box-shadow: 0 4px 12px rgba(0,0,0,0.2);
            list-style: none;
            margin: 0;
            padding: 6px 0;
            z-index: 10;
        }
        .dropdown.open .dropdown-menu {
            display: block;
        }
        .dropdown-menu a {
            display: block;
            padding: 6px 16px;
            color: #333;
            text-decoration: none;
        }
        .container {
            max-width: 1200px;
            margin: 40px auto;
            padding: 20px;
            background-color: white;
            border-radius: 12px;
            box-shadow: 0 4px 12px rgba(0,0,0,0.1);
        }
        h1 {
            font-size: 2.5em;
            margin-top: 0;
            color: #333;
            border-bottom: 2px solid #007bff;
            padding-bottom: 10px;
        }
        .chart-container {
            margin-top: 20px;
            padding: 15px;
            background-color: #ffffff;
            border-radius: 8px;
            box-shadow: 0 2px 6px rgba(0,0,0,0.1);
        }
        .graph {
            width: 100%;
            min-height: 320px;
        }
        .footer {
            margin-top: 40px;
            text-align: center;
            color: #6c757d;
            font-size: 0.9em;
        }
    </style>
    <script src="{{ .AssetsURL }}"></script>
</head>
<body>
    <nav class="navbar">
        {{- range .Menus }}
        <div class="dropdown">
            <button class="dropdown-toggle" type="button">{{ .Name }} &#9662;</button>
            <ul class="dropdown-menu">
                {{- range .Panels }}
                <li><a href="{{ .Anchor }}">{{ .Title }}</a></li>
                {{- end }}
            </ul>
        </div>
        {{- end }}
    </nav>
    <div class="container">
        <h1>{{ .Title }}</h1>
        {{- range .Panels }}
        <div class="chart-container" id="{{ .ElementID }}">
            <h2>{{ .Title }}</h2>
            <div class="graph" id="{{ .ContainerID }}"></div>
        </div>
        {{- end }}
        <div class="footer">
            <p>{{ .Footer }}</p>
        </div>
    </div>
    <script>
        document.querySelectorAll('.dropdown-toggle').forEach(function (toggle) {
            toggle.addEventListener('click', function (event) {
                event.stopPropagation();
                var parent = toggle.parentElement;
                document.querySelectorAll('.dropdown.open').forEach(function (d) {
                    if (d !== parent) {
                        d.classList.remove('open');
                    }
                });
                parent.classList.toggle('open');
            });
        });
        document.addEventListener('click', function () {
            document.querySelectorAll('.dropdown.open').forEach(function (d) {
                d.classList.remove('open');
            });
        });
        {{- range .Charts }}
        (function () {
            var el = document.getElementById({{ .ContainerID }});
            if (!el || typeof echarts === 'undefined') {
                return;
            }
            var chart = echarts.init(el);
            chart.setOption({{ .Option }});
            window.addEventListener('resize', function () { chart.resize(); });
        })();
        {{- end }}
    </script>
</body>
</html>
`

var pageTemplate = template.Must(template.New("dashboard").Parse(HtmlContent))

// Panel is one chart slot on the page.
type Panel struct {
	ElementID   string
	ContainerID string
	Anchor      string
	Title       string
	Kind        charts.Kind
}

// Menu groups panels under one dropdown toggle.
type Menu struct {
	Name   string
	Panels []Panel
}

type page struct {
	Title     string
	Footer    string
	AssetsURL string
	Menus     []Menu
	Panels    []Panel
	Charts    []loader.Chart
}

// Render writes the page. Panels come from the results in order; a result
// that did not render keeps an empty container.
func Render(w io.Writer, title string, results []loader.Result) error {
	p := page{
		Title:     title,
		Footer:    fmt.Sprintf("%s - usage statistics", title),
		AssetsURL: EChartsAssetsURL,
	}
	for _, res := range results {
		p.Panels = append(p.Panels, panelFor(res.Request))
		if res.Rendered {
			p.Charts = append(p.Charts, res.Chart)
		}
	}
	p.Menus = menus(p.Panels)

	if err := pageTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

func panelFor(req charts.Request) Panel {
	title := req.Title
	if title == "" {
		title = req.Name
	}
	return Panel{
		ElementID:   req.ElementID,
		ContainerID: charts.ContainerID(req.ElementID),
		Anchor:      charts.ElementSelector(req.ElementID),
		Title:       title,
		Kind:        req.Kind,
	}
}

// menus puts area charts and bar charts under separate toggles.
func menus(panels []Panel) []Menu {
	usage := Menu{Name: "Usage"}
	other := Menu{Name: "Totals"}
	for _, p := range panels {
		if p.Kind == charts.KindArea {
			usage.Panels = append(usage.Panels, p)
		} else {
			other.Panels = append(other.Panels, p)
		}
	}

	var out []Menu
	for _, m := range []Menu{usage, other} {
		if len(m.Panels) > 0 {
			out = append(out, m)
		}
	}
	return out
}
