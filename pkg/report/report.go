package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/mscrnt/cantiming/pkg/db"
	"github.com/mscrnt/cantiming/pkg/encoder"
	"github.com/mscrnt/cantiming/pkg/timing"
	"github.com/mscrnt/cantiming/pkg/units"
)

// ReportData contains all data needed for report generation
type ReportData struct {
	Solve       *db.Solve
	GeneratedAt time.Time
	Register    RegisterInfo
	SamplePoint float64
	Actual      float64
	Candidates  []CandidateRow
}

// RegisterInfo describes the packed register of a successful solve
type RegisterInfo struct {
	Name   string
	Hex    string
	Binary string
	Fields []encoder.FieldValue
}

// CandidateRow represents one search table entry for display
type CandidateRow struct {
	timing.Candidate
	Winner bool
}

// Generator creates reports from stored solves
type Generator struct {
	database *db.DB
}

// NewGenerator creates a new report generator
func NewGenerator(database *db.DB) *Generator {
	return &Generator{
		database: database,
	}
}

// GenerateHTML generates an HTML report for a stored solve
func (g *Generator) GenerateHTML(id int64) (string, error) {
	s, err := g.database.GetSolve(id)
	if err != nil {
		return "", fmt.Errorf("failed to get solve: %w", err)
	}
	return Render(s)
}

// Render builds the HTML report of s without touching the database
func Render(s *db.Solve) (string, error) {
	data, err := loadReportData(s)
	if err != nil {
		return "", err
	}

	tmpl, err := loadHTMLTemplate()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func loadReportData(s *db.Solve) (*ReportData, error) {
	data := &ReportData{
		Solve:       s,
		GeneratedAt: time.Now(),
	}

	if s.ClockHz > 0 && s.Bitrate > 0 {
		for _, c := range timing.Candidates(s.ClockHz, s.Bitrate) {
			data.Candidates = append(data.Candidates, CandidateRow{
				Candidate: c,
				Winner:    s.Success && c.TotalQuanta == s.TotalQuanta,
			})
		}
	}

	if !s.Success {
		return data, nil
	}

	enc, err := encoder.Get(s.Encoder)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve encoder: %w", err)
	}

	t := s.Timing()
	data.SamplePoint = t.SamplePoint()
	data.Actual = t.BitrateFor(s.ClockHz)
	data.Register = RegisterInfo{
		Name:   enc.Name(),
		Hex:    fmt.Sprintf("0x%08X", s.Register),
		Binary: groupBinary(s.Register),
		Fields: encoder.Breakdown(enc, s.Register),
	}
	if ie, ok := enc.(interface{ Info() encoder.Info }); ok {
		data.Register.Name = ie.Info().Register
	}

	return data, nil
}

// loadHTMLTemplate loads the HTML report template
func loadHTMLTemplate() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"freq": func(hz uint32) string {
			return units.Frequency(hz).String()
		},
		"pct": func(v float64) string {
			return fmt.Sprintf("%.4f %%", v)
		},
		"statusClass": func(success bool) string {
			if success {
				return "success"
			}
			return "failure"
		},
		"statusText": func(success bool) string {
			if success {
				return "SOLVED"
			}
			return "REJECTED"
		},
		"bits": func(f encoder.FieldValue) string {
			return fmt.Sprintf("%d:%d", f.Shift+f.Width-1, f.Shift)
		},
	}

	tmpl := template.New("report").Funcs(funcMap)
	tmpl, err := tmpl.Parse(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return tmpl, nil
}

// groupBinary renders reg as 32 binary digits in groups of four
func groupBinary(reg uint32) string {
	s := fmt.Sprintf("%032b", reg)
	var b strings.Builder
	for i := 0; i < len(s); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+4])
	}
	return b.String()
}

// htmlTemplate is the default HTML report template
const htmlTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>CAN Bit Timing Report - Solve #{{.Solve.ID}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .container {
            background-color: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            padding: 30px;
        }
        h1, h2, h3 {
            color: #2c3e50;
        }
        .header {
            border-bottom: 3px solid #2563EB;
            padding-bottom: 20px;
            margin-bottom: 30px;
        }
        .status {
            display: inline-block;
            padding: 5px 15px;
            border-radius: 4px;
            font-weight: bold;
            text-transform: uppercase;
            color: white;
        }
        .status.success {
            background-color: #10B981;
        }
        .status.failure {
            background-color: #EF4444;
        }
        .info-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 20px;
            margin: 20px 0;
        }
        .info-card {
            background-color: #f8f9fa;
            padding: 15px;
            border-radius: 4px;
            border-left: 4px solid #2563EB;
        }
        .info-card h3 {
            margin: 0 0 10px 0;
            color: #666;
            font-size: 0.9em;
            text-transform: uppercase;
        }
        .info-card p {
            margin: 0;
            font-size: 1.1em;
            font-weight: 500;
        }
        .section {
            margin: 30px 0;
        }
        .register {
            font-family: 'SFMono-Regular', Consolas, monospace;
            font-size: 1.2em;
        }
        table {
            width: 100%;
            border-collapse: collapse;
        }
        th, td {
            padding: 8px 10px;
            text-align: left;
            border-bottom: 1px solid #e0e0e0;
        }
        th {
            background-color: #f8f9fa;
            font-weight: 600;
            color: #666;
        }
        tr.winner td {
            background-color: #DCFCE7;
            font-weight: 600;
        }
        .footer {
            margin-top: 40px;
            padding-top: 20px;
            border-top: 1px solid #e0e0e0;
            text-align: center;
            color: #666;
            font-size: 0.9em;
        }
        .error-section {
            background-color: #FEE;
            border: 1px solid #FCC;
            border-radius: 4px;
            padding: 15px;
            margin: 20px 0;
        }
        .error-section h3 {
            color: #C00;
            margin-top: 0;
        }
        pre {
            background-color: #f4f4f4;
            padding: 10px;
            border-radius: 4px;
            overflow-x: auto;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>CAN Bit Timing Report</h1>
            <p>Solve #{{.Solve.ID}}{{if .Solve.Name}} | Bus: {{.Solve.Name}}{{end}} | Encoder: {{.Solve.Encoder}} |
               Status: <span class="status {{statusClass .Solve.Success}}">{{statusText .Solve.Success}}</span>
            </p>
        </div>

        <div class="info-grid">
            <div class="info-card">
                <h3>Peripheral Clock</h3>
                <p>{{freq .Solve.ClockHz}}</p>
            </div>
            <div class="info-card">
                <h3>Bitrate</h3>
                <p>{{.Solve.Bitrate}} bit/s</p>
            </div>
            <div class="info-card">
                <h3>Midpoint</h3>
                <p>{{.Solve.Midpoint}}</p>
            </div>
            <div class="info-card">
                <h3>Tolerance</h3>
                <p>{{.Solve.TolerancePct}} %</p>
            </div>
        </div>

        {{if .Solve.Success}}
        <div class="section">
            <h2>Result</h2>
            <div class="info-grid">
                <div class="info-card">
                    <h3>Segments</h3>
                    <p>BS1 {{.Solve.BS1}} / BS2 {{.Solve.BS2}} / SJW {{.Solve.SJW}}</p>
                </div>
                <div class="info-card">
                    <h3>Prescaler</h3>
                    <p>{{.Solve.Prescaler}}</p>
                </div>
                <div class="info-card">
                    <h3>Sample Point</h3>
                    <p>{{printf "%.1f" .SamplePoint}} %</p>
                </div>
                <div class="info-card">
                    <h3>Quantization Error</h3>
                    <p>{{pct .Solve.ErrorPct}}</p>
                </div>
                <div class="info-card">
                    <h3>Actual Bitrate</h3>
                    <p>{{printf "%.2f" .Actual}} bit/s</p>
                </div>
            </div>
        </div>

        <div class="section">
            <h2>{{.Register.Name}}</h2>
            <p class="register">{{.Register.Hex}}</p>
            <p class="register">{{.Register.Binary}}</p>
            {{if .Register.Fields}}
            <table>
                <thead>
                    <tr>
                        <th>Field</th>
                        <th>Bits</th>
                        <th>Raw</th>
                        <th>Value</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Register.Fields}}
                    <tr>
                        <td>{{.Name}}</td>
                        <td>{{bits .}}</td>
                        <td>{{.Raw}}</td>
                        <td>{{.Value}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
            {{end}}
        </div>
        {{else}}
        <div class="error-section">
            <h3>Error Details{{if .Solve.ErrorCode}} ({{.Solve.ErrorCode}}){{end}}</h3>
            <pre>{{.Solve.Error}}</pre>
        </div>
        {{end}}

        {{if .Candidates}}
        <div class="section">
            <h2>Candidates</h2>
            <table>
                <thead>
                    <tr>
                        <th>BS1+BS2</th>
                        <th>Ideal Prescaler</th>
                        <th>Prescaler</th>
                        <th>Error</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Candidates}}
                    <tr{{if .Winner}} class="winner"{{end}}>
                        <td>{{.TotalQuanta}}</td>
                        <td>{{printf "%.4f" .IdealPrescaler}}</td>
                        <td>{{.Prescaler}}</td>
                        <td>{{pct .ErrorPct}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        <div class="footer">
            <p>Generated by cantiming on {{formatTime .GeneratedAt}}</p>
            <p>Solved {{formatTime .Solve.CreatedAt}}</p>
        </div>
    </div>
</body>
</html>
`
