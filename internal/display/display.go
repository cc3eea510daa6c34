// Package display renders a ui.State. Rendering is pure: the same state
// always yields the same output.
package display

import (
	"bytes"
	"html/template"
	"strconv"

	"github.com/loqalabs/loqa-scribe/internal/ui"
)

var outputTemplate = template.Must(template.New("output").Parse(
	`{{if eq .Kind "result"}}<div class="result"><h1 class="transcript">{{.Transcript}}</h1><h1 class="confidence">{{.Confidence}}</h1></div>` +
		`{{else}}<p class="status status-{{.Kind}}">{{.Status}}</p>{{end}}`))

type view struct {
	Kind       string
	Status     string
	Transcript string
	Confidence string
}

// Confidence formats a score in its shortest decimal form, e.g. 0.92.
func Confidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

// Text renders s for a terminal.
func Text(s ui.State) string {
	switch s.Kind {
	case ui.KindResult:
		return s.Result.Transcript + "\n" + Confidence(s.Result.Confidence)
	case ui.KindError:
		return "error: " + s.Message
	default:
		return s.Message
	}
}

// HTML renders s as the output fragment of the page.
func HTML(s ui.State) (template.HTML, error) {
	v := view{Kind: s.Kind.String()}
	switch s.Kind {
	case ui.KindResult:
		v.Transcript = s.Result.Transcript
		v.Confidence = Confidence(s.Result.Confidence)
	case ui.KindError:
		v.Status = "error: " + s.Message
	default:
		v.Status = s.Message
	}
	var buf bytes.Buffer
	if err := outputTemplate.Execute(&buf, v); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
