package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
)

// PreviewLength is the maximum number of characters of a mention preview.
const PreviewLength = 200

//go:embed templates/*.html
var templatesFS embed.FS

var (
	mentionTemplate    = template.Must(template.ParseFS(templatesFS, "templates/layout.html", "templates/mention.html"))
	assignmentTemplate = template.Must(template.ParseFS(templatesFS, "templates/layout.html", "templates/assignment.html"))

	strict = bluemonday.StrictPolicy()
)

// A Mail is a rendered notification.
type Mail struct {
	Subject string
	HTML    string
}

type view struct {
	Title     string
	Headline  string
	Kind      string
	ItemName  string
	BoardName string
	Source    string
	Preview   string
	Link      string
	Footer    string
}

// Preview returns the plain text of content, truncated to PreviewLength characters.
// An ellipsis is appended when the text has been truncated.
func Preview(content string) string {
	text := html.UnescapeString(strict.Sanitize(content))
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return string(runes[:PreviewLength]) + "..."
}

// Link returns the deep link to the ticket.
func Link(baseURL, boardID string, number int, viewType string) string {
	return fmt.Sprintf("%s/boards/%s/ticket/%d?view=%s",
		strings.TrimSuffix(baseURL, "/"),
		url.PathEscape(boardID),
		number,
		url.QueryEscape(viewType),
	)
}

func sourceLabel(source string) string {
	switch source {
	case SourceComment:
		return "Comment"
	case SourceDescription:
		return "Description"
	default:
		return "Repro Steps"
	}
}

func (d *Dispatcher) render(ev Event) (Mail, error) {
	v := view{
		Kind:      ev.Item.Kind(),
		ItemName:  ev.Item.Name,
		BoardName: ev.Board.Name,
		Link:      Link(d.baseURL, ev.Board.ID, ev.Item.Number, ev.Board.ViewType),
	}

	var subject string
	var tmpl *template.Template
	switch ev.Type {
	case EventMention:
		subject = fmt.Sprintf("You were mentioned in %s #%d", v.Kind, ev.Item.Number)
		tmpl = mentionTemplate
		v.Title = "You were mentioned"
		v.Headline = fmt.Sprintf("%s mentioned you in %s #%d", ev.Actor.Name, v.Kind, ev.Item.Number)
		v.Source = sourceLabel(ev.Source)
		v.Preview = Preview(ev.Content)
		v.Footer = fmt.Sprintf("This email was sent because you were mentioned in a %s.", strings.ReplaceAll(ev.Source, "_", " "))
	case EventAssignment:
		subject = fmt.Sprintf("You were assigned to %s #%d", v.Kind, ev.Item.Number)
		tmpl = assignmentTemplate
		v.Title = "You were assigned"
		v.Headline = fmt.Sprintf("%s assigned you to %s #%d", ev.Actor.Name, v.Kind, ev.Item.Number)
		v.Footer = "This email was sent because you were assigned to this ticket."
	default:
		return Mail{}, errors.Errorf("unknown event type %q", ev.Type)
	}

	var b bytes.Buffer
	if err := tmpl.ExecuteTemplate(&b, "layout", v); err != nil {
		return Mail{}, errors.Wrap(err, "could not render mail")
	}

	return Mail{
		Subject: subject,
		HTML:    b.String(),
	}, nil
}
