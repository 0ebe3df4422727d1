package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/defense-allocation-api/internal/models"
)

const dateLayout = "02/01/2006 15:04"

// Message is the rendered content of a notification.
type Message struct {
	Subject string
	Text    string
	Lines   []string
}

// Renderer turns events into human readable messages.
type Renderer struct {
	caseLinkBase string
	location     *time.Location
}

// NewRenderer builds a renderer. caseLinkBase prefixes case study ids when a case has no url.
func NewRenderer(caseLinkBase string, location *time.Location) *Renderer {
	if location == nil {
		location = time.UTC
	}
	return &Renderer{caseLinkBase: strings.TrimRight(caseLinkBase, "/"), location: location}
}

// Render builds the message for an event and the recipient name.
func (r *Renderer) Render(event Event, recipient string) Message {
	if event.Purpose == PurposeGrade {
		return r.renderGrade(event, recipient)
	}
	return r.renderSchedule(event, recipient)
}

func (r *Renderer) renderSchedule(event Event, recipient string) Message {
	d := event.Defense
	kind := fallback(d.DefenseTypeName, "defense")
	when := d.ScheduledAt.In(r.location).Format(dateLayout)

	lines := []string{fmt.Sprintf("Hello %s, your %s has been scheduled for %s.", recipient, kind, when)}
	switch d.Status {
	case models.DefenseStatusAssigned:
		if d.AreaName != nil {
			lines = append(lines, fmt.Sprintf("Area: %s", *d.AreaName))
		}
		if d.CaseStudyTitle != nil {
			lines = append(lines, fmt.Sprintf("Case study: %s", *d.CaseStudyTitle))
		}
		if link := r.caseLink(d.CaseStudyID, d.CaseStudyURL); link != "" {
			lines = append(lines, fmt.Sprintf("Case study document: %s", link))
		}
	case models.DefenseStatusPending:
		lines = append(lines, "The area and case study are still being finalised. You will be notified once they are assigned.")
	default:
		lines = append(lines, "Your defense has been registered.")
	}

	return Message{
		Subject: fmt.Sprintf("Your %s is scheduled", kind),
		Text:    strings.Join(lines, "\n"),
		Lines:   lines,
	}
}

func (r *Renderer) renderGrade(event Event, recipient string) Message {
	d := event.Defense
	kind := fallback(d.DefenseTypeName, "defense")

	lines := []string{fmt.Sprintf("Hello %s, the grade of your %s has been recorded.", recipient, kind)}
	if d.Grade != nil {
		lines = append(lines, fmt.Sprintf("Grade: %.2f", *d.Grade))
	}
	switch d.Status {
	case models.DefenseStatusApproved:
		lines = append(lines, "Result: approved. Congratulations!")
	case models.DefenseStatusFailed:
		lines = append(lines, "Result: not approved.")
	}

	return Message{
		Subject: fmt.Sprintf("Your %s grade is available", kind),
		Text:    strings.Join(lines, "\n"),
		Lines:   lines,
	}
}

func (r *Renderer) caseLink(caseStudyID, url *string) string {
	if url != nil && *url != "" {
		return *url
	}
	if caseStudyID == nil || r.caseLinkBase == "" {
		return ""
	}
	return r.caseLinkBase + "/" + *caseStudyID
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
