// Package email renders and delivers the trigger notification sent to users
// whose series are configured for email delivery. Delivery is best effort;
// a failed send never affects the render trigger that caused it.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// RenderedEmail holds the pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
}

// TriggerData is the struct passed into the template for a video trigger
// notification.
type TriggerData struct {
	Theme    string
	Language string
	VideoID  string
}

// Renderer performs email template rendering using html/template with
// embedded template files.
type Renderer struct {
	triggered *template.Template
}

// NewRenderer parses the embedded templates and returns a Renderer.
func NewRenderer() (*Renderer, error) {
	content, err := templateFS.ReadFile("templates/video_triggered.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: reading video_triggered.html: %w", err)
	}
	tmpl, err := template.New("video_triggered").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("renderer: parsing video_triggered.html: %w", err)
	}
	return &Renderer{triggered: tmpl}, nil
}

// RenderTriggered renders the "your video is being generated" notification.
func (r *Renderer) RenderTriggered(data TriggerData) (*RenderedEmail, error) {
	var buf bytes.Buffer
	if err := r.triggered.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("renderer: rendering video_triggered: %w", err)
	}

	subject := "Your video is on its way"
	if data.Theme != "" {
		subject = fmt.Sprintf("Your next %s video is on its way", data.Theme)
	}

	return &RenderedEmail{
		Subject:  subject,
		BodyHTML: buf.String(),
	}, nil
}
