package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"tourbook/internal/models"
)

// Message is a rendered e-mail ready for delivery.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(
		`<p>Hi {{.FullName}},</p>
<p>Thanks for booking <strong>{{.TourName}}</strong>. Your booking id is <strong>{{.ID}}</strong>.</p>
<ul>
  <li><strong>Date:</strong> {{.TravelDate}}</li>
  <li><strong>People:</strong> {{.NumberOfPeople}}</li>
  <li><strong>Accommodation:</strong> {{.AccommodationType}}</li>
</ul>
<p>We will contact you shortly with further details.</p>
`))

	statusUpdateTmpl = template.Must(template.New("status_update").Parse(
		`<p>Hi {{.FullName}},</p>
<p>Your booking <strong>{{.ID}}</strong> status has been updated to <strong>{{.Status}}</strong>.</p>
{{if .AdminNotes}}<p><strong>Notes:</strong> {{.AdminNotes}}</p>
{{end}}`))

	adminTmpl = template.Must(template.New("admin").Parse(
		`<p>New booking received</p>
<ul>
  <li><strong>Tour:</strong> {{.TourName}} ({{.TourID}})</li>
  <li><strong>Name:</strong> {{.FullName}}</li>
  <li><strong>Email:</strong> {{.Email}}</li>
  <li><strong>Phone:</strong> {{.Phone}}</li>
  <li><strong>Date:</strong> {{.TravelDate}}</li>
  <li><strong>People:</strong> {{.NumberOfPeople}}</li>
  <li><strong>Accommodation:</strong> {{.AccommodationType}}</li>
  {{if .OtherRequirements}}<li><strong>Requirements:</strong> {{.OtherRequirements}}</li>{{end}}
</ul>
`))
)

// Compose renders the message of the given kind for a booking. Admin
// notifications go to adminAddress.
func Compose(kind string, b *models.Booking, adminAddress string) (Message, error) {
	var (
		tmpl    *template.Template
		subject string
		to      []string
	)

	switch kind {
	case models.NotificationBookingConfirmation:
		tmpl = confirmationTmpl
		subject = fmt.Sprintf("Booking confirmation - %s", b.TourName)
		to = []string{b.Email}
	case models.NotificationStatusUpdate:
		tmpl = statusUpdateTmpl
		subject = fmt.Sprintf("Booking Update - %s (%s)", b.TourName, b.Status)
		to = []string{b.Email}
	case models.NotificationAdminNewBooking:
		if adminAddress == "" {
			return Message{}, ErrNoRecipient
		}
		tmpl = adminTmpl
		subject = fmt.Sprintf("New booking: %s - %s", b.TourName, b.FullName)
		to = []string{adminAddress}
	default:
		return Message{}, fmt.Errorf("unknown notification kind: %s", kind)
	}

	if len(to) == 0 || to[0] == "" {
		return Message{}, ErrNoRecipient
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, b); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}

	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}
