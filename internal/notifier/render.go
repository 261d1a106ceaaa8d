package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/alumniport/donation-gateway/internal/mailer"
	"github.com/alumniport/donation-gateway/internal/model"
)

// Renderer turns a donation snapshot into the plain and rich bodies of one
// notification email.
type Renderer struct {
	siteBaseURL string
	location    *time.Location
}

func NewRenderer(siteBaseURL string, location *time.Location) *Renderer {
	if location == nil {
		location = time.UTC
	}
	return &Renderer{siteBaseURL: strings.TrimRight(siteBaseURL, "/"), location: location}
}

func (r *Renderer) Render(purpose model.NotificationPurpose, d *model.Donation, campaignTitle string) *mailer.Email {
	email := &mailer.Email{To: d.RecipientEmail()}

	amount := d.Amount.StringFixed(2)
	when := d.DonatedAt.In(r.location).Format("January 2, 2006 3:04 PM")
	statusURL := fmt.Sprintf("%s/donations/%s", r.siteBaseURL, d.ReferenceNumber)

	switch purpose {
	case model.NotificationPurposeConfirmation:
		email.Subject = fmt.Sprintf("We received your donation %s", d.ReferenceNumber)
		email.TextBody = fmt.Sprintf(
			"Dear %s,\n\nThank you for your donation of %s to %s on %s.\n"+
				"Your payment proof has been received and is awaiting verification.\n\n"+
				"Reference number: %s\nTrack your donation: %s\n",
			d.DisplayName(), amount, campaignTitle, when, d.ReferenceNumber, statusURL)

	case model.NotificationPurposeStatusUpdate:
		email.Subject = fmt.Sprintf("Donation %s is now %s", d.ReferenceNumber, statusLabel(d.Status))
		email.TextBody = fmt.Sprintf(
			"Dear %s,\n\nYour donation of %s to %s has been marked as %s.\n\n"+
				"Reference number: %s\nDetails: %s\n",
			d.DisplayName(), amount, campaignTitle, statusLabel(d.Status), d.ReferenceNumber, statusURL)

	case model.NotificationPurposeReceipt:
		email.Subject = fmt.Sprintf("Official receipt for donation %s", d.ReferenceNumber)
		email.TextBody = fmt.Sprintf(
			"Dear %s,\n\nThis is your official receipt.\n\n"+
				"Reference number: %s\nCampaign: %s\nAmount: %s\nDate: %s\n\n"+
				"Thank you for supporting our alumni community.\n",
			d.DisplayName(), d.ReferenceNumber, campaignTitle, amount, when)
	}

	email.HTMLBody = r.renderHTML(purpose, d, campaignTitle, amount, when, statusURL)
	return email
}

func (r *Renderer) renderHTML(purpose model.NotificationPurpose, d *model.Donation, campaignTitle, amount, when, statusURL string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<p>Dear %s,</p>", htmlEscape(d.DisplayName())))

	switch purpose {
	case model.NotificationPurposeConfirmation:
		b.WriteString(fmt.Sprintf(
			"<p>Thank you for your donation of <strong>%s</strong> to <strong>%s</strong> on %s.</p>"+
				"<p>Your payment proof has been received and is awaiting verification.</p>",
			amount, htmlEscape(campaignTitle), when))
	case model.NotificationPurposeStatusUpdate:
		b.WriteString(fmt.Sprintf(
			"<p>Your donation of <strong>%s</strong> to <strong>%s</strong> has been marked as <strong>%s</strong>.</p>",
			amount, htmlEscape(campaignTitle), statusLabel(d.Status)))
	case model.NotificationPurposeReceipt:
		b.WriteString("<p>This is your official receipt.</p><table>")
		b.WriteString(fmt.Sprintf("<tr><td>Reference</td><td>%s</td></tr>", d.ReferenceNumber))
		b.WriteString(fmt.Sprintf("<tr><td>Campaign</td><td>%s</td></tr>", htmlEscape(campaignTitle)))
		b.WriteString(fmt.Sprintf("<tr><td>Amount</td><td>%s</td></tr>", amount))
		b.WriteString(fmt.Sprintf("<tr><td>Date</td><td>%s</td></tr>", when))
		b.WriteString("</table>")
	}

	b.WriteString(fmt.Sprintf(
		`<p>Reference number: <strong>%s</strong><br><a href="%s">View your donation</a></p>`,
		d.ReferenceNumber, statusURL))
	b.WriteString("</body></html>")
	return b.String()
}

func statusLabel(s model.DonationStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
)

func htmlEscape(s string) string {
	return htmlReplacer.Replace(s)
}
