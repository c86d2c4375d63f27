package export

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/drfirst/go-referral/internal/packet"
)

// EmailDraft is a ready-to-send message carrying the packet as an attachment
type EmailDraft struct {
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Attachment string `json:"attachment"`
}

// ComposeEmail drafts the cover message for a packet
func ComposeEmail(p *packet.Packet, attachment string) EmailDraft {
	provider := p.Letterhead.Provider
	practice := provider.Practice
	name := p.Patient.FirstName + " " + p.Patient.LastName

	var b strings.Builder
	fmt.Fprintf(&b, "Dear Pediatric %s Team,\n\n", p.Specialty)
	fmt.Fprintf(&b, "Please find attached the referral packet for %s (DOB: %s).\n\n", name, p.Patient.DateOfBirth)
	if reason := referralReason(p); reason != "" {
		fmt.Fprintf(&b, "Reason for referral: %s\n\n", reason)
	}
	b.WriteString("Please contact our office if you have any questions.\n\n")
	fmt.Fprintf(&b, "%s\n%s\n%s, %s %s\nPhone: %s\nFax: %s\n\n",
		practice.Name, practice.Address, practice.City, practice.State, practice.Zip, practice.Phone, practice.Fax)
	fmt.Fprintf(&b, "Best regards,\n%s\n", provider.DisplayName())

	return EmailDraft{
		Subject:    fmt.Sprintf("Referral for %s - Pediatric %s", name, p.Specialty),
		Body:       b.String(),
		Attachment: attachment,
	}
}

// MailtoURL encodes the draft as a mailto link with no recipient
func (d EmailDraft) MailtoURL() string {
	q := url.Values{}
	q.Set("subject", d.Subject)
	q.Set("body", d.Body)
	return "mailto:?" + strings.ReplaceAll(q.Encode(), "+", "%20")
}

func referralReason(p *packet.Packet) string {
	if s := strings.TrimSpace(p.SpecialistNotes); s != "" {
		return s
	}
	if len(p.OrderedNotes) > 0 {
		return p.OrderedNotes[0].Assessment
	}
	return ""
}
