package letter

import (
	"bytes"
	"fmt"
	"text/template"
)

const promptText = `You are a medical assistant helping a pediatrician generate a referral letter to a {{.Specialty}} specialist.

Referring Provider:
- Name: {{.Provider.Name}}, {{.Provider.Credentials}}
- Practice: {{.Provider.Practice.Name}}
- Address: {{.Provider.Practice.Address}}, {{.Provider.Practice.City}}, {{.Provider.Practice.State}} {{.Provider.Practice.Zip}}
- Phone: {{.Provider.Practice.Phone}}
- Fax: {{.Provider.Practice.Fax}}
- NPI: {{.Provider.NPI}}

Patient Information:
- Name: {{.Patient.FirstName}} {{.Patient.LastName}}
- Date of Birth: {{.Patient.DateOfBirth}}
- Age: {{.Patient.Age}}
- Sex: {{.Patient.Sex}}

Most Recent Visit Note:
{{range $i, $n := .SOAPNotes}}{{if $i}}
---
{{end}}
Date: {{$n.Date}}
Visit Type: {{$n.VisitType}}
Chief Complaint: {{$n.ChiefComplaint}}
Assessment: {{$n.Assessment}}
Plan: {{$n.Plan}}
{{end}}
Current Medications:
{{range .Medications}}- {{.Name}} {{.Dosage}} {{.Frequency}}
{{end}}
Relevant Imaging Results:
{{range .Imaging}}
{{.Type}} ({{.Date}}):
Impression: {{.Impression}}
{{end}}
Relevant Lab Results:
{{range .Labs}}
{{.Name}} ({{.Date}}):
{{range .Results}}  - {{.Test}}: {{.Value}} {{.Unit}}
{{end}}{{end}}
Please generate a professional referral letter to the {{.Specialty}} specialist. The letter should:
1. Include a letterhead with the referring provider's practice name, address, phone, and fax
2. Be addressed "To the Pediatric {{.Specialty}} Team"
3. Clearly state the reason for referral
4. Summarize relevant medical history
5. Include pertinent findings from recent examinations and tests
6. Specify what evaluation/management is being requested
7. Be concise but comprehensive
8. End with the referring provider's signature block including name, credentials, and contact info

Format the letter professionally with today's date. Use a warm but professional tone appropriate for a pediatric referral.`

var promptTmpl = template.Must(template.New("prompt").Parse(promptText))

// RenderPrompt renders the single-turn instruction for the text service
func RenderPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
