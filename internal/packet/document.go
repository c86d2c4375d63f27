package packet

import (
	"fmt"
	"strings"
	"time"
)

// Style is the typographic role of a line
type Style string

const (
	StyleMasthead   Style = "masthead"
	StyleTitle      Style = "title"
	StyleHeading    Style = "heading"
	StyleSubheading Style = "subheading"
	StyleEmphasis   Style = "emphasis"
	StyleBody       Style = "body"
)

// SectionKind identifies a document section
type SectionKind string

const (
	SectionLetterhead  SectionKind = "letterhead"
	SectionPatient     SectionKind = "patient"
	SectionLetter      SectionKind = "letter"
	SectionNotes       SectionKind = "clinical_notes"
	SectionLabs        SectionKind = "lab_results"
	SectionImaging     SectionKind = "imaging_results"
	SectionMedications SectionKind = "medications"
)

// Section headers
const (
	TitleReferralPacket = "REFERRAL PACKET"
	HeadingLetter       = "REFERRAL LETTER"
	HeadingNotes        = "CLINICAL NOTES"
	HeadingLabs         = "LAB RESULTS"
	HeadingImaging      = "IMAGING RESULTS"
	HeadingMedications  = "CURRENT MEDICATIONS"
)

// Line is one styled paragraph
type Line struct {
	Text  string `json:"text"`
	Style Style  `json:"style"`
}

// Section is a titled group of lines. Rule marks a horizontal rule after it.
type Section struct {
	Kind  SectionKind `json:"kind"`
	Lines []Line      `json:"lines"`
	Rule  bool        `json:"rule,omitempty"`
}

// Document is the render request handed to the export surface
type Document struct {
	Title    string    `json:"title"`
	Filename string    `json:"filename"`
	Sections []Section `json:"sections"`
}

// Filename returns the export file name for a packet produced on date
func Filename(p *Packet, date time.Time) string {
	return fmt.Sprintf("Referral_%s_%s_%s.pdf", p.Patient.LastName, p.Patient.FirstName, date.Format("2006-01-02"))
}

// Document lays the packet out in fixed order: letterhead, patient block,
// letter, then notes, labs and imaging when present, then medications.
func (p *Packet) Document(date time.Time) Document {
	practice := p.Letterhead.Provider.Practice
	doc := Document{
		Title:    TitleReferralPacket,
		Filename: Filename(p, date),
	}

	doc.Sections = append(doc.Sections, Section{
		Kind: SectionLetterhead,
		Lines: []Line{
			{Text: practice.Name, Style: StyleMasthead},
			{Text: practice.Address, Style: StyleBody},
			{Text: fmt.Sprintf("%s, %s %s", practice.City, practice.State, practice.Zip), Style: StyleBody},
			{Text: fmt.Sprintf("Phone: %s | Fax: %s", practice.Phone, practice.Fax), Style: StyleBody},
		},
		Rule: true,
	})

	doc.Sections = append(doc.Sections, Section{
		Kind: SectionPatient,
		Lines: []Line{
			{Text: TitleReferralPacket, Style: StyleTitle},
			{Text: fmt.Sprintf("Patient: %s %s", p.Patient.FirstName, p.Patient.LastName), Style: StyleEmphasis},
			{Text: fmt.Sprintf("DOB: %s | MRN: %s", p.Patient.DateOfBirth, p.Patient.MRN), Style: StyleBody},
		},
	})

	doc.Sections = append(doc.Sections, Section{
		Kind: SectionLetter,
		Lines: []Line{
			{Text: HeadingLetter, Style: StyleHeading},
			{Text: p.LetterText, Style: StyleBody},
		},
	})

	if len(p.OrderedNotes) > 0 {
		s := Section{Kind: SectionNotes, Lines: []Line{{Text: HeadingNotes, Style: StyleHeading}}}
		for _, n := range p.OrderedNotes {
			s.Lines = append(s.Lines,
				Line{Text: fmt.Sprintf("%s - %s", n.VisitType, n.Date), Style: StyleSubheading},
				Line{Text: "Assessment: " + n.Assessment, Style: StyleBody},
				Line{Text: "Plan: " + n.Plan, Style: StyleBody},
			)
		}
		doc.Sections = append(doc.Sections, s)
	}

	if len(p.OrderedLabs) > 0 {
		s := Section{Kind: SectionLabs, Lines: []Line{{Text: HeadingLabs, Style: StyleHeading}}}
		for _, l := range p.OrderedLabs {
			s.Lines = append(s.Lines, Line{Text: fmt.Sprintf("%s - %s", l.Name, l.Date), Style: StyleSubheading})
			for _, r := range l.Results {
				s.Lines = append(s.Lines, Line{
					Text:  fmt.Sprintf("  %s: %s %s (Ref: %s)", r.Test, r.Value, r.Unit, r.ReferenceRange),
					Style: StyleBody,
				})
			}
		}
		doc.Sections = append(doc.Sections, s)
	}

	if len(p.OrderedImaging) > 0 {
		s := Section{Kind: SectionImaging, Lines: []Line{{Text: HeadingImaging, Style: StyleHeading}}}
		for _, img := range p.OrderedImaging {
			s.Lines = append(s.Lines,
				Line{Text: fmt.Sprintf("%s - %s", img.Type, img.Date), Style: StyleSubheading},
				Line{Text: "Indication: " + img.Indication, Style: StyleBody},
				Line{Text: "Impression: " + img.Impression, Style: StyleBody},
			)
		}
		doc.Sections = append(doc.Sections, s)
	}

	meds := Section{Kind: SectionMedications, Lines: []Line{{Text: HeadingMedications, Style: StyleHeading}}}
	for _, m := range p.ActiveMedications {
		meds.Lines = append(meds.Lines, Line{
			Text:  fmt.Sprintf("• %s %s - %s", m.Name, m.Dosage, m.Frequency),
			Style: StyleBody,
		})
	}
	doc.Sections = append(doc.Sections, meds)

	return doc
}

// Text renders the document as plain text, one line per paragraph
func (d Document) Text() string {
	var b strings.Builder
	for i, s := range d.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, l := range s.Lines {
			b.WriteString(l.Text)
			b.WriteString("\n")
		}
		if s.Rule {
			b.WriteString(strings.Repeat("-", 60))
			b.WriteString("\n")
		}
	}
	return b.String()
}
