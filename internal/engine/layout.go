package engine

import (
	"image/color"
	"time"
)

// DateLayout is how dates appear on certificates ("January 2, 2006").
const DateLayout = "January 2, 2006"

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// SampleValues are shown when previewing a template before any certificate
// exists.
func SampleValues(now time.Time) FieldValues {
	return FieldValues{
		"userName":         "John Doe",
		"userEmail":        "john.doe@example.com",
		"programName":      "Web Development Fundamentals",
		"organizationName": "Sample Education Institute",
		"completionDate":   FormatDate(now),
		"issueDate":        FormatDate(now),
		"certificateId":    "CERT-SAMPLE-001",
		"verificationCode": "SAMPLE123456",
	}
}

// DefaultLayout is the certificate used when no template is attached: a
// centered stack of title, recipient, program, organization and date.
func DefaultLayout() *Template {
	const w, h = DefaultWidth, DefaultHeight
	cx := float64(w) / 2
	line := func(id, content string, y, size float64, hex uint32, bold bool) Element {
		return Element{
			ID:      id,
			Type:    ElementText,
			X:       cx,
			Y:       y,
			Content: content,
			Text: TextStyle{
				FontSize: size,
				Family:   FamilySans,
				Bold:     bold,
				Align:    AlignCenter,
				Color:    color.NRGBA{R: uint8(hex >> 16), G: uint8(hex >> 8), B: uint8(hex), A: 255},
			},
		}
	}
	return &Template{
		ID:         "default-layout",
		Width:      w,
		Height:     h,
		Background: white,
		Elements: []Element{
			line("title", "Certificate of Completion", 100, 24, 0x1f2937, true),
			line("intro", "This is to certify that", 140, 14, 0x4b5563, false),
			line("recipient", "{{userName}}", 180, 20, 0x1f2937, true),
			line("program", "{{programName}}", 220, 16, 0x1f2937, false),
			line("organization", "{{organizationName}}", 260, 14, 0x6b7280, false),
			line("completed", "Completed on {{completionDate}}", 300, 12, 0x6b7280, false),
		},
	}
}
