package report

import (
	"fmt"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	docFontName  = "Calibri"
	docFontSize  = 11
	titleSize    = 16
	headingSize  = 13
	subtitleSize = 10
)

// Renderer writes a document model to a file.
type Renderer interface {
	Render(doc Document, outputPath string) error
	Extension() string
}

// DocxRenderer renders the report as a Word document.
type DocxRenderer struct{}

// NewDocxRenderer constructs the default renderer.
func NewDocxRenderer() *DocxRenderer { return &DocxRenderer{} }

// Extension returns the file extension the renderer produces.
func (*DocxRenderer) Extension() string { return ".docx" }

// Render writes the document to outputPath.
func (*DocxRenderer) Render(doc Document, outputPath string) error {
	word, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	addStyled(word.AddParagraph(""), doc.Title, true, titleSize)
	if doc.Subtitle != "" {
		addStyled(word.AddParagraph(""), doc.Subtitle, false, subtitleSize)
	}

	for _, section := range doc.Sections {
		word.AddParagraph("")
		addStyled(word.AddParagraph(""), section.Heading, true, headingSize)
		for _, paragraph := range section.Paragraphs {
			addStyled(word.AddParagraph(""), paragraph, false, docFontSize)
		}
		for _, bullet := range section.Bullets {
			addStyled(word.AddParagraph(""), "• "+bullet, false, docFontSize)
		}
	}

	if err := word.SaveTo(outputPath); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func addStyled(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(docFontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
