// Package report renders stored solves as HTML and PDF documents.
package report

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PDFOptions contains options for PDF generation
type PDFOptions struct {
	Landscape           bool
	PrintBackground     bool
	PreferCSSPageSize   bool
	PaperWidth          float64
	PaperHeight         float64
	MarginTop           float64
	MarginBottom        float64
	MarginLeft          float64
	MarginRight         float64
	HeaderTemplate      string
	FooterTemplate      string
	DisplayHeaderFooter bool
	Timeout             time.Duration
}

// paperSizes maps paper names to width and height in inches
var paperSizes = map[string][2]float64{
	"letter": {8.5, 11},
	"legal":  {8.5, 14},
	"a3":     {11.69, 16.54},
	"a4":     {8.27, 11.69},
	"a5":     {5.83, 8.27},
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		Landscape:           false,
		PrintBackground:     true,
		PreferCSSPageSize:   false,
		PaperWidth:          8.5,  // Letter width in inches
		PaperHeight:         11.0, // Letter height in inches
		MarginTop:           0.4,
		MarginBottom:        0.4,
		MarginLeft:          0.4,
		MarginRight:         0.4,
		DisplayHeaderFooter: false,
		Timeout:             30 * time.Second,
	}
}

// SetPaper selects a named paper size
func (o *PDFOptions) SetPaper(name string) error {
	size, ok := paperSizes[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown paper size %q", name)
	}
	o.PaperWidth, o.PaperHeight = size[0], size[1]
	return nil
}

// GeneratePDF generates a PDF report for a stored solve
func (g *Generator) GeneratePDF(ctx context.Context, id int64, outputPath string, options PDFOptions) error {
	html, err := g.GenerateHTML(id)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}

	pdfData, err := htmlToPDF(ctx, html, options)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, pdfData, 0o600); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	return nil
}

// htmlToPDF renders an HTML document to PDF using chromedp
func htmlToPDF(ctx context.Context, html string, options PDFOptions) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	if options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	var pdfData []byte
	if err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithLandscape(options.Landscape).
				WithPrintBackground(options.PrintBackground).
				WithPreferCSSPageSize(options.PreferCSSPageSize).
				WithPaperWidth(options.PaperWidth).
				WithPaperHeight(options.PaperHeight).
				WithMarginTop(options.MarginTop).
				WithMarginBottom(options.MarginBottom).
				WithMarginLeft(options.MarginLeft).
				WithMarginRight(options.MarginRight).
				WithDisplayHeaderFooter(options.DisplayHeaderFooter)

			if options.HeaderTemplate != "" {
				params = params.WithHeaderTemplate(options.HeaderTemplate)
			}
			if options.FooterTemplate != "" {
				params = params.WithFooterTemplate(options.FooterTemplate)
			}

			var err error
			pdfData, _, err = params.Do(ctx)
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return pdfData, nil
}
