package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// errPartNotFound is returned when a required part is missing from an office package.
var errPartNotFound = errors.New("part not found")

const (
	contentTypesPart = "[Content_Types].xml"
	docxDefaultPart  = "word/document.xml"
	odfContentPart   = "content.xml"
	pptxSlidePrefix  = "ppt/slides/slide"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// <w:t>, <a:t> runs; attributes such as xml:space="preserve" are allowed.
	wordRun  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	drawRun  = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
	odfBlock = regexp.MustCompile(`(?s)<text:(p|h)(?:\s[^>]*)?>(.*?)</text:(?:p|h)>`)
	anyTag   = regexp.MustCompile(`<[^>]+>`)
	// Override elements naming the main document part, either attribute order.
	docxMainPart = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"|<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainType) + `"[^>]+PartName="([^"]+)"`)
	slideNum     = regexp.MustCompile(`slide(\d+)\.xml$`)
)

// officePackage is an OOXML or OpenDocument zip container.
type officePackage struct {
	format string
	zr     *zip.Reader
}

func openPackage(content []byte, format string) (*officePackage, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return &officePackage{format: format, zr: zr}, nil
}

func (p *officePackage) read(name string) (string, error) {
	for _, f := range p.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract %s: open %s: %w", p.format, name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("extract %s: read %s: %w", p.format, name, err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("extract %s: %s: %w", p.format, name, errPartNotFound)
}

// runs joins the captured run texts of re inside each paragraph of xml. Paragraphs are
// delimited by closeTag and joined with newlines; empty paragraphs are dropped.
func runs(xml string, re *regexp.Regexp, closeTag string) []string {
	var out []string
	for _, para := range strings.Split(xml, closeTag) {
		var b strings.Builder
		for _, m := range re.FindAllStringSubmatch(para, -1) {
			b.WriteString(html.UnescapeString(m[1]))
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractDOCX extracts paragraph text from a .docx package. The main part is looked up in
// [Content_Types].xml and defaults to word/document.xml.
func extractDOCX(content []byte) (string, error) {
	p, err := openPackage(content, "DOCX")
	if err != nil {
		return "", err
	}
	part := docxDefaultPart
	if ct, err := p.read(contentTypesPart); err == nil {
		if m := docxMainPart.FindStringSubmatch(ct); m != nil {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			part = strings.TrimPrefix(name, "/")
		}
	}
	doc, err := p.read(part)
	if err != nil {
		return "", err
	}
	return strings.Join(runs(doc, wordRun, "</w:p>"), "\n"), nil
}

// extractPPTX extracts slide text in slide order; slides are separated by a blank line.
func extractPPTX(content []byte) (string, error) {
	p, err := openPackage(content, "PPTX")
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range p.zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) {
			continue
		}
		m := slideNum.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })
	var texts []string
	for _, s := range slides {
		xml, err := p.read(s.name)
		if err != nil {
			return "", err
		}
		if paras := runs(xml, drawRun, "</a:p>"); len(paras) > 0 {
			texts = append(texts, strings.Join(paras, "\n"))
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

// extractODF extracts text:p and text:h blocks from an OpenDocument content.xml, in
// document order. Nested spans are flattened into their block.
func extractODF(content []byte, format string) (string, error) {
	p, err := openPackage(content, format)
	if err != nil {
		return "", err
	}
	xml, err := p.read(odfContentPart)
	if err != nil {
		return "", err
	}
	var blocks []string
	for _, m := range odfBlock.FindAllStringSubmatch(xml, -1) {
		text := strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(m[2], "")))
		if text != "" {
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n"), nil
}
