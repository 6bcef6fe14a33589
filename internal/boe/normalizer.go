package boe

import (
	"encoding/xml"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// indexDocument mirrors the shape of the daily index XML. The four nesting
// levels below a diary are seccion > departamento > epigrafe > item; items
// may also hang directly off a departamento when it has no headings.
type indexDocument struct {
	XMLName xml.Name `xml:"response"`
	Status  struct {
		Code string `xml:"code"`
	} `xml:"status"`
	Data struct {
		Summary summaryNode `xml:"sumario"`
	} `xml:"data"`
}

type summaryNode struct {
	Metadata struct {
		PublicationDate string `xml:"fecha_publicacion"`
		DiaryNumber     string `xml:"numero_diario"`
	} `xml:"metadatos"`
	Diaries []diaryNode `xml:"diario"`
}

type diaryNode struct {
	Number   string        `xml:"numero,attr"`
	Sections []sectionNode `xml:"seccion"`
}

type sectionNode struct {
	Code        string           `xml:"codigo,attr"`
	Name        string           `xml:"nombre,attr"`
	Departments []departmentNode `xml:"departamento"`
}

type departmentNode struct {
	Code     string        `xml:"codigo,attr"`
	Name     string        `xml:"nombre,attr"`
	Items    []itemNode    `xml:"item"`
	Headings []headingNode `xml:"epigrafe"`
}

type headingNode struct {
	Name  string     `xml:"nombre,attr"`
	Items []itemNode `xml:"item"`
}

type itemNode struct {
	Identifier string   `xml:"identificador"`
	Control    string   `xml:"control"`
	Title      string   `xml:"titulo"`
	PDF        *urlNode `xml:"url_pdf"`
	HTML       *urlNode `xml:"url_html"`
	XML        *urlNode `xml:"url_xml"`
}

type urlNode struct {
	Value     string `xml:",chardata"`
	SizeBytes string `xml:"szBytes,attr"`
	SizeKB    string `xml:"szKBytes,attr"`
	FirstPage string `xml:"pagina_inicial,attr"`
	LastPage  string `xml:"pagina_final,attr"`
}

// itemContext carries the ancestor scope inherited by every item beneath it.
// Each nesting level copies and extends the value it received, so sibling
// branches never observe a previous branch's fields.
type itemContext struct {
	PublicationDate int
	Timestamp       int64
	DiaryNumber     string
	SectionCode     string
	SectionName     string
	DepartmentCode  string
	DepartmentName  string
	HeadingName     string
}

// Normalizer flattens index documents into ItemRecord sequences.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer builds a Normalizer. A nil logger falls back to a no-op one.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Parse extracts one flat record per item node, in document traversal order.
// A malformed body or a non-"200" embedded status yields an empty slice;
// neither is treated as fatal, there is simply nothing to persist.
func (n *Normalizer) Parse(body []byte) []ItemRecord {
	var doc indexDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		n.logger.Warn("index document did not parse", zap.Error(err))
		return nil
	}
	if doc.Status.Code != "200" {
		n.logger.Warn("index document carried a non-200 status",
			zap.String("status", doc.Status.Code))
		return nil
	}

	meta := doc.Data.Summary.Metadata
	root := itemContext{
		PublicationDate: atoiOrZero(meta.PublicationDate),
		Timestamp:       DateToTimestamp(meta.PublicationDate),
		DiaryNumber:     meta.DiaryNumber,
	}

	var records []ItemRecord
	for _, diary := range doc.Data.Summary.Diaries {
		dctx := root
		if diary.Number != "" {
			dctx.DiaryNumber = diary.Number
		}
		for _, section := range diary.Sections {
			sctx := dctx
			sctx.SectionCode = section.Code
			sctx.SectionName = section.Name
			for _, department := range section.Departments {
				pctx := sctx
				pctx.DepartmentCode = department.Code
				pctx.DepartmentName = department.Name
				for _, item := range department.Items {
					records = n.appendItem(records, pctx, item)
				}
				for _, heading := range department.Headings {
					hctx := pctx
					hctx.HeadingName = heading.Name
					for _, item := range heading.Items {
						records = n.appendItem(records, hctx, item)
					}
				}
			}
		}
	}
	return records
}

func (n *Normalizer) appendItem(records []ItemRecord, ctx itemContext, item itemNode) []ItemRecord {
	record := ItemRecord{
		PublicationDate: ctx.PublicationDate,
		Timestamp:       ctx.Timestamp,
		Identifier:      strings.TrimSpace(item.Identifier),
		DiaryNumber:     ctx.DiaryNumber,
		Control:         strings.TrimSpace(item.Control),
		Title:           strings.TrimSpace(item.Title),
		SectionCode:     ctx.SectionCode,
		SectionName:     ctx.SectionName,
		DepartmentCode:  ctx.DepartmentCode,
		DepartmentName:  ctx.DepartmentName,
		HeadingName:     ctx.HeadingName,
	}
	if item.PDF != nil {
		record.PDFURL = strings.TrimSpace(item.PDF.Value)
		record.PDFSizeBytes = item.PDF.SizeBytes
		record.PDFSizeKBytes = item.PDF.SizeKB
		record.PDFFirstPage = item.PDF.FirstPage
		record.PDFLastPage = item.PDF.LastPage
	}
	if item.HTML != nil {
		record.HTMLURL = strings.TrimSpace(item.HTML.Value)
	}
	if item.XML != nil {
		record.XMLURL = strings.TrimSpace(item.XML.Value)
	}
	if !record.Valid() {
		n.logger.Warn("skipping index item without identifier",
			zap.Int("fecha_publicacion", ctx.PublicationDate),
			zap.String("titulo", record.Title))
		return records
	}
	return append(records, record)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
