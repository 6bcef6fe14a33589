// Package boe defines the gazette item model and the index normalizer.
package boe

import (
	"strconv"
	"time"
)

// ItemRecord is one published act extracted from a daily index document.
// Field values are immutable once the normalizer emits the record.
type ItemRecord struct {
	PublicationDate int
	Timestamp       int64
	Identifier      string
	DiaryNumber     string
	Control         string
	Title           string
	PDFURL          string
	PDFSizeBytes    string
	PDFSizeKBytes   string
	PDFFirstPage    string
	PDFLastPage     string
	HTMLURL         string
	XMLURL          string
	SectionCode     string
	SectionName     string
	DepartmentCode  string
	DepartmentName  string
	HeadingName     string
}

// Schema is the fixed, ordered column set of the tabular store. The CSV
// header is written once and is authoritative thereafter; columns are never
// auto-extended.
func Schema() []string {
	return []string{
		"fecha_publicacion",
		"timestamp",
		"identificador",
		"numero_diario",
		"control",
		"titulo",
		"url_pdf",
		"url_pdf_szBytes",
		"url_pdf_szKBytes",
		"url_pdf_pagina_inicial",
		"url_pdf_pagina_final",
		"url_html",
		"url_xml",
		"seccion_codigo",
		"seccion_nombre",
		"departamento_codigo",
		"departamento_nombre",
		"epigrafe_nombre",
	}
}

// Valid reports whether the record may be persisted. A record without an
// identifier is invalid.
func (r ItemRecord) Valid() bool {
	return r.Identifier != ""
}

// Columns maps schema column names to this record's values.
func (r ItemRecord) Columns() map[string]string {
	return map[string]string{
		"fecha_publicacion":      strconv.Itoa(r.PublicationDate),
		"timestamp":              strconv.FormatInt(r.Timestamp, 10),
		"identificador":          r.Identifier,
		"numero_diario":          r.DiaryNumber,
		"control":                r.Control,
		"titulo":                 r.Title,
		"url_pdf":                r.PDFURL,
		"url_pdf_szBytes":        r.PDFSizeBytes,
		"url_pdf_szKBytes":       r.PDFSizeKBytes,
		"url_pdf_pagina_inicial": r.PDFFirstPage,
		"url_pdf_pagina_final":   r.PDFLastPage,
		"url_html":               r.HTMLURL,
		"url_xml":                r.XMLURL,
		"seccion_codigo":         r.SectionCode,
		"seccion_nombre":         r.SectionName,
		"departamento_codigo":    r.DepartmentCode,
		"departamento_nombre":    r.DepartmentName,
		"epigrafe_nombre":        r.HeadingName,
	}
}

// FromColumns rebuilds a record from named column values, ignoring unknown
// columns. Numeric columns that fail to parse are left at zero.
func FromColumns(cols map[string]string) ItemRecord {
	date, _ := strconv.Atoi(cols["fecha_publicacion"])
	ts, _ := strconv.ParseInt(cols["timestamp"], 10, 64)
	return ItemRecord{
		PublicationDate: date,
		Timestamp:       ts,
		Identifier:      cols["identificador"],
		DiaryNumber:     cols["numero_diario"],
		Control:         cols["control"],
		Title:           cols["titulo"],
		PDFURL:          cols["url_pdf"],
		PDFSizeBytes:    cols["url_pdf_szBytes"],
		PDFSizeKBytes:   cols["url_pdf_szKBytes"],
		PDFFirstPage:    cols["url_pdf_pagina_inicial"],
		PDFLastPage:     cols["url_pdf_pagina_final"],
		HTMLURL:         cols["url_html"],
		XMLURL:          cols["url_xml"],
		SectionCode:     cols["seccion_codigo"],
		SectionName:     cols["seccion_nombre"],
		DepartmentCode:  cols["departamento_codigo"],
		DepartmentName:  cols["departamento_nombre"],
		HeadingName:     cols["epigrafe_nombre"],
	}
}

// URLForFormat returns the content URL for one of the pdf/html/xml variants,
// or an empty string when the index carried none.
func (r ItemRecord) URLForFormat(format string) string {
	switch format {
	case "pdf":
		return r.PDFURL
	case "html":
		return r.HTMLURL
	case "xml":
		return r.XMLURL
	default:
		return ""
	}
}

// DateToTimestamp converts an 8-digit YYYYMMDD literal to Unix seconds at
// UTC midnight. Unparseable input yields 0, not an error; callers may still
// rely on the raw date column.
func DateToTimestamp(literal string) int64 {
	t, err := time.ParseInLocation("20060102", literal, time.UTC)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// ParseDateLiteral converts an integer YYYYMMDD literal into a UTC date.
func ParseDateLiteral(literal int) (time.Time, error) {
	return time.ParseInLocation("20060102", strconv.Itoa(literal), time.UTC)
}

// FormatDateLiteral converts a time into its integer YYYYMMDD literal.
func FormatDateLiteral(t time.Time) int {
	literal, _ := strconv.Atoi(t.UTC().Format("20060102"))
	return literal
}
