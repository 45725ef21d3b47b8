package docprops

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// OPC part names and namespaces used across the package.
const (
	documentPart     = "word/document.xml"
	settingsPart     = "word/settings.xml"
	customPropsPart  = "docProps/custom.xml"
	corePropsPart    = "docProps/core.xml"
	contentTypesPart = "[Content_Types].xml"

	customPropsNS   = "http://schemas.openxmlformats.org/officeDocument/2006/custom-properties"
	vtNS            = "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"
	wordMainNS      = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	contentTypesNS  = "http://schemas.openxmlformats.org/package/2006/content-types"
	customPropsType = "application/vnd.openxmlformats-officedocument.custom-properties+xml"

	// Format identifier for user-defined properties, fixed by the OPC spec.
	customPropsFmtID = "{D5CDD505-2E9C-101B-9397-08002B2CF9AE}"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// customProperties mirrors docProps/custom.xml for the typed read path.
// Each property carries exactly one variant-typed value child; only the
// variants Word itself emits are mapped.
type customProperties struct {
	XMLName    xml.Name         `xml:"Properties"`
	Properties []customProperty `xml:"property"`
}

type customProperty struct {
	FmtID    string  `xml:"fmtid,attr"`
	PID      int     `xml:"pid,attr"`
	Name     string  `xml:"name,attr"`
	Lpwstr   *string `xml:"lpwstr"`
	I4       *string `xml:"i4"`
	R8       *string `xml:"r8"`
	Bool     *string `xml:"bool"`
	Filetime *string `xml:"filetime"`
}

// settings mirrors the docVars section of word/settings.xml.
type settings struct {
	XMLName xml.Name `xml:"settings"`
	DocVars docVars  `xml:"docVars"`
}

type docVars struct {
	Vars []docVar `xml:"docVar"`
}

type docVar struct {
	Name string `xml:"name,attr"`
	Val  string `xml:"val,attr"`
}

// coreProperties mirrors docProps/core.xml (built-in document properties).
type coreProperties struct {
	XMLName        xml.Name `xml:"coreProperties"`
	Title          string   `xml:"title"`
	Subject        string   `xml:"subject"`
	Creator        string   `xml:"creator"`
	Keywords       string   `xml:"keywords"`
	Description    string   `xml:"description"`
	LastModifiedBy string   `xml:"lastModifiedBy"`
	Revision       string   `xml:"revision"`
	Created        string   `xml:"created"`
	Modified       string   `xml:"modified"`
	Category       string   `xml:"category"`
	ContentStatus  string   `xml:"contentStatus"`
	Version        string   `xml:"version"`
	Language       string   `xml:"language"`
	Identifier     string   `xml:"identifier"`
}

// contentTypes mirrors [Content_Types].xml.
type contentTypes struct {
	XMLName   xml.Name     `xml:"Types"`
	Defaults  []ctDefault  `xml:"Default"`
	Overrides []ctOverride `xml:"Override"`
}

type ctDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s)) //nolint:errcheck // bytes.Buffer never errors
	return buf.String()
}

// buildCustomPropertiesXML serializes properties in the given order. All
// values are written as lpwstr; property IDs start at 2 as Word requires.
func buildCustomPropertiesXML(names []string, values map[string]string) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString(`<Properties xmlns="` + customPropsNS + `" xmlns:vt="` + vtNS + `">`)
	pid := 2
	for _, name := range names {
		fmt.Fprintf(&buf, `<property fmtid="%s" pid="%d" name="%s"><vt:lpwstr>%s</vt:lpwstr></property>`,
			customPropsFmtID, pid, escapeXML(name), escapeXML(values[name]))
		pid++
	}
	buf.WriteString(`</Properties>`)
	return buf.Bytes()
}

// buildContentTypesXML re-serializes a parsed [Content_Types].xml.
func buildContentTypesXML(ct *contentTypes) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString(`<Types xmlns="` + contentTypesNS + `">`)
	for _, d := range ct.Defaults {
		fmt.Fprintf(&buf, `<Default Extension="%s" ContentType="%s"/>`,
			escapeXML(d.Extension), escapeXML(d.ContentType))
	}
	for _, o := range ct.Overrides {
		fmt.Fprintf(&buf, `<Override PartName="%s" ContentType="%s"/>`,
			escapeXML(o.PartName), escapeXML(o.ContentType))
	}
	buf.WriteString(`</Types>`)
	return buf.Bytes()
}
