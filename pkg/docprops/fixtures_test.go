package docprops

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const minimalDocumentXML = xmlHeader +
	`<w:document xmlns:w="` + wordMainNS + `"><w:body><w:p/></w:body></w:document>`

const minimalContentTypesXML = xmlHeader +
	`<Types xmlns="` + contentTypesNS + `">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`

const sampleCoreXML = xmlHeader +
	`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
	` xmlns:dc="http://purl.org/dc/elements/1.1/"` +
	` xmlns:dcterms="http://purl.org/dc/terms/"` +
	` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
	`<dc:title>Release Notes</dc:title>` +
	`<dc:subject>Delivery</dc:subject>` +
	`<dc:creator>R. Keller</dc:creator>` +
	`<dc:description>Quarterly notes</dc:description>` +
	`<cp:lastModifiedBy>M. Vogel</cp:lastModifiedBy>` +
	`<cp:revision>7</cp:revision>` +
	`<dcterms:created xsi:type="dcterms:W3CDTF">2024-03-01T09:30:00Z</dcterms:created>` +
	`<dcterms:modified xsi:type="dcterms:W3CDTF">2024-04-15T16:05:00Z</dcterms:modified>` +
	`</cp:coreProperties>`

// docVarsXML builds a word/settings.xml with the given docVars.
func docVarsXML(vars map[string]string) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<w:settings xmlns:w="` + wordMainNS + `"><w:docVars>`)
	for _, name := range names {
		fmt.Fprintf(&sb, `<w:docVar w:name="%s" w:val="%s"/>`, name, vars[name])
	}
	sb.WriteString(`</w:docVars></w:settings>`)
	return sb.String()
}

// customPropsXML builds a docProps/custom.xml where each value is the
// literal XML of the property's value child, e.g. `<vt:lpwstr>x</vt:lpwstr>`.
func customPropsXML(entries []struct{ Name, ValueXML string }) string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Properties xmlns="` + customPropsNS + `" xmlns:vt="` + vtNS + `">`)
	for i, e := range entries {
		fmt.Fprintf(&sb, `<property fmtid="%s" pid="%d" name="%s">%s</property>`,
			customPropsFmtID, i+2, e.Name, e.ValueXML)
	}
	sb.WriteString(`</Properties>`)
	return sb.String()
}

// buildDocxBytes assembles a DOCX package in memory. extraParts are laid
// on top of (and may replace) the minimal required parts.
func buildDocxBytes(t *testing.T, extraParts map[string]string) []byte {
	t.Helper()
	parts := map[string]string{
		contentTypesPart: minimalContentTypesXML,
		documentPart:     minimalDocumentXML,
	}
	for name, data := range extraParts {
		parts[name] = data
	}
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// writeDocxFile writes a test package into dir and returns its path.
func writeDocxFile(t *testing.T, dir string, extraParts map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "test.docx")
	if err := os.WriteFile(path, buildDocxBytes(t, extraParts), 0o644); err != nil {
		t.Fatalf("write test docx: %v", err)
	}
	return path
}

// readPartFromFile extracts one part from a package on disk.
func readPartFromFile(t *testing.T, path, name string) []byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open part %s: %v", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("read part %s: %v", name, err)
		}
		return buf.Bytes()
	}
	t.Fatalf("part %s not found in %s", name, path)
	return nil
}
