package docprops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOrUpdatePropertiesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeDocxFile(t, dir, nil)
	out := filepath.Join(dir, "out.docx")

	s, err := Open(src)
	require.NoError(t, err)
	written, err := s.AddOrUpdateProperties(map[string]string{
		"Projekt": "Avenio",
		"Status":  "Freigegeben",
	}, out)
	require.NoError(t, err)
	assert.Equal(t, out, written)

	result, err := Open(out)
	require.NoError(t, err)
	props, err := result.ReadProperties()
	require.NoError(t, err)
	assert.Equal(t, "Avenio", props.Custom["Projekt"])
	assert.Equal(t, "Freigegeben", props.Custom["Status"])

	// Source untouched.
	srcStore, err := Open(src)
	require.NoError(t, err)
	srcProps, err := srcStore.ReadProperties()
	require.NoError(t, err)
	assert.Empty(t, srcProps.Custom)
}

func TestAddOrUpdatePropertiesInPlace(t *testing.T) {
	dir := t.TempDir()
	src := writeDocxFile(t, dir, nil)

	s, err := Open(src)
	require.NoError(t, err)
	written, err := s.AddOrUpdateProperties(map[string]string{"ID": "DOC-17"}, "")
	require.NoError(t, err)
	assert.Equal(t, src, written)

	props, err := s.ReadProperties()
	require.NoError(t, err)
	assert.Equal(t, "DOC-17", props.Custom["ID"])

	// No stray temp files next to the document.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAddOrUpdatePropertiesMergesWithExisting(t *testing.T) {
	custom := customPropsXML([]struct{ Name, ValueXML string }{
		{"Zulu", "<vt:lpwstr>keep</vt:lpwstr>"},
		{"Projekt", "<vt:lpwstr>old</vt:lpwstr>"},
	})
	dir := t.TempDir()
	src := writeDocxFile(t, dir, map[string]string{customPropsPart: custom})

	s, err := Open(src)
	require.NoError(t, err)
	_, err = s.AddOrUpdateProperties(map[string]string{
		"Projekt": "Avenio",
		"Bravo":   "new",
		"Alpha":   "new",
	}, "")
	require.NoError(t, err)

	names, values, err := rawCustomProperties(readPartFromFile(t, src, customPropsPart))
	require.NoError(t, err)
	// Existing properties keep their order, new names come after, sorted.
	assert.Equal(t, []string{"Zulu", "Projekt", "Alpha", "Bravo"}, names)
	assert.Equal(t, "keep", values["Zulu"])
	assert.Equal(t, "Avenio", values["Projekt"])
}

func TestAddOrUpdatePropertiesIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := writeDocxFile(t, dir, nil)
	props := map[string]string{"Projekt": "Avenio", "Status": "Entwurf"}

	s, err := Open(src)
	require.NoError(t, err)
	_, err = s.AddOrUpdateProperties(props, "")
	require.NoError(t, err)
	first := readPartFromFile(t, src, customPropsPart)

	_, err = s.AddOrUpdateProperties(props, "")
	require.NoError(t, err)
	second := readPartFromFile(t, src, customPropsPart)

	assert.Equal(t, string(first), string(second))
}

func TestAddOrUpdatePropertiesPartLayout(t *testing.T) {
	dir := t.TempDir()
	src := writeDocxFile(t, dir, nil)

	s, err := Open(src)
	require.NoError(t, err)
	_, err = s.AddOrUpdateProperties(map[string]string{
		"Alpha": "1 < 2 & \"quoted\"",
		"Beta":  "zwei",
	}, "")
	require.NoError(t, err)

	custom := string(readPartFromFile(t, src, customPropsPart))
	assert.Contains(t, custom, `fmtid="`+customPropsFmtID+`"`)
	assert.Contains(t, custom, `pid="2" name="Alpha"`)
	assert.Contains(t, custom, `pid="3" name="Beta"`)
	assert.Contains(t, custom, `<vt:lpwstr>1 &lt; 2 &amp; &#34;quoted&#34;</vt:lpwstr>`)

	ct := string(readPartFromFile(t, src, contentTypesPart))
	assert.Contains(t, ct, `PartName="/docProps/custom.xml"`)
	assert.Contains(t, ct, customPropsType)
	// The pre-existing declarations survive the rewrite.
	assert.Contains(t, ct, `PartName="/word/document.xml"`)
	assert.Contains(t, ct, `Extension="rels"`)
}

func TestContentTypesOverrideNotDuplicated(t *testing.T) {
	withOverride := strings.Replace(minimalContentTypesXML, "</Types>",
		`<Override PartName="/docProps/custom.xml" ContentType="`+customPropsType+`"/></Types>`, 1)
	dir := t.TempDir()
	src := writeDocxFile(t, dir, map[string]string{contentTypesPart: withOverride})

	s, err := Open(src)
	require.NoError(t, err)
	_, err = s.AddOrUpdateProperties(map[string]string{"ID": "DOC-17"}, "")
	require.NoError(t, err)

	ct := string(readPartFromFile(t, src, contentTypesPart))
	assert.Equal(t, 1, strings.Count(ct, `PartName="/docProps/custom.xml"`))
}

func TestAddOrUpdatePropertiesValidation(t *testing.T) {
	dir := t.TempDir()
	src := writeDocxFile(t, dir, nil)
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	s, err := Open(src)
	require.NoError(t, err)

	t.Run("empty map", func(t *testing.T) {
		_, err := s.AddOrUpdateProperties(nil, "")
		assert.True(t, IsValidationError(err), "want ValidationError, got %v", err)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := s.AddOrUpdateProperties(map[string]string{"": "x"}, "")
		assert.True(t, IsValidationError(err), "want ValidationError, got %v", err)
	})

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after, "document must not change on validation failure")
}

func TestAddOrUpdatePropertiesWriteFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeDocxFile(t, dir, nil)
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	s, err := Open(src)
	require.NoError(t, err)
	_, err = s.AddOrUpdateProperties(map[string]string{"ID": "DOC-17"},
		filepath.Join(dir, "no-such-dir", "out.docx"))
	assert.True(t, IsIOFailureError(err), "want IOFailureError, got %v", err)

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may be left behind")
}

func TestAddOrUpdatePropertiesCorruptSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.AddOrUpdateProperties(map[string]string{"ID": "DOC-17"}, "")
	assert.True(t, IsCorruptArchiveError(err), "want CorruptArchiveError, got %v", err)
}
