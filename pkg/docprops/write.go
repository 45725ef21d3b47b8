package docprops

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// AddOrUpdateProperties merges props into the document's custom
// properties and writes the result to outputPath, overwriting the source
// in place when outputPath is empty. Existing values for the given names
// are replaced, new names are appended, and every value in the rewritten
// part is stored as a string. The write is atomic: the package is rebuilt
// in a temp file next to the destination and renamed over it, so a
// failure part way through never leaves a half-written document.
//
// The path of the written document is returned.
func (s *Store) AddOrUpdateProperties(props map[string]string, outputPath string) (string, error) {
	if len(props) == 0 {
		return "", NewValidationError("properties", "no properties given")
	}
	for name := range props {
		if name == "" {
			return "", NewValidationError("property name", "must not be empty")
		}
	}
	dest := outputPath
	if dest == "" {
		dest = s.path
	}

	a, err := openArchive(s.path)
	if err != nil {
		return "", err
	}
	defer a.Close()

	names, values := s.mergedProperties(a, props)
	customXML := buildCustomPropertiesXML(names, values)
	contentTypesXML := s.contentTypesWithOverride(a)

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".docprops-*.tmp")
	if err != nil {
		return "", NewIOFailureError("create temp file", dest, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if err := rewriteArchive(tmp, a, customXML, contentTypesXML); err != nil {
		cleanup()
		return "", NewIOFailureError("rewrite archive", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", NewIOFailureError("close temp file", dest, err)
	}
	// Release the source before renaming over it for the in-place case.
	a.Close()
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", NewIOFailureError("rename temp file", dest, err)
	}
	s.log.Info("custom properties written",
		zap.String("path", dest), zap.Int("properties", len(names)))
	return dest, nil
}

// mergedProperties overlays props onto whatever the raw custom.xml pass
// can recover from the package. Existing properties keep their document
// order; new names are appended sorted so the output is deterministic.
func (s *Store) mergedProperties(a *archive, props map[string]string) ([]string, map[string]string) {
	var names []string
	values := make(map[string]string)
	if data, err := a.readPart(customPropsPart); err == nil {
		if existingNames, existing, err := rawCustomProperties(data); err == nil {
			names = existingNames
			values = existing
		} else {
			s.log.Debug("existing custom properties unreadable, starting fresh",
				zap.Error(err))
		}
	}

	var added []string
	for name, value := range props {
		if _, ok := values[name]; !ok {
			added = append(added, name)
		}
		values[name] = value
	}
	sort.Strings(added)
	return append(names, added...), values
}

// contentTypesWithOverride returns a rewritten [Content_Types].xml that
// declares the custom properties part, or nil when the existing part
// already declares it or cannot be parsed. A nil result means the part
// is copied through unchanged; Word tolerates the missing override.
func (s *Store) contentTypesWithOverride(a *archive) []byte {
	data, err := a.readPart(contentTypesPart)
	if err != nil {
		return nil
	}
	var ct contentTypes
	if err := xml.Unmarshal(data, &ct); err != nil {
		s.log.Debug("content types unreadable, leaving part untouched", zap.Error(err))
		return nil
	}
	for _, o := range ct.Overrides {
		if o.PartName == "/"+customPropsPart {
			return nil
		}
	}
	ct.Overrides = append(ct.Overrides, ctOverride{
		PartName:    "/" + customPropsPart,
		ContentType: customPropsType,
	})
	return buildContentTypesXML(&ct)
}

// rewriteArchive streams every entry of the source package into w,
// substituting the custom properties part and, when provided, the
// content types part.
func rewriteArchive(w io.Writer, a *archive, customXML, contentTypesXML []byte) error {
	zw := zip.NewWriter(w)
	for _, f := range a.zr.File {
		switch {
		case f.Name == customPropsPart:
			continue
		case f.Name == contentTypesPart && contentTypesXML != nil:
			out, err := zw.Create(f.Name)
			if err != nil {
				return err
			}
			if _, err := out.Write(contentTypesXML); err != nil {
				return err
			}
		default:
			out, err := zw.Create(f.Name)
			if err != nil {
				return err
			}
			rc, err := f.Open()
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, rc); err != nil {
				rc.Close()
				return err
			}
			rc.Close()
		}
	}
	out, err := zw.Create(customPropsPart)
	if err != nil {
		return err
	}
	if _, err := out.Write(customXML); err != nil {
		return err
	}
	return zw.Close()
}
