package docprops

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DocumentProperties is the result of ReadProperties.
type DocumentProperties struct {
	BuiltIn BuiltInProperties
	Custom  map[string]any
}

// BuiltInProperties holds the core document properties Word maintains in
// docProps/core.xml. Missing dates stay nil.
type BuiltInProperties struct {
	Title          string
	Subject        string
	Author         string
	Keywords       string
	Comments       string
	LastModifiedBy string
	Revision       string
	Category       string
	ContentStatus  string
	Version        string
	Language       string
	Identifier     string
	Created        *time.Time
	Modified       *time.Time
}

// extractor pulls custom properties out of an open package. Extractors
// are best-effort: on any failure they return an empty map and the read
// carries on with the remaining sources.
type extractor func(a *archive, log *zap.Logger) map[string]any

// customExtractors in merge order: the typed custom.xml reader, document
// variables from settings.xml, then a raw token-level re-parse of
// custom.xml. Later sources overwrite earlier ones key by key.
var customExtractors = []extractor{
	extractTypedCustom,
	extractDocVars,
	extractRawCustom,
}

// ReadProperties opens the package and returns built-in and custom
// properties. Built-ins are best-effort; a damaged core.xml yields zero
// values rather than an error.
func (s *Store) ReadProperties() (*DocumentProperties, error) {
	a, err := openArchive(s.path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	props := &DocumentProperties{
		BuiltIn: readBuiltIn(a, s.log),
		Custom:  mergeExtracted(a, s.log, customExtractors),
	}
	return props, nil
}

// mergeExtracted runs each extractor in order and overlays its results
// onto the accumulated map.
func mergeExtracted(a *archive, log *zap.Logger, extractors []extractor) map[string]any {
	merged := make(map[string]any)
	for _, ex := range extractors {
		for name, value := range ex(a, log) {
			merged[name] = value
		}
	}
	return merged
}

func readBuiltIn(a *archive, log *zap.Logger) BuiltInProperties {
	data, err := a.readPart(corePropsPart)
	if err != nil {
		log.Debug("core properties part unavailable", zap.Error(err))
		return BuiltInProperties{}
	}
	var core coreProperties
	if err := xml.Unmarshal(data, &core); err != nil {
		log.Debug("core properties unreadable", zap.Error(err))
		return BuiltInProperties{}
	}
	return BuiltInProperties{
		Title:          core.Title,
		Subject:        core.Subject,
		Author:         core.Creator,
		Keywords:       core.Keywords,
		Comments:       core.Description,
		LastModifiedBy: core.LastModifiedBy,
		Revision:       core.Revision,
		Category:       core.Category,
		ContentStatus:  core.ContentStatus,
		Version:        core.Version,
		Language:       core.Language,
		Identifier:     core.Identifier,
		Created:        parseCoreTime(core.Created),
		Modified:       parseCoreTime(core.Modified),
	}
}

func parseCoreTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// extractTypedCustom reads custom.xml honoring the declared variant type
// of each value. A property whose value cannot be coerced aborts the
// whole extractor so the raw pass can still pick the part up as strings.
func extractTypedCustom(a *archive, log *zap.Logger) map[string]any {
	data, err := a.readPart(customPropsPart)
	if err != nil {
		return map[string]any{}
	}
	var parsed customProperties
	if err := xml.Unmarshal(data, &parsed); err != nil {
		log.Debug("typed custom properties unreadable", zap.Error(err))
		return map[string]any{}
	}
	out := make(map[string]any, len(parsed.Properties))
	for _, p := range parsed.Properties {
		if p.Name == "" {
			continue
		}
		value, err := coerceVariant(p)
		if err != nil {
			log.Debug("typed custom property rejected",
				zap.String("name", p.Name), zap.Error(err))
			return map[string]any{}
		}
		out[p.Name] = value
	}
	return out
}

func coerceVariant(p customProperty) (any, error) {
	switch {
	case p.Lpwstr != nil:
		return *p.Lpwstr, nil
	case p.I4 != nil:
		return strconv.Atoi(strings.TrimSpace(*p.I4))
	case p.R8 != nil:
		return strconv.ParseFloat(strings.TrimSpace(*p.R8), 64)
	case p.Bool != nil:
		return strconv.ParseBool(strings.TrimSpace(*p.Bool))
	case p.Filetime != nil:
		// Dates pass through untouched; callers format them.
		return strings.TrimSpace(*p.Filetime), nil
	default:
		return nil, NewFormatError(customPropsPart, "property without a known value type")
	}
}

// extractDocVars reads document variables from word/settings.xml. Values
// are plain strings.
func extractDocVars(a *archive, log *zap.Logger) map[string]any {
	data, err := a.readPart(settingsPart)
	if err != nil {
		return map[string]any{}
	}
	var parsed settings
	if err := xml.Unmarshal(data, &parsed); err != nil {
		log.Debug("settings part unreadable", zap.Error(err))
		return map[string]any{}
	}
	out := make(map[string]any, len(parsed.DocVars.Vars))
	for _, v := range parsed.DocVars.Vars {
		if v.Name == "" {
			continue
		}
		out[v.Name] = v.Val
	}
	return out
}

// extractRawCustom re-parses custom.xml at the token level, taking the
// text of each property's first child element regardless of its declared
// type. Everything comes back as a string.
func extractRawCustom(a *archive, log *zap.Logger) map[string]any {
	data, err := a.readPart(customPropsPart)
	if err != nil {
		return map[string]any{}
	}
	names, values, err := rawCustomProperties(data)
	if err != nil {
		log.Debug("raw custom properties unreadable", zap.Error(err))
		return map[string]any{}
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		out[name] = values[name]
	}
	return out
}

// rawCustomProperties walks custom.xml tokens and returns property names
// in document order alongside their first-child-element text. The write
// path relies on the ordering to keep rewritten parts stable.
func rawCustomProperties(data []byte) ([]string, map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var names []string
	values := make(map[string]string)

	var propName string
	var valueText strings.Builder
	inProperty := false
	childDepth := 0
	childIndex := 0
	capturing := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !inProperty && t.Name.Local == "property" {
				inProperty = true
				propName = ""
				childIndex = 0
				valueText.Reset()
				for _, attr := range t.Attr {
					if attr.Name.Local == "name" {
						propName = attr.Value
					}
				}
				continue
			}
			if inProperty {
				childDepth++
				if childDepth == 1 {
					childIndex++
					capturing = childIndex == 1
				}
			}
		case xml.CharData:
			if capturing {
				valueText.Write(t)
			}
		case xml.EndElement:
			if childDepth > 0 {
				if childDepth == 1 {
					capturing = false
				}
				childDepth--
				continue
			}
			if inProperty && t.Name.Local == "property" {
				if propName != "" {
					if _, seen := values[propName]; !seen {
						names = append(names, propName)
					}
					values[propName] = valueText.String()
				}
				inProperty = false
			}
		}
	}
	return names, values, nil
}
