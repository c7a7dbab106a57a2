package session

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/sppark/pkg/robot"
)

// Format selects the encoding of an export file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
}

// FormatFromPath picks the format from a file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return FormatJSON
}

// Export is the portable form of the outbound and return lists.
type Export struct {
	Version   int           `json:"version" yaml:"version"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	Outbound  []robot.Point `json:"outbound" yaml:"outbound"`
	Return    []robot.Point `json:"return" yaml:"return"`
}

// Export captures the outbound and return lists.
func (s *Session) Export() Export {
	return Export{
		Version:   SnapshotVersion,
		CreatedAt: time.Now().UTC(),
		Outbound:  nonNil(s.Points(Outbound)),
		Return:    nonNil(s.Points(Return)),
	}
}

// Import replaces the outbound and return lists wholesale.
func (s *Session) Import(e Export) {
	s.replaceLists(map[ListName][]robot.Point{
		Outbound: sanitizePoints(e.Outbound),
		Return:   sanitizePoints(e.Return),
	})
	s.logger.Info("lists imported", "outbound", len(e.Outbound), "return", len(e.Return))
}

// WriteExport encodes e to w.
func WriteExport(w io.Writer, e Export, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		data, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	}
}

// ReadExport decodes an export leniently. Entries without exactly seven
// angles are dropped and missing identifiers are regenerated; only a
// document that is not an object is an error.
func ReadExport(r io.Reader, format Format) (Export, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Export{}, err
	}
	if format == FormatYAML {
		// Normalise through JSON so both formats share one lenient reader.
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Export{}, fmt.Errorf("decode yaml: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return Export{}, fmt.Errorf("decode yaml: %w", err)
		}
	}

	f, ok := objectFields(data)
	if !ok {
		return Export{}, fmt.Errorf("import: not an object")
	}
	e := Export{
		Version:  f.intField("version", SnapshotVersion, 0, 1<<30),
		Outbound: decodePoints(f["outbound"]),
		Return:   decodePoints(f["return"]),
	}
	if ts, err := time.Parse(time.RFC3339, f.stringField("created_at", "")); err == nil {
		e.CreatedAt = ts
	}
	return e, nil
}
