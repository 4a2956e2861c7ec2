package detailing

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/models"
)

// DisplayNameSeparator joins the report names of a multi-file batch.
const DisplayNameSeparator = " + "

// SourceFile is one uploaded export.
type SourceFile struct {
	Name string
	Data []byte
}

// WarningKind classifies recoverable problems found while parsing.
type WarningKind string

const (
	WarningFieldCoercion    WarningKind = "field_coercion"
	WarningQuantityMismatch WarningKind = "quantity_mismatch"
	WarningHeaderMismatch   WarningKind = "header_mismatch"
)

// Warning is a recoverable problem. The batch is still usable.
type Warning struct {
	Kind  WarningKind `json:"kind"`
	File  string      `json:"file"`
	Entry int         `json:"entry,omitempty"` // 1-based, 0 for header warnings
	Field string      `json:"field,omitempty"`
	Value string      `json:"value,omitempty"`
}

func (w Warning) String() string {
	switch w.Kind {
	case WarningFieldCoercion:
		return fmt.Sprintf("%s entry %d: field %s value %q is not a number, using 0", w.File, w.Entry, w.Field, w.Value)
	case WarningQuantityMismatch:
		return fmt.Sprintf("%s entry %d: declared quantity %s differs from listed identifiers", w.File, w.Entry, w.Value)
	case WarningHeaderMismatch:
		return fmt.Sprintf("%s: header %s %q differs from the first file and is ignored", w.File, w.Field, w.Value)
	}
	return string(w.Kind)
}

// FileResult is the parsed content of a single export.
type FileResult struct {
	Header     models.ImportHeader
	ReportName string
	Records    []models.PieceRecord
	Warnings   []Warning
}

// Batch is the parsed content of every file of one import.
type Batch struct {
	Header      models.ImportHeader
	Records     []models.PieceRecord
	ReportNames []string
	DisplayName string
	Warnings    []Warning
}

// Normalizer converts export files into piece records.
type Normalizer struct {
	dialect *Dialect
	logger  *zap.Logger
}

// NewNormalizer creates a Normalizer. A nil dialect selects DefaultDialect.
func NewNormalizer(dialect *Dialect, logger *zap.Logger) *Normalizer {
	if dialect == nil {
		dialect = DefaultDialect()
	}
	return &Normalizer{
		dialect: dialect,
		logger:  logger.Named("detailing-normalizer"),
	}
}

// ParseBatch parses every file of a batch. The header is taken from the
// first file only; later files contribute records.
func (n *Normalizer) ParseBatch(files []SourceFile) (*Batch, error) {
	if len(files) == 0 {
		return nil, &apperrors.ParseError{Message: "no files in batch"}
	}

	n.logger.Info("Parsing detailing batch", zap.Int("files", len(files)))

	batch := &Batch{}
	for i, file := range files {
		result, err := n.ParseFile(file)
		if err != nil {
			n.logger.Warn("Detailing batch rejected",
				zap.String("file", file.Name),
				zap.Error(err))
			return nil, err
		}

		if i == 0 {
			if result.Header.ProjectCode == "" {
				return nil, n.missingHeader(file.Name, n.dialect.ProjectCode)
			}
			if result.Header.ClientName == "" {
				return nil, n.missingHeader(file.Name, n.dialect.ClientName)
			}
			batch.Header = result.Header
		} else {
			batch.Warnings = append(batch.Warnings, compareHeaders(file.Name, batch.Header, result.Header)...)
		}

		batch.Records = append(batch.Records, result.Records...)
		batch.ReportNames = append(batch.ReportNames, result.ReportName)
		batch.Warnings = append(batch.Warnings, result.Warnings...)
	}
	batch.DisplayName = strings.Join(batch.ReportNames, DisplayNameSeparator)

	for _, w := range batch.Warnings {
		n.logger.Warn("Detailing import warning",
			zap.String("kind", string(w.Kind)),
			zap.String("file", w.File),
			zap.Int("entry", w.Entry),
			zap.String("field", w.Field),
			zap.String("value", w.Value))
	}
	n.logger.Info("Parsed detailing batch",
		zap.String("project_code", batch.Header.ProjectCode),
		zap.Int("records", len(batch.Records)),
		zap.Int("warnings", len(batch.Warnings)))

	return batch, nil
}

func (n *Normalizer) missingHeader(file string, aliases []string) error {
	return &apperrors.ParseError{File: file, Marker: describeAliases(aliases), Message: "header field is required"}
}

// compareHeaders reports header fields of a later file that disagree with
// the authoritative first header.
func compareHeaders(file string, first, other models.ImportHeader) []Warning {
	var warnings []Warning
	if other.ProjectCode != "" && !strings.EqualFold(other.ProjectCode, first.ProjectCode) {
		warnings = append(warnings, Warning{Kind: WarningHeaderMismatch, File: file, Field: "project_code", Value: other.ProjectCode})
	}
	if other.ProjectName != "" && !strings.EqualFold(strings.TrimSpace(other.ProjectName), strings.TrimSpace(first.ProjectName)) {
		warnings = append(warnings, Warning{Kind: WarningHeaderMismatch, File: file, Field: "project_name", Value: other.ProjectName})
	}
	if other.ClientName != "" && !strings.EqualFold(strings.TrimSpace(other.ClientName), strings.TrimSpace(first.ClientName)) {
		warnings = append(warnings, Warning{Kind: WarningHeaderMismatch, File: file, Field: "client_name", Value: other.ClientName})
	}
	return warnings
}

// ParseFile parses a single export.
func (n *Normalizer) ParseFile(file SourceFile) (*FileResult, error) {
	data, err := toUTF8(file.Data)
	if err != nil {
		return nil, &apperrors.ParseError{File: file.Name, Message: err.Error()}
	}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &apperrors.ParseError{File: file.Name, Message: fmt.Sprintf("malformed document: %v", err)}
	}

	root := findElement(doc, n.dialect.RootMarkers, nil)
	if root == nil {
		return nil, &apperrors.ParseError{File: file.Name, Marker: describeAliases(n.dialect.RootMarkers)}
	}

	entries := collectElements(root, n.dialect.EntryMarkers)
	if len(entries) == 0 {
		return nil, &apperrors.ParseError{File: file.Name, Message: "no pieces found"}
	}

	isEntry := func(node *xmlquery.Node) bool { return matchesAlias(node.Data, n.dialect.EntryMarkers) }

	result := &FileResult{
		Header: models.ImportHeader{
			ProjectCode: lookupField(root, n.dialect.ProjectCode, isEntry),
			ProjectName: lookupField(root, n.dialect.ProjectName, isEntry),
			ClientName:  lookupField(root, n.dialect.ClientName, isEntry),
			Engineer:    lookupField(root, n.dialect.Engineer, isEntry),
		},
		ReportName: lookupField(root, n.dialect.ReportName, isEntry),
	}
	if result.ReportName == "" {
		result.ReportName = strings.TrimSuffix(filepath.Base(file.Name), filepath.Ext(file.Name))
	}

	for i, entry := range entries {
		record, warnings := n.parseEntry(file.Name, i+1, entry, isEntry)
		result.Records = append(result.Records, record)
		result.Warnings = append(result.Warnings, warnings...)
	}

	return result, nil
}

func (n *Normalizer) parseEntry(file string, index int, entry *xmlquery.Node, isEntry func(*xmlquery.Node) bool) (models.PieceRecord, []Warning) {
	var warnings []Warning

	number := func(field string, aliases []string) float64 {
		raw := lookupField(entry, aliases, isEntry)
		v, ok := ParseNumber(raw)
		if !ok && strings.TrimSpace(raw) != "" {
			warnings = append(warnings, Warning{Kind: WarningFieldCoercion, File: file, Entry: index, Field: field, Value: raw})
		}
		if v < 0 {
			warnings = append(warnings, Warning{Kind: WarningFieldCoercion, File: file, Entry: index, Field: field, Value: raw})
			return 0
		}
		return v
	}

	record := models.PieceRecord{
		PieceAttributes: models.PieceAttributes{
			Name:          lookupField(entry, n.dialect.Name, isEntry),
			Type:          lookupField(entry, n.dialect.Type, isEntry),
			Section:       lookupField(entry, n.dialect.Section, isEntry),
			Length:        number("length", n.dialect.Length),
			Weight:        number("weight", n.dialect.Weight),
			UnitVolume:    number("unit_volume", n.dialect.UnitVolume),
			MaterialClass: lookupField(entry, n.dialect.MaterialClass, isEntry),
		},
		InstanceIDs: lookupIDs(entry, n.dialect.InstanceIDs, isEntry),
		SourceFile:  file,
	}

	rawQty := lookupField(entry, n.dialect.Quantity, isEntry)
	qty, ok := ParseQuantity(rawQty)
	if !ok && strings.TrimSpace(rawQty) != "" {
		warnings = append(warnings, Warning{Kind: WarningFieldCoercion, File: file, Entry: index, Field: "quantity", Value: rawQty})
	}
	switch {
	case len(record.InstanceIDs) > 0 && qty == 0:
		qty = len(record.InstanceIDs)
	case len(record.InstanceIDs) > 0 && qty != len(record.InstanceIDs):
		warnings = append(warnings, Warning{Kind: WarningQuantityMismatch, File: file, Entry: index, Field: "quantity", Value: rawQty})
	}
	record.Quantity = qty

	return record, warnings
}

// findElement returns the first element in document order whose name
// matches one of the aliases, without descending into nodes for which skip
// returns true.
func findElement(node *xmlquery.Node, aliases []string, skip func(*xmlquery.Node) bool) *xmlquery.Node {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if matchesAlias(child.Data, aliases) {
			return child
		}
		if skip != nil && skip(child) {
			continue
		}
		if found := findElement(child, aliases, skip); found != nil {
			return found
		}
	}
	return nil
}

// collectElements returns every element below node matching the aliases.
// Matching elements are not searched for nested matches.
func collectElements(node *xmlquery.Node, aliases []string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if matchesAlias(child.Data, aliases) {
			out = append(out, child)
			continue
		}
		out = append(out, collectElements(child, aliases)...)
	}
	return out
}

// lookupElementOrAttr finds the first alias present on node, either as an
// attribute or as a descendant element (nested entries are not searched).
// An attribute wins over an element of the same alias.
func lookupElementOrAttr(node *xmlquery.Node, aliases []string, skip func(*xmlquery.Node) bool) (attr string, elem *xmlquery.Node, found bool) {
	for _, alias := range aliases {
		for _, a := range node.Attr {
			if strings.EqualFold(a.Name.Local, alias) {
				return a.Value, nil, true
			}
		}
		if el := findElement(node, []string{alias}, skip); el != nil {
			return "", el, true
		}
	}
	return "", nil, false
}

func lookupField(node *xmlquery.Node, aliases []string, skip func(*xmlquery.Node) bool) string {
	attr, elem, found := lookupElementOrAttr(node, aliases, skip)
	if !found {
		return ""
	}
	if elem != nil {
		return strings.TrimSpace(elem.InnerText())
	}
	return strings.TrimSpace(attr)
}

// lookupIDs reads an instance identifier list. The list is either a
// container whose child elements each hold one identifier or a delimited
// text value. Duplicates are dropped, first occurrence wins.
func lookupIDs(node *xmlquery.Node, aliases []string, skip func(*xmlquery.Node) bool) []string {
	attr, elem, found := lookupElementOrAttr(node, aliases, skip)
	if !found {
		return nil
	}

	var raw []string
	if elem != nil {
		hasChildren := false
		for child := elem.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				hasChildren = true
				raw = append(raw, child.InnerText())
			}
		}
		if !hasChildren {
			raw = splitIDs(elem.InnerText())
		}
	} else {
		raw = splitIDs(attr)
	}

	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func splitIDs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', ';', '|', ' ', '\t', '\n', '\r':
			return true
		}
		return false
	})
}
