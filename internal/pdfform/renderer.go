// Package pdfform fills AcroForm PDF templates by field name and bundles
// rendered documents into a single archive. Template files live in a
// configured directory and are addressed by template ID.
package pdfform

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
)

// NamedDocument is one rendered document destined for a bundle. The name is
// preserved verbatim as the archive entry name.
type NamedDocument struct {
	Name  string
	Bytes []byte
}

// Renderer fills PDF templates from a template directory.
type Renderer struct {
	templateDir string
	conf        *pdfmodel.Configuration
}

// NewRenderer creates a Renderer reading templates from templateDir.
func NewRenderer(templateDir string) *Renderer {
	return &Renderer{
		templateDir: templateDir,
		conf:        pdfmodel.NewDefaultConfiguration(),
	}
}

// Fill loads the named template and sets each field present in the map by
// name. Field names the template doesn't know are logged and skipped, since
// templates may legitimately omit optional fields. A template without any
// form fields is returned unmodified; a missing template is fatal
// (apperrors.ErrTemplateNotFound). flatten makes the result non-editable.
func (r *Renderer) Fill(templateID string, fields map[string]string, flatten bool) ([]byte, error) {
	templateBytes, err := os.ReadFile(filepath.Join(r.templateDir, templateID+".pdf"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrTemplateNotFound, templateID)
		}
		return nil, fmt.Errorf("failed to read template %s: %w", templateID, err)
	}

	templateFields, err := r.fieldNames(templateBytes, templateID)
	if err != nil {
		return nil, err
	}
	if len(templateFields) == 0 {
		// Static template without an AcroForm. Nothing to fill.
		return templateBytes, nil
	}

	known := make(map[string]bool, len(templateFields))
	for _, name := range templateFields {
		known[name] = true
	}

	var textFields []formTextField
	for _, name := range templateFields {
		value, ok := fields[name]
		if !ok {
			continue
		}
		textFields = append(textFields, formTextField{Name: name, Value: value})
	}
	for name := range fields {
		if !known[name] {
			log.Printf("template %s has no field %q, skipping", templateID, name)
		}
	}

	fillJSON, err := json.Marshal(formData{Forms: []formGroup{{TextFields: textFields}}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode form data: %w", err)
	}

	var filled bytes.Buffer
	if err := api.FillForm(bytes.NewReader(templateBytes), bytes.NewReader(fillJSON), &filled, r.conf); err != nil {
		return nil, fmt.Errorf("failed to fill template %s: %w", templateID, err)
	}

	if !flatten {
		return filled.Bytes(), nil
	}

	var locked bytes.Buffer
	if err := api.LockFormFields(bytes.NewReader(filled.Bytes()), &locked, nil, r.conf); err != nil {
		return nil, fmt.Errorf("failed to flatten template %s: %w", templateID, err)
	}
	return locked.Bytes(), nil
}

// ReadFields extracts the current field name/value pairs from a filled
// document.
func (r *Renderer) ReadFields(documentBytes []byte) (map[string]string, error) {
	var buf bytes.Buffer
	if err := api.ExportFormJSON(bytes.NewReader(documentBytes), &buf, "", r.conf); err != nil {
		return nil, fmt.Errorf("failed to export form fields: %w", err)
	}
	return parseFieldValues(buf.Bytes())
}

// Bundle packs the given documents into a single zip archive, preserving
// the given names verbatim as entry names.
func (r *Renderer) Bundle(docs []NamedDocument) ([]byte, error) {
	if len(docs) == 0 {
		return nil, errors.New("nothing to bundle")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, doc := range docs {
		w, err := zw.Create(doc.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive entry %s: %w", doc.Name, err)
		}
		if _, err := w.Write(doc.Bytes); err != nil {
			return nil, fmt.Errorf("failed to write archive entry %s: %w", doc.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// fieldNames lists the form field names of a template. A template without an
// AcroForm yields an empty list, not an error.
func (r *Renderer) fieldNames(templateBytes []byte, templateID string) ([]string, error) {
	var buf bytes.Buffer
	if err := api.ExportFormJSON(bytes.NewReader(templateBytes), &buf, templateID, r.conf); err != nil {
		if isNoFormErr(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to inspect template %s: %w", templateID, err)
	}

	values, err := parseFieldValues(buf.Bytes())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	return names, nil
}

// isNoFormErr reports whether err is pdfcpu saying the document carries no
// AcroForm. Only ErrNoFormFieldsAffected is a sentinel; the other two
// conditions surface as plain error strings and must be matched by message.
func isNoFormErr(err error) bool {
	if errors.Is(err, api.ErrNoFormFieldsAffected) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no form available") || strings.Contains(msg, "no form fields available")
}

// formData mirrors pdfcpu's form JSON for filling and export.
type formData struct {
	Forms []formGroup `json:"forms"`
}

type formGroup struct {
	TextFields []formTextField `json:"textfield,omitempty"`
}

type formTextField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// parseFieldValues walks pdfcpu's export JSON generically, collecting
// name/value pairs across all field types.
func parseFieldValues(exportJSON []byte) (map[string]string, error) {
	var doc struct {
		Forms []map[string]json.RawMessage `json:"forms"`
	}
	if err := json.Unmarshal(exportJSON, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse form export: %w", err)
	}

	values := make(map[string]string)
	for _, group := range doc.Forms {
		for _, raw := range group {
			var entries []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			}
			if err := json.Unmarshal(raw, &entries); err != nil {
				// Non-field metadata in the group, e.g. page info.
				continue
			}
			for _, e := range entries {
				if e.Name != "" {
					values[e.Name] = e.Value
				}
			}
		}
	}
	return values, nil
}
