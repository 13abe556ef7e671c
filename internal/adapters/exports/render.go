package exports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rentcore/internal/core"
)

var csvColumns = []string{
	"id",
	"title",
	"file_name",
	"category",
	"file_type",
	"file_size",
	"uploaded_at",
	"tags",
	"owner_kind",
	"owner_id",
	"entity_id",
	"property_id",
	"lot_id",
}

type jsonPayload struct {
	Documents []core.ScopedDocument `json:"documents"`
	Total     int                   `json:"total"`
	Summary   core.StatsSummary     `json:"summary"`
}

func render(format Format, docs []core.ScopedDocument) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		if docs == nil {
			docs = []core.ScopedDocument{}
		}
		payload, err := json.Marshal(jsonPayload{Documents: docs, Total: len(docs), Summary: core.Summarize(docs)})
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(csvColumns); err != nil {
			return nil, "", err
		}
		for _, d := range docs {
			if err := writer.Write(csvRecord(d)); err != nil {
				return nil, "", err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, "", fmt.Errorf("write csv: %w", err)
		}
		return buf.Bytes(), "text/csv", nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func csvRecord(d core.ScopedDocument) []string {
	return []string{
		d.ID,
		d.Title,
		d.FileName,
		d.Category,
		d.FileType,
		strconv.FormatInt(d.FileSize, 10),
		d.UploadedAt.UTC().Format(time.RFC3339),
		strings.Join(d.Tags, ";"),
		string(d.Owner.Kind),
		d.Owner.ID,
		d.Placement.EntityID,
		d.Placement.PropertyID,
		d.Placement.LotID,
	}
}
