package remote

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/suinrdeveloper-dev/vault"
)

type columnMap vault.RemoteColumns

// decodeRows reads a JSON array of objects. Numbers are kept as json.Number
// so integer ids survive without float rounding.
func decodeRows(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c columnMap) toRecord(row map[string]any) vault.RemoteRecord {
	return vault.RemoteRecord{
		ID:          stringField(row[c.ID]),
		SourceLabel: stringField(row[c.SourceLabel]),
		Header:      stringField(row[c.Header]),
		Payload:     stringField(row[c.Payload]),
		CreatedAt:   stringField(row[c.CreatedAt]),
	}
}

func (c columnMap) toRow(r vault.RemoteRecord) map[string]any {
	return map[string]any{
		c.ID:          r.ID,
		c.SourceLabel: r.SourceLabel,
		c.Header:      r.Header,
		c.Payload:     r.Payload,
		c.CreatedAt:   r.CreatedAt,
	}
}

// stringField renders a decoded JSON value as an opaque string. Null and
// absent values become "".
func stringField(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// NewEvent builds a producer record with a fresh UUID and the current time.
func NewEvent(sourceLabel, header, payload string) vault.RemoteRecord {
	return fillEvent(vault.RemoteRecord{
		SourceLabel: sourceLabel,
		Header:      header,
		Payload:     payload,
	})
}

func fillEvent(r vault.RemoteRecord) vault.RemoteRecord {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return r
}
