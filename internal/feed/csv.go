package feed

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// columns is the catalog header row. Order is part of the contract with
// the downstream consumer and must not change between runs.
var columns = []string{
	"id",
	"title",
	"description",
	"availability",
	"condition",
	"price",
	"link",
	"image_link",
	"additional_image_link",
	"brand",
	"inventory",
}

// RenderCSV serializes records into the catalog CSV, header first.
func RenderCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i := range records {
		if err := w.Write(records[i].fields()); err != nil {
			return nil, fmt.Errorf("write csv record %s: %w", records[i].ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Record) fields() []string {
	return []string{
		r.ID,
		r.Title,
		r.Description,
		r.Availability,
		r.Condition,
		r.Price,
		r.Link,
		r.ImageLink,
		r.AdditionalImageLink,
		r.Brand,
		r.Inventory,
	}
}
