package bling

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tiburcios-stuff/bling-adapter/pkg/model"
)

// Field extraction is defensive throughout: a missing key, missing nested
// path, or unparseable value degrades the field to its zero/nil form and the
// row survives. Malformed upstream data must never abort a whole fetch.

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// normalizeOrder flattens one raw listing record into the canonical Order.
func normalizeOrder(raw map[string]any) model.Order {
	return model.Order{
		ID:               asInt64(raw["id"]),
		Date:             asDate(raw["data"]),
		OrderNumber:      asString(raw["numero"]),
		StoreOrderNumber: asString(raw["numeroLoja"]),
		Total:            asDecimal(raw["total"]),
		StoreID:          asInt64Ptr(lookup(raw, "loja", "id")),
	}
}

// lookup walks a nested path of object keys, returning nil as soon as any hop
// is missing or not an object.
func lookup(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[k]
		if !ok {
			return nil
		}
	}
	return cur
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return 0
		}
		return d.IntPart()
	default:
		return 0
	}
}

func asInt64Ptr(v any) *int64 {
	switch n := v.(type) {
	case float64:
		i := int64(n)
		return &i
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return nil
		}
		i := d.IntPart()
		return &i
	default:
		return nil
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		d := decimal.NewFromFloat(s)
		return d.String()
	default:
		return ""
	}
}

func asDate(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func asDecimal(v any) *decimal.Decimal {
	switch n := v.(type) {
	case float64:
		d := decimal.NewFromFloat(n)
		return &d
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return nil
		}
		return &d
	default:
		return nil
	}
}
