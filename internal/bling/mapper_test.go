package bling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rawOrder(t *testing.T, js string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(js), &m))
	return m
}

func TestNormalizeOrder_FullRecord(t *testing.T) {
	o := normalizeOrder(rawOrder(t, `{
		"id": 1,
		"data": "2024-01-05",
		"numero": "1001",
		"numeroLoja": "ML-77",
		"total": "12.50",
		"loja": {"id": 7}
	}`))

	assert.EqualValues(t, 1, o.ID)
	require.NotNil(t, o.Date)
	assert.Equal(t, mustDate("2024-01-05"), *o.Date)
	assert.Equal(t, "1001", o.OrderNumber)
	assert.Equal(t, "ML-77", o.StoreOrderNumber)
	require.NotNil(t, o.Total)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("12.50")))
	require.NotNil(t, o.StoreID)
	assert.EqualValues(t, 7, *o.StoreID)
}

func TestNormalizeOrder_MissingFields(t *testing.T) {
	o := normalizeOrder(rawOrder(t, `{"id": 2}`))

	assert.EqualValues(t, 2, o.ID)
	assert.Nil(t, o.Date)
	assert.Empty(t, o.OrderNumber)
	assert.Empty(t, o.StoreOrderNumber)
	assert.Nil(t, o.Total)
	assert.Nil(t, o.StoreID)
}

func TestNormalizeOrder_UnparseableValuesDegradeToNil(t *testing.T) {
	o := normalizeOrder(rawOrder(t, `{
		"id": 3,
		"data": "05/01/2024",
		"total": "not-a-number",
		"loja": "not-an-object"
	}`))

	assert.EqualValues(t, 3, o.ID, "the row survives with the bad fields nil")
	assert.Nil(t, o.Date)
	assert.Nil(t, o.Total)
	assert.Nil(t, o.StoreID)
}

func TestNormalizeOrder_NumericVariants(t *testing.T) {
	// The endpoint is loose with types: totals arrive as numbers or strings,
	// order numbers as either as well.
	o := normalizeOrder(rawOrder(t, `{
		"id": "44",
		"numero": 1002,
		"total": 99.9,
		"loja": {"id": "12"}
	}`))

	assert.EqualValues(t, 44, o.ID)
	assert.Equal(t, "1002", o.OrderNumber)
	require.NotNil(t, o.Total)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("99.9")))
	require.NotNil(t, o.StoreID)
	assert.EqualValues(t, 12, *o.StoreID)
}

func TestAsDate_Layouts(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2024-01-05", true},
		{"2024-01-05 13:45:00", true},
		{"2024-01-05T13:45:00Z", true},
		{"05/01/2024", false},
		{"", false},
	}
	for _, tt := range tests {
		got := asDate(tt.in)
		if tt.want {
			assert.NotNil(t, got, tt.in)
		} else {
			assert.Nil(t, got, tt.in)
		}
	}
}

func TestLookup_NestedMisses(t *testing.T) {
	m := rawOrder(t, `{"loja": {"id": 7}}`)

	assert.EqualValues(t, float64(7), lookup(m, "loja", "id"))
	assert.Nil(t, lookup(m, "loja", "nome"))
	assert.Nil(t, lookup(m, "vendedor", "id"))
	assert.Nil(t, lookup(m, "loja", "id", "deeper"))
}
