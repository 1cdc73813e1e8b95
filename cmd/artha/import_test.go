package main

import (
	"strings"
	"testing"
	"time"

	"github.com/arthaledger/artha/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatementCSV(t *testing.T) {
	input := strings.Join([]string{
		"id,date,description,amount,direction",
		"txn-001,2026-08-01,Zomato Order REF123,450.50,debit",
		"txn-002,2026-08-02,SALARY CREDIT ACME,85000,credit",
	}, "\n")

	txns, err := parseStatementCSV(strings.NewReader(input), "user-1")
	require.NoError(t, err)
	require.Len(t, txns, 2)

	first := txns[0]
	assert.Equal(t, "txn-001", first.ID)
	assert.Equal(t, "user-1", first.UserID)
	assert.Equal(t, "Zomato Order REF123", first.Description)
	assert.NotEmpty(t, first.NormalizedDescription)
	assert.InDelta(t, 450.50, first.Amount, 1e-9)
	assert.Equal(t, model.DirectionDebit, first.Direction)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), first.OccurredAt)
	assert.Equal(t, model.StatusPending, first.Status)

	assert.Equal(t, model.DirectionCredit, txns[1].Direction)
}

func TestParseStatementCSVWithoutHeader(t *testing.T) {
	input := "txn-001,2026-08-01,Zomato Order,450.50,debit\n"

	txns, err := parseStatementCSV(strings.NewReader(input), "user-1")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestParseStatementCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad date", "txn-001,01/08/2026,Zomato Order,450.50,debit"},
		{"bad amount", "txn-001,2026-08-01,Zomato Order,lots,debit"},
		{"bad direction", "txn-001,2026-08-01,Zomato Order,450.50,sideways"},
		{"missing columns", "txn-001,2026-08-01,Zomato Order"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseStatementCSV(strings.NewReader(tt.input), "user-1")
			assert.Error(t, err)
		})
	}
}
