package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"1,234.56", 123456, true},
		{"12,345,678.9", 1234567890, true},
		{"1,000,000", 100000000, true},
		{"-1,234.50", -123450, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // rounds half away from zero
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"-1.5", -150, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"1e30", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.out, got.Cents, tc.in)
		} else {
			assert.ErrorIs(t, err, ErrInvalidAmount, tc.in)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var body struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12.5, "b": "0.10"}`), &body))
	assert.Equal(t, int64(1250), body.A.Cents)
	assert.Equal(t, int64(10), body.B.Cents)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"12.50","b":"0.10"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a": "twelve"}`), &body))
}

func TestMoneyRepeatedAddSubHasNoDrift(t *testing.T) {
	tenth, err := ParseMoney("0.1")
	require.NoError(t, err)
	var m Money
	for i := 0; i < 1000; i++ {
		m = m.Add(tenth)
	}
	assert.Equal(t, "100.00", m.String())
	for i := 0; i < 1000; i++ {
		m = m.Sub(tenth)
	}
	assert.Equal(t, int64(0), m.Cents)
}
