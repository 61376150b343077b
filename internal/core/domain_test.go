package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskNormalizeAndValidate(t *testing.T) {
	task := Task{Title: "  write report ", Category: "work"}
	task.Normalize()
	require.NoError(t, task.Validate())
	assert.Equal(t, "write report", task.Title)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, TaskTodo, task.Status)

	task.Status = "blocked"
	var verr *ValidationError
	require.ErrorAs(t, task.Validate(), &verr)
	assert.Contains(t, verr.Fields["status"], "todo in_progress completed")
}

func TestProjectValidate(t *testing.T) {
	start, end := NewDate(2024, 5, 1), NewDate(2024, 4, 1)
	p := Project{Name: "Site", StartDate: &start, EndDate: &end, Progress: 120}
	p.Normalize()
	var verr *ValidationError
	require.ErrorAs(t, p.Validate(), &verr)
	assert.Contains(t, verr.Fields, "end_date")
	assert.Contains(t, verr.Fields, "progress")
}

func TestDailyTaskClock(t *testing.T) {
	start, end := "09:00", "8:61"
	d := DailyTask{Title: "stretch", StartTime: &start, EndTime: &end}
	d.Normalize()
	assert.Equal(t, DefaultDailyCategory, d.Category)
	var verr *ValidationError
	require.ErrorAs(t, d.Validate(), &verr)
	assert.Equal(t, "must be a HH:MM time", verr.Fields["end_time"])

	end = "10:30"
	assert.NoError(t, d.Validate())
}

func TestTransactionFilterMatch(t *testing.T) {
	pid := int64(4)
	tx := Transaction{Type: TxExpense, Category: "food", Date: NewDate(2024, 2, 10), ProjectID: &pid}
	assert.True(t, TransactionFilter{}.Match(tx))
	assert.True(t, TransactionFilter{From: NewDate(2024, 2, 10), To: NewDate(2024, 2, 10)}.Match(tx))
	assert.False(t, TransactionFilter{From: NewDate(2024, 2, 11)}.Match(tx))
	assert.False(t, TransactionFilter{Type: TxIncome}.Match(tx))
	other := int64(5)
	assert.False(t, TransactionFilter{ProjectID: &other}.Match(tx))
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D  Date  `json:"d"`
		DP *Date `json:"dp"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-02-29","dp":null}`), &v))
	assert.Equal(t, "2024-02-29", v.D.String())
	assert.Nil(t, v.DP)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"d":"29/02/2024"}`), &v), ErrInvalidDate)
}

func TestYearMonthLastMonths(t *testing.T) {
	got := YearMonth{Year: 2024, Month: 2}.LastMonths(3)
	assert.Equal(t, []YearMonth{{2023, 12}, {2024, 1}, {2024, 2}}, got)
	first, last := YearMonth{Year: 2024, Month: 2}.Bounds()
	assert.Equal(t, "2024-02-01", first.String())
	assert.Equal(t, "2024-02-29", last.String())
}
