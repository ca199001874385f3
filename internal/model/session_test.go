package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionClone_EmptySelectionStaysEmpty(t *testing.T) {
	s := Session{Cycle: Cycle{ID: "c1", State: StateSelecting, Selection: []int{}}}

	data, err := json.Marshal(s.Clone().Cycle)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"selection":[]`)
}

func TestSessionClone_SharesNothingWithAttempts(t *testing.T) {
	score := 0
	s := Session{
		Attempts: []AttemptResult{{
			RowNumber:               0,
			AutomatedScore:          &score,
			AutomatedCriteriaGrades: map[string]Grade{"C1": GradeFail},
			IsBreaking:              true,
		}},
		Cycle: Cycle{Selection: []int{0}, Reviews: map[int]ReviewRecord{0: {CriterionGrades: map[string]Grade{"C1": GradePass}}}},
	}

	c := s.Clone()
	*c.Attempts[0].AutomatedScore = 5
	c.Attempts[0].AutomatedCriteriaGrades["C1"] = GradePass
	c.Cycle.Selection[0] = 9
	c.Cycle.Reviews[0].CriterionGrades["C1"] = GradeFail

	assert.Equal(t, 0, *s.Attempts[0].AutomatedScore)
	assert.Equal(t, GradeFail, s.Attempts[0].AutomatedCriteriaGrades["C1"])
	assert.Equal(t, []int{0}, s.Cycle.Selection)
	assert.Equal(t, GradePass, s.Cycle.Reviews[0].CriterionGrades["C1"])
}

func TestAttemptResultClone_NilFields(t *testing.T) {
	a := AttemptResult{RowNumber: 3}
	c := a.Clone()
	assert.Nil(t, c.AutomatedScore)
	assert.Nil(t, c.AutomatedCriteriaGrades)
}
