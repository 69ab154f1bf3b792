package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchResult(t *testing.T) {
	r := DispatchResult{
		Attempted: 3,
		Succeeded: 2,
		Failed:    1,
		Outcomes: []PushOutcome{
			{Target: "abcd...wxyz", Success: true},
			{Target: "***", Error: "timeout"},
			{Target: "efgh...stuv", Success: true},
		},
	}

	assert.True(t, r.Success())
	assert.Equal(t, []PushOutcome{{Target: "***", Error: "timeout"}}, r.Errors())

	assert.False(t, DispatchResult{Attempted: 1, Failed: 1}.Success())
	assert.Nil(t, DispatchResult{}.Errors())
}
