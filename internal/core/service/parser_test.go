package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
)

func TestParseChanges(t *testing.T) {
	t.Run("single change", func(t *testing.T) {
		raw := `{"changes":[{"manufacturer":"BMW","part":"тормозной диск","model":"X5","quantity":2,"action":"add"}]}`

		cs, err := ParseChanges(raw)
		require.NoError(t, err)
		assert.Equal(t, domain.ChangeSet{{
			Manufacturer: "BMW",
			Part:         "тормозной диск",
			Model:        "X5",
			Quantity:     2,
			Action:       domain.ActionAdd,
		}}, cs)
	})

	t.Run("defaults quantity and model", func(t *testing.T) {
		cs, err := ParseChanges(`{"changes":[{"manufacturer":"Bosch","part":"фильтр","action":"remove"}]}`)
		require.NoError(t, err)
		require.Len(t, cs, 1)
		assert.Equal(t, 1, cs[0].Quantity)
		assert.Equal(t, "", cs[0].Model)
		assert.Equal(t, domain.ActionRemove, cs[0].Action)
	})

	t.Run("keeps order and ignores extra keys", func(t *testing.T) {
		raw := `
		{"changes":[
		  {"manufacturer":"BMW","part":"диск","model":"X5","quantity":1,"action":"add","note":"x"},
		  {"manufacturer":"Audi","part":"колодки","model":"A4","quantity":3,"action":"remove"}
		], "comment": "ok"}`

		cs, err := ParseChanges(raw)
		require.NoError(t, err)
		require.Len(t, cs, 2)
		assert.Equal(t, "BMW", cs[0].Manufacturer)
		assert.Equal(t, "Audi", cs[1].Manufacturer)
	})

	t.Run("empty changes array", func(t *testing.T) {
		cs, err := ParseChanges(`{"changes":[]}`)
		require.NoError(t, err)
		assert.Empty(t, cs)
	})
}

func TestParseChanges_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "Конечно! Вот JSON:"},
		{"prose around json", `Ответ: {"changes":[]}`},
		{"trailing document", `{"changes":[]} {"changes":[]}`},
		{"code fence", "```json\n{\"changes\":[]}\n```"},
		{"array top level", `[{"manufacturer":"BMW"}]`},
		{"missing changes", `{"items":[]}`},
		{"changes not array", `{"changes":{"manufacturer":"BMW"}}`},
		{"truncated", `{"changes":[{"manufacturer":"BMW"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChanges(tt.raw)
			assert.ErrorIs(t, err, domain.ErrMalformedExtraction)
		})
	}
}

func TestParseChanges_InvalidChange(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown action", `{"changes":[{"manufacturer":"BMW","part":"диск","action":"sell"}]}`},
		{"blank manufacturer", `{"changes":[{"manufacturer":"  ","part":"диск","action":"add"}]}`},
		{"missing part", `{"changes":[{"manufacturer":"BMW","action":"add"}]}`},
		{"zero quantity", `{"changes":[{"manufacturer":"BMW","part":"диск","quantity":0,"action":"add"}]}`},
		{"negative quantity", `{"changes":[{"manufacturer":"BMW","part":"диск","quantity":-2,"action":"remove"}]}`},
		{"fractional quantity", `{"changes":[{"manufacturer":"BMW","part":"диск","quantity":1.5,"action":"add"}]}`},
		{"string quantity", `{"changes":[{"manufacturer":"BMW","part":"диск","quantity":"2","action":"add"}]}`},
		{"model not string", `{"changes":[{"manufacturer":"BMW","part":"диск","model":5,"action":"add"}]}`},
		{"element not object", `{"changes":["add BMW"]}`},
		{"one bad among good", `{"changes":[
			{"manufacturer":"BMW","part":"диск","action":"add"},
			{"manufacturer":"BMW","part":"диск","action":"delete"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := ParseChanges(tt.raw)
			assert.ErrorIs(t, err, domain.ErrInvalidChange)
			assert.Nil(t, cs)
		})
	}
}

func TestValidateChangeSet(t *testing.T) {
	valid := domain.Change{Manufacturer: "BMW", Part: "диск", Quantity: 1, Action: domain.ActionAdd}
	assert.NoError(t, ValidateChangeSet(domain.ChangeSet{valid}))
	assert.NoError(t, ValidateChangeSet(nil))

	bad := []domain.Change{
		{Manufacturer: "", Part: "диск", Quantity: 1, Action: domain.ActionAdd},
		{Manufacturer: "BMW", Part: "\t", Quantity: 1, Action: domain.ActionAdd},
		{Manufacturer: "BMW", Part: "диск", Quantity: 0, Action: domain.ActionAdd},
		{Manufacturer: "BMW", Part: "диск", Quantity: domain.MaxQuantity + 1, Action: domain.ActionAdd},
		{Manufacturer: "BMW", Part: "диск", Quantity: 1, Action: "move"},
	}
	for _, ch := range bad {
		err := ValidateChangeSet(domain.ChangeSet{valid, ch})
		assert.ErrorIs(t, err, domain.ErrInvalidChange, "change %+v", ch)
	}
}

func TestBuildPrompt(t *testing.T) {
	command := "Добавь 2 тормозных диска BMW X5"

	prompt := BuildPrompt(command)
	assert.Contains(t, prompt, `Команда: "`+command+`"`)
	assert.Contains(t, prompt, `"changes"`)
	assert.NotContains(t, prompt, commandPlaceholder)
	assert.Equal(t, prompt, BuildPrompt(command), "prompt must be deterministic")
}
