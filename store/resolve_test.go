package store

import (
	"testing"

	"auticare/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveByID(t *testing.T) {
	r := NewResolver(newTestStore(t))

	res := r.Resolve("Can I get patient with id 992")
	require.NotNil(t, res.Record)
	assert.Equal(t, "John Doe", res.Record.Name)
	assert.Equal(t, "id", res.Via)
	assert.Contains(t, res.Format(), "Patient Name: John Doe")
}

func TestResolveIDFallsThroughPatterns(t *testing.T) {
	r := NewResolver(newTestStore(t))

	// "id 5" does not exist, the bare number pattern finds the same 5, so
	// resolution moves on to names.
	res := r.Resolve("id 5 for sarah")
	require.NotNil(t, res.Record)
	assert.Equal(t, "Sarah Lee", res.Record.Name)
	assert.Equal(t, "name", res.Via)
}

func TestResolveByName(t *testing.T) {
	r := NewResolver(newTestStore(t))

	res := r.Resolve("Tell me about pamela, please?")
	require.NotNil(t, res.Record)
	assert.Equal(t, "Pamela Smith", res.Record.Name)
}

func TestResolveByCondition(t *testing.T) {
	r := NewResolver(newTestStore(t))

	res := r.Resolve("which kids have speech delay")
	require.True(t, res.Multiple())
	require.Len(t, res.Records, 1)
	assert.Equal(t, "John Doe", res.Records[0].Name)
	assert.Contains(t, res.Format(), "Found 1 patients.")
}

func TestResolveConditionSkipsEmpty(t *testing.T) {
	r := NewResolver(NewRecordStore([]types.Record{
		{ID: "1", Name: "Zoe", Notes: "ADHD"},
	}, nil))

	res := r.Resolve("autism or adhd")
	require.True(t, res.Multiple())
	assert.Equal(t, "condition:adhd", res.Via)
}

func TestResolveNothing(t *testing.T) {
	r := NewResolver(newTestStore(t))

	for _, q := range []string{"", "   ", "how is the weather", "12345"} {
		res := r.Resolve(q)
		assert.False(t, res.Found(), q)
		assert.Equal(t, NoPatientFound, res.Format())
	}
}

func TestResolveUnavailableStore(t *testing.T) {
	r := NewResolver(&RecordStore{})
	assert.False(t, r.Resolve("patient 992").Found())
}

func TestFormatRecord(t *testing.T) {
	got := FormatRecord(types.Record{ID: "7", Name: "Lisa", Gender: "F", Notes: "n", Suggestion: "s"})
	want := "Complete Patient Information:\n\nPatient ID: 7\nPatient Name: Lisa\nGender: F\nPatient Data: n\nMedical Suggestion: s\n\n" +
		"This is all the available information for this patient. Answer the user's question based on this data."
	assert.Equal(t, want, got)
}

func TestRecordItems(t *testing.T) {
	items := RecordItems(newTestStore(t).Records())
	require.Len(t, items, 4)
	assert.Equal(t, "992", items[0].Metadata["patient_id"])
	assert.Contains(t, items[0].Text, "Patient Name: John Doe")
}
