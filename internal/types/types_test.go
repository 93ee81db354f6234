package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsent_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want Consent
	}{
		{`true`, true},
		{`false`, false},
		{`"on"`, true},
		{`"ON "`, true},
		{`"yes"`, true},
		{`"1"`, true},
		{`"off"`, false},
		{`""`, false},
		{`1`, true},
		{`0`, false},
		{`null`, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var c Consent
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &c))
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestConsent_RejectsObjects(t *testing.T) {
	var c Consent
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &c))
}

func TestSubmissionInput_MissingConsentIsFalse(t *testing.T) {
	var in SubmissionInput
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Alice","privacy":"on"}`), &in))

	assert.Equal(t, "Alice", in.Name)
	assert.True(t, bool(in.Privacy))
	assert.False(t, bool(in.Terms))
}

func TestFieldErrors_Error(t *testing.T) {
	fe := FieldErrors{
		{Field: FieldName, Reason: EmptyField},
		{Field: FieldEmail, Reason: InvalidFormat},
	}
	assert.Equal(t, "validation failed: name: EmptyField, email: InvalidFormat", fe.Error())
	assert.Equal(t, []string{"Name is required", "A valid email is required"}, fe.Messages())
}
