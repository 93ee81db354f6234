package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aanand-mishra/contact-form/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   Response
		want   string
	}{
		{"success", http.StatusOK, Success("Thanks"), `{"ok":true,"message":"Thanks"}`},
		{"validation", http.StatusBadRequest,
			ValidationFailed(types.FieldErrors{{Field: types.FieldName, Reason: types.EmptyField}}),
			`{"ok":false,"errors":["Name is required"]}`},
		{"failure", http.StatusMethodNotAllowed, Failure("Method not allowed"), `{"ok":false,"error":"Method not allowed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, WriteJSON(rec, tt.status, tt.body))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}
