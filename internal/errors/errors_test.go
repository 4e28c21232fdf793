package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/realty/internal/logger"
	"github.com/stwalsh4118/realty/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestContext creates a test Gin context with logger and request ID in context.
func setupTestContext() (*gin.Context, *httptest.ResponseRecorder, *bytes.Buffer) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	var buf bytes.Buffer
	c.Set(middleware.LoggerKey, logger.NewWithWriter(&buf, "test", "debug"))
	c.Set(middleware.RequestIDKey, "test-request-id")

	return c, w, &buf
}

func parseErrorResponse(t *testing.T, body *bytes.Buffer) ErrorResponse {
	var response ErrorResponse
	err := json.Unmarshal(body.Bytes(), &response)
	require.NoError(t, err, "Failed to parse error response JSON")
	return response
}

func TestNotFound(t *testing.T) {
	c, w, logs := setupTestContext()

	NotFound(c, "Building not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrNotFound, response.Error.Code)
	assert.Equal(t, "Building not found", response.Error.Message)
	assert.Equal(t, "test-request-id", response.Error.RequestID)
	assert.Nil(t, response.Error.Details)
	assert.Contains(t, logs.String(), "Resource not found")
}

func TestBadRequest(t *testing.T) {
	t.Run("without details", func(t *testing.T) {
		c, w, _ := setupTestContext()

		BadRequest(c, "Invalid input", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		response := parseErrorResponse(t, w.Body)
		assert.Equal(t, ErrBadRequest, response.Error.Code)
		assert.Nil(t, response.Error.Details)
	})

	t.Run("with details", func(t *testing.T) {
		c, w, _ := setupTestContext()

		BadRequest(c, "Invalid input", map[string]interface{}{"price_range": "2억"})

		response := parseErrorResponse(t, w.Body)
		assert.Equal(t, ErrBadRequest, response.Error.Code)
		assert.Equal(t, "2억", response.Error.Details["price_range"])
	})
}

func TestInternalServerError_DoesNotLeakCause(t *testing.T) {
	c, w, logs := setupTestContext()

	InternalServerError(c, "Failed to search buildings", errors.New("connection refused on 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrInternalServer, response.Error.Code)
	assert.Equal(t, "Failed to search buildings", response.Error.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.Contains(t, logs.String(), "10.0.0.5")
}

func TestServiceUnavailable(t *testing.T) {
	c, w, _ := setupTestContext()

	ServiceUnavailable(c, "Analytics dataset is not loaded", errors.New("open deals.csv: no such file"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrServiceUnavailable, response.Error.Code)
	assert.NotContains(t, w.Body.String(), "deals.csv")
}

type areaRequest struct {
	AreaMin *int `validate:"required_with=AreaMax,omitempty,gte=10,lte=100"`
	AreaMax *int `validate:"required_with=AreaMin,omitempty,gte=10,lte=100"`
}

func TestValidationError(t *testing.T) {
	c, w, _ := setupTestContext()

	tooSmall := 5
	err := validator.New().Struct(areaRequest{AreaMin: &tooSmall})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))

	ValidationError(c, validationErrors)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrValidation, response.Error.Code)
	assert.Equal(t, "Validation failed for one or more fields", response.Error.Message)
	assert.Contains(t, response.Error.Details, "AreaMin")
	assert.Contains(t, response.Error.Details, "AreaMax")
}

func TestBindingError(t *testing.T) {
	t.Run("validation errors become VALIDATION_ERROR", func(t *testing.T) {
		c, w, _ := setupTestContext()
		tooBig := 500
		err := validator.New().Struct(areaRequest{AreaMin: &tooBig, AreaMax: &tooBig})

		BindingError(c, err)

		assert.Equal(t, ErrValidation, parseErrorResponse(t, w.Body).Error.Code)
	})

	t.Run("other errors become BAD_REQUEST", func(t *testing.T) {
		c, w, _ := setupTestContext()
		var target map[string]interface{}
		err := json.Unmarshal([]byte(`{"near_hospital":`), &target)

		BindingError(c, err)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		response := parseErrorResponse(t, w.Body)
		assert.Equal(t, ErrBadRequest, response.Error.Code)
		assert.Contains(t, response.Error.Details, "reason")
	})
}

func TestFormatValidationError(t *testing.T) {
	tests := []struct {
		tag      string
		param    string
		expected string
	}{
		{"required", "", "This field is required"},
		{"required_with", "AreaMax", "This field is required together with AreaMax"},
		{"min", "5", "Value is too short or small (minimum: 5)"},
		{"max", "100", "Value is too long or large (maximum: 100)"},
		{"len", "10", "Must have length of 10"},
		{"gt", "0", "Must be greater than 0"},
		{"gte", "10", "Must be greater than or equal to 10"},
		{"lt", "100", "Must be less than 100"},
		{"lte", "100", "Must be less than or equal to 100"},
		{"gtefield", "AreaMin", "Must be greater than or equal to AreaMin"},
		{"ltefield", "AreaMax", "Must be less than or equal to AreaMax"},
		{"oneof", "hospital subway bus", "Must be one of: hospital subway bus"},
		{"unknown_tag", "", "Validation failed for tag: unknown_tag"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			result := formatValidationError(&mockFieldError{tag: tt.tag, param: tt.param})
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestErrorResponseWithoutContext(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	NotFound(c, "Resource not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrNotFound, response.Error.Code)
	assert.Empty(t, response.Error.RequestID, "Expected empty request ID when not in context")
}

// mockFieldError is a mock implementation of validator.FieldError for testing.
type mockFieldError struct {
	tag   string
	param string
}

func (m *mockFieldError) Tag() string                    { return m.tag }
func (m *mockFieldError) ActualTag() string              { return m.tag }
func (m *mockFieldError) Namespace() string              { return "" }
func (m *mockFieldError) StructNamespace() string        { return "" }
func (m *mockFieldError) Field() string                  { return "TestField" }
func (m *mockFieldError) StructField() string            { return "TestField" }
func (m *mockFieldError) Value() interface{}             { return nil }
func (m *mockFieldError) Param() string                  { return m.param }
func (m *mockFieldError) Kind() reflect.Kind             { return reflect.String }
func (m *mockFieldError) Type() reflect.Type             { return nil }
func (m *mockFieldError) Translate(ut.Translator) string { return "" }
func (m *mockFieldError) Error() string                  { return "" }
