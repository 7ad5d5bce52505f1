package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWriteError_StatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code ErrorCode
	}{
		{InsufficientData("upload customers first"), http.StatusUnprocessableEntity, CodeInsufficientData},
		{AnalysisFailed(fmt.Errorf("panic"), "overview failed"), http.StatusInternalServerError, CodeAnalysisFailed},
		{UnsupportedMedia("xls"), http.StatusUnsupportedMediaType, CodeUnsupported},
		{TooLarge("64MB"), http.StatusRequestEntityTooLarge, CodeTooLarge},
		{Validation("bad period"), http.StatusBadRequest, CodeValidation},
		{fmt.Errorf("wrapped: %w", NotFound("dataset")), http.StatusNotFound, CodeNotFound},
		{fmt.Errorf("plain"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, discard, tt.err, "req-1")

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}

			var resp struct {
				Success bool `json:"success"`
				Error   struct {
					Code      ErrorCode `json:"code"`
					RequestID string    `json:"request_id"`
				} `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success || resp.Error.Code != tt.code || resp.Error.RequestID != "req-1" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestWriteSuccessWithHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessWithHeaders(w, []int{1, 2}, map[string]string{"Cache-Control": "no-cache"})

	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Error("extra headers should be set")
	}
	if got := w.Body.String(); got != "{\"data\":[1,2],\"success\":true}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("view: %w", InsufficientData("no data"))); got != CodeInsufficientData {
		t.Errorf("CodeOf(wrapped) = %s", got)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != CodeInternal {
		t.Errorf("CodeOf(plain) = %s", got)
	}

	err := Validation("bad").WithDetails("period: failed \"oneof\"")
	if err.Details == "" || err.StatusCode != http.StatusBadRequest {
		t.Errorf("WithDetails() = %+v", err)
	}
}
