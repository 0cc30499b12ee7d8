package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestAppErrorCloneDoesNotMutateSentinel(t *testing.T) {
	withDetails := ErrEnvMissing.WithDetails([]string{"RPC_URL"})
	if ErrEnvMissing.Details != nil {
		t.Fatalf("sentinel mutated: %+v", ErrEnvMissing.Details)
	}
	if !reflect.DeepEqual(withDetails.Details, []string{"RPC_URL"}) {
		t.Fatalf("details = %v", withDetails.Details)
	}
	if withDetails.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", withDetails.StatusCode)
	}
}

func TestAppErrorIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", ErrNotFound.WithError(errors.New("no rows")))
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(wrapped, ErrInternal) {
		t.Fatal("unexpected match against a different code")
	}
}

func TestFromError(t *testing.T) {
	if got := FromError(ErrMissingAPIKey); got.Code != CodeMissingAPIKey {
		t.Fatalf("code = %s", got.Code)
	}

	got := FromError(context.Canceled)
	if got.Code != CodeRequestCanceled {
		t.Fatalf("code = %s", got.Code)
	}

	got = FromError(errors.New("boom"))
	if got.Code != CodeInternal || got.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected mapping: %+v", got)
	}
	if got.Details != "boom" {
		t.Fatalf("details = %v", got.Details)
	}
}

func TestToBodyOmitsWrappedError(t *testing.T) {
	body := ErrIrlAgentsAPI.WithStatus(502).WithDetails("bad gateway").WithError(errors.New("secret")).ToBody()
	if body.Status != 502 || body.Details != "bad gateway" || body.Code != CodeIrlAgentsAPIError {
		t.Fatalf("unexpected body: %+v", body)
	}
}

type sample struct {
	ReceiverAddress string `json:"receiver_address" validate:"required,eth_addr"`
	Count           int    `json:"count" validate:"gte=1"`
}

func TestParseValidationErrors(t *testing.T) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})

	err := v.Struct(sample{ReceiverAddress: "0x123", Count: 0})
	appErr := ParseValidationErrors(err)
	if appErr.Code != CodeInvalidPayload || appErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected error: %+v", appErr)
	}
	if len(appErr.Issues) != 2 {
		t.Fatalf("issues = %+v", appErr.Issues)
	}
	if appErr.Issues[0].Path != "receiver_address" || appErr.Issues[0].Code != "custom" {
		t.Fatalf("first issue = %+v", appErr.Issues[0])
	}
	if appErr.Issues[1].Path != "count" || appErr.Issues[1].Code != "too_small" {
		t.Fatalf("second issue = %+v", appErr.Issues[1])
	}
}

func TestParseValidationErrorsNonValidator(t *testing.T) {
	appErr := ParseValidationErrors(errors.New("unexpected EOF"))
	if len(appErr.Issues) != 1 || appErr.Issues[0].Message != "unexpected EOF" {
		t.Fatalf("issues = %+v", appErr.Issues)
	}
}
