package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataDrivesHTTPRendering(t *testing.T) {
	// status, then whether clients may see details, then whether retrying can help
	want := map[Code]struct {
		status    int
		details   bool
		retryable bool
	}{
		CodeValidation:         {http.StatusBadRequest, true, false},
		CodeUnauthorized:       {http.StatusUnauthorized, false, false},
		CodeForbidden:          {http.StatusForbidden, false, false},
		CodeNotFound:           {http.StatusNotFound, true, false},
		CodeConflict:           {http.StatusConflict, false, false},
		CodeIdempotency:        {http.StatusConflict, true, false},
		CodeRateLimit:          {http.StatusTooManyRequests, false, false},
		CodeInsufficientStock:  {http.StatusConflict, true, false},
		CodeInvalidMovement:    {http.StatusUnprocessableEntity, true, false},
		CodeCommitStepFailed:   {http.StatusBadGateway, true, false},
		CodePreconditionFailed: {http.StatusPreconditionFailed, true, false},
		CodeInternal:           {http.StatusInternalServerError, false, true},
		CodeDependency:         {http.StatusServiceUnavailable, true, true},
	}
	for code, w := range want {
		m := MetadataFor(code)
		if m.HTTPStatus != w.status || m.DetailsAllowed != w.details || m.Retryable != w.retryable {
			t.Fatalf("%s: got %+v", code, m)
		}
		if m.PublicMessage == "" {
			t.Fatalf("%s: missing public message", code)
		}
	}
	if len(want) != len(metadataByCode) {
		t.Fatalf("metadata table has %d codes, test covers %d", len(metadataByCode), len(want))
	}
	if got := MetadataFor("SOMETHING_UNKNOWN"); got != MetadataFor(CodeInternal) {
		t.Fatalf("unknown codes should render as internal, got %+v", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	inner := New(CodeInsufficientStock, "only 2 left")
	outer := fmt.Errorf("scan: %w", inner)
	if !IsCode(outer, CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock code in chain")
	}
	if IsCode(outer, CodeNotFound) {
		t.Fatalf("unexpected match for not found")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load product: %w", Newf(CodeNotFound, "product %s", "COCA-350"))
	if !stdErrors.Is(err, New(CodeNotFound, "")) {
		t.Fatalf("expected errors.Is to match on code")
	}
	if stdErrors.Is(err, New(CodeConflict, "")) {
		t.Fatalf("different code must not match")
	}
	if got := As(err).Message(); got != "product COCA-350" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestIsCodeSeesInnerTypedError(t *testing.T) {
	inner := New(CodeInsufficientStock, "short")
	outer := Wrap(CodeCommitStepFailed, inner, "stock step")
	if !IsCode(outer, CodeInsufficientStock) || !IsCode(outer, CodeCommitStepFailed) {
		t.Fatalf("expected both codes in chain")
	}
	if got := outer.Error(); got != "COMMIT_STEP_FAILED: stock step: INSUFFICIENT_STOCK: short" {
		t.Fatalf("unexpected error string %q", got)
	}
}
