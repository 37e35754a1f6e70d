package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf_Typed(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{BadRequest("missing field"), KindBadRequest},
		{NotFound("request %d", 5), KindNotFound},
		{Forbidden("not yours"), KindForbidden},
		{Conflict("already assigned"), KindConflict},
		{Internal(errors.New("boom"), "query failed"), KindInternal},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("claim: %w", Conflict("already assigned"))
	if !IsKind(err, KindConflict) {
		t.Errorf("expected wrapped conflict to keep its kind")
	}
}

func TestKindOf_Untyped(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(untyped) = %v, want KindInternal", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{BadRequest("x"), http.StatusBadRequest},
		{NotFound("x"), http.StatusNotFound},
		{Forbidden("x"), http.StatusForbidden},
		{Conflict("x"), http.StatusConflict},
		{errors.New("x"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestMessage(t *testing.T) {
	if got := Message(NotFound("laborant %d not found", 7)); got != "laborant 7 not found" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(errors.New("raw")); got != "raw" {
		t.Errorf("Message untyped = %q", got)
	}
}

func TestInternal_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "exec update")
	if !errors.Is(err, cause) {
		t.Error("expected Internal to wrap its cause")
	}
}
