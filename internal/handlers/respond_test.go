package handlers

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/tunahanclrr/salon-api/internal/apperr"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Validation("bad input"), 400},
		{"not found", apperr.NotFound("missing"), 404},
		{"conflict", apperr.Conflict("slot taken"), 409},
		{"insufficient balance", apperr.InsufficientBalance("no sessions"), 422},
		{"invalid refund", apperr.InvalidRefund("nothing used"), 422},
		{"no rows", pgx.ErrNoRows, 404},
		{"unknown", errors.New("boom"), 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err)
			if rec.Code != tc.want {
				t.Fatalf("got status %d, want %d", rec.Code, tc.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("got content type %q", ct)
			}
		})
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: secret table detail"))
	if body := rec.Body.String(); body != "{\"error\":\"internal error\"}\n" {
		t.Fatalf("internal detail leaked: %q", body)
	}
}
