package httpserver

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func BenchmarkHandleSubmitRating(b *testing.B) {
	srv := buildTestServer(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		payload := []byte(`{"name":"Notch","rating":4}`)
		req := httptest.NewRequest(http.MethodPost, "/ratings", bytes.NewReader(payload))
		req.Header.Set("Authorization", "Bearer secret")
		req.Header.Set("X-Rater-Id", fmt.Sprintf("bench-%d", i))
		rec := httptest.NewRecorder()

		srv.handleSubmitRating(rec, req)
		if rec.Code != http.StatusCreated {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func BenchmarkHandleLeaderboard(b *testing.B) {
	srv := buildTestServer(b)
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/ratings", bytes.NewBufferString(fmt.Sprintf(`{"name":"Notch","rating":%d}`, i%10+1)))
		req.Header.Set("Authorization", "Bearer secret")
		req.Header.Set("X-Rater-Id", fmt.Sprintf("seed-%d", i))
		srv.handleSubmitRating(httptest.NewRecorder(), req)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/leaderboard?direction=worst&limit=5", nil)
		rec := httptest.NewRecorder()
		srv.handleLeaderboard(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}
