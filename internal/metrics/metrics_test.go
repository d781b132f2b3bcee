package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFriendOperationCounts(t *testing.T) {
	reg := New()

	reg.FriendOperation("sendRequest", OutcomeSuccess)
	reg.FriendOperation("sendRequest", OutcomeSuccess)
	reg.FriendOperation("sendRequest", OutcomeClientError)

	families, err := reg.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "friendzone_friend_operations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" {
					counts[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if counts[OutcomeSuccess] != 2 || counts[OutcomeClientError] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	var nilRegistry *Registry
	nilRegistry.FriendOperation("sendRequest", OutcomeSuccess)
	nilRegistry.ObserveHTTP(http.MethodGet, "/", http.StatusOK, 0.1)
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := New()
	reg.FriendOperation("accept", OutcomeSuccess)
	reg.ObserveHTTP(http.MethodPost, "/accept-friend-request", http.StatusOK, 0.01)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`friendzone_friend_operations_total{operation="accept",outcome="success"} 1`,
		`friendzone_http_request_duration_seconds_count{method="POST",path="/accept-friend-request",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected exposition to contain %q", want)
		}
	}
}
