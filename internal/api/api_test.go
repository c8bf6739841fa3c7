package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ougirez/aedsync/internal/config"
	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/domain/dto"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/utils"
)

type fakeAEDs struct {
	stored []domain.AED
}

func (f *fakeAEDs) Upsert(_ context.Context, aeds []domain.AED) (int64, error) {
	f.stored = append(f.stored, aeds...)
	return int64(len(aeds)), nil
}

func (f *fakeAEDs) List(context.Context) ([]domain.AED, error) {
	return f.stored, nil
}

func (f *fakeAEDs) Get(_ context.Context, id int64) (domain.AED, error) {
	for _, a := range f.stored {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.AED{}, constants.ErrDBNotFound
}

type fakeLookup map[string]domain.Availability

func (f fakeLookup) Lookup(_ context.Context, text string) (domain.Availability, bool) {
	av, ok := f[text]
	return av, ok
}

func newTestAPI(t *testing.T, aeds *fakeAEDs, lookup fakeLookup) *APIService {
	t.Helper()
	svc, err := NewAPIService(aeds, lookup, config.ServerConfig{
		Timezone:     "Europe/Athens",
		AllowOrigins: []string{"http://localhost:3000"},
	})
	if err != nil {
		t.Fatalf("NewAPIService: %v", err)
	}
	return svc
}

func do(svc *APIService, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

func TestBulkUpdateAndList(t *testing.T) {
	aeds := &fakeAEDs{}
	svc := newTestAPI(t, aeds, nil)

	body := `{"aeds":[{"id":5,"latitude":37.9,"longitude":23.7,"name":"Clinic","emergency":"defibrillator"}]}`
	rec := do(svc, http.MethodPost, "/aed/bulk-update", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk-update: %d %s", rec.Code, rec.Body)
	}
	var upd dto.UpdateResponse
	if err := utils.JSON.Unmarshal(rec.Body.Bytes(), &upd); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !upd.Success || upd.Upserted != 1 {
		t.Fatalf("unexpected response %+v", upd)
	}
	if rec.Header().Get(constants.HeaderRequestID) == "" {
		t.Errorf("request id header missing")
	}

	rec = do(svc, http.MethodGet, "/aed", "")
	var list dto.ListResponse
	if err := utils.JSON.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !list.Success || len(list.Data) != 1 || list.Data[0].Name != "Clinic" {
		t.Fatalf("unexpected list %+v", list)
	}

	rec = do(svc, http.MethodGet, "/aed/5", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Clinic"`) {
		t.Fatalf("get: %d %s", rec.Code, rec.Body)
	}
}

func TestUpdateRejectsBadPayloads(t *testing.T) {
	svc := newTestAPI(t, &fakeAEDs{}, nil)

	tests := map[string]string{
		"missing aeds":     `{"data":[]}`,
		"zero id":          `{"aeds":[{"id":0,"latitude":37.9,"longitude":23.7}]}`,
		"latitude range":   `{"aeds":[{"id":1,"latitude":137.9,"longitude":23.7}]}`,
		"malformed json":   `{"aeds":[`,
		"wrong field type": `{"aeds":"nope"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(svc, http.MethodPost, "/aed/update", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body)
			}
			var resp domain.ErrorResponse
			if err := utils.JSON.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Code != http.StatusBadRequest {
				t.Fatalf("unexpected error body %s", rec.Body)
			}
		})
	}
}

func TestGetAEDNotFound(t *testing.T) {
	svc := newTestAPI(t, &fakeAEDs{}, nil)

	if rec := do(svc, http.MethodGet, "/aed/42", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(svc, http.MethodGet, "/aed/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	nine, five := "09:00", "17:00"
	lookup := fakeLookup{
		"Δευτέρα - Παρασκευή 09:00-17:00": {
			OriginalText: "Δευτέρα - Παρασκευή 09:00-17:00",
			Status:       domain.StatusParsed,
			Rules:        []domain.Rule{{Days: []int{1, 2, 3, 4, 5}, OpenTime: nine, CloseTime: five}},
		},
	}
	svc := newTestAPI(t, &fakeAEDs{}, lookup)

	// 2024-03-04 is a Monday; 08:00Z is 10:00 in Athens (UTC+2).
	target := "/aed/availability?text=" + url.QueryEscape("Δευτέρα - Παρασκευή 09:00-17:00") + "&at=2024-03-04T08:00:00Z"
	rec := do(svc, http.MethodGet, target, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("availability: %d %s", rec.Code, rec.Body)
	}
	var resp dto.AvailabilityResponse
	if err := utils.JSON.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Open || resp.At != "2024-03-04T10:00:00+02:00" {
		t.Fatalf("unexpected response %+v", resp)
	}

	// 16:00Z is 18:00 in Athens: closed.
	target = "/aed/availability?text=" + url.QueryEscape("Δευτέρα - Παρασκευή 09:00-17:00") + "&at=2024-03-04T16:00:00Z"
	rec = do(svc, http.MethodGet, target, "")
	if err := utils.JSON.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Open {
		t.Fatalf("expected closed at 18:00 local")
	}

	if rec = do(svc, http.MethodGet, "/aed/availability?text=unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for uncached text, got %d", rec.Code)
	}
	if rec = do(svc, http.MethodGet, "/aed/availability", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without text, got %d", rec.Code)
	}
	if rec = do(svc, http.MethodGet, "/aed/availability?text=x&at=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad at, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	svc := newTestAPI(t, &fakeAEDs{}, nil)

	rec := do(svc, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}
