package guests_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"guest_registry_backend/internal/events"
	"guest_registry_backend/internal/guests"
	"guest_registry_backend/internal/guests/repository"
	"guest_registry_backend/internal/guests/transport"
	apphttp "guest_registry_backend/internal/http"
	"guest_registry_backend/internal/http/router"
	"guest_registry_backend/platform/config"
	"guest_registry_backend/platform/httpkit"
	"guest_registry_backend/platform/kvdb"
	"guest_registry_backend/platform/logger"
	"guest_registry_backend/platform/metrics"
	"guest_registry_backend/platform/phone"
	"guest_registry_backend/platform/validator"
)

const ivan = `{"name":"Ivan","lastname":"Petrov","phoneNumber":"+79297169752","email":"ivan@example.com"}`

type RoutesSuite struct {
	suite.Suite
	engine  *gin.Engine
	metrics *metrics.Metrics
}

func TestRoutesSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RoutesSuite))
}

func (s *RoutesSuite) SetupTest() {
	db, err := kvdb.Open(filepath.Join(s.T().TempDir(), "guests.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	repo, err := repository.NewKVRepo(db)
	s.Require().NoError(err)

	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })

	log := logger.NewWithWriter("production", io.Discard)
	bus := events.NewInMemoryBus(log)
	s.metrics = metrics.New()

	module := guests.NewModule(repo, phone.NewNormalizer(), validator.New(), bus, s.metrics, log)
	module.RegisterHandlers(bus)

	cfg := &config.Config{
		Env:             "test",
		CORSAllowAll:    true,
		RateLimitRPS:    1000,
		RateLimitBurst:  1000,
		DebugHeaders:    true,
		OTelServiceName: "guest-registry-test",
	}
	s.engine = router.New(&apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      kvdb.NewChecker(db),
		Metrics:     s.metrics,
		Idempotency: httpkit.NewIdempotency(client, time.Hour, log),
		Modules:     []apphttp.Module{module},
	})
}

func (s *RoutesSuite) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *RoutesSuite) guests(rec *httptest.ResponseRecorder) []transport.GuestResponse {
	var out []transport.GuestResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *RoutesSuite) errorMessage(rec *httptest.ResponseRecorder) string {
	var out httpkit.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Error
}

func (s *RoutesSuite) TestWelcome() {
	rec := s.do(http.MethodGet, "/", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"message":"welcome"}`, rec.Body.String())
}

func (s *RoutesSuite) TestAddGuest() {
	rec := s.do(http.MethodPost, "/add-guest", ivan)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.JSONEq(`[{"id":1,"name":"Ivan","lastname":"Petrov","phone":"+79297169752","email":"ivan@example.com","country":"RU"}]`, rec.Body.String())
	s.NotEmpty(rec.Header().Get("X-Debug-Time"))
	s.NotEmpty(rec.Header().Get("X-Debug-Memory"))
	s.NotEmpty(rec.Header().Get(httpkit.RequestIDHeader))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.GuestMutations.WithLabelValues("created")))
}

func (s *RoutesSuite) TestAddGuestWithoutEmailRendersNull() {
	rec := s.do(http.MethodPost, "/add-guest", `{"name":"Anna","lastname":"Ivanova","phoneNumber":"+79297169750"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Contains(rec.Body.String(), `"email":null`)
}

func (s *RoutesSuite) TestAddGuestRejectsMalformedBodies() {
	for _, body := range []string{"not json", "{}", "[]", `"text"`, `{"name":5,"lastname":"x","phoneNumber":"+79297169752"}`} {
		rec := s.do(http.MethodPost, "/add-guest", body)
		s.Equal(http.StatusBadRequest, rec.Code, body)
		s.Equal("invalid request body", s.errorMessage(rec), body)
	}

	rec := s.do(http.MethodPost, "/add-guest", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RoutesSuite) TestAddGuestRejectsOversizedBody() {
	body := `{"name":"` + strings.Repeat("a", httpkit.MaxBodyBytes) + `","lastname":"Petrov","phoneNumber":"+79297169752"}`

	rec := s.do(http.MethodPost, "/add-guest", body)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("invalid request body", s.errorMessage(rec))

	rec = s.do(http.MethodGet, "/get-guest-by-phone?number=79297169752", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RoutesSuite) TestAddGuestValidation() {
	cases := []struct {
		body   string
		status int
	}{
		{body: `{"name":"Ivan","lastname":"Petrov"}`, status: http.StatusBadRequest},
		{body: `{"name":" ","lastname":"Petrov","phoneNumber":"+79297169752"}`, status: http.StatusBadRequest},
		{body: `{"name":"Ivan","lastname":"Petrov","phoneNumber":"9297169752"}`, status: http.StatusBadRequest},
		{body: `{"name":"Ivan","lastname":"Petrov","phoneNumber":"+777"}`, status: http.StatusBadRequest},
		{body: `{"name":"Ivan","lastname":"Petrov","phoneNumber":"+79297169752","email":"nope"}`, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := s.do(http.MethodPost, "/add-guest", tc.body)
		s.Equal(tc.status, rec.Code, tc.body)
		s.NotEmpty(s.errorMessage(rec))
	}
}

func (s *RoutesSuite) TestAddGuestDuplicatePhone() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/add-guest", ivan).Code)

	rec := s.do(http.MethodPost, "/add-guest", `{"name":"Other","lastname":"Guest","phoneNumber":"+7 929 716 97 52"}`)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("guest with this phone number already exists", s.errorMessage(rec))
}

func (s *RoutesSuite) TestEditGuest() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/add-guest", ivan).Code)

	rec := s.do(http.MethodPost, "/edit-guest", `{"currentPhoneNumber":"+79297169752","newName":"Ivan II","newPhoneNumber":"+16502530000"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	list := s.guests(rec)
	s.Require().Len(list, 1)
	s.Equal("Ivan II", list[0].Name)
	s.Equal("+16502530000", list[0].Phone)
	s.Require().NotNil(list[0].Country)
	s.Equal("US", *list[0].Country)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.GuestMutations.WithLabelValues("updated")))

	rec = s.do(http.MethodPost, "/edit-guest", `{"currentPhoneNumber":"+79297169752","newName":"x"}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RoutesSuite) TestLookups() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/add-guest", ivan).Code)

	rec := s.do(http.MethodGet, "/get-guest-by-phone?number=79297169752", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(s.guests(rec), 1)

	rec = s.do(http.MethodGet, "/get-guest-by-email?email=ivan@example.com", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(s.guests(rec), 1)

	rec = s.do(http.MethodGet, "/get-guest-by-id/1", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var single transport.GuestResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &single))
	s.Equal(int64(1), single.ID)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/get-guest-by-phone", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/get-guest-by-email", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/get-guest-by-phone?number=79297169750", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/get-guest-by-id/42", "").Code)

	rec = s.do(http.MethodGet, "/get-guest-by-id/abc", "")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("invalid guest id", s.errorMessage(rec))
}

func (s *RoutesSuite) TestDeletes() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/add-guest", ivan).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/add-guest", `{"name":"Anna","lastname":"Ivanova","phoneNumber":"+79297169750"}`).Code)

	rec := s.do(http.MethodDelete, "/delete-guest-by-phone?number=79297169752", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"ack":"success"}`, rec.Body.String())

	rec = s.do(http.MethodDelete, "/delete-guest/2", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"ack":"success"}`, rec.Body.String())

	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/delete-guest/2", "").Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, "/delete-guest-by-phone?number=79297169752", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodDelete, "/delete-guest-by-phone", "").Code)
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.GuestMutations.WithLabelValues("deleted")))
}

func (s *RoutesSuite) TestIdempotentAddReplaysResponse() {
	first := s.do(http.MethodPost, "/add-guest", ivan, httpkit.IdempotencyHeader, "add-ivan")
	s.Require().Equal(http.StatusOK, first.Code)

	second := s.do(http.MethodPost, "/add-guest", ivan, httpkit.IdempotencyHeader, "add-ivan")
	s.Equal(http.StatusOK, second.Code)
	s.JSONEq(first.Body.String(), second.Body.String())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.GuestMutations.WithLabelValues("created")))

	third := s.do(http.MethodPost, "/add-guest", ivan, httpkit.IdempotencyHeader, "add-ivan-again")
	s.Equal(http.StatusConflict, third.Code)
}

func (s *RoutesSuite) TestUnknownRouteAndMethod() {
	rec := s.do(http.MethodGet, "/nope", "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("route not found", s.errorMessage(rec))

	rec = s.do(http.MethodGet, "/add-guest", "")
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (s *RoutesSuite) TestHealthAndMetrics() {
	rec := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())

	s.do(http.MethodGet, "/", "")
	rec = s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "guest_registry_http_requests_total")
}
