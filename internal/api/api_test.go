package api

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/identity"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/progression"
	"alcyxob/wellness-portal/internal/repository/memory"
	"alcyxob/wellness-portal/internal/service"
	"alcyxob/wellness-portal/internal/session"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type nopStorage struct{}

func (nopStorage) GeneratePresignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://bucket.test/" + key, nil
}

func (nopStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://bucket.test/" + key, nil
}

func (nopStorage) DeleteObject(context.Context, string) error { return nil }

type testServer struct {
	engine   *gin.Engine
	auth     identity.Service
	accounts *memory.AccountRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, false)
}

func newTestServerWith(t *testing.T, requireConfirmedEmail bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()

	profiles := memory.NewProfileRepository()
	applications := memory.NewPartnerApplicationRepository()
	partnerService := service.NewPartnerService(profiles, applications, log)
	accounts := memory.NewAccountRepository()
	auth := identity.NewLocalService(accounts, identity.NewMemoryRevocationStore(), identity.Config{
		JWTSecret:             "api-test-secret",
		JWTExpiration:         time.Hour,
		RequireConfirmedEmail: requireConfirmedEmail,
	}, log, service.RegistrationHook(partnerService))
	programService := service.NewProgramService(memory.NewProgramRepository(), profiles, applications, memory.NewUploadRepository(), nopStorage{}, service.ProgramServiceConfig{
		PlanName:   "Reset",
		TotalWeeks: 3,
		Clock:      fixedClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)), // Wednesday
	}, log)

	engine := gin.New()
	SetupRoutes(engine, Deps{
		Auth:           auth,
		Profiles:       profiles,
		Applications:   applications,
		ProgramService: programService,
		PartnerService: partnerService,
		LookupTimeout:  time.Second,
		AllowOrigins:   []string{"http://localhost:3000"},
		Log:            log,
	})
	return &testServer{engine: engine, auth: auth, accounts: accounts}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (s *testServer) signUp(t *testing.T, email string, role domain.Role, linkedPartner string) SessionResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", SignUpRequest{
		Email: email, Password: "long-enough", FullName: "Test User", Role: role, LinkedPartnerID: linkedPartner,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign up %s: %d %s", email, rec.Code, rec.Body.String())
	}
	return decode[SessionResponse](t, rec)
}

func (s *testServer) signIn(t *testing.T, email, password string) (*httptest.ResponseRecorder, SessionResponse) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/sign-in", "", SignInRequest{Email: email, Password: password})
	return rec, decode[SessionResponse](t, rec)
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	if err := service.BootstrapAdmin(context.Background(), s.auth, "admin@portal.io", "admin-password", "Admin"); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	rec, resp := s.signIn(t, "admin@portal.io", "admin-password")
	if rec.Code != http.StatusOK || resp.Route != domain.RouteAdmin {
		t.Fatalf("admin sign in: %d %+v", rec.Code, resp)
	}
	return resp.Session.AccessToken
}

func TestCustomerSignUpLandsOnDashboard(t *testing.T) {
	s := newTestServer(t)
	resp := s.signUp(t, "cust@x.io", domain.RoleCustomer, "")
	if resp.Session == nil || resp.Profile == nil || resp.Profile.Role != domain.RoleCustomer {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Route != domain.RouteCustomer || !resp.Navigated {
		t.Errorf("route = %s navigated=%v", resp.Route, resp.Navigated)
	}
}

func TestPartnerLandingFollowsApproval(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)

	resp := s.signUp(t, "clinic@x.io", domain.RolePartner, "")
	if resp.Route != domain.RoutePartnerPending {
		t.Fatalf("new partner route = %s", resp.Route)
	}

	rec := s.do(t, http.MethodPost, "/api/v1/admin/partner-applications/decision", adminToken, DecisionRequest{Email: "Clinic@X.io", Status: domain.ApplicationApproved})
	if rec.Code != http.StatusCreated {
		t.Fatalf("decision: %d %s", rec.Code, rec.Body.String())
	}

	rec, resp = s.signIn(t, "clinic@x.io", "long-enough")
	if rec.Code != http.StatusOK || resp.Route != domain.RoutePartner {
		t.Errorf("approved partner: %d route=%s", rec.Code, resp.Route)
	}
}

func TestSignUpRejectsUnknownPartner(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", SignUpRequest{
		Email: "cust@x.io", Password: "long-enough", FullName: "C", Role: domain.RoleCustomer, LinkedPartnerID: "650000000000000000000000",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	// The address is still free.
	s.signUp(t, "cust@x.io", domain.RoleCustomer, "")

	rec = s.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", SignUpRequest{Email: "admin2@x.io", Password: "long-enough", FullName: "A", Role: domain.RoleAdmin})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("admin self sign-up: %d", rec.Code)
	}
	rec = s.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", SignUpRequest{Email: "CUST@x.io", Password: "long-enough", FullName: "C", Role: domain.RoleCustomer})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate sign-up: %d", rec.Code)
	}
}

func TestEmailConfirmationFlow(t *testing.T) {
	s := newTestServerWith(t, true)
	resp := s.signUp(t, "cust@x.io", domain.RoleCustomer, "")
	if resp.Session != nil || resp.Navigated || resp.Account.EmailConfirmed {
		t.Fatalf("unconfirmed sign-up = %+v", resp)
	}
	if len(resp.Notices) != 1 || resp.Notices[0].Message != session.MsgSignUpSucceeded {
		t.Errorf("notices = %+v", resp.Notices)
	}

	rec, signIn := s.signIn(t, "cust@x.io", "long-enough")
	if rec.Code != http.StatusForbidden || len(signIn.Notices) == 0 || signIn.Notices[0].Message != session.MsgEmailNotConfirmed {
		t.Fatalf("unconfirmed sign-in: %d %+v", rec.Code, signIn)
	}

	account, err := s.accounts.GetByEmail(context.Background(), "cust@x.io")
	if err != nil {
		t.Fatal(err)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/auth/confirm", "", ConfirmRequest{Token: "nope"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad token: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/auth/confirm", "", ConfirmRequest{Token: account.ConfirmationToken}); rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}

	rec, signIn = s.signIn(t, "cust@x.io", "long-enough")
	if rec.Code != http.StatusOK || signIn.Route != domain.RouteCustomer {
		t.Errorf("confirmed sign-in: %d route=%s", rec.Code, signIn.Route)
	}
}

func TestSignInWithWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "cust@x.io", domain.RoleCustomer, "")
	rec, resp := s.signIn(t, "cust@x.io", "wrong-password")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(resp.Notices) == 0 || resp.Notices[0].Message != session.MsgInvalidCredentials {
		t.Errorf("notices = %+v", resp.Notices)
	}
	if resp.Session != nil || resp.Navigated {
		t.Errorf("failed sign-in leaked state: %+v", resp)
	}
}

func TestSessionRestoreDoesNotNavigate(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "cust@x.io", domain.RoleCustomer, "").Session.AccessToken

	rec := s.do(t, http.MethodGet, "/api/v1/session", token, nil, HeaderLocation, "/dashboard/week/2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[SessionResponse](t, rec)
	if resp.Navigated || resp.Route != "/dashboard/week/2" || resp.Profile == nil {
		t.Errorf("restore = %+v", resp)
	}

	if rec := s.do(t, http.MethodGet, "/api/v1/session", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", rec.Code)
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "cust@x.io", domain.RoleCustomer, "").Session.AccessToken

	if rec := s.do(t, http.MethodGet, "/api/v1/program", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("program before sign-out: %d", rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/auth/sign-out", token, nil, HeaderLocation, string(domain.RouteCustomer))
	if rec.Code != http.StatusOK {
		t.Fatalf("sign out: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[SessionResponse](t, rec)
	if resp.Route != domain.RouteHome || !resp.Navigated || resp.Session != nil || resp.Profile != nil {
		t.Errorf("sign out = %+v", resp)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/program", token, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("revoked token status = %d", rec.Code)
	}
}

func TestRefreshKeepsSessionUsable(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "cust@x.io", domain.RoleCustomer, "").Session.AccessToken
	rec := s.do(t, http.MethodPost, "/api/v1/auth/refresh", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[SessionResponse](t, rec)
	if resp.Session == nil || resp.Navigated {
		t.Fatalf("refresh = %+v", resp)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/program", resp.Session.AccessToken, nil); rec.Code != http.StatusOK {
		t.Errorf("refreshed token status = %d", rec.Code)
	}
}

func TestProgramEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "cust@x.io", domain.RoleCustomer, "").Session.AccessToken

	rec := s.do(t, http.MethodGet, "/api/v1/program", token, nil)
	program := decode[progression.ProgramView](t, rec)
	if program.TotalWeeks != 3 || program.Weeks[0].Status != domain.WeekCurrent {
		t.Fatalf("program = %+v", program)
	}

	if rec := s.do(t, http.MethodPost, "/api/v1/program/weeks/1/complete", token, nil); rec.Code != http.StatusConflict {
		t.Errorf("complete without requirements: %d", rec.Code)
	}

	meal := domain.MealLog{Day: 2, Date: "2026-10-13", MealType: "dinner", Description: "fish"}
	rec = s.do(t, http.MethodPost, "/api/v1/program/weeks/1/meal-logs", token, meal)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add meal: %d %s", rec.Code, rec.Body.String())
	}
	added := decode[domain.MealLog](t, rec)

	meal.Day = 6 // Saturday is not open on a Wednesday
	if rec := s.do(t, http.MethodPost, "/api/v1/program/weeks/1/meal-logs", token, meal); rec.Code != http.StatusForbidden {
		t.Errorf("future day: %d", rec.Code)
	}
	meal.Day, meal.MealType = 1, "brunch"
	if rec := s.do(t, http.MethodPost, "/api/v1/program/weeks/1/meal-logs", token, meal); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid meal type: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/program/weeks/2/weight-logs", token, domain.WeightLog{Day: 1, Date: "d", Weight: 80}); rec.Code != http.StatusForbidden {
		t.Errorf("locked week: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/program/weeks/abc", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad week param: %d", rec.Code)
	}

	if rec := s.do(t, http.MethodPost, "/api/v1/program/weeks/1/videos/w1-intro/watched", token, nil); rec.Code != http.StatusOK {
		t.Errorf("watch open video: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/program/weeks/1/videos/w1-review/watched", token, nil); rec.Code != http.StatusForbidden {
		t.Errorf("watch day-5 video on Wednesday: %d", rec.Code)
	}

	if rec := s.do(t, http.MethodDelete, "/api/v1/program/weeks/1/meal-logs/"+added.ID, token, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete meal: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPatch, "/api/v1/program/weeks/1/meal-logs/"+added.ID, token, domain.MealLogUpdate{}); rec.Code != http.StatusNotFound {
		t.Errorf("edit deleted meal: %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/program/weeks/1/photos/upload-url", token, PhotoUploadRequest{ContentType: "image/png"})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload url: %d %s", rec.Code, rec.Body.String())
	}
	upload := decode[service.UploadURLResponse](t, rec)
	if rec := s.do(t, http.MethodGet, "/api/v1/program/photos/download-url?key="+upload.ObjectKey, token, nil); rec.Code != http.StatusOK {
		t.Errorf("download url: %d", rec.Code)
	}
}

func (s *testServer) approvePartner(t *testing.T, adminToken, email string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/admin/partner-applications/decision", adminToken, DecisionRequest{Email: email, Status: domain.ApplicationApproved})
	if rec.Code != http.StatusCreated {
		t.Fatalf("approve partner %s: %d %s", email, rec.Code, rec.Body.String())
	}
}

func TestLinkedPartnerNeedsApproval(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	partner := s.signUp(t, "clinic@x.io", domain.RolePartner, "")
	customer := s.signUp(t, "cust@x.io", domain.RoleCustomer, partner.Profile.ID.Hex())
	base := "/api/v1/customers/" + customer.Profile.ID.Hex()
	token := partner.Session.AccessToken
	booking := BookAppointmentRequest{Title: "Check-in", Date: "2026-10-20", Time: "10:00"}

	if rec := s.do(t, http.MethodGet, base+"/program", token, nil); rec.Code != http.StatusForbidden {
		t.Errorf("pending partner view: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, base+"/appointments", token, booking); rec.Code != http.StatusForbidden {
		t.Errorf("pending partner booking: %d %s", rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, "/api/v1/admin/partner-applications/decision", adminToken, DecisionRequest{Email: "clinic@x.io", Status: domain.ApplicationRejected})
	if rec.Code != http.StatusCreated {
		t.Fatalf("reject: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodGet, base+"/program", token, nil); rec.Code != http.StatusForbidden {
		t.Errorf("rejected partner view: %d", rec.Code)
	}

	s.approvePartner(t, adminToken, "clinic@x.io")
	if rec := s.do(t, http.MethodGet, base+"/program", token, nil); rec.Code != http.StatusOK {
		t.Errorf("approved partner view: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, base+"/appointments", token, booking); rec.Code != http.StatusCreated {
		t.Errorf("approved partner booking: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	customer := s.signUp(t, "cust@x.io", domain.RoleCustomer, "").Session.AccessToken
	partner := s.signUp(t, "clinic@x.io", domain.RolePartner, "").Session.AccessToken

	if rec := s.do(t, http.MethodGet, "/api/v1/program", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/admin/partner-applications/decision", customer, DecisionRequest{Email: "clinic@x.io", Status: domain.ApplicationApproved}); rec.Code != http.StatusForbidden {
		t.Errorf("customer on admin route: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/program", partner, nil); rec.Code != http.StatusForbidden {
		t.Errorf("partner on customer route: %d", rec.Code)
	}
}

func TestAppointmentRescheduleFlow(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	partnerResp := s.signUp(t, "clinic@x.io", domain.RolePartner, "")
	custResp := s.signUp(t, "cust@x.io", domain.RoleCustomer, partnerResp.Profile.ID.Hex())
	customerID := custResp.Profile.ID.Hex()
	base := "/api/v1/customers/" + customerID
	s.approvePartner(t, adminToken, "clinic@x.io")

	rec := s.do(t, http.MethodPost, base+"/appointments", adminToken, BookAppointmentRequest{Title: "Check-in", Date: "2026-10-20", Time: "10:00"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rec.Code, rec.Body.String())
	}
	appt := decode[domain.Appointment](t, rec)

	rec = s.do(t, http.MethodPost, "/api/v1/appointments/"+appt.ID+"/reschedule", custResp.Session.AccessToken, RescheduleRequest{Date: "2026-10-21", Time: "16:00", Reason: "work"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, base+"/appointments/"+appt.ID+"/approve", partnerResp.Session.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body.String())
	}
	approved := decode[domain.Appointment](t, rec)
	if approved.Date != "2026-10-21" || approved.Status != domain.AppointmentRescheduled {
		t.Errorf("approved = %+v", approved)
	}
	if rec := s.do(t, http.MethodPost, base+"/appointments/"+appt.ID+"/approve", partnerResp.Session.AccessToken, nil); rec.Code != http.StatusConflict {
		t.Errorf("second approval: %d", rec.Code)
	}
}
