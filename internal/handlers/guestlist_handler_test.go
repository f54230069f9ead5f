package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"guestlist/internal/clock"
	"guestlist/internal/services"
	"guestlist/internal/storage"
	"guestlist/models"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	windowOpens  = time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	windowCloses = time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC)
)

type handlerFixture struct {
	app     *tests.TestApp
	clock   *clock.Manual
	handler *GuestListHandler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	require.NoError(t, storage.EnsureSchema(app))

	log, _ := test.NewNullLogger()
	clk := clock.NewManual(windowOpens.Add(time.Hour))
	reg := storage.NewDefaultRegistry(app, nil)

	counters := make([]services.Counter, 0, len(reg.Stores()))
	for _, s := range reg.Stores() {
		counters = append(counters, s)
	}

	guestList := services.NewGuestListService(services.GuestListDeps{
		Events:   storage.NewEventStore(app),
		Stores:   reg.Stores(),
		Capacity: services.NewCapacityGuard(counters, nil, time.Minute, log),
		Writer:   services.NewEnrollmentWriter(reg.Targets(), log),
		Issuer: services.NewCredentialIssuer(
			services.NewQRRenderer(128),
			services.NewExternalRenderer("https://qr.example.com/", 128),
			log, nil,
		),
		Clock: clk,
		Log:   log,
	})
	checkIn := services.NewCheckInProcessor(reg.Stores(), clk, nil, log, nil)

	return &handlerFixture{
		app:     app,
		clock:   clk,
		handler: NewGuestListHandler(guestList, checkIn, log),
	}
}

func (f *handlerFixture) createEvent(t *testing.T, capacity int, listType string) string {
	t.Helper()

	col, err := f.app.FindCollectionByNameOrId(storage.EventsCollection)
	require.NoError(t, err)

	record := core.NewRecord(col)
	record.Set("name", "Friday Night")
	record.Set("status", models.EventStatusPublish)
	record.Set("list_type", listType)
	record.Set("guest_list_opens_at", windowOpens.Format("2006-01-02 15:04:05.000Z"))
	record.Set("guest_list_closes_at", windowCloses.Format("2006-01-02 15:04:05.000Z"))
	record.Set("guest_list_capacity", capacity)
	require.NoError(t, f.app.Save(record))
	return record.Id
}

func (f *handlerFixture) call(handler func(*core.RequestEvent) error, method, target, body string, pathValues map[string]string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}

	rec := httptest.NewRecorder()
	e := &core.RequestEvent{App: f.app}
	e.Request = req
	e.Response = rec
	return rec, handler(e)
}

func (f *handlerFixture) enroll(eventID, name, phone string) (*httptest.ResponseRecorder, error) {
	body, _ := json.Marshal(models.EnrollRequest{EventID: eventID, Name: name, Phone: phone})
	return f.call(f.handler.Enroll, http.MethodPost, "/api/v1/guest-list/enroll", string(body), nil)
}

func (f *handlerFixture) checkIn(id, eventID string) (*httptest.ResponseRecorder, error) {
	body := `{"id":"` + id + `","event_id":"` + eventID + `","checked_in":true}`
	return f.call(f.handler.CheckIn, http.MethodPost, "/api/v1/guest-list/check-in", body, nil)
}

func apiErrorOf(t *testing.T, err error) *router.ApiError {
	t.Helper()
	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	return apiErr
}

type enrollResponse struct {
	Success       bool              `json:"success"`
	Source        string            `json:"source"`
	Data          models.Enrollment `json:"data"`
	CredentialURL string            `json:"credential_url"`
	Message       string            `json:"message"`
	Warning       string            `json:"warning"`
}

type checkInResponse struct {
	Success          bool              `json:"success"`
	Data             models.Enrollment `json:"data"`
	AlreadyCheckedIn bool              `json:"alreadyCheckedIn"`
	Message          string            `json:"message"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestEnroll_CapacityScenario(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := f.createEvent(t, 2, models.ListTypeGuestList)

	rec, err := f.enroll(eventID, "Ana", "+351911111111")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, err = f.enroll(eventID, "Bruno", "+351922222222")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	_, err = f.enroll(eventID, "Carla", "+351933333333")
	apiErr := apiErrorOf(t, err)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "The guest list is full.", apiErr.Message)

	total, err := f.app.CountRecords(storage.EntriesCollection)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestEnroll_WindowScenario(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := f.createEvent(t, 0, models.ListTypeGuestList)

	f.clock.Set(windowOpens.Add(-time.Minute))
	_, err := f.enroll(eventID, "Ana", "+351911111111")
	apiErr := apiErrorOf(t, err)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "The guest list is not open yet.", apiErr.Message)

	f.clock.Set(windowOpens)
	rec, err := f.enroll(eventID, "Ana", "+351911111111")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	f.clock.Set(windowCloses)
	_, err = f.enroll(eventID, "Bruno", "+351922222222")
	apiErr = apiErrorOf(t, err)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "The guest list is closed.", apiErr.Message)
}

func TestEnroll_DuplicateScenario(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := f.createEvent(t, 0, models.ListTypeGuestList)

	rec, err := f.enroll(eventID, "Ana", "+351911111111")
	require.NoError(t, err)
	first := decode[enrollResponse](t, rec)
	assert.True(t, first.Success)
	assert.Equal(t, storage.TargetPrimary, first.Source)
	assert.True(t, strings.HasPrefix(first.CredentialURL, "data:image/png;base64,"))
	assert.NotEmpty(t, first.Message)
	assert.Empty(t, first.Warning)

	_, err = f.enroll(eventID, "Ana", "+351911111111")
	apiErr := apiErrorOf(t, err)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	total, err := f.app.CountRecords(storage.EntriesCollection)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestEnroll_RequestErrors(t *testing.T) {
	f := newHandlerFixture(t)
	ticketed := f.createEvent(t, 0, models.ListTypeTicketed)

	_, err := f.enroll("", "", "")
	apiErr := apiErrorOf(t, err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "event_id")

	_, err = f.enroll("missing00000000", "Ana", "+351911111111")
	assert.Equal(t, http.StatusNotFound, apiErrorOf(t, err).Status)

	_, err = f.enroll(ticketed, "Ana", "+351911111111")
	assert.Equal(t, http.StatusNotFound, apiErrorOf(t, err).Status)
}

func TestEnroll_LocalizedMessage(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := f.createEvent(t, 1, models.ListTypeGuestList)

	_, err := f.enroll(eventID, "Ana", "+351911111111")
	require.NoError(t, err)

	body, _ := json.Marshal(models.EnrollRequest{EventID: eventID, Name: "Bruno", Phone: "+351922222222"})
	_, err = f.call(f.handler.Enroll, http.MethodPost, "/api/v1/guest-list/enroll?lang=pt", string(body), nil)
	apiErr := apiErrorOf(t, err)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "A lista de convidados está cheia.", apiErr.Message)
}

func TestCheckIn_RepeatScenario(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := f.createEvent(t, 0, models.ListTypeGuestList)

	rec, err := f.enroll(eventID, "Ana", "+351911111111")
	require.NoError(t, err)
	enrolled := decode[enrollResponse](t, rec)

	firstAt := windowOpens.Add(2 * time.Hour)
	f.clock.Set(firstAt)
	rec, err = f.checkIn(enrolled.Data.ID, eventID)
	require.NoError(t, err)
	first := decode[checkInResponse](t, rec)
	assert.False(t, first.AlreadyCheckedIn)
	require.NotNil(t, first.Data.CheckInTime)
	assert.True(t, first.Data.CheckInTime.Equal(firstAt))

	f.clock.Advance(15 * time.Minute)
	rec, err = f.checkIn(enrolled.Data.ID, eventID)
	require.NoError(t, err)
	second := decode[checkInResponse](t, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, second.AlreadyCheckedIn)
	require.NotNil(t, second.Data.CheckInTime)
	assert.True(t, second.Data.CheckInTime.Equal(firstAt))
}

func TestCheckIn_MismatchScenario(t *testing.T) {
	f := newHandlerFixture(t)
	eventA := f.createEvent(t, 0, models.ListTypeGuestList)
	eventB := f.createEvent(t, 0, models.ListTypeGuestList)

	rec, err := f.enroll(eventA, "Ana", "+351911111111")
	require.NoError(t, err)
	enrolled := decode[enrollResponse](t, rec)

	_, err = f.checkIn(enrolled.Data.ID, eventB)
	apiErr := apiErrorOf(t, err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "This guest belongs to another event.", apiErr.Message)

	record, err := f.app.FindRecordById(storage.EntriesCollection, enrolled.Data.ID)
	require.NoError(t, err)
	assert.False(t, record.GetBool("checked_in"))
}

func TestCheckIn_RequestErrors(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.call(f.handler.CheckIn, http.MethodPost, "/api/v1/guest-list/check-in", `{"id":"abc"}`, nil)
	assert.Equal(t, http.StatusBadRequest, apiErrorOf(t, err).Status)

	_, err = f.call(f.handler.CheckIn, http.MethodPost, "/api/v1/guest-list/check-in", `{"id":"abc","event_id":"evt","checked_in":false}`, nil)
	assert.Equal(t, http.StatusBadRequest, apiErrorOf(t, err).Status)

	_, err = f.checkIn("nobody000000000", "evt")
	assert.Equal(t, http.StatusNotFound, apiErrorOf(t, err).Status)
}

func TestList_AndStatus(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := f.createEvent(t, 5, models.ListTypeGuestList)

	_, err := f.enroll(eventID, "Ana", "+351911111111")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.enroll(eventID, "Bruno", "+351922222222")
	require.NoError(t, err)

	rec, err := f.call(f.handler.List, http.MethodGet, "/api/v1/guest-list/"+eventID, "", map[string]string{"eventId": eventID})
	require.NoError(t, err)
	list := decode[struct {
		Enrollments []models.Enrollment `json:"enrollments"`
		Total       int                 `json:"total"`
		EventID     string              `json:"event_id"`
	}](t, rec)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, eventID, list.EventID)
	require.Len(t, list.Enrollments, 2)
	assert.Equal(t, "Bruno", list.Enrollments[0].Name)

	rec, err = f.call(f.handler.Status, http.MethodGet, "/api/v1/guest-list/"+eventID+"/status", "", map[string]string{"eventId": eventID})
	require.NoError(t, err)
	report := decode[services.WindowReport](t, rec)
	assert.Equal(t, models.ListOpen, report.Status)
	assert.Equal(t, 2, report.Count)
	assert.Equal(t, 3, report.Remaining)

	_, err = f.call(f.handler.List, http.MethodGet, "/api/v1/guest-list/", "", map[string]string{"eventId": ""})
	assert.Equal(t, http.StatusBadRequest, apiErrorOf(t, err).Status)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	log, hook := test.NewNullLogger()
	mw := RequestLogger(log)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/guest-list/evt", nil)
	rec := httptest.NewRecorder()
	e := &core.RequestEvent{}
	e.Request = req
	e.Response = rec

	require.NoError(t, mw(e))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, rec.Header().Get(RequestIDHeader), hook.LastEntry().Data["request_id"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/guest-list/evt", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	rec = httptest.NewRecorder()
	e = &core.RequestEvent{}
	e.Request = req
	e.Response = rec

	require.NoError(t, mw(e))
	assert.Equal(t, "upstream-id", rec.Header().Get(RequestIDHeader))
}
