package handlers

import (
	"net/http"

	"guestlist/internal/i18n"
	"guestlist/internal/services"
	"guestlist/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/sirupsen/logrus"
)

type GuestListHandler struct {
	guestList *services.GuestListService
	checkIn   *services.CheckInProcessor
	log       logrus.FieldLogger
}

func NewGuestListHandler(guestList *services.GuestListService, checkIn *services.CheckInProcessor, log logrus.FieldLogger) *GuestListHandler {
	return &GuestListHandler{
		guestList: guestList,
		checkIn:   checkIn,
		log:       log,
	}
}

// Enroll - add a guest to an event's list and return their entry credential
func (h *GuestListHandler) Enroll(e *core.RequestEvent) error {
	p := printer(e)

	var req models.EnrollRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError(p.Sprintf(i18n.MsgInvalidField), err)
	}

	res, err := h.guestList.Enroll(e.Request.Context(), req)
	if err != nil {
		return apiError(e, h.log, err)
	}

	body := map[string]any{
		"success":         true,
		"source":          res.Source,
		"data":            res.Enrollment,
		"credential_url":  res.Credential.URL,
		"credential_kind": res.Credential.Kind,
	}

	if res.Outcome == services.OutcomeDegraded {
		body["warning"] = p.Sprintf(i18n.MsgDegraded)
		return e.JSON(http.StatusOK, body)
	}

	body["message"] = p.Sprintf(i18n.MsgEnrolled)
	return e.JSON(http.StatusCreated, body)
}

// CheckIn - mark a guest as arrived, repeat scans are reported not rejected
func (h *GuestListHandler) CheckIn(e *core.RequestEvent) error {
	p := printer(e)

	var req models.CheckInRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError(p.Sprintf(i18n.MsgInvalidField), err)
	}

	res, err := h.checkIn.CheckIn(e.Request.Context(), req)
	if err != nil {
		return apiError(e, h.log, err)
	}

	msg := i18n.MsgCheckedIn
	if res.AlreadyCheckedIn {
		msg = i18n.MsgAlreadyCheckedIn
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success":          true,
		"data":             res.Enrollment,
		"alreadyCheckedIn": res.AlreadyCheckedIn,
		"message":          p.Sprintf(msg),
	})
}

// List - every enrollment of an event, newest first
func (h *GuestListHandler) List(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	list, err := h.guestList.List(e.Request.Context(), eventID)
	if err != nil {
		return apiError(e, h.log, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"enrollments": list,
		"total":       len(list),
		"event_id":    eventID,
	})
}

// Status - current admission window and capacity usage
func (h *GuestListHandler) Status(e *core.RequestEvent) error {
	report, err := h.guestList.Window(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, report)
}
