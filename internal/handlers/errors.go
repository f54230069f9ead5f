package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"guestlist/internal/i18n"
	"guestlist/internal/status"
	"guestlist/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/message"
)

// windowMessage maps a non-open list status to its user message key.
func windowMessage(s models.ListStatus) string {
	switch s {
	case models.ListNotYetOpen:
		return i18n.MsgNotYetOpen
	case models.ListClosed:
		return i18n.MsgClosed
	case models.ListInactive:
		return i18n.MsgInactive
	case models.ListNotFound:
		return i18n.MsgListUnavailable
	default:
		return i18n.MsgMisconfigured
	}
}

// apiError turns a service error into a localized pocketbase API error.
// Anything unrecognized is logged and reported as a generic failure.
func apiError(e *core.RequestEvent, log logrus.FieldLogger, err error) error {
	p := printer(e)

	var missing *status.MissingFieldsError
	var window *status.WindowError

	switch {
	case errors.As(err, &missing):
		return apis.NewBadRequestError(p.Sprintf(i18n.MsgMissingField, strings.Join(missing.Fields, ", ")), nil)
	case errors.Is(err, status.ErrInvalidField):
		return apis.NewBadRequestError(p.Sprintf(i18n.MsgInvalidField), nil)
	case errors.Is(err, status.ErrEventMismatch):
		return apis.NewBadRequestError(p.Sprintf(i18n.MsgEventMismatch), nil)
	case errors.Is(err, status.ErrCheckInRevert):
		return apis.NewBadRequestError(p.Sprintf(i18n.MsgCheckInRevert), nil)
	case errors.Is(err, status.ErrEventNotFound):
		return apis.NewNotFoundError(p.Sprintf(i18n.MsgEventNotFound), nil)
	case errors.Is(err, status.ErrGuestListUnavailable):
		return apis.NewNotFoundError(p.Sprintf(i18n.MsgListUnavailable), nil)
	case errors.Is(err, status.ErrEnrollmentNotFound):
		return apis.NewNotFoundError(p.Sprintf(i18n.MsgEnrollmentNotFound), nil)
	case errors.As(err, &window):
		return apis.NewForbiddenError(p.Sprintf(windowMessage(window.Status)), nil)
	case errors.Is(err, status.ErrCapacityReached):
		return apis.NewApiError(http.StatusConflict, p.Sprintf(i18n.MsgCapacityFull), nil)
	case errors.Is(err, status.ErrDuplicateEnrollment):
		return apis.NewApiError(http.StatusConflict, p.Sprintf(i18n.MsgDuplicate), nil)
	case errors.Is(err, status.ErrCredentialIssuance):
		return apis.NewInternalServerError(p.Sprintf(i18n.MsgCredentialFailure), nil)
	}

	entry := log.WithError(err).WithField("path", e.Request.URL.Path)
	if errors.Is(err, context.Canceled) {
		entry.Info("request abandoned by client")
	} else {
		entry.Error("request failed")
	}
	return apis.NewInternalServerError(p.Sprintf(i18n.MsgGenericFailure), nil)
}

func printer(e *core.RequestEvent) *message.Printer {
	return i18n.Printer(e.Request)
}
