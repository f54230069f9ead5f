// Package i18n holds the user-facing guest list messages and resolves the
// language of a request.
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	MsgCapacityFull       = "guestlist.capacity_full"
	MsgNotYetOpen         = "guestlist.not_yet_open"
	MsgClosed             = "guestlist.closed"
	MsgInactive           = "guestlist.inactive"
	MsgMisconfigured      = "guestlist.misconfigured"
	MsgDuplicate          = "guestlist.duplicate"
	MsgGenericFailure     = "guestlist.generic_failure"
	MsgMissingField       = "guestlist.missing_field"
	MsgInvalidField       = "guestlist.invalid_field"
	MsgEventNotFound      = "guestlist.event_not_found"
	MsgListUnavailable    = "guestlist.list_unavailable"
	MsgEnrollmentNotFound = "guestlist.enrollment_not_found"
	MsgEventMismatch      = "guestlist.event_mismatch"
	MsgCheckInRevert      = "guestlist.checkin_revert"
	MsgCredentialFailure  = "guestlist.credential_failure"
	MsgEnrolled           = "guestlist.enrolled"
	MsgDegraded           = "guestlist.degraded"
	MsgCheckedIn          = "guestlist.checked_in"
	MsgAlreadyCheckedIn   = "guestlist.already_checked_in"
	MsgTooManyRequests    = "guestlist.too_many_requests"
	MsgAccessDenied       = "guestlist.access_denied"
)

var supported = []language.Tag{language.English, language.Portuguese}

var matcher = language.NewMatcher(supported)

var fallback = language.English

func init() {
	registerEnglish(language.English)
	registerPortuguese(language.Portuguese)
}

func registerEnglish(lang language.Tag) {
	message.SetString(lang, MsgCapacityFull, "The guest list is full.")
	message.SetString(lang, MsgNotYetOpen, "The guest list is not open yet.")
	message.SetString(lang, MsgClosed, "The guest list is closed.")
	message.SetString(lang, MsgInactive, "This event is not active.")
	message.SetString(lang, MsgMisconfigured, "The guest list window is not configured.")
	message.SetString(lang, MsgDuplicate, "This phone number is already on the guest list.")
	message.SetString(lang, MsgGenericFailure, "Something went wrong. Please try again.")
	message.SetString(lang, MsgMissingField, "Missing required fields: %s.")
	message.SetString(lang, MsgInvalidField, "Some fields are invalid.")
	message.SetString(lang, MsgEventNotFound, "Event not found.")
	message.SetString(lang, MsgListUnavailable, "Guest list not available for this event.")
	message.SetString(lang, MsgEnrollmentNotFound, "Guest not found.")
	message.SetString(lang, MsgEventMismatch, "This guest belongs to another event.")
	message.SetString(lang, MsgCheckInRevert, "A check-in cannot be undone.")
	message.SetString(lang, MsgCredentialFailure, "Could not generate the entry QR code.")
	message.SetString(lang, MsgEnrolled, "You are on the guest list.")
	message.SetString(lang, MsgDegraded, "Your entry was accepted but could not be saved yet.")
	message.SetString(lang, MsgCheckedIn, "Guest checked in.")
	message.SetString(lang, MsgAlreadyCheckedIn, "Guest was already checked in.")
	message.SetString(lang, MsgTooManyRequests, "Too many requests. Please try again later.")
	message.SetString(lang, MsgAccessDenied, "Access denied.")
}

func registerPortuguese(lang language.Tag) {
	message.SetString(lang, MsgCapacityFull, "A lista de convidados está cheia.")
	message.SetString(lang, MsgNotYetOpen, "A lista de convidados ainda não abriu.")
	message.SetString(lang, MsgClosed, "A lista de convidados está encerrada.")
	message.SetString(lang, MsgInactive, "Este evento não está ativo.")
	message.SetString(lang, MsgMisconfigured, "O horário da lista de convidados não está configurado.")
	message.SetString(lang, MsgDuplicate, "Este telefone já está na lista de convidados.")
	message.SetString(lang, MsgGenericFailure, "Algo correu mal. Tente novamente.")
	message.SetString(lang, MsgMissingField, "Campos obrigatórios em falta: %s.")
	message.SetString(lang, MsgInvalidField, "Alguns campos são inválidos.")
	message.SetString(lang, MsgEventNotFound, "Evento não encontrado.")
	message.SetString(lang, MsgListUnavailable, "Lista de convidados indisponível para este evento.")
	message.SetString(lang, MsgEnrollmentNotFound, "Convidado não encontrado.")
	message.SetString(lang, MsgEventMismatch, "Este convidado pertence a outro evento.")
	message.SetString(lang, MsgCheckInRevert, "Um check-in não pode ser desfeito.")
	message.SetString(lang, MsgCredentialFailure, "Não foi possível gerar o QR code de entrada.")
	message.SetString(lang, MsgEnrolled, "Está na lista de convidados.")
	message.SetString(lang, MsgDegraded, "A sua entrada foi aceite mas ainda não foi guardada.")
	message.SetString(lang, MsgCheckedIn, "Check-in efetuado.")
	message.SetString(lang, MsgAlreadyCheckedIn, "O convidado já tinha feito check-in.")
	message.SetString(lang, MsgTooManyRequests, "Demasiados pedidos. Tente mais tarde.")
	message.SetString(lang, MsgAccessDenied, "Acesso negado.")
}

// SetDefault changes the language used when a request expresses no usable
// preference. Unknown values are ignored.
func SetDefault(value string) {
	if tag, ok := ParseTag(value); ok {
		fallback = tag
	}
}

func Default() language.Tag {
	return fallback
}

// ParseTag maps value to the closest supported language.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Und, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, false
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.Und, false
	}
	return supported[idx], true
}

// ResolveTag picks the language from ?lang= first, then Accept-Language.
func ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return fallback
	}
	if tag, ok := ParseTag(r.URL.Query().Get("lang")); ok {
		return tag
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			if _, idx, conf := matcher.Match(tags...); conf != language.No {
				return supported[idx]
			}
		}
	}
	return fallback
}

func Printer(r *http.Request) *message.Printer {
	return message.NewPrinter(ResolveTag(r))
}
