package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/otp"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

var statusByKind = map[appointment.Kind]int{
	appointment.KindNotFound:          http.StatusNotFound,
	appointment.KindUnavailable:       http.StatusUnprocessableEntity,
	appointment.KindConflict:          http.StatusConflict,
	appointment.KindInvalidTransition: http.StatusConflict,
	appointment.KindValidation:        http.StatusBadRequest,
	appointment.KindInternal:          http.StatusInternalServerError,
}

// errorCode names the most specific failure so clients can tell a missing
// doctor from a missing patient.
func errorCode(err error) string {
	switch {
	case errors.Is(err, appointment.ErrDoctorNotFound):
		return "doctor_not_found"
	case errors.Is(err, appointment.ErrPatientNotFound):
		return "patient_not_found"
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return "appointment_not_found"
	case errors.Is(err, appointment.ErrDayUnavailable):
		return "day_unavailable"
	case errors.Is(err, appointment.ErrTimeUnavailable):
		return "time_unavailable"
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		return "slot_being_booked"
	case errors.Is(err, appointment.ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, appointment.ErrSearchQueryRequired):
		return "search_query_required"
	case errors.Is(err, appointment.ErrInvalidRating):
		return "invalid_rating"
	}
	return appointment.KindOf(err).String()
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	kind := appointment.KindOf(err)
	resp := ErrorResponse{
		Error:   errorCode(err),
		Details: err.Error(),
	}
	if kind == appointment.KindInternal {
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("request failed")
		resp.Details = "internal server error"
	}

	var dayErr *appointment.DayUnavailableError
	if errors.As(err, &dayErr) {
		resp.AvailableDays = dayErr.AvailableDays
	}

	writeJSON(w, statusByKind[kind], resp)
}

func handleOTPError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, otp.ErrEmailRequired), errors.Is(err, otp.ErrCodeRequired):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, otp.ErrOTPNotFound):
		writeError(w, http.StatusNotFound, "otp_not_found", err.Error())
	case errors.Is(err, otp.ErrTooManyTries):
		writeError(w, http.StatusTooManyRequests, "otp_attempts_exceeded", err.Error())
	default:
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("otp request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
