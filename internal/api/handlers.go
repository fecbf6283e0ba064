package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/schedule"
)

func parseUUIDParam(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func createAppointmentHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, ok := parseUUIDParam(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}
		patientID, ok := parseUUIDParam(w, req.PatientID, "patient_id")
		if !ok {
			return
		}

		date, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		at, err := schedule.ParseTimeOfDay(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}

		appt, err := svc.BookAppointment(r.Context(), appointment.BookingRequest{
			DoctorID:  doctorID,
			PatientID: patientID,
			Date:      date,
			Time:      at,
		})
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func availableSlotsHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "doctor_id")
		if !ok {
			return
		}

		date, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			DoctorID: doctorID,
			Date:     date.Format(schedule.DateLayout),
			Slots:    slots,
		})
	}
}

func searchDoctorsHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.SearchDoctors(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toDoctorList(doctors))
	}
}

func rateDoctorHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "doctor_id")
		if !ok {
			return
		}

		var req RateDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctor, err := svc.RateDoctor(r.Context(), doctorID, req.Stars)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toDoctorResponse(doctor))
	}
}

func getAppointmentHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// listAppointmentsHandler serves ?doctor_id=...[&date=...] or ?patient_id=...
func listAppointmentsHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var (
			appts []appointment.Appointment
			err   error
		)

		switch {
		case q.Get("doctor_id") != "":
			doctorID, ok := parseUUIDParam(w, q.Get("doctor_id"), "doctor_id")
			if !ok {
				return
			}
			var date *time.Time
			if raw := q.Get("date"); raw != "" {
				d, perr := schedule.ParseDate(raw)
				if perr != nil {
					writeError(w, http.StatusBadRequest, "invalid_date", perr.Error())
					return
				}
				date = &d
			}
			appts, err = svc.ListDoctorAppointments(r.Context(), doctorID, date)
		case q.Get("patient_id") != "":
			patientID, ok := parseUUIDParam(w, q.Get("patient_id"), "patient_id")
			if !ok {
				return
			}
			appts, err = svc.ListPatientAppointments(r.Context(), patientID)
		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "doctor_id or patient_id is required")
			return
		}

		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

func updateStatusHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, appointment.AppointmentStatus(req.Status))
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func recordEncounterHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		var req EncounterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.RecordEncounter(r.Context(), id, appointment.Encounter{
			Diagnosis:         req.Diagnosis,
			Prescription:      req.Prescription,
			ExaminationResult: req.ExaminationResult,
			Documents:         req.Documents,
		})
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc AppointmentService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		if err := svc.DeleteAppointment(r.Context(), id); err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func sendOTPHandler(svc OTPService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		expiresAt, err := svc.Send(r.Context(), req.Email)
		if err != nil {
			handleOTPError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, OTPSentResponse{Email: req.Email, ExpiresAt: expiresAt})
	}
}

func verifyOTPHandler(svc OTPService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ok, err := svc.Verify(r.Context(), req.Email, req.OTP)
		if err != nil {
			handleOTPError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, OTPVerifiedResponse{Verified: ok})
	}
}
