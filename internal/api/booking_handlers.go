package api

import (
	"net/http"
	"strings"
	"time"

	"assetbook/internal/domain"
	"assetbook/internal/lifecycle"
	"assetbook/internal/models"
	"assetbook/internal/service"

	"github.com/gorilla/mux"
)

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var filter models.BookingFilter
	var err error
	for _, st := range splitCSV(r.URL.Query().Get("status")) {
		filter.Statuses = append(filter.Statuses, models.BookingStatus(st))
	}
	if filter.AssetID, err = queryInt(r, "asset"); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.From, err = queryTime(r, "from"); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	filter.Limit, filter.Offset = int(limit), int(offset)

	bookings, err := s.svc.Bookings.List(r.Context(), actor, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, bookings)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())

	var req service.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.Create(r.Context(), actor, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.Get(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req service.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.Update(r.Context(), actor, id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// handleTransition serves accept, reject, cancel, cancel_approve, receive
// and return_asset. Evidence comes as a multipart "image" part; a cancel
// reason may come as JSON or as a form field.
func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r.Context())
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	action, err := lifecycle.ParseAction(mux.Vars(r)["action"])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	upload, done, err := s.readImage(w, r)
	defer done()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	reason := ""
	switch {
	case r.MultipartForm != nil:
		reason = r.FormValue("reason")
	case strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") && r.ContentLength != 0:
		var body struct {
			Reason string `json:"reason"`
		}
		if err := decodeJSON(r, &body); err != nil {
			s.fail(w, r, err)
			return
		}
		reason = body.Reason
	}

	booking, err := s.svc.Bookings.Transition(r.Context(), actor, id, action, reason, upload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	start, err := queryTime(r, "start")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	end, err := queryTime(r, "end")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	exclude, err := queryInt(r, "exclude")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.svc.Assets.Get(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	free, err := s.svc.Bookings.CheckAvailability(r.Context(), id, start, end, exclude)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset":          id,
		"start_datetime": start,
		"end_datetime":   end,
		"available":      free,
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	fromRaw := strings.TrimSpace(r.URL.Query().Get("from"))
	toRaw := strings.TrimSpace(r.URL.Query().Get("to"))
	if fromRaw == "" || toRaw == "" {
		s.fail(w, r, domain.Validation("from and to are required (YYYY-MM-DD)"))
		return
	}
	from, err := time.Parse(dateLayout, fromRaw)
	if err != nil {
		s.fail(w, r, domain.Validation("invalid from; expected YYYY-MM-DD"))
		return
	}
	to, err := time.Parse(dateLayout, toRaw)
	if err != nil {
		s.fail(w, r, domain.Validation("invalid to; expected YYYY-MM-DD"))
		return
	}

	// до конца дня
	buf, filename, err := s.svc.Export.ExportBookings(r.Context(), from, to.Add(24*time.Hour-time.Second))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
