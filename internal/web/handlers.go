package web

import (
	"fmt"
	"net/http"
	"time"

	"questcal/internal/ics"
	"questcal/internal/model"
	"questcal/internal/normalize"
	"questcal/internal/schedule"
	"questcal/internal/validate"
	"questcal/internal/verification"
)

type normalizeRequest struct {
	Slot     normalize.Slot `json:"slot"`
	Value    any            `json:"value"`
	Timezone string         `json:"timezone"`
	Draft    map[string]any `json:"draft"`
}

// handleNormalize coerces either one slot value or a whole draft.
//
// POST /api/normalize
//
//	{"slot": "weekdays", "value": "월수금", "timezone": "Asia/Seoul"}
//	{"draft": {...}}
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Draft != nil {
		res := normalize.Draft(req.Draft, normalize.Defaults{
			Timezone:           s.cfg.Timezone,
			WeekBoundary:       s.cfg.WeekBoundary(),
			DefaultDurationMin: s.cfg.DefaultDurationMin,
			Zones:              s.zones,
		})
		writeJSON(w, http.StatusOK, res)
		return
	}

	if req.Slot == "" {
		writeError(w, http.StatusBadRequest, "slot or draft is required")
		return
	}
	name := req.Timezone
	if name == "" {
		name = s.cfg.Timezone
	}
	loc, err := s.zones.Location(name)
	if err != nil {
		writeDomainError(w, "normalize", fmt.Errorf("timezone: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, normalize.Normalize(req.Slot, req.Value, loc))
}

type specRequest struct {
	Spec       model.GoalSpec `json:"spec"`
	Generation *uint64        `json:"generation,omitempty"`
}

type occurrencesResponse struct {
	Generation  *uint64                  `json:"generation,omitempty"`
	Occurrences []model.Occurrence       `json:"occurrences"`
	Check       schedule.OccurrenceCheck `json:"check"`
}

func (s *Server) buildOccurrences(w http.ResponseWriter, r *http.Request, route string) (specRequest, []model.Occurrence, bool) {
	var req specRequest
	if !decodeJSON(w, r, &req) {
		return req, nil, false
	}
	occs, err := s.builder.Build(req.Spec)
	if err != nil {
		writeDomainError(w, route, err)
		return req, nil, false
	}
	s.metrics.occurrences.Observe(float64(len(occs)))
	return req, occs, true
}

// handleOccurrences expands a spec and reports the soft display check.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	req, occs, ok := s.buildOccurrences(w, r, "occurrences")
	if !ok {
		return
	}
	if occs == nil {
		occs = []model.Occurrence{}
	}
	writeJSON(w, http.StatusOK, occurrencesResponse{
		Generation:  req.Generation,
		Occurrences: occs,
		Check:       schedule.ValidateOccurrences(occs),
	})
}

// handleOccurrencesICS exports the expanded spec as a calendar file.
// Lists that fail the display check or exceed max_occurrences are refused.
func (s *Server) handleOccurrencesICS(w http.ResponseWriter, r *http.Request) {
	_, occs, ok := s.buildOccurrences(w, r, "occurrences_ics")
	if !ok {
		return
	}
	check := schedule.ValidateOccurrences(occs)
	if len(occs) > s.cfg.MaxOccurrences && len(occs) <= schedule.MaxOccurrences {
		check.Valid = false
		check.Errors = append(check.Errors, schedule.ErrTooManyOccurrences)
	}
	if !check.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, check)
		return
	}

	body := ics.ExportOccurrences(occs, ics.ExportOptions{Summary: r.URL.Query().Get("summary")})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="questcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handlePreview returns display rows; it never fails on a partial spec.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req specRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items := s.builder.PreviewOccurrences(req.Spec)
	if items == nil {
		items = []schedule.PreviewItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type weeksRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	// Boundary is a weekday name or number; absent anchors on start.
	Boundary any `json:"boundary,omitempty"`
}

type weeksResponse struct {
	Weeks []model.WeekBlock `json:"weeks"`
	Count int               `json:"count"`
}

func (s *Server) handleWeeks(w http.ResponseWriter, r *http.Request) {
	var req weeksRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := model.ParseDate("start", req.Start)
	if err != nil {
		writeDomainError(w, "weeks", err)
		return
	}
	end, err := model.ParseDate("end", req.End)
	if err != nil {
		writeDomainError(w, "weeks", err)
		return
	}

	var boundary *time.Weekday
	if req.Boundary != nil {
		wd, ok := normalize.Weekday(req.Boundary)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("boundary: unknown weekday %v", req.Boundary))
			return
		}
		boundary = &wd
	}

	weeks, err := schedule.SliceCompleteWeeks(start, end, boundary)
	if err != nil {
		writeDomainError(w, "weeks", err)
		return
	}
	if weeks == nil {
		weeks = []model.WeekBlock{}
	}
	writeJSON(w, http.StatusOK, weeksResponse{Weeks: weeks, Count: len(weeks)})
}

type validateRequest struct {
	Events     []model.CalendarEvent `json:"events"`
	Spec       model.GoalSpec        `json:"spec"`
	Start      string                `json:"start"`
	End        string                `json:"end"`
	GoalType   model.GoalType        `json:"goalType,omitempty"`
	Generation *uint64               `json:"generation,omitempty"`
}

type validateResponse struct {
	Generation *uint64 `json:"generation,omitempty"`
	model.ValidationResult
}

// handleValidate reconciles calendar entries with a goal. start and end
// default to the goal's period. generation is echoed untouched so the
// caller can drop stale answers.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Start == "" {
		req.Start = req.Spec.Period.Start.String()
	}
	if req.End == "" {
		req.End = req.Spec.Period.End.String()
	}

	res, err := validate.ValidateGoalByCalendarEvents(req.Events, req.Spec, req.Start, req.End, req.GoalType)
	if err != nil {
		writeDomainError(w, "validate", err)
		return
	}
	s.metrics.observeValidation(res.IsCompatible)
	writeJSON(w, http.StatusOK, validateResponse{Generation: req.Generation, ValidationResult: res})
}

type planRequest struct {
	GoalType model.GoalType       `json:"goalType"`
	Context  verification.Context `json:"context"`
}

func (s *Server) handleVerificationPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, verification.ComputeVerificationPlan(req.GoalType, req.Context))
}

type signalsRequest struct {
	GoalType model.GoalType `json:"goalType"`
	Signals  []model.Signal `json:"signals"`
}

func (s *Server) handleVerificationValidate(w http.ResponseWriter, r *http.Request) {
	var req signalsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, verification.ValidateVerificationSignals(req.GoalType, req.Signals))
}

// handleWatch returns the watcher's latest accepted result.
func (s *Server) handleWatch(w http.ResponseWriter, _ *http.Request) {
	if s.watcher == nil {
		writeError(w, http.StatusNotFound, "no goal is being watched")
		return
	}
	res, ok := s.watcher.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no result yet")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
