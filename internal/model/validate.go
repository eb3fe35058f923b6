package model

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		// Registration only fails on an empty tag or nil func.
		_ = validate.RegisterValidation("countop", func(fl validator.FieldLevel) bool {
			switch CountOperator(fl.Field().String()) {
			case OpAtLeast, OpExactly, OpAtMost:
				return true
			}
			return false
		})
		_ = validate.RegisterValidation("goaltype", func(fl validator.FieldLevel) bool {
			return GoalType(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("signal", func(fl validator.FieldLevel) bool {
			_, ok := ParseSignal(fl.Field().String())
			return ok
		})
	})
	return validate
}

// Validate checks struct constraints and cross-field invariants of s.
// Every problem is reported, joined into one error wrapping ErrInvalidSpec.
func (s *GoalSpec) Validate() error {
	var errs []error

	if err := structValidator().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q", trimNamespace(fe.Namespace()), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if err := CheckRange(s.Period.Start, s.Period.End); err != nil {
		errs = append(errs, fmt.Errorf("period.%w", err))
	}
	for i, r := range s.Schedule.Rules {
		if !r.Time.Valid() {
			errs = append(errs, fmt.Errorf("schedule.rules[%d].time: out of range", i))
		}
	}
	for i, o := range s.Schedule.Overrides {
		if err := o.Check(); err != nil {
			errs = append(errs, fmt.Errorf("schedule.overrides[%d]: %w", i, err))
		}
	}
	for wd, windows := range s.TimeRules {
		if wd < time.Sunday || wd > time.Saturday {
			errs = append(errs, fmt.Errorf("timeRules[%d]: weekday out of range", wd))
		}
		for j, w := range windows {
			if !w.Start.Valid() || !w.End.Valid() {
				errs = append(errs, fmt.Errorf("timeRules[%d][%d]: out of range", wd, j))
			}
		}
	}
	if missing := s.UnreachableConstraints(); len(missing) > 0 {
		errs = append(errs, fmt.Errorf("weekdayConstraints: %v not produced by any rule or add override", missing))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSpec, errors.Join(errs...))
}

// UnreachableConstraints returns the constrained weekdays that neither a
// weekly rule nor an add/move override can produce.
func (s *GoalSpec) UnreachableConstraints() []time.Weekday {
	reachable := make(map[time.Weekday]bool, 7)
	for _, r := range s.Schedule.Rules {
		for _, wd := range r.Weekdays {
			reachable[wd] = true
		}
	}
	for _, o := range s.Schedule.Overrides {
		switch o.Kind {
		case OverrideAdd:
			reachable[WeekdayOf(o.Date)] = true
		case OverrideMove:
			if o.ToDate != nil {
				reachable[WeekdayOf(*o.ToDate)] = true
			}
		}
	}
	var out []time.Weekday
	for _, wd := range s.WeekdayConstraints {
		if !reachable[wd] && !slices.Contains(out, wd) {
			out = append(out, wd)
		}
	}
	return out
}

// trimNamespace drops the root struct name: "GoalSpec.period.start" -> "period.start".
func trimNamespace(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
