package router

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/period"
)

var errInvalidParam = errors.New("invalid parameter")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := f.Tag.Get("param"); name != "" {
				return name
			}
			return f.Name
		})
	})
	return validate
}

// alertParams are the query parameters shared by every alert route.
type alertParams struct {
	Period          string `param:"period" validate:"omitempty,max=64"`
	GladConfirmOnly string `param:"gladConfirmOnly" validate:"omitempty,boolean"`
	AlertQuery      string `param:"alertQuery" validate:"omitempty,boolean"`
}

type adminParams struct {
	ISO string `param:"iso" validate:"required,alpha,min=2,max=3"`
	ID1 string `param:"id1" validate:"omitempty,number,max=18"`
}

type useParams struct {
	Name string `param:"name" validate:"required,max=64"`
	ID   string `param:"id" validate:"required,number,max=18"`
}

type wdpaParams struct {
	ID string `param:"id" validate:"required,number,max=18"`
}

type worldParams struct {
	Geostore string `param:"geostore" validate:"required,alphanum,max=64"`
}

type latestParams struct {
	Limit string `param:"limit" validate:"omitempty,number,max=9"`
}

func readAlertParams(r *http.Request) alertParams {
	q := r.URL.Query()
	return alertParams{
		Period:          strings.TrimSpace(q.Get("period")),
		GladConfirmOnly: strings.TrimSpace(q.Get("gladConfirmOnly")),
		AlertQuery:      strings.TrimSpace(q.Get("alertQuery")),
	}
}

// check validates s and reports the first failing field.
func check(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		if fe.Tag() == "required" {
			return fmt.Errorf("%w: %s is required", errInvalidParam, fe.Field())
		}
		return fmt.Errorf("%w: %s failed %q", errInvalidParam, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %w", errInvalidParam, err)
}

// alertQuery validates p and turns it into a model.AlertQuery relative to now.
func (p alertParams) alertQuery(now time.Time) (model.AlertQuery, error) {
	if err := check(p); err != nil {
		return model.AlertQuery{}, err
	}
	per, err := period.Parse(p.Period, now)
	if err != nil {
		return model.AlertQuery{}, err
	}
	return model.AlertQuery{
		Period:        per,
		ConfirmedOnly: boolParam(p.GladConfirmOnly),
		IncludeDates:  boolParam(p.AlertQuery),
	}, nil
}

// boolParam reads a validated boolean parameter; absent means false.
func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func parseID(name, v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errInvalidParam, name, err)
	}
	return n, nil
}
