package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rgehrsitz/nest/internal/rules"
)

// Request headers identifying the caller.
const (
	HeaderBabyID   = "X-Baby-ID"
	HeaderFamilyID = "X-Family-ID"
	HeaderUserID   = "X-User-ID"
)

func identityFromRequest(r *http.Request) (Identity, error) {
	id := Identity{
		BabyID:   strings.TrimSpace(r.Header.Get(HeaderBabyID)),
		FamilyID: strings.TrimSpace(r.Header.Get(HeaderFamilyID)),
		UserID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
	}
	if id.BabyID == "" {
		return Identity{}, fmt.Errorf("missing %s header", HeaderBabyID)
	}
	return id, nil
}

// contextFromQuery builds a RuleContext from query parameters:
//
//	scope=Postpartum&ppDay=7&ppWeek=1&week=20&season=winter
//	progress.hospitalBag=40&done=firstBath,tummyTime
//	stale.feeding=<epoch ms>&trait.firstPregnancy=true
//	baby.name=Ada&baby.ageDays=7&baby.ageWeeks=1&now=<RFC 3339>
func contextFromQuery(q url.Values) (*rules.RuleContext, error) {
	rc := &rules.RuleContext{
		Scope:  rules.Scope(q.Get("scope")),
		Season: q.Get("season"),
	}

	var err error
	if rc.Week, err = optionalInt(q, "week"); err != nil {
		return nil, err
	}
	if rc.PPDay, err = optionalInt(q, "ppDay"); err != nil {
		return nil, err
	}
	if rc.PPWeek, err = optionalInt(q, "ppWeek"); err != nil {
		return nil, err
	}

	if v := q.Get("now"); v != "" {
		if rc.Now, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, fmt.Errorf("invalid now: %w", err)
		}
	}

	for _, list := range q["done"] {
		for _, key := range strings.Split(list, ",") {
			if key = strings.TrimSpace(key); key != "" {
				if rc.Done == nil {
					rc.Done = make(map[rules.DoneKey]bool)
				}
				rc.Done[rules.DoneKey(key)] = true
			}
		}
	}

	for param, values := range q {
		if len(values) == 0 {
			continue
		}
		prefix, name, ok := strings.Cut(param, ".")
		if !ok || name == "" {
			continue
		}
		v := values[0]
		switch prefix {
		case "progress":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", param, err)
			}
			if rc.Progress == nil {
				rc.Progress = make(map[rules.ProgressKey]float64)
			}
			rc.Progress[rules.ProgressKey(name)] = f
		case "stale":
			ms, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", param, err)
			}
			if rc.Stale == nil {
				rc.Stale = make(map[string]int64)
			}
			rc.Stale[name] = ms
		case "trait":
			if rc.Traits == nil {
				rc.Traits = make(map[string]any)
			}
			rc.Traits[name] = traitValue(v)
		case "baby":
			if err := setBabyField(rc, name, v); err != nil {
				return nil, err
			}
		}
	}
	return rc, nil
}

func optionalInt(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &n, nil
}

// traitValue keeps booleans and numbers typed so compute props can use them.
func traitValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func setBabyField(rc *rules.RuleContext, field, v string) error {
	if rc.Baby == nil {
		rc.Baby = &rules.Baby{}
	}
	var err error
	switch field {
	case "name":
		rc.Baby.Name = v
	case "ageDays":
		rc.Baby.AgeDays, err = strconv.Atoi(v)
	case "ageWeeks":
		rc.Baby.AgeWeeks, err = strconv.Atoi(v)
	case "weightKg":
		rc.Baby.WeightKg, err = strconv.ParseFloat(v, 64)
	case "lengthCm":
		rc.Baby.LengthCm, err = strconv.ParseFloat(v, 64)
	}
	if err != nil {
		return fmt.Errorf("invalid baby.%s: %w", field, err)
	}
	return nil
}
