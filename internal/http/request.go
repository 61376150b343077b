package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pmanager/internal/core"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// decodeJSON reads exactly one JSON value from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON for endpoints where the body may be
// omitted entirely.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &requestError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
		case errors.Is(err, io.EOF):
			if allowEmpty {
				return nil
			}
			return badRequest("request body is empty")
		default:
			return badRequest("invalid JSON body: " + err.Error())
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON value")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

func queryString(q url.Values, key string) string {
	return strings.TrimSpace(q.Get(key))
}

func queryInt(q url.Values, key string) (int, error) {
	v := queryString(q, key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("invalid %s: must be an integer", key))
	}
	return n, nil
}

func queryInt64Ptr(q url.Values, key string) (*int64, error) {
	v := queryString(q, key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid %s: must be an integer", key))
	}
	return &n, nil
}

func queryBoolPtr(q url.Values, key string) (*bool, error) {
	v := queryString(q, key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid %s: must be true or false", key))
	}
	return &b, nil
}

// queryDate returns the zero Date when key is absent.
func queryDate(q url.Values, key string) (core.Date, error) {
	v := queryString(q, key)
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest(fmt.Sprintf("invalid %s: expected YYYY-MM-DD", key))
	}
	return d, nil
}

// queryDay is queryDate defaulting to today.
func queryDay(q url.Values, key string, today core.Date) (core.Date, error) {
	d, err := queryDate(q, key)
	if err != nil || !d.IsZero() {
		return d, err
	}
	return today, nil
}

// queryYearMonth reads year and month, each defaulting to today's.
func queryYearMonth(q url.Values, today core.Date) (core.YearMonth, error) {
	ym := core.YearMonthOf(today)
	year, err := queryInt(q, "year")
	if err != nil {
		return ym, err
	}
	if year != 0 {
		if year < 1970 || year > 9999 {
			return ym, badRequest("invalid year")
		}
		ym.Year = year
	}
	month, err := queryInt(q, "month")
	if err != nil {
		return ym, err
	}
	if month != 0 {
		if month < 1 || month > 12 {
			return ym, badRequest("invalid month: must be between 1 and 12")
		}
		ym.Month = month
	}
	return ym, nil
}
