// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package api

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/atlashq/profilemap/internal/models"
	"github.com/atlashq/profilemap/internal/validation"
)

// maxRequestBody caps JSON request bodies at 1 MiB. Profile and user
// payloads are far smaller; anything bigger is abuse.
const maxRequestBody = 1 << 20

// decodeJSON decodes a JSON request body into dst. Unknown fields are
// rejected so typos surface as 400s instead of silently dropped input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxBytesErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}

	// A second document after the first is malformed input.
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// validateRequest validates dst and writes a VALIDATION_ERROR response
// on failure. Returns true when the request is valid.
func validateRequest(rw *responseWriter, dst interface{}) bool {
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

// pagination holds parsed limit/offset query parameters.
type pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts limit and offset from the query string,
// clamping to the configured bounds.
func parsePagination(r *http.Request, defaultSize, maxSize int) pagination {
	p := pagination{Limit: defaultSize}

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > maxSize {
		p.Limit = maxSize
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}

// paginationInfo builds the pagination block for list responses.
func (p pagination) info(count, total int) models.PaginationInfo {
	return models.PaginationInfo{
		Limit:      p.Limit,
		Offset:     p.Offset,
		HasMore:    p.Offset+count < total,
		TotalCount: total,
	}
}

// sanitizeLogValue strips control characters from user-supplied values
// before they reach log lines, preventing log injection.
func sanitizeLogValue(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// weakETag computes a weak ETag over the serialized payload using
// FNV-1a. Cheap enough to run per request on the location dataset.
func weakETag(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf(`W/"%x"`, h.Sum64())
}
