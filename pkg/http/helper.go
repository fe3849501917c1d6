package http

import (
	"net/http"
	"strconv"

	"workspacemgr/pkg/config"
	apperrors "workspacemgr/pkg/errors"
)

// ExtractPage reads page/size query parameters, applying defaults and caps.
func ExtractPage(r *http.Request, cfg *config.Config) (int, int, error) {
	query := r.URL.Query()

	page := 1
	if s := query.Get("page"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid page parameter: " + s)
		}
		page = v
	}

	size := 0
	if s := query.Get("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid size parameter: " + s)
		}
		size = v
	}

	page, size = cfg.NormalizePage(page, size)
	return page, size, nil
}

// PageToOffset converts one-based page/size to the repository's limit/offset.
func PageToOffset(page, size int) (int, int64) {
	return size, int64(page-1) * int64(size)
}
