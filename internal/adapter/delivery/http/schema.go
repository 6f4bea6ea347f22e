package http

import (
	"time"

	"github.com/vadimbarashkov/linkcache/internal/entity"
)

type urlRequest struct {
	OriginalURL string `json:"original_url" validate:"required,url"`
}

type urlResponse struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toURLResponse(url *entity.URL) urlResponse {
	return urlResponse{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		UpdatedAt:   url.UpdatedAt,
	}
}

// urlStatsResponse adds the durable click count to a link. Clicks still
// pending in the cache are not included.
type urlStatsResponse struct {
	urlResponse
	Stats struct {
		Clicks int64 `json:"clicks"`
	} `json:"stats"`
}

func toURLStatsResponse(url *entity.URL) urlStatsResponse {
	resp := urlStatsResponse{urlResponse: toURLResponse(url)}
	resp.Stats.Clicks = url.Clicks
	return resp
}

type urlListResponse struct {
	URLs []urlStatsResponse `json:"urls"`
}

func toURLListResponse(urls []*entity.URL) urlListResponse {
	resp := urlListResponse{URLs: make([]urlStatsResponse, 0, len(urls))}
	for _, url := range urls {
		resp.URLs = append(resp.URLs, toURLStatsResponse(url))
	}
	return resp
}
