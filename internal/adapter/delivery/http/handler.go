package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/linkcache/internal/entity"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL string) (*entity.URL, bool, error)
	ResolveShortCode(ctx context.Context, shortCode string) (string, error)
	ListRecentURLs(ctx context.Context, limit int) ([]*entity.URL, error)
	GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &urlHandler{
		useCase:  useCase,
		validate: validate,
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			renderError(w, r, http.StatusBadRequest, msgEmptyBody)
			return
		}

		renderError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		renderError(w, r, http.StatusBadRequest, msgValidation, fieldErrors(err)...)
		return
	}

	url, created, err := h.useCase.ShortenURL(r.Context(), req.OriginalURL)
	if err != nil {
		if errors.Is(err, entity.ErrEmptyURL) {
			renderError(w, r, http.StatusBadRequest, msgEmptyURL)
			return
		}

		serverError(w, r, err)
		return
	}

	if created {
		render.Status(r, http.StatusCreated)
	} else {
		render.Status(r, http.StatusOK)
	}
	render.JSON(w, r, toURLResponse(url))
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	originalURL, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			renderError(w, r, http.StatusNotFound, msgURLNotFound)
			return
		}

		serverError(w, r, err)
		return
	}

	http.Redirect(w, r, originalURL, http.StatusFound)
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	var limit int

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			renderError(w, r, http.StatusBadRequest, msgInvalidLimit)
			return
		}
		limit = n
	}

	urls, err := h.useCase.ListRecentURLs(r.Context(), limit)
	if err != nil {
		serverError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLListResponse(urls))
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.useCase.GetURLStats(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			renderError(w, r, http.StatusNotFound, msgURLNotFound)
			return
		}

		serverError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLStatsResponse(url))
}
