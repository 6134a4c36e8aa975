package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/api/responses"
	"github.com/angelmondragon/pos-backend/api/validators"
	"github.com/angelmondragon/pos-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/types"
)

type catalogReader interface {
	ResolveCode(ctx context.Context, code string) (catalog.ProductView, error)
	Search(ctx context.Context, term string, limit int) ([]catalog.ProductView, error)
	LowStock(ctx context.Context) ([]catalog.ProductView, error)
}

type catalogEditor interface {
	CreateProduct(ctx context.Context, identity types.Identity, input catalog.CreateProductInput) (*catalog.ProductView, error)
	UpdateProduct(ctx context.Context, identity types.Identity, productID uuid.UUID, input catalog.UpdateProductInput) (*catalog.ProductView, error)
	Deactivate(ctx context.Context, identity types.Identity, productID uuid.UUID) error
}

// CatalogResolve looks up the active product for a scanned code.
func CatalogResolve(svc catalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(r.URL.Query().Get("code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code is required").
				WithDetails(map[string]any{"field": "code"}))
			return
		}
		view, err := svc.ResolveCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CatalogSearch(svc catalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.Search(r.Context(), validators.SanitizeString(r.URL.Query().Get("q"), 128), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

func CatalogLowStock(svc catalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

type createProductRequest struct {
	Code             string          `json:"code" validate:"required,max=64,productcode"`
	Name             string          `json:"name" validate:"required,max=200"`
	Description      *string         `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Cost             decimal.Decimal `json:"cost"`
	ReorderThreshold int             `json:"reorder_threshold" validate:"min=0"`
	CategoryID       *uuid.UUID      `json:"category_id,omitempty"`
	SupplierID       *uuid.UUID      `json:"supplier_id,omitempty"`
	InitialStock     int             `json:"initial_stock" validate:"min=0"`
	Location         string          `json:"location" validate:"max=100"`
}

func (p createProductRequest) toInput() (catalog.CreateProductInput, error) {
	details := map[string]string{}
	if p.Price.IsNegative() {
		details["price"] = "must not be negative"
	}
	if p.Cost.IsNegative() {
		details["cost"] = "must not be negative"
	}
	if len(details) > 0 {
		return catalog.CreateProductInput{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return catalog.CreateProductInput{
		Code:             strings.TrimSpace(p.Code),
		Name:             strings.TrimSpace(p.Name),
		Description:      p.Description,
		Price:            p.Price,
		Cost:             p.Cost,
		ReorderThreshold: p.ReorderThreshold,
		CategoryID:       p.CategoryID,
		SupplierID:       p.SupplierID,
		InitialStock:     p.InitialStock,
		Location:         strings.TrimSpace(p.Location),
	}, nil
}

// CatalogCreateProduct adds a product. The service enforces the elevated role.
func CatalogCreateProduct(svc catalogEditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := requireIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CreateProduct(r.Context(), identity, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

type updateProductRequest struct {
	Name             *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description      *string          `json:"description,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	Cost             *decimal.Decimal `json:"cost,omitempty"`
	ReorderThreshold *int             `json:"reorder_threshold,omitempty" validate:"omitempty,min=0"`
	Location         *string          `json:"location,omitempty" validate:"omitempty,max=100"`
}

func (p updateProductRequest) toInput() catalog.UpdateProductInput {
	return catalog.UpdateProductInput{
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price,
		Cost:             p.Cost,
		ReorderThreshold: p.ReorderThreshold,
		Location:         p.Location,
	}
}

func CatalogUpdateProduct(svc catalogEditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := requireIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateProduct(r.Context(), identity, productID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CatalogDeactivateProduct(svc catalogEditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := requireIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), identity, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
