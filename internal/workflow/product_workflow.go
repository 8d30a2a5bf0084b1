package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"toko/internal/models"
	"toko/internal/policy"
	"toko/internal/repositories"
	"toko/internal/validation"
)

// Named routes targeted by redirects.
const (
	RouteIndex = "products.index"
	RouteShow  = "products.show"
)

// View names.
const (
	ViewIndex  = "products"
	ViewShow   = "products.show"
	ViewCreate = "products.create"
	ViewEdit   = "products.edit"
)

// NoProductsMessage is shown on an empty listing.
const NoProductsMessage = "No products found"

// ProductStore is the persistence surface the workflow drives.
type ProductStore interface {
	ListProducts(ctx context.Context, page int) (*models.ProductPage, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, in models.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// FormValidator turns a submitted form into a product payload.
type FormValidator interface {
	Validate(input map[string]string) (models.ProductInput, error)
}

// ProductWorkflow sequences authorization, validation and persistence for
// each product action. Authorization always runs first; a denied request
// never reaches validation or the store.
//
// Every method returns either a Response or an unexpected error, which the
// caller should surface as a server error.
type ProductWorkflow struct {
	store     ProductStore
	validator FormValidator
}

// NewProductWorkflow creates a workflow over store and validator.
func NewProductWorkflow(store ProductStore, validator FormValidator) *ProductWorkflow {
	return &ProductWorkflow{store: store, validator: validator}
}

// List renders a page of products. Every authenticated user may list.
func (w *ProductWorkflow) List(ctx context.Context, user *models.User, page int) (Response, error) {
	if err := policy.Authorize(user, policy.ViewList); err != nil {
		return forbidden(), nil
	}

	result, err := w.store.ListProducts(ctx, page)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"products": result.Items,
		"page":     result,
	}
	if len(result.Items) == 0 {
		data["message"] = NoProductsMessage
	}
	return RenderView{Name: ViewIndex, Data: data}, nil
}

// Show renders a single product.
func (w *ProductWorkflow) Show(ctx context.Context, user *models.User, id string) (Response, error) {
	if err := policy.Authorize(user, policy.View); err != nil {
		return forbidden(), nil
	}
	return w.renderProduct(ctx, ViewShow, id)
}

// ShowCreateForm renders the empty product form.
func (w *ProductWorkflow) ShowCreateForm(_ context.Context, user *models.User) (Response, error) {
	if err := policy.Authorize(user, policy.ShowCreateForm); err != nil {
		return forbidden(), nil
	}
	return RenderView{Name: ViewCreate, Data: map[string]any{}}, nil
}

// Store validates input and creates a product.
func (w *ProductWorkflow) Store(ctx context.Context, user *models.User, input map[string]string) (Response, error) {
	if err := policy.Authorize(user, policy.Create); err != nil {
		return forbidden(), nil
	}

	in, err := w.validator.Validate(input)
	if err != nil {
		return back("/products/create", input, err)
	}

	product, err := w.store.CreateProduct(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return showRedirect(product.ID), nil
}

// ShowEditForm renders the form prefilled with the stored product.
func (w *ProductWorkflow) ShowEditForm(ctx context.Context, user *models.User, id string) (Response, error) {
	if err := policy.Authorize(user, policy.ShowEditForm); err != nil {
		return forbidden(), nil
	}
	return w.renderProduct(ctx, ViewEdit, id)
}

// Update validates input and replaces the product's name and price.
func (w *ProductWorkflow) Update(ctx context.Context, user *models.User, id string, input map[string]string) (Response, error) {
	if err := policy.Authorize(user, policy.Update); err != nil {
		return forbidden(), nil
	}

	if _, err := w.store.GetProductByID(ctx, id); err != nil {
		return notFoundOr(err)
	}

	in, err := w.validator.Validate(input)
	if err != nil {
		return back("/products/"+id+"/edit", input, err)
	}

	if _, err := w.store.UpdateProduct(ctx, id, in); err != nil {
		return notFoundOr(err)
	}
	return showRedirect(id), nil
}

// Delete removes the product and returns to the listing.
func (w *ProductWorkflow) Delete(ctx context.Context, user *models.User, id string) (Response, error) {
	if err := policy.Authorize(user, policy.Delete); err != nil {
		return forbidden(), nil
	}

	if err := w.store.DeleteProduct(ctx, id); err != nil {
		return notFoundOr(err)
	}
	return Redirect{Route: RouteIndex}, nil
}

func (w *ProductWorkflow) renderProduct(ctx context.Context, view, id string) (Response, error) {
	product, err := w.store.GetProductByID(ctx, id)
	if err != nil {
		return notFoundOr(err)
	}
	return RenderView{Name: view, Data: map[string]any{"product": product}}, nil
}

func forbidden() Response {
	return ErrorStatus{Code: http.StatusForbidden}
}

func showRedirect(id string) Response {
	return Redirect{Route: RouteShow, Params: map[string]string{"id": id}}
}

func notFoundOr(err error) (Response, error) {
	if errors.Is(err, repositories.ErrProductNotFound) {
		return ErrorStatus{Code: http.StatusNotFound}, nil
	}
	return nil, err
}

func back(fallback string, input map[string]string, err error) (Response, error) {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return nil, err
	}
	return RedirectBack{
		Fallback: fallback,
		Errors:   errs,
		Old: map[string]string{
			"name":  input["name"],
			"price": input["price"],
		},
	}, nil
}
