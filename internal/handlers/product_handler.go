package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"toko/internal/middleware"
	"toko/internal/validation"
	"toko/internal/workflow"
)

const (
	flashErrorsKey = "_flash_errors"
	flashOldKey    = "_flash_old"
)

var productFields = []string{"name", "price"}

// ProductHandler handles HTTP requests for products. It translates workflow
// responses into rendered pages, redirects and error statuses.
type ProductHandler struct {
	workflow *workflow.ProductWorkflow
	sessions *session.Store
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(wf *workflow.ProductWorkflow, sessions *session.Store) *ProductHandler {
	return &ProductHandler{
		workflow: wf,
		sessions: sessions,
	}
}

// RegisterRoutes registers the product routes on a router mounted at /products.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	router.Get("", h.HandleList).Name(workflow.RouteIndex)
	router.Get("/create", h.HandleCreateForm).Name("products.create")
	router.Post("", h.HandleStore).Name("products.store")
	router.Get("/show/:id", h.HandleShow).Name(workflow.RouteShow)
	router.Get("/:id/edit", h.HandleEditForm).Name("products.edit")
	router.Put("/:id", h.HandleUpdate).Name("products.update")
	router.Delete("/:id", h.HandleDestroy).Name("products.destroy")
}

// HandleList renders a page of products.
func (h *ProductHandler) HandleList(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	res, err := h.workflow.List(c.UserContext(), middleware.CurrentUser(c), page)
	return h.respond(c, res, err)
}

// HandleShow renders one product.
func (h *ProductHandler) HandleShow(c *fiber.Ctx) error {
	res, err := h.workflow.Show(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	return h.respond(c, res, err)
}

// HandleCreateForm renders the product creation form.
func (h *ProductHandler) HandleCreateForm(c *fiber.Ctx) error {
	res, err := h.workflow.ShowCreateForm(c.UserContext(), middleware.CurrentUser(c))
	return h.respond(c, res, err)
}

// HandleStore creates a product from the submitted form.
func (h *ProductHandler) HandleStore(c *fiber.Ctx) error {
	res, err := h.workflow.Store(c.UserContext(), middleware.CurrentUser(c), formInput(c))
	return h.respond(c, res, err)
}

// HandleEditForm renders the edit form of a product.
func (h *ProductHandler) HandleEditForm(c *fiber.Ctx) error {
	res, err := h.workflow.ShowEditForm(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	return h.respond(c, res, err)
}

// HandleUpdate updates a product from the submitted form.
func (h *ProductHandler) HandleUpdate(c *fiber.Ctx) error {
	res, err := h.workflow.Update(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), formInput(c))
	return h.respond(c, res, err)
}

// HandleDestroy deletes a product.
func (h *ProductHandler) HandleDestroy(c *fiber.Ctx) error {
	res, err := h.workflow.Delete(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	return h.respond(c, res, err)
}

func (h *ProductHandler) respond(c *fiber.Ctx, res workflow.Response, err error) error {
	if err != nil {
		return err
	}

	switch r := res.(type) {
	case workflow.RenderView:
		return h.render(c, r.Name, r.Data)
	case workflow.Redirect:
		params := fiber.Map{}
		for k, v := range r.Params {
			params[k] = v
		}
		return c.RedirectToRoute(r.Route, params, fiber.StatusFound)
	case workflow.RedirectBack:
		if err := h.flash(c, r.Errors, r.Old); err != nil {
			return err
		}
		return c.RedirectBack(r.Fallback, fiber.StatusFound)
	case workflow.ErrorStatus:
		return fiber.NewError(r.Code)
	default:
		return fmt.Errorf("unsupported workflow response %T", res)
	}
}

func (h *ProductHandler) render(c *fiber.Ctx, view string, data map[string]any) error {
	bind := fiber.Map{
		"user":   middleware.CurrentUser(c),
		"errors": validation.Errors{},
		"old":    map[string]string{},
	}
	for k, v := range data {
		bind[k] = v
	}
	if err := h.pullFlash(c, bind); err != nil {
		return err
	}
	return c.Render(view, bind)
}

// flash keeps errors and old input in the session for the next request.
func (h *ProductHandler) flash(c *fiber.Ctx, errs validation.Errors, old map[string]string) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	rawErrors, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to encode flash errors: %w", err)
	}
	rawOld, err := json.Marshal(old)
	if err != nil {
		return fmt.Errorf("failed to encode flash input: %w", err)
	}

	sess.Set(flashErrorsKey, string(rawErrors))
	sess.Set(flashOldKey, string(rawOld))
	if err := sess.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// pullFlash moves flashed values into bind and removes them from the session.
func (h *ProductHandler) pullFlash(c *fiber.Ctx, bind fiber.Map) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if sess.Fresh() {
		return nil
	}

	found := false
	if raw, ok := sess.Get(flashErrorsKey).(string); ok {
		var errs validation.Errors
		if err := json.Unmarshal([]byte(raw), &errs); err == nil {
			bind["errors"] = errs
		}
		sess.Delete(flashErrorsKey)
		found = true
	}
	if raw, ok := sess.Get(flashOldKey).(string); ok {
		var old map[string]string
		if err := json.Unmarshal([]byte(raw), &old); err == nil {
			bind["old"] = old
		}
		sess.Delete(flashOldKey)
		found = true
	}

	if !found {
		return nil
	}
	if err := sess.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// formInput reads the product fields from a form or JSON body.
func formInput(c *fiber.Ctx) map[string]string {
	input := make(map[string]string, len(productFields))

	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		dec := json.NewDecoder(strings.NewReader(string(c.Body())))
		dec.UseNumber()
		var body map[string]any
		if err := dec.Decode(&body); err != nil {
			return input
		}
		for _, field := range productFields {
			if v, ok := body[field]; ok && v != nil {
				input[field] = fmt.Sprint(v)
			}
		}
		return input
	}

	for _, field := range productFields {
		input[field] = c.FormValue(field)
	}
	return input
}
