package controller

import (
	"errors"
	"strconv"
	"strings"

	"casebook/internal/backend"
	"casebook/internal/dto"
	"casebook/internal/pkg/logger"
	"casebook/internal/pkg/serverutils"
	"casebook/internal/service"
	"casebook/internal/view"

	"github.com/gofiber/fiber/v2"
)

// IPageController serves the browser pages. Each handler picks its own error page
// instead of returning errors to the API error middleware.
type IPageController interface {
	RegisterRoutes(r fiber.Router)
	CaseList(ctx *fiber.Ctx) error
	CaseForm(ctx *fiber.Ctx) error
	CreateCase(ctx *fiber.Ctx) error
	CaseDetails(ctx *fiber.Ctx) error
	CaseExport(ctx *fiber.Ctx) error
	LoginForm(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
}

type pageController struct {
	cases  service.ICaseService
	auth   service.IAuthService
	logger logger.ILogger
}

func NewPageController(cases service.ICaseService, auth service.IAuthService, log logger.ILogger) IPageController {
	return &pageController{cases: cases, auth: auth, logger: log}
}

var caseStatuses = []string{
	string(backend.CaseStatusOpen),
	string(backend.CaseStatusInProgress),
	string(backend.CaseStatusClosed),
}

func (c *pageController) RegisterRoutes(r fiber.Router) {
	r.Get("/", c.CaseList)
	r.Get("/login", c.LoginForm)
	r.Post("/login", c.Login)
	r.Post("/logout", c.Logout)
	r.Get("/add", serverutils.RequireSession(), c.CaseForm)
	r.Post("/add", serverutils.RequireSession(), c.CreateCase)
	r.Get("/case/:id", c.CaseDetails)
	r.Get("/case/:id/pdf", c.CaseExport)
}

func (c *pageController) render(ctx *fiber.Ctx, status int, name, title string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["Title"] = title
	data["Session"] = serverutils.CurrentSession(ctx)
	return ctx.Status(status).Render(name, data, view.Layout)
}

func (c *pageController) notFound(ctx *fiber.Ctx, message string) error {
	return c.render(ctx, fiber.StatusNotFound, "not_found", "Not found", fiber.Map{"Message": message})
}

func (c *pageController) backendDown(ctx *fiber.Ctx) error {
	return c.render(ctx, fiber.StatusBadGateway, "error", "Error", fiber.Map{
		"Message": "The case service is unavailable. Try again shortly.",
	})
}

func accessToken(ctx *fiber.Ctx) string {
	if s := serverutils.CurrentSession(ctx); s != nil {
		return s.AccessToken
	}
	return ""
}

func (c *pageController) CaseList(ctx *fiber.Ctx) error {
	cases, err := c.cases.List(ctx.UserContext(), accessToken(ctx))
	if err != nil {
		return c.render(ctx, fiber.StatusBadGateway, "case_list", "Cases", fiber.Map{"Error": true})
	}
	return c.render(ctx, fiber.StatusOK, "case_list", "Cases", fiber.Map{"Cases": cases})
}

func (c *pageController) caseForm(ctx *fiber.Ctx, status int, form dto.CreateCaseRequest, attributes string, errs map[string]string, banner string) error {
	if form.Status == "" {
		form.Status = string(backend.CaseStatusOpen)
	}
	if errs == nil {
		errs = map[string]string{}
	}
	return c.render(ctx, status, "case_form", "New case", fiber.Map{
		"Form":       form,
		"Attributes": attributes,
		"Statuses":   caseStatuses,
		"Errors":     errs,
		"Error":      banner,
	})
}

func (c *pageController) CaseForm(ctx *fiber.Ctx) error {
	return c.caseForm(ctx, fiber.StatusOK, dto.CreateCaseRequest{}, "", nil, "")
}

func (c *pageController) CreateCase(ctx *fiber.Ctx) error {
	var form dto.CreateCaseRequest
	if err := ctx.BodyParser(&form); err != nil {
		return c.caseForm(ctx, fiber.StatusBadRequest, form, "", nil, "The form could not be read.")
	}
	attributesText := ctx.FormValue("attributes")

	errs := map[string]string{}
	if err := serverutils.ValidateRequest(form); err != nil {
		var ve *serverutils.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		errs = ve.Fields
	}
	attrs, err := dto.ParseAttributes(attributesText)
	if err != nil {
		errs["attributes"] = err.Error()
	}
	if len(errs) > 0 {
		return c.caseForm(ctx, fiber.StatusUnprocessableEntity, form, attributesText, errs, "")
	}
	form.Attributes = attrs

	created, err := c.cases.Create(ctx.UserContext(), accessToken(ctx), &form)
	switch {
	case err == nil:
		return ctx.Redirect("/case/"+strconv.FormatInt(created.Id, 10), fiber.StatusSeeOther)
	case backend.IsAuth(err):
		// The backend no longer honours this session; drop it so the gate agrees.
		if signOutErr := c.auth.SignOut(ctx.UserContext(), serverutils.ClientID(ctx)); signOutErr != nil {
			c.logger.Warn("PAGE", "Failed to clear rejected session", map[string]interface{}{"error": signOutErr.Error()})
		}
		return ctx.Redirect("/login?next=%2Fadd", fiber.StatusSeeOther)
	default:
		return c.caseForm(ctx, fiber.StatusBadGateway, form, attributesText, nil,
			"The case could not be saved: the case service is unavailable. Your input is kept below.")
	}
}

func (c *pageController) CaseDetails(ctx *fiber.Ctx) error {
	id, err := caseID(ctx)
	if err != nil {
		return c.notFound(ctx, "No case with id "+ctx.Params("id")+".")
	}

	found, err := c.cases.Show(ctx.UserContext(), accessToken(ctx), id)
	if err != nil {
		if backend.IsNotFound(err) {
			return c.notFound(ctx, "No case with id "+strconv.FormatInt(id, 10)+".")
		}
		return c.backendDown(ctx)
	}

	return c.render(ctx, fiber.StatusOK, "case_details", found.Title, fiber.Map{"Case": found})
}

func (c *pageController) CaseExport(ctx *fiber.Ctx) error {
	id, err := caseID(ctx)
	if err != nil {
		return c.notFound(ctx, "No case with id "+ctx.Params("id")+".")
	}

	fileName, content, err := c.cases.Export(ctx.UserContext(), accessToken(ctx), id)
	if err != nil {
		if backend.IsNotFound(err) {
			return c.notFound(ctx, "No case with id "+strconv.FormatInt(id, 10)+".")
		}
		c.logger.Error("PAGE", "Export failed", map[string]interface{}{"case_id": id, "error": err})
		return c.backendDown(ctx)
	}

	ctx.Attachment(fileName)
	return ctx.Send(content)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (c *pageController) loginForm(ctx *fiber.Ctx, status int, email, next string, errs map[string]string, banner string) error {
	if errs == nil {
		errs = map[string]string{}
	}
	return c.render(ctx, status, "login", "Sign in", fiber.Map{
		"Email":  email,
		"Next":   safeNext(next),
		"Errors": errs,
		"Error":  banner,
	})
}

func (c *pageController) LoginForm(ctx *fiber.Ctx) error {
	next := ctx.Query("next", "/")
	if serverutils.CurrentSession(ctx) != nil {
		return ctx.Redirect(safeNext(next), fiber.StatusSeeOther)
	}
	return c.loginForm(ctx, fiber.StatusOK, "", next, nil, "")
}

func (c *pageController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return c.loginForm(ctx, fiber.StatusBadRequest, "", "/", nil, "The form could not be read.")
	}
	next := ctx.FormValue("next", "/")

	if err := serverutils.ValidateRequest(req); err != nil {
		var ve *serverutils.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		return c.loginForm(ctx, fiber.StatusUnprocessableEntity, req.Email, next, ve.Fields, "")
	}

	_, err := c.auth.SignIn(ctx.UserContext(), serverutils.ClientID(ctx), &req)
	switch {
	case err == nil:
		return ctx.Redirect(safeNext(next), fiber.StatusSeeOther)
	case errors.Is(err, backend.ErrInvalidCredentials):
		return c.loginForm(ctx, fiber.StatusUnauthorized, req.Email, next, nil, "Invalid email or password.")
	default:
		return c.loginForm(ctx, fiber.StatusBadGateway, req.Email, next, nil, "Sign in is unavailable right now. Try again shortly.")
	}
}

func (c *pageController) Logout(ctx *fiber.Ctx) error {
	if err := c.auth.SignOut(ctx.UserContext(), serverutils.ClientID(ctx)); err != nil {
		c.logger.Error("PAGE", "Sign out failed", map[string]interface{}{"error": err})
	}
	return ctx.Redirect("/", fiber.StatusSeeOther)
}
