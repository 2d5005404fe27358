package controller

import (
	"strconv"
	"strings"

	"casebook/internal/backend"
	"casebook/internal/dto"
	"casebook/internal/pkg/serverutils"
	"casebook/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICaseController interface {
	RegisterRoutes(r fiber.Router)
	GetAll(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Export(ctx *fiber.Ctx) error
}

type caseController struct {
	service  service.ICaseService
	verifier serverutils.TokenVerifier
}

func NewCaseController(service service.ICaseService, verifier serverutils.TokenVerifier) ICaseController {
	return &caseController{service: service, verifier: verifier}
}

func (c *caseController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/case/v1")
	h.Get("", c.GetAll)
	h.Post("", serverutils.JwtMiddleware(c.verifier), c.Create) // inserts need a token
	h.Get(":id", c.Show)
	h.Get(":id/pdf", c.Export)
}

func (c *caseController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.service.List(ctx.UserContext(), bearer(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all cases", res))
}

func (c *caseController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateCaseRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), serverutils.AccessToken(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create case", res))
}

func (c *caseController) Show(ctx *fiber.Ctx) error {
	id, err := caseID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Show(ctx.UserContext(), bearer(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show case", res))
}

func (c *caseController) Export(ctx *fiber.Ctx) error {
	id, err := caseID(ctx)
	if err != nil {
		return err
	}

	fileName, content, err := c.service.Export(ctx.UserContext(), bearer(ctx), id)
	if err != nil {
		return err
	}

	ctx.Attachment(fileName)
	return ctx.Send(content)
}

// caseID treats a malformed id like an unknown one.
func caseID(ctx *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, backend.ErrNotFound
	}
	return id, nil
}

// bearer forwards an optional token on public routes.
func bearer(ctx *fiber.Ctx) string {
	if token := serverutils.AccessToken(ctx); token != "" {
		return token
	}
	if token, ok := strings.CutPrefix(ctx.Get(fiber.HeaderAuthorization), "Bearer "); ok {
		return token
	}
	return ""
}
