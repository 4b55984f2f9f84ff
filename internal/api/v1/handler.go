package v1

import (
	"time"

	"github.com/contactrelay/mailgateway/internal/api/validator"
	"github.com/contactrelay/mailgateway/internal/constants"
	"github.com/contactrelay/mailgateway/internal/model"
	"github.com/contactrelay/mailgateway/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const timeFormat = time.RFC3339

type Handler struct {
	logger      *zap.Logger
	message     service.MessageService
	maintenance service.MaintenanceService
	health      service.HealthService
	validator   validator.IXValidator
}

func NewHandler(logger *zap.Logger, message service.MessageService,
	maintenance service.MaintenanceService, health service.HealthService,
	v validator.IXValidator) *Handler {

	return &Handler{
		logger:      logger,
		message:     message,
		maintenance: maintenance,
		health:      health,
		validator:   v,
	}
}

func (h *Handler) Pong(c *fiber.Ctx) error {
	return c.SendString("pong")
}

func (h *Handler) CreateMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var request CreateMessageRequest
	if err := c.BodyParser(&request); err != nil {
		h.logger.Warn("Failed to parse body",
			zap.Error(err),
			zap.String("body", string(c.Body())))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    constants.ErrCodeInvalidRequestBody,
			"message": constants.GetErrorMessage(constants.ErrCodeInvalidRequestBody),
		})
	}

	if errs := h.validator.Validate(request); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    constants.ErrCodeValidation,
			"message": h.validator.Message(errs),
		})
	}

	cmd := service.CreateMessageCommand{
		SenderName:    request.SenderName,
		SenderAddress: request.SenderAddress,
		Phone:         request.Phone,
		Body:          request.Body,
		Context:       request.Context,
	}

	msg, err := h.message.Create(ctx, cmd)
	if err != nil {
		h.logger.Error("Failed to create message",
			zap.Error(err),
			zap.String("senderAddress", request.SenderAddress))
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(
		CreateMessageResponse{MessageID: msg.ID, Status: string(msg.Status)})
}

func (h *Handler) GetMessage(c *fiber.Ctx) error {
	detail, err := h.message.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	resp := MessageDetailResponse{
		Message: toMessageResponse(detail.Message),
		Events:  make([]EventResponse, 0, len(detail.Events)),
	}
	for _, event := range detail.Events {
		resp.Events = append(resp.Events, toEventResponse(event))
	}

	return c.JSON(resp)
}

func (h *Handler) GetMessages(c *fiber.Ctx) error {
	query, err := parseMessagesQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    constants.ErrCodeValidation,
			"message": err.Error(),
		})
	}

	page, err := h.message.GetMessages(c.UserContext(), query)
	if err != nil {
		return err
	}

	resp := GetMessagesResponse{
		Messages: make([]MessageResponse, 0, len(page.Messages)),
		Total:    page.Total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	for _, msg := range page.Messages {
		resp.Messages = append(resp.Messages, toMessageResponse(msg))
	}

	return c.JSON(resp)
}

func (h *Handler) GetStats(c *fiber.Ctx) error {
	stats, err := h.message.GetStats(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(stats)
}

func (h *Handler) RetrySweep(c *fiber.Ctx) error {
	var request RetrySweepRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&request); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":    constants.ErrCodeInvalidRequestBody,
				"message": constants.GetErrorMessage(constants.ErrCodeInvalidRequestBody),
			})
		}
	}

	swept, err := h.maintenance.RetryFailedMessages(c.UserContext(), request.Limit)
	if err != nil {
		return err
	}

	return c.JSON(SweepResponse{Swept: swept})
}

func (h *Handler) Cleanup(c *fiber.Ctx) error {
	var request CleanupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&request); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":    constants.ErrCodeInvalidRequestBody,
				"message": constants.GetErrorMessage(constants.ErrCodeInvalidRequestBody),
			})
		}
	}

	deleted, err := h.maintenance.CleanupOldMessages(c.UserContext(), request.MaxAgeDays)
	if err != nil {
		return err
	}

	return c.JSON(CleanupResponse{Deleted: deleted})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	report := h.health.GetHealth(c.UserContext())

	status := fiber.StatusOK
	if report.Status == service.HealthStatusUnhealthy {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(report)
}

func (h *Handler) Live(c *fiber.Ctx) error {
	return c.JSON(h.health.Liveness())
}

func (h *Handler) Ready(c *fiber.Ctx) error {
	check := h.health.Readiness(c.UserContext())

	status := fiber.StatusOK
	if check.Status == service.HealthStatusUnhealthy {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(check)
}

func parseMessagesQuery(c *fiber.Ctx) (service.GetMessagesQuery, error) {
	query := service.GetMessagesQuery{
		Sender: c.Query("sender"),
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
	}

	if raw := c.Query("status"); raw != "" {
		status := model.MessageStatus(raw)
		query.Status = &status
	}

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(timeFormat, raw)
		if err != nil {
			return query, fiber.NewError(fiber.StatusBadRequest, "invalid from timestamp")
		}
		query.From = &from
	}

	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(timeFormat, raw)
		if err != nil {
			return query, fiber.NewError(fiber.StatusBadRequest, "invalid to timestamp")
		}
		query.To = &to
	}

	return query, nil
}
