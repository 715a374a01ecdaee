package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-pipeline/internal/api/dto"
	"github.com/spec-kit/ticket-pipeline/internal/auth"
	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/repository"
	"github.com/spec-kit/ticket-pipeline/internal/service"
	apperrors "github.com/spec-kit/ticket-pipeline/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service    *service.TicketService
	assignment *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, assignment *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, assignment: assignment}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ReportedBy == "" {
		req.ReportedBy = auth.PrincipalFromContext(c).Name
	}

	result, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		Category:      req.Category,
		AssignedTo:    req.AssignedTo,
		ReportedBy:    req.ReportedBy,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Tags:          req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(mutationResponse(result))
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	setVersion(c, ticket)
	return c.JSON(fiber.Map{"data": ticket})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	version := req.Version
	if match := c.Get(fiber.HeaderIfMatch); match != "" && version == 0 {
		parsed, err := strconv.ParseInt(strings.Trim(match, `"`), 10, 64)
		if err != nil {
			return apperrors.NewValidationError("If-Match must be a ticket version", nil)
		}
		version = parsed
	}

	result, err := h.service.UpdateTicket(c.UserContext(), c.Params("id"), service.TicketUpdateInput{
		Title:           req.Title,
		Description:     req.Description,
		Status:          req.Status,
		Priority:        req.Priority,
		Category:        req.Category,
		AssignedTo:      req.AssignedTo,
		Tags:            req.Tags,
		ExpectedVersion: version,
		Actor:           auth.PrincipalFromContext(c).Actor(),
	})
	if err != nil {
		return err
	}
	setVersion(c, result.Ticket)
	return c.JSON(mutationResponse(result))
}

// DeleteTicket DELETE /tickets/:id soft-deletes the ticket.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	deleted, err := h.service.SoftDelete(c.UserContext(), c.Params("id"), auth.PrincipalFromContext(c).Actor())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "deleted": deleted}})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	principal := auth.PrincipalFromContext(c)
	if req.Author == "" {
		req.Author = principal.Name
	}
	if req.AuthorType == "" {
		req.AuthorType = principal.Type
	}

	result, err := h.service.AddComment(c.UserContext(), c.Params("id"), service.CommentInput{
		Author:      req.Author,
		AuthorType:  req.AuthorType,
		Content:     req.Content,
		IsInternal:  req.IsInternal,
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(mutationResponse(result))
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	result, err := h.assignment.AssignTicket(c.UserContext(), c.Params("id"), req.AssignedTo, auth.PrincipalFromContext(c).Actor())
	if err != nil {
		return err
	}
	return c.JSON(mutationResponse(result))
}

// setVersion exposes the ticket version as the ETag accepted back in If-Match.
func setVersion(c *fiber.Ctx, ticket *domain.Ticket) {
	c.Set(fiber.HeaderETag, strconv.FormatInt(ticket.Version, 10))
}

func parseTicketQuery(c *fiber.Ctx) (repository.TicketQuery, error) {
	q := repository.TicketQuery{
		Status:     domain.TicketStatus(c.Query("status")),
		Priority:   domain.TicketPriority(c.Query("priority")),
		Category:   domain.TicketCategory(c.Query("category")),
		AssignedTo: c.Query("assignedTo"),
		Limit:      parseInt(c.Query("limit"), 0),
	}
	var err error
	if q.CreatedFrom, err = parseTime(c.Query("createdFrom")); err != nil {
		return q, apperrors.NewValidationError("createdFrom must be RFC3339", nil)
	}
	if q.CreatedTo, err = parseTime(c.Query("createdTo")); err != nil {
		return q, apperrors.NewValidationError("createdTo must be RFC3339", nil)
	}
	return q, nil
}

func parseTime(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:             ticket.ID,
		Title:          ticket.Title,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		Category:       ticket.Category,
		AssignedTo:     ticket.AssignedTo,
		AIUrgencyScore: ticket.AIUrgencyScore,
		Escalated:      ticket.Escalated,
		Tags:           ticket.Tags,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

func mutationResponse(result *service.MutationResult) dto.MutationResponse {
	effects := make([]dto.EffectResponse, 0, len(result.Effects))
	for _, e := range result.Effects {
		resp := dto.EffectResponse{Effect: e.Effect, Status: string(e.Status), Detail: e.Detail}
		if e.Err != nil {
			resp.Error = e.Err.Error()
		}
		effects = append(effects, resp)
	}
	return dto.MutationResponse{Data: result.Ticket, Effects: effects}
}
