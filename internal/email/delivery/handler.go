package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	appdomain "jobtrail-backend/internal/application/domain"
	authdelivery "jobtrail-backend/internal/auth/delivery"
	emaildomain "jobtrail-backend/internal/email/domain"
	emaildto "jobtrail-backend/internal/email/dto"
	"jobtrail-backend/internal/email/usecase"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// ApplicationLinker is the manual side of email/application linking.
type ApplicationLinker interface {
	Link(ctx context.Context, accountID, emailID, applicationID string) (*appdomain.EmailLink, error)
	Unlink(ctx context.Context, accountID, emailID string) error
	CreateFromEmail(ctx context.Context, accountID, emailID, companyName, position string) (*appdomain.Application, error)
}

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
	syncService  usecase.SyncService
	linker       ApplicationLinker
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase, syncService usecase.SyncService, linker ApplicationLinker) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
		syncService:  syncService,
		linker:       linker,
	}
}

// List supports ?status=UNREAD and ?job_related=true|false|unknown.
func (h *EmailHandler) List(c *gin.Context) {
	var filter emaildomain.EmailFilter

	if raw := c.Query("status"); raw != "" {
		status, err := emaildomain.ParseEmailStatus(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Status = &status
	}

	if raw := c.Query("job_related"); raw != "" {
		var relevance emaildomain.JobRelevance
		switch strings.ToLower(raw) {
		case "true":
			relevance = emaildomain.JobRelated
		case "false":
			relevance = emaildomain.NotJobRelated
		case "unknown", "null":
			relevance = emaildomain.UnknownRelevance
		default:
			response.Error(c, apperror.Validation("job_related must be true, false or unknown"))
			return
		}
		filter.JobRelated = &relevance
	}

	emails, err := h.emailUsecase.ListEmails(c.Request.Context(), authdelivery.AccountID(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, emaildto.EmailsResponse{Emails: emails, Total: len(emails)})
}

func (h *EmailHandler) Get(c *gin.Context) {
	email, err := h.emailUsecase.GetEmail(c.Request.Context(), authdelivery.AccountID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, email)
}

func (h *EmailHandler) UpdateStatus(c *gin.Context) {
	var req emaildto.UpdateEmailStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	status, err := emaildomain.ParseEmailStatus(req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	email, err := h.emailUsecase.UpdateStatus(c.Request.Context(), authdelivery.AccountID(c), c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, email)
}

// Sync runs one ingestion batch. A provider failure still returns the
// partial report next to the error.
func (h *EmailHandler) Sync(c *gin.Context) {
	var req emaildto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err)
		return
	}
	daysBack, maxResults := req.Values()

	report, err := h.syncService.FetchBatch(c.Request.Context(), authdelivery.AccountID(c), daysBack, maxResults)
	if err != nil {
		if report == nil {
			response.Error(c, err)
			return
		}
		status := response.StatusCode(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
			msg = "sync aborted"
		}
		c.AbortWithStatusJSON(status, emaildto.SyncFailedResponse{
			Error:  msg,
			Kind:   apperror.Kind(err),
			Report: report,
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *EmailHandler) SyncStatus(c *gin.Context) {
	status, err := h.syncService.Status(c.Request.Context(), authdelivery.AccountID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *EmailHandler) Reclassify(c *gin.Context) {
	report, err := h.emailUsecase.ReclassifyAll(c.Request.Context(), authdelivery.AccountID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *EmailHandler) Link(c *gin.Context) {
	var req emaildto.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	link, err := h.linker.Link(c.Request.Context(), authdelivery.AccountID(c), c.Param("id"), req.ApplicationID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

func (h *EmailHandler) Unlink(c *gin.Context) {
	if err := h.linker.Unlink(c.Request.Context(), authdelivery.AccountID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateApplication opens a new application from the email and links it.
func (h *EmailHandler) CreateApplication(c *gin.Context) {
	var req emaildto.CreateApplicationFromEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err)
		return
	}

	app, err := h.linker.CreateFromEmail(c.Request.Context(), authdelivery.AccountID(c), c.Param("id"), req.CompanyName, req.Position)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}
