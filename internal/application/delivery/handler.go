package delivery

import (
	"net/http"

	"jobtrail-backend/internal/application/dto"
	"jobtrail-backend/internal/application/usecase"
	authdelivery "jobtrail-backend/internal/auth/delivery"
	"jobtrail-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct {
	applicationUsecase usecase.ApplicationUsecase
	lifecycle          *usecase.Lifecycle
}

func NewApplicationHandler(applicationUsecase usecase.ApplicationUsecase, lifecycle *usecase.Lifecycle) *ApplicationHandler {
	return &ApplicationHandler{
		applicationUsecase: applicationUsecase,
		lifecycle:          lifecycle,
	}
}

func (h *ApplicationHandler) List(c *gin.Context) {
	apps, err := h.applicationUsecase.ListApplications(c.Request.Context(), authdelivery.AccountID(c), c.Query("search"), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ApplicationsResponse{Applications: apps, Total: len(apps)})
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.applicationUsecase.GetApplication(c.Request.Context(), authdelivery.AccountID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) Create(c *gin.Context) {
	var req dto.ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	app, err := h.applicationUsecase.CreateApplication(c.Request.Context(), authdelivery.AccountID(c), req.Input())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

func (h *ApplicationHandler) Update(c *gin.Context) {
	var req dto.ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	app, err := h.applicationUsecase.UpdateApplication(c.Request.Context(), authdelivery.AccountID(c), c.Param("id"), req.Input())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) Delete(c *gin.Context) {
	if err := h.applicationUsecase.DeleteApplication(c.Request.Context(), authdelivery.AccountID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ApplicationHandler) Kanban(c *gin.Context) {
	columns, err := h.applicationUsecase.Kanban(c.Request.Context(), authdelivery.AccountID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.KanbanResponse{Columns: columns})
}

func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	var req dto.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	app, err := h.lifecycle.Transition(c.Request.Context(), authdelivery.AccountID(c), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) History(c *gin.Context) {
	history, err := h.lifecycle.History(c.Request.Context(), authdelivery.AccountID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.HistoryResponse{History: history})
}
