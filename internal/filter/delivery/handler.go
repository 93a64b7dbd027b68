package delivery

import (
	"net/http"

	authdelivery "jobtrail-backend/internal/auth/delivery"
	filterdomain "jobtrail-backend/internal/filter/domain"
	filterdto "jobtrail-backend/internal/filter/dto"
	"jobtrail-backend/internal/filter/usecase"
	"jobtrail-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type DomainFilterHandler struct {
	engine *usecase.Engine
}

func NewDomainFilterHandler(engine *usecase.Engine) *DomainFilterHandler {
	return &DomainFilterHandler{engine: engine}
}

func (h *DomainFilterHandler) List(c *gin.Context) {
	filters, err := h.engine.ListFilters(c.Request.Context(), authdelivery.AccountID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if filters == nil {
		filters = []*filterdomain.DomainFilter{}
	}

	c.JSON(http.StatusOK, filterdto.DomainFiltersResponse{Filters: filters})
}

func (h *DomainFilterHandler) Create(c *gin.Context) {
	var req filterdto.CreateDomainFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	filter, err := h.engine.AddFilter(c.Request.Context(), authdelivery.AccountID(c), req.Domain, req.IsAllowed)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, filter)
}

func (h *DomainFilterHandler) Toggle(c *gin.Context) {
	filter, err := h.engine.ToggleFilter(c.Request.Context(), authdelivery.AccountID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, filter)
}

func (h *DomainFilterHandler) Delete(c *gin.Context) {
	if err := h.engine.RemoveFilter(c.Request.Context(), authdelivery.AccountID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
