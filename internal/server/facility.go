package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	facilitydomain "github.com/railzwaylabs/parkway/internal/facility/domain"
	pricingdomain "github.com/railzwaylabs/parkway/internal/pricing/domain"
)

type replaceRatesRequest struct {
	Tiers pricingdomain.RateTable `json:"tiers"`
}

// @Summary      Create Facility
// @Description  Create a facility with its rate tiers and capacity
// @Tags         facilities
// @Accept       json
// @Produce      json
// @Param        request body facilitydomain.CreateRequest true "Create Facility Request"
// @Success      201  {object}  DataResponse
// @Router       /facilities [post]
func (s *Server) CreateFacility(c *gin.Context) {
	var req facilitydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.facilitySvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

// @Summary      Get Facility
// @Description  Get a facility with its rate tiers and current capacity
// @Tags         facilities
// @Produce      json
// @Param        id   path      string  true  "Facility ID"
// @Success      200  {object}  DataResponse
// @Router       /facilities/{id} [get]
func (s *Server) GetFacility(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.facilitySvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

// @Summary      Replace Facility Rates
// @Description  Replace the rate tiers of a facility
// @Tags         facilities
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Facility ID"
// @Param        request body replaceRatesRequest true "Rate tiers"
// @Success      200  {object}  DataResponse
// @Router       /facilities/{id}/rates [put]
func (s *Server) ReplaceFacilityRates(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req replaceRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tiers, err := s.facilitySvc.ReplaceRates(c.Request.Context(), id, req.Tiers)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, tiers)
}

// @Summary      Quote
// @Description  Price a stay of the given length without parking
// @Tags         facilities
// @Produce      json
// @Param        id       path   string  true  "Facility ID"
// @Param        minutes  query  number  true  "Stay length in minutes"
// @Success      200  {object}  DataResponse
// @Router       /facilities/{id}/quote [get]
func (s *Server) QuoteFacility(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	minutes, err := strconv.ParseFloat(strings.TrimSpace(c.Query("minutes")), 64)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.facilitySvc.Quote(c.Request.Context(), id, minutes)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func pathID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		AbortWithError(c, invalidRequestError())
		return 0, false
	}
	return id, true
}
