package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	parkingdomain "github.com/railzwaylabs/parkway/internal/parking/domain"
)

// @Summary      Get Transaction
// @Description  Get the record of a completed stay
// @Tags         transactions
// @Produce      json
// @Param        id   path      string  true  "Transaction ID"
// @Success      200  {object}  DataResponse
// @Router       /transactions/{id} [get]
func (s *Server) GetTransaction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	rec, err := s.transactionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, rec)
}

// @Summary      List Vehicle Transactions
// @Description  List the most recent completed stays of a vehicle
// @Tags         transactions
// @Produce      json
// @Param        vehicle  path   string  true   "Licence plate"
// @Param        limit    query  int     false  "Maximum number of records"
// @Success      200  {object}  DataResponse
// @Router       /vehicles/{vehicle}/transactions [get]
func (s *Server) ListVehicleTransactions(c *gin.Context) {
	vehicle, err := parkingdomain.NormalizeVehicle(c.Param("vehicle"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	items, err := s.transactionSvc.ListByVehicle(c.Request.Context(), vehicle, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, items)
}
