package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	parkingdomain "github.com/railzwaylabs/parkway/internal/parking/domain"
)

type parkRequest struct {
	FacilityID string `json:"facility_id" binding:"required"`
	Vehicle    string `json:"vehicle" binding:"required"`
}

// @Summary      Park
// @Description  Start a parking session for a vehicle at a facility
// @Tags         parking
// @Accept       json
// @Produce      json
// @Param        X-Simulated-Time  header  string  false  "Simulated request time (RFC3339)"
// @Param        request body parkRequest true "Park Request"
// @Success      201  {object}  DataResponse
// @Router       /park [post]
func (s *Server) Park(c *gin.Context) {
	var req parkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	facilityID, err := snowflake.ParseString(req.FacilityID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.parkingSvc.Park(c.Request.Context(), parkingdomain.ParkRequest{
		FacilityID: facilityID,
		Vehicle:    req.Vehicle,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

// @Summary      Leave
// @Description  Close the active session of a vehicle and bill the stay
// @Tags         parking
// @Accept       json
// @Produce      json
// @Param        X-Simulated-Time  header  string  false  "Simulated request time (RFC3339)"
// @Param        request body parkingdomain.LeaveRequest true "Leave Request"
// @Success      200  {object}  DataResponse
// @Router       /leave [post]
func (s *Server) Leave(c *gin.Context) {
	var req parkingdomain.LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.parkingSvc.Leave(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}
