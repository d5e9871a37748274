package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	trackingscriptdomain "github.com/doorbellhq/doorbell/internal/trackingscript/domain"
	"gorm.io/datatypes"
)

type createTrackingScriptRequest struct {
	Name            string            `json:"name"`
	FieldMappings   datatypes.JSONMap `json:"field_mappings"`
	AutoLeadCapture *bool             `json:"auto_lead_capture"`
	TrackAllForms   *bool             `json:"track_all_forms"`
	TrackPageViews  *bool             `json:"track_page_views"`
}

type updateTrackingScriptRequest struct {
	Name            *string           `json:"name,omitempty"`
	FieldMappings   datatypes.JSONMap `json:"field_mappings,omitempty"`
	AutoLeadCapture *bool             `json:"auto_lead_capture,omitempty"`
	TrackAllForms   *bool             `json:"track_all_forms,omitempty"`
	TrackPageViews  *bool             `json:"track_page_views,omitempty"`
	Active          *bool             `json:"active,omitempty"`
}

func (s *Server) CreateTrackingScript(c *gin.Context) {
	var req createTrackingScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.scriptSvc.Create(c.Request.Context(), trackingscriptdomain.CreateScriptRequest{
		Name:            strings.TrimSpace(req.Name),
		FieldMappings:   req.FieldMappings,
		AutoLeadCapture: req.AutoLeadCapture,
		TrackAllForms:   req.TrackAllForms,
		TrackPageViews:  req.TrackPageViews,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTrackingScripts(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.scriptSvc.List(c.Request.Context(), trackingscriptdomain.ListScriptRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTrackingScriptByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.scriptSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTrackingScript(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateTrackingScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.scriptSvc.Update(c.Request.Context(), trackingscriptdomain.UpdateScriptRequest{
		ID:              id,
		Name:            trimStringPtr(req.Name),
		FieldMappings:   req.FieldMappings,
		AutoLeadCapture: req.AutoLeadCapture,
		TrackAllForms:   req.TrackAllForms,
		TrackPageViews:  req.TrackPageViews,
		Active:          req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RotateTrackingScriptKey issues a fresh script key. Embedded pixels keep
// working until the cached old key expires.
func (s *Server) RotateTrackingScriptKey(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.scriptSvc.RegenerateKey(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
