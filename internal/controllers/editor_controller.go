package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"route_editor/internal/editor"
	"route_editor/internal/middleware"
	"route_editor/internal/models"
)

type indicesInput struct {
	Indices []int `json:"indices" binding:"required"`
}

// workflow resolves the :sid path parameter, responding 404 when it is unknown.
func (h *Handler) workflow(c *gin.Context) (*editor.Workflow, bool) {
	w, err := h.sessions.Get(c.Param("sid"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return w, true
}

func pointIndex(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid point index"})
		return 0, false
	}
	return i, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return false
	}
	return true
}

// OpenSession starts editing an existing route (route_id) or a new one.
func (h *Handler) OpenSession(c *gin.Context) {
	var input struct {
		RouteID string `json:"route_id"`
		Name    string `json:"name"`
		Color   string `json:"color"`
		Public  bool   `json:"public"`
	}
	if c.Request.ContentLength != 0 && !bindJSON(c, &input) {
		return
	}

	var (
		w      *editor.Workflow
		reused bool
		err    error
	)
	if input.RouteID != "" {
		ctx := c.Request.Context()
		w, reused, err = h.sessions.OpenStored(input.RouteID, func() (models.Route, error) {
			return h.routes.Get(ctx, input.RouteID)
		})
	} else {
		route := models.Route{
			Name:   strings.TrimSpace(input.Name),
			Color:  input.Color,
			Public: input.Public,
		}
		if route.Color != "" && !models.ValidColor(models.NormalizeColor(route.Color)) {
			respondError(c, &models.ValidationError{Field: "color", Message: "must be a #RRGGBB hex color"})
			return
		}
		w, reused, err = h.sessions.Open(route)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"session_id": w.ID,
		"route_id":   w.RouteID(),
		"actor":      middleware.ActorID(c),
		"reused":     reused,
	}).Info("Edit session requested.")

	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	c.JSON(status, w.State())
}

// GetSession returns the state of an edit session.
func (h *Handler) GetSession(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// CloseSession ends an edit session, discarding unsaved changes.
func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("sid")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

// UpdateSessionMetadata edits name, color or visibility.
func (h *Handler) UpdateSessionMetadata(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	var input editor.Metadata
	if !bindJSON(c, &input) {
		return
	}
	if err := w.SetMetadata(input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// AddPoint appends a point entered by hand.
func (h *Handler) AddPoint(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	var input pointInput
	if !bindJSON(c, &input) {
		return
	}
	p, err := input.toPoint()
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := w.Session.AddPoint(p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w.State())
}

// UpdatePoint edits a point in place from the point dialog.
func (h *Handler) UpdatePoint(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	index, ok := pointIndex(c)
	if !ok {
		return
	}
	var patch editor.PointPatch
	if !bindJSON(c, &patch) {
		return
	}
	if _, err := w.Session.UpdatePoint(index, patch); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// MovePoint applies a drag that did not come through the map bridge.
func (h *Handler) MovePoint(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	index, ok := pointIndex(c)
	if !ok {
		return
	}
	var input struct {
		Latitude  *float64 `json:"latitude" binding:"required"`
		Longitude *float64 `json:"longitude" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	if err := w.Session.MovePoint(index, *input.Latitude, *input.Longitude); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// DeletePoint removes one point.
func (h *Handler) DeletePoint(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	index, ok := pointIndex(c)
	if !ok {
		return
	}
	if err := w.Session.DeletePoint(index); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// DeletePoints removes a batch of points, or the current selection when no
// indices are sent.
func (h *Handler) DeletePoints(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	var input struct {
		Indices []int `json:"indices"`
	}
	if c.Request.ContentLength != 0 && !bindJSON(c, &input) {
		return
	}
	indices := input.Indices
	if indices == nil {
		indices = w.Session.Selected()
	}
	if err := w.Session.DeletePoints(indices); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// SetSelection replaces the selected points.
func (h *Handler) SetSelection(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	var input indicesInput
	if !bindJSON(c, &input) {
		return
	}
	if err := w.Session.Select(input.Indices); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// SetAddMode turns click-to-add on the map on or off.
func (h *Handler) SetAddMode(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	var input struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}
	w.Session.SetAddPointMode(*input.Enabled)
	c.JSON(http.StatusOK, w.State())
}

// RevertSession discards unsaved point edits.
func (h *Handler) RevertSession(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	w.Session.Revert()
	c.JSON(http.StatusOK, w.State())
}

// SaveSession persists the session's route.
func (h *Handler) SaveSession(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	saved, err := w.Save(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Route saved",
		"route":   toRouteResponse(saved),
		"session": w.State(),
	})
}

// PreviewSession draws a directions path from the first to the last point.
func (h *Handler) PreviewSession(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	var input struct {
		Profile string `json:"profile"`
	}
	if c.Request.ContentLength != 0 && !bindJSON(c, &input) {
		return
	}
	res, err := w.PreviewPath(c.Request.Context(), input.Profile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
