package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/crewradar/internal/assign"
	"github.com/zulandar/crewradar/internal/jira"
	"github.com/zulandar/crewradar/internal/presence"
	"github.com/zulandar/crewradar/internal/rules"
)

// maxEventBytes bounds an inbound event body.
const maxEventBytes = 1 << 20

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, d Deps) {
	router.GET("/healthz", handleHealth())

	api := router.Group("/api")
	api.POST("/events", handleEvent(d))
	api.POST("/issues/:key/assign", handleAssignIssue(d))
	api.GET("/assignments", handleAssignments(d))

	api.POST("/agents/:id/heartbeat", handleHeartbeat(d))
	api.GET("/agents/:id/status", handleGetStatus(d))
	api.PUT("/agents/:id/status", handlePutStatus(d))
	api.GET("/agents/:id/sync", handleGetSync(d))
	api.PUT("/agents/:id/sync", handlePutSync(d))
	api.GET("/agents", handleListAgents(d))
	api.GET("/groups/:group/agents", handleListAgents(d))

	api.GET("/rules", handleListRules(d))
	api.PUT("/rules", handleSaveRules(d))
	api.POST("/rules", handlePutRule(d))
	api.DELETE("/rules/:id", handleDeleteRule(d))
	api.GET("/projects/:id/request-types", handleRequestTypes(d))

	api.GET("/presence/check", handlePresenceCheck(d))
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// upstreamStatus maps a failed call to the status the caller sees.
func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, jira.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleEvent(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes))
		if err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		ev, err := assign.ParseEvent(body)
		if err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		out, err := d.Engine.IngestEvent(c.Request.Context(), ev)
		if err != nil {
			log.Printf("server: event %s on %s [%s]: %v", ev.Name, ev.IssueKey, c.GetString("requestID"), err)
			abortError(c, upstreamStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleAssignIssue(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := d.Engine.IngestIssue(c.Request.Context(), c.Param("key"))
		if err != nil {
			abortError(c, upstreamStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleAssignments(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		hist, err := d.Engine.History(c.Request.Context(), c.Query("issue"), limit)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, hist)
	}
}

func handleHeartbeat(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := d.Heartbeat.Beat(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func handleGetStatus(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := d.Roster.AgentStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func handlePutStatus(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		st, ok := presence.ParseStatus(req.Status)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status " + strconv.Quote(req.Status), "allowed": presence.All})
			return
		}
		rec, err := d.Presence.SetStatus(c.Request.Context(), c.Param("id"), st)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

type syncBody struct {
	SyncFromTeams *bool `json:"syncFromTeams"`
}

func handleGetSync(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		on := d.Presence.SyncEnabled(c.Request.Context(), c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"syncFromTeams": on})
	}
}

func handlePutSync(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req syncBody
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		if req.SyncFromTeams == nil {
			abortError(c, http.StatusBadRequest, errors.New("syncFromTeams is required"))
			return
		}
		if err := d.Presence.SetSync(c.Request.Context(), c.Param("id"), *req.SyncFromTeams); err != nil {
			abortError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"syncFromTeams": *req.SyncFromTeams})
	}
}

func handleListAgents(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		agents, err := d.Roster.ListStatuses(c.Request.Context(), c.Param("group"))
		if err != nil {
			abortError(c, upstreamStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, agents)
	}
}

func handleListRules(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rs, err := d.Rules.List(c.Request.Context())
		if err != nil {
			abortError(c, http.StatusInternalServerError, err)
			return
		}
		if rs == nil {
			rs = []rules.Rule{}
		}
		c.JSON(http.StatusOK, rs)
	}
}

func handleSaveRules(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rs []rules.Rule
		if err := c.ShouldBindJSON(&rs); err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		saved, err := d.Rules.Save(c.Request.Context(), rs)
		if err != nil {
			abortError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}

func handlePutRule(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r rules.Rule
		if err := c.ShouldBindJSON(&r); err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
		saved, err := d.Rules.Put(c.Request.Context(), r)
		if err != nil {
			abortError(c, http.StatusUnprocessableEntity, err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}

func handleDeleteRule(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Rules.Delete(c.Request.Context(), c.Param("id")); err != nil {
			abortError(c, http.StatusInternalServerError, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleRequestTypes(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.RequestTypes == nil {
			abortError(c, http.StatusNotImplemented, errors.New("request types are unavailable"))
			return
		}
		rts, err := d.RequestTypes.RequestTypes(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortError(c, upstreamStatus(err), err)
			return
		}
		if rts == nil {
			rts = []jira.RequestType{}
		}
		c.JSON(http.StatusOK, rts)
	}
}

func handlePresenceCheck(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Directory == nil {
			c.JSON(http.StatusOK, gin.H{"enabled": false, "ok": false})
			return
		}
		if err := d.Directory.Check(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"enabled": true, "ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"enabled": true, "ok": true})
	}
}
