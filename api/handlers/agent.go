package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ai-chat-a2a/backend/internal/agent"
	"github.com/ai-chat-a2a/backend/internal/model"
	"github.com/ai-chat-a2a/backend/internal/repository"
)

// AgentHandler handles HTTP requests for agent configuration management.
type AgentHandler struct {
	agents *repository.AgentRepository
	client *agent.Client
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(agents *repository.AgentRepository, client *agent.Client) *AgentHandler {
	return &AgentHandler{
		agents: agents,
		client: client,
	}
}

// Create handles POST /api/v1/agents - registers a new agent configuration.
func (h *AgentHandler) Create(c *gin.Context) {
	var req model.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	now := time.Now().UTC()
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	capabilities := req.Capabilities
	if capabilities == nil {
		capabilities = []string{}
	}

	agentConfig := &model.Agent{
		ID:           uuid.New().String(),
		Name:         req.Name,
		EndpointURL:  req.EndpointURL,
		AuthToken:    req.AuthToken,
		Capabilities: capabilities,
		IsActive:     isActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.agents.Create(c.Request.Context(), agentConfig); err != nil {
		if errors.Is(err, model.ErrAgentNameTaken) {
			sendError(c, http.StatusConflict, "NAME_CONFLICT", "Agent with name '"+req.Name+"' already exists")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create agent: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, agentConfig)
}

// List handles GET /api/v1/agents - lists all agent configurations.
func (h *AgentHandler) List(c *gin.Context) {
	agents, err := h.agents.List(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list agents: "+err.Error())
		return
	}
	if agents == nil {
		agents = []*model.Agent{}
	}

	c.JSON(http.StatusOK, agents)
}

// Get handles GET /api/v1/agents/:id - gets a specific agent configuration.
func (h *AgentHandler) Get(c *gin.Context) {
	agentID := c.Param("id")

	agentConfig, err := h.agents.GetByID(c.Request.Context(), agentID)
	if err != nil {
		if errors.Is(err, model.ErrAgentNotFound) {
			sendError(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent "+agentID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get agent: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, agentConfig)
}

// Update handles PUT /api/v1/agents/:id - updates an agent configuration.
func (h *AgentHandler) Update(c *gin.Context) {
	agentID := c.Param("id")

	var req model.UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	agentConfig, err := h.agents.Update(c.Request.Context(), agentID, &req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAgentNotFound):
			sendError(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent "+agentID+" not found")
		case errors.Is(err, model.ErrAgentNameTaken):
			sendError(c, http.StatusConflict, "NAME_CONFLICT", "Agent name already exists")
		default:
			sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update agent: "+err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, agentConfig)
}

// Delete handles DELETE /api/v1/agents/:id - removes an agent configuration.
func (h *AgentHandler) Delete(c *gin.Context) {
	agentID := c.Param("id")

	if err := h.agents.Delete(c.Request.Context(), agentID); err != nil {
		if errors.Is(err, model.ErrAgentNotFound) {
			sendError(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent "+agentID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete agent: "+err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// Validate handles POST /api/v1/agents/:id/validate - probes the agent's
// endpoint and reports reachability and latency.
func (h *AgentHandler) Validate(c *gin.Context) {
	agentID := c.Param("id")

	agentConfig, err := h.agents.GetByID(c.Request.Context(), agentID)
	if err != nil {
		if errors.Is(err, model.ErrAgentNotFound) {
			sendError(c, http.StatusNotFound, "AGENT_NOT_FOUND", "Agent "+agentID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get agent: "+err.Error())
		return
	}

	result := h.client.ValidateConnection(c.Request.Context(), agentConfig.EndpointURL, agentConfig.AuthToken)
	c.JSON(http.StatusOK, result)
}

// RegisterRoutes registers the agent handler routes on a Gin router group.
func (h *AgentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	agents := rg.Group("/agents")
	{
		agents.POST("", h.Create)
		agents.GET("", h.List)
		agents.GET("/:id", h.Get)
		agents.PUT("/:id", h.Update)
		agents.DELETE("/:id", h.Delete)
		agents.POST("/:id/validate", h.Validate)
	}
}
