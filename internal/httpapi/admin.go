package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agoracore/internal/database"
	"agoracore/internal/models"
	"agoracore/internal/orchestrator"
	"agoracore/internal/sandbox"
)

// AdminHandler exposes the minimal surface needed to register participants
// and launch runs, topics, and sandbox validation. It is intentionally thin:
// a full CRUD/auth facade is out of scope for this module, but the
// orchestration core needs some way to be driven.
type AdminHandler struct {
	Participants *database.ParticipantRepository
	Runs         *database.RunRepository
	Topics       *database.TopicRepository
	Debates      *orchestrator.DebateOrchestrator
	Discussions  *orchestrator.TopicOrchestrator
	Sandbox      *sandbox.Validator
	Log          *logrus.Logger
}

// Register mounts the admin routes onto a gin engine.
func (h *AdminHandler) Register(r gin.IRouter) {
	r.POST("/participants", h.createParticipant)
	r.POST("/runs", h.createRun)
	r.POST("/topics", h.createTopic)
	r.POST("/participants/:id/sandbox", h.runSandbox)
}

type createParticipantRequest struct {
	Name        string `json:"name" binding:"required"`
	Kind        string `json:"kind" binding:"required"`
	EndpointURL string `json:"endpoint_url"`
	Model       string `json:"model"`
}

func (h *AdminHandler) createParticipant(c *gin.Context) {
	var req createParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant := &models.Participant{
		Name:   req.Name,
		Kind:   models.ParticipantKind(req.Kind),
		Status: models.ParticipantStatusPending,
	}
	if participant.Kind == models.ParticipantBuiltin {
		participant.Status = models.ParticipantStatusActive
	}
	if req.EndpointURL != "" {
		participant.EndpointURL = &req.EndpointURL
	}
	if req.Model != "" {
		participant.Model = &req.Model
	}

	if err := h.Participants.Insert(c.Request.Context(), participant); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, participant)
}

func (h *AdminHandler) runSandbox(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	go func() {
		if err := h.Sandbox.Validate(context.Background(), id); err != nil {
			h.Log.WithError(err).WithField("participant_id", id).Error("Sandbox validation failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "running"})
}

type createRunRequest struct {
	Topic               string `json:"topic" binding:"required"`
	Format              string `json:"format" binding:"required"`
	Mode                string `json:"mode"`
	MaxTurns            int    `json:"max_turns"`
	TurnTimeoutSeconds  int    `json:"turn_timeout_seconds"`
	TurnCooldownSeconds int    `json:"turn_cooldown_seconds"`
	Participations      []struct {
		ParticipantID string `json:"participant_id" binding:"required"`
		Side          string `json:"side" binding:"required"`
	} `json:"participations" binding:"required"`
}

func (h *AdminHandler) createRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := models.RunMode(req.Mode)
	if mode == "" {
		mode = models.RunModeAsync
	}

	run := &models.Run{
		Topic:               req.Topic,
		Format:              models.RunFormat(req.Format),
		Mode:                mode,
		Status:              models.RunStatusPending,
		MaxTurns:            orDefault(req.MaxTurns, 6),
		TurnTimeoutSeconds:  orDefault(req.TurnTimeoutSeconds, 120),
		TurnCooldownSeconds: orDefault(req.TurnCooldownSeconds, 5),
	}
	if err := h.Runs.Insert(c.Request.Context(), run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for i, p := range req.Participations {
		participantID, err := uuid.Parse(p.ParticipantID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant_id"})
			return
		}
		participation := &models.Participation{
			RunID:         run.ID,
			ParticipantID: participantID,
			Side:          models.Side(p.Side),
			TurnOrder:     i,
		}
		if err := h.Runs.InsertParticipation(c.Request.Context(), participation); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	go h.Debates.Run(context.Background(), run.ID)
	c.JSON(http.StatusCreated, run)
}

type createTopicRequest struct {
	Title                  string `json:"title" binding:"required"`
	Description            string `json:"description"`
	PollingIntervalSeconds int    `json:"polling_interval_seconds"`
	Participants           []struct {
		ParticipantID string `json:"participant_id" binding:"required"`
		MaxComments   int    `json:"max_comments"`
	} `json:"participants" binding:"required"`
}

func (h *AdminHandler) createTopic(c *gin.Context) {
	var req createTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topic := &models.Topic{
		Title:                  req.Title,
		Status:                 models.TopicStatusOpen,
		PollingIntervalSeconds: orDefault(req.PollingIntervalSeconds, 30),
	}
	if req.Description != "" {
		topic.Description = &req.Description
	}
	if err := h.Topics.Insert(c.Request.Context(), topic); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for _, p := range req.Participants {
		participantID, err := uuid.Parse(p.ParticipantID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant_id"})
			return
		}
		tp := &models.TopicParticipant{
			TopicID:       topic.ID,
			ParticipantID: participantID,
			MaxComments:   orDefault(p.MaxComments, 10),
		}
		if err := h.Topics.InsertParticipant(c.Request.Context(), tp); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	go h.Discussions.Run(context.Background(), topic.ID)
	c.JSON(http.StatusCreated, topic)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
