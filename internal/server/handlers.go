package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/auth"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/errors"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(c.Request.Context(), user); err != nil {
		writeError(c, err)
		return
	}
	token, err := s.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	user, err := s.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := s.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.store.GetUser(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type createProjectRequest struct {
	Name                     string `json:"name" binding:"required"`
	Description              string `json:"description"`
	StrictnessMode           string `json:"strictness_mode"`
	AutoConfirmWindowSeconds int64  `json:"auto_confirm_window_seconds"`
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	mode := models.StrictnessMode(req.StrictnessMode)
	if req.StrictnessMode == "" {
		mode = models.StrictnessVisibility
	}
	if !mode.Valid() {
		writeError(c, errors.ValidationErrorf("unknown strictness mode %q", req.StrictnessMode))
		return
	}
	now := time.Now().UTC()
	project := &models.Project{
		ID:                uuid.New().String(),
		OwnerID:           currentUser(c),
		Name:              req.Name,
		Description:       req.Description,
		StrictnessMode:    mode,
		AutoConfirmWindow: time.Duration(req.AutoConfirmWindowSeconds) * time.Second,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateProject(c.Request.Context(), project); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context(), c.Query("owner_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

type updatePolicyRequest struct {
	StrictnessMode           string `json:"strictness_mode" binding:"required"`
	AutoConfirmWindowSeconds int64  `json:"auto_confirm_window_seconds"`
}

// handleUpdatePolicy changes the project policy going forward. Changes
// already submitted keep the strictness they were born with.
func (s *Server) handleUpdatePolicy(c *gin.Context) {
	var req updatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	mode := models.StrictnessMode(req.StrictnessMode)
	if !mode.Valid() {
		writeError(c, errors.ValidationErrorf("unknown strictness mode %q", req.StrictnessMode))
		return
	}
	ctx := c.Request.Context()
	project, err := s.store.GetProject(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if project.OwnerID != currentUser(c) {
		writeError(c, errors.ValidationErrorf("only the project owner can change policy"))
		return
	}
	window := time.Duration(req.AutoConfirmWindowSeconds) * time.Second
	if err := s.store.UpdateProjectPolicy(ctx, project.ID, mode, window); err != nil {
		writeError(c, err)
		return
	}
	project, err = s.store.GetProject(ctx, project.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

type createComponentRequest struct {
	Name      string `json:"name" binding:"required"`
	FileCount int    `json:"file_count"`
}

func (s *Server) handleCreateComponent(c *gin.Context) {
	var req createComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	ctx := c.Request.Context()
	project, err := s.store.GetProject(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	component := &models.Component{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Name:      req.Name,
		Status:    models.ComponentStable,
		FileCount: req.FileCount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateComponent(ctx, component); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, component)
}

func (s *Server) handleListComponents(c *gin.Context) {
	components, err := s.store.ListComponents(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, components)
}

type addContributorRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

func (s *Server) handleAddContributor(c *gin.Context) {
	var req addContributorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	role := req.Role
	if role == "" {
		role = "contributor"
	}
	contributor := &models.ComponentContributor{
		ComponentID: c.Param("id"),
		UserID:      req.UserID,
		Role:        role,
		GrantedAt:   time.Now().UTC(),
	}
	if err := s.store.AddContributor(c.Request.Context(), contributor); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contributor)
}

type submitChangeRequest struct {
	Title             string `json:"title" binding:"required"`
	Description       string `json:"description"`
	SourceComponentID string `json:"source_component_id"`
}

func (s *Server) handleSubmitChange(c *gin.Context) {
	var req submitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	change, err := s.svc.SubmitChange(c.Request.Context(),
		c.Param("id"), currentUser(c), req.SourceComponentID, req.Title, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, change)
}

func (s *Server) handleListChanges(c *gin.Context) {
	changes, err := s.store.ListChanges(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, changes)
}

// handleGetImpactSet returns the change with its impact rows. Reading
// sweeps expired soft-mode deadlines first, so the response never shows
// a stale waiting row past its auto-confirm time.
func (s *Server) handleGetImpactSet(c *gin.Context) {
	change, impacts, err := s.svc.GetImpactSet(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	role, err := s.svc.ResolveUserRole(c.Request.Context(), change.ID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"change":  change,
		"impacts": impacts,
		"role":    role,
	})
}

type deliverDetectionRequest struct {
	Impacts []models.ImpactInput `json:"impacts" binding:"required"`
}

func (s *Server) handleDeliverDetection(c *gin.Context) {
	var req deliverDetectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	rows, err := s.svc.DeliverDetection(c.Request.Context(), c.Param("id"), req.Impacts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"impacts": rows})
}

func (s *Server) handleGate(c *gin.Context) {
	canMerge, reason, err := s.svc.Gate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"can_merge": canMerge, "reason": reason})
}

type setCIStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handleSetCIStatus(c *gin.Context) {
	var req setCIStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	status := models.CIStatus(req.Status)
	switch status {
	case models.CIRunning, models.CIPassed, models.CIFailed:
	default:
		writeError(c, errors.ValidationErrorf("unknown ci status %q", req.Status))
		return
	}
	if err := s.svc.SetCIStatus(c.Request.Context(), c.Param("id"), status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

type ackRequest struct {
	ComponentID string `json:"component_id" binding:"required"`
	Note        string `json:"note"`
}

func (s *Server) impactKey(c *gin.Context, componentID string) models.ImpactKey {
	return models.ImpactKey{
		ChangeID:      c.Param("id"),
		ComponentID:   componentID,
		ContributorID: currentUser(c),
	}
}

func (s *Server) handleAcknowledge(c *gin.Context) {
	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	key := s.impactKey(c, req.ComponentID)
	var imp *models.Impact
	var err error
	if req.Note != "" {
		imp, err = s.svc.ConfirmWithNote(c.Request.Context(), key, currentUser(c), req.Note)
	} else {
		imp, err = s.svc.Acknowledge(c.Request.Context(), key, currentUser(c))
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}

func (s *Server) handleAdjust(c *gin.Context) {
	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	imp, err := s.svc.StartAdjusting(c.Request.Context(), s.impactKey(c, req.ComponentID), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}

func (s *Server) handleAdjustCancel(c *gin.Context) {
	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	imp, err := s.svc.CancelAdjusting(c.Request.Context(), s.impactKey(c, req.ComponentID), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}

func (s *Server) handleDismiss(c *gin.Context) {
	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	imp, err := s.svc.Dismiss(c.Request.Context(), s.impactKey(c, req.ComponentID), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, imp)
}

func (s *Server) handleApprove(c *gin.Context) {
	change, err := s.svc.Approve(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, change)
}

func (s *Server) handleReject(c *gin.Context) {
	change, err := s.svc.Reject(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, change)
}

func (s *Server) handleRequestRevisions(c *gin.Context) {
	change, err := s.svc.RequestRevisions(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, change)
}

type nudgeRequest struct {
	ContributorID string `json:"contributor_id" binding:"required"`
}

func (s *Server) handleNudge(c *gin.Context) {
	var req nudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	if err := s.svc.Nudge(c.Request.Context(), c.Param("id"), currentUser(c), req.ContributorID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nudged": req.ContributorID})
}

func (s *Server) handleListNotifications(c *gin.Context) {
	notifications, err := s.store.ListNotifications(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

type markReadRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

func (s *Server) handleMarkNotificationsRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ValidationErrorf("invalid request: %v", err))
		return
	}
	if !req.All && len(req.IDs) == 0 {
		writeError(c, errors.ValidationErrorf("ids or all required"))
		return
	}
	if err := s.store.MarkNotificationsRead(c.Request.Context(), currentUser(c), req.IDs, req.All); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
