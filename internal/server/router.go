package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rangeops/doctrine/backend/internal/auth"
	"github.com/rangeops/doctrine/backend/internal/content"
	"go.uber.org/zap"
)

const actorContextKey = "doctrine_actor"

var (
	errMissingTokenValidator  = errors.New("token validator dependency required")
	errMissingContentService  = errors.New("content service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
	errUnknownActorRole       = errors.New("token carries an unknown role")
	heartbeatInterval         = 25 * time.Second
	errMissingEventDispatcher = errors.New("review dispatcher dependency required")
)

// TokenValidator checks a bearer token and returns the identity it carries.
type TokenValidator interface {
	ValidateToken(token string) (auth.IdentityClaims, error)
}

// IdentityRecorder persists sightings of authenticated operators.
type IdentityRecorder interface {
	Record(claims auth.IdentityClaims) error
}

// Dependencies wires the HTTP surface to the engine.
type Dependencies struct {
	TokenValidator TokenValidator
	ContentService *content.Service
	Identities     IdentityRecorder
	Dispatcher     *ReviewDispatcher
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin handler exposing the content engine.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenValidator == nil {
		return nil, errMissingTokenValidator
	}
	if deps.ContentService == nil {
		return nil, errMissingContentService
	}
	if deps.Dispatcher == nil {
		return nil, errMissingEventDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:     deps.TokenValidator,
		service:    deps.ContentService,
		identities: deps.Identities,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/items", handler.handleCreateItem)
	protected.POST("/items/:itemId/versions", handler.handleCreateVersion)
	protected.POST("/items/:itemId/versions/:versionId/restore", handler.handleRestore)
	protected.POST("/versions/:versionId/transition", handler.handleTransition)
	protected.GET("/items/:itemId/diff", handler.handleDiff)
	protected.GET("/items/:itemId/history", handler.handleHistory)
	protected.GET("/items/:itemId/verify", handler.handleVerify)
	protected.POST("/items/:itemId/lock", handler.handleLock)
	protected.DELETE("/items/:itemId/lock", handler.handleUnlock)
	protected.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	tokens     TokenValidator
	service    *content.Service
	identities IdentityRecorder
	dispatcher *ReviewDispatcher
	logger     *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	actor, err := actorFromClaims(claims)
	if err != nil {
		h.logger.Warn("token carried unusable identity", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if h.identities != nil {
		if err := h.identities.Record(claims); err != nil {
			h.logger.Warn("identity recording failed", zap.Error(err))
		}
	}

	c.Set(actorContextKey, actor)
	c.Next()
}

func actorFromClaims(claims auth.IdentityClaims) (content.Actor, error) {
	userID, err := content.NewUserID(claims.Subject)
	if err != nil {
		return content.Actor{}, err
	}
	switch content.Role(claims.Role) {
	case content.RoleEditor, content.RoleApprover, content.RoleAdmin:
		return content.Actor{UserID: userID, Role: content.Role(claims.Role)}, nil
	default:
		return content.Actor{}, errUnknownActorRole
	}
}

func (h *httpHandler) actor(c *gin.Context) (content.Actor, bool) {
	value, ok := c.Get(actorContextKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return content.Actor{}, false
	}
	actor, ok := value.(content.Actor)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return content.Actor{}, false
	}
	return actor, true
}

type createItemPayload struct {
	Title             string           `json:"title"`
	Content           string           `json:"content"`
	Metadata          content.Metadata `json:"metadata"`
	ChangeDescription string           `json:"change_description"`
}

type itemPayload struct {
	ItemID           string  `json:"item_id"`
	CurrentVersionID string  `json:"current_version_id"`
	CreatedAtSeconds int64   `json:"created_at_s"`
	CreatedBy        string  `json:"created_by"`
	IsLocked         bool    `json:"is_locked"`
	LockedBy         *string `json:"locked_by,omitempty"`
	LockedAtSeconds  *int64  `json:"locked_at_s,omitempty"`
}

type versionPayload struct {
	VersionID         string           `json:"version_id"`
	ItemID            string           `json:"item_id"`
	VersionNumber     string           `json:"version_number"`
	Title             string           `json:"title"`
	Content           string           `json:"content"`
	Metadata          content.Metadata `json:"metadata"`
	Status            string           `json:"status"`
	CreatedAtSeconds  int64            `json:"created_at_s"`
	CreatedBy         string           `json:"created_by"`
	ChangeDescription string           `json:"change_description"`
	ChangeType        string           `json:"change_type"`
	PreviousVersionID *string          `json:"prev_version_id,omitempty"`
	ApprovedBy        *string          `json:"approved_by,omitempty"`
	ApprovedAtSeconds *int64           `json:"approved_at_s,omitempty"`
	Digest            string           `json:"digest"`
}

func toItemPayload(item content.Item) itemPayload {
	return itemPayload{
		ItemID:           item.ItemID,
		CurrentVersionID: item.CurrentVersionID,
		CreatedAtSeconds: item.CreatedAtSeconds,
		CreatedBy:        item.CreatedBy,
		IsLocked:         item.IsLocked,
		LockedBy:         item.LockedBy,
		LockedAtSeconds:  item.LockedAtSeconds,
	}
}

func toVersionPayload(version content.Version) versionPayload {
	meta, err := version.Metadata()
	if err != nil {
		meta = content.Metadata{}
	}
	return versionPayload{
		VersionID:         version.VersionID,
		ItemID:            version.ItemID,
		VersionNumber:     version.VersionNumber,
		Title:             version.Title,
		Content:           version.Content,
		Metadata:          meta,
		Status:            string(version.Status),
		CreatedAtSeconds:  version.CreatedAtSeconds,
		CreatedBy:         version.CreatedBy,
		ChangeDescription: version.ChangeDescription,
		ChangeType:        string(version.ChangeType),
		PreviousVersionID: version.PreviousVersionID,
		ApprovedBy:        version.ApprovedBy,
		ApprovedAtSeconds: version.ApprovedAtSeconds,
		Digest:            version.Digest,
	}
}

func (h *httpHandler) handleCreateItem(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request createItemPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	item, version, err := h.service.CreateItem(c.Request.Context(), content.CreateItemRequest{
		Title:             request.Title,
		Content:           request.Content,
		Metadata:          request.Metadata,
		Creator:           actor,
		ChangeDescription: request.ChangeDescription,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.dispatcher.Publish(ReviewEvent{
		ItemID:    item.ItemID,
		VersionID: version.VersionID,
		EventType: ReviewEventVersionCreated,
		Status:    string(version.Status),
		Timestamp: time.Now().UTC(),
	})

	c.JSON(http.StatusCreated, gin.H{
		"item":    toItemPayload(item),
		"version": toVersionPayload(version),
	})
}

type createVersionPayload struct {
	Title             string           `json:"title"`
	Content           string           `json:"content"`
	Metadata          content.Metadata `json:"metadata"`
	ChangeDescription string           `json:"change_description"`
	IsMinor           bool             `json:"is_minor"`
}

func (h *httpHandler) handleCreateVersion(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	itemID, err := content.NewItemID(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_item_id"})
		return
	}

	var request createVersionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	version, err := h.service.CreateVersion(c.Request.Context(), content.CreateVersionRequest{
		ItemID:            itemID,
		Title:             request.Title,
		Content:           request.Content,
		Metadata:          request.Metadata,
		Editor:            actor,
		ChangeDescription: request.ChangeDescription,
		IsMinor:           request.IsMinor,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.dispatcher.Publish(ReviewEvent{
		ItemID:    version.ItemID,
		VersionID: version.VersionID,
		EventType: ReviewEventVersionCreated,
		Status:    string(version.Status),
		Timestamp: time.Now().UTC(),
	})

	c.JSON(http.StatusCreated, toVersionPayload(version))
}

type restorePayload struct {
	ChangeDescription string `json:"change_description"`
}

func (h *httpHandler) handleRestore(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	itemID, err := content.NewItemID(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_item_id"})
		return
	}
	versionID, err := content.NewVersionID(c.Param("versionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_version_id"})
		return
	}

	var request restorePayload
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	version, err := h.service.Restore(c.Request.Context(), content.RestoreRequest{
		ItemID:            itemID,
		SourceVersionID:   versionID,
		Editor:            actor,
		ChangeDescription: request.ChangeDescription,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toVersionPayload(version))
}

type transitionPayload struct {
	Target string `json:"target"`
	Note   string `json:"note"`
}

func (h *httpHandler) handleTransition(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	versionID, err := content.NewVersionID(c.Param("versionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_version_id"})
		return
	}

	var request transitionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	target, err := content.ParseStatus(request.Target)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_target_status"})
		return
	}

	version, err := h.service.Transition(c.Request.Context(), content.TransitionRequest{
		VersionID: versionID,
		Target:    target,
		Actor:     actor,
		Note:      request.Note,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if eventType := reviewEventForStatus(version.Status); eventType != "" {
		h.dispatcher.Publish(ReviewEvent{
			ItemID:    version.ItemID,
			VersionID: version.VersionID,
			EventType: eventType,
			Status:    string(version.Status),
			Timestamp: time.Now().UTC(),
		})
	}

	c.JSON(http.StatusOK, toVersionPayload(version))
}

func reviewEventForStatus(status content.Status) string {
	switch status {
	case content.StatusPendingReview:
		return ReviewEventVersionSubmitted
	case content.StatusApproved:
		return ReviewEventVersionApproved
	case content.StatusPublished:
		return ReviewEventVersionPublished
	case content.StatusDraft:
		return ReviewEventVersionRejected
	case content.StatusArchived:
		return ReviewEventVersionArchived
	default:
		return ""
	}
}

func (h *httpHandler) handleDiff(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	itemID, err := content.NewItemID(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_item_id"})
		return
	}
	fromID, err := content.NewVersionID(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_from_version"})
		return
	}
	toID, err := content.NewVersionID(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_to_version"})
		return
	}

	diff, err := h.service.Diff(c.Request.Context(), itemID, fromID, toID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, diff)
}

func (h *httpHandler) handleHistory(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	itemID, err := content.NewItemID(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_item_id"})
		return
	}

	versions, err := h.service.History(c.Request.Context(), itemID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	payload := make([]versionPayload, 0, len(versions))
	for _, version := range versions {
		payload = append(payload, toVersionPayload(version))
	}
	c.JSON(http.StatusOK, gin.H{"versions": payload})
}

func (h *httpHandler) handleVerify(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	itemID, err := content.NewItemID(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_item_id"})
		return
	}

	if err := h.service.Verify(c.Request.Context(), itemID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleLock(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	itemID, err := content.NewItemID(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_item_id"})
		return
	}

	item, err := h.service.Lock(c.Request.Context(), itemID, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemPayload(item))
}

func (h *httpHandler) handleUnlock(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	itemID, err := content.NewItemID(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_item_id"})
		return
	}

	item, err := h.service.Unlock(c.Request.Context(), itemID, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemPayload(item))
}

// handleEvents streams review events over SSE, with heartbeat comments so
// idle connections stay open through proxies.
func (h *httpHandler) handleEvents(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}

	itemFilter := strings.TrimSpace(c.Query("item_id"))
	stream, cleanup := h.dispatcher.Subscribe(c.Request.Context(), itemFilter)
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, open := <-stream:
			if !open {
				return
			}
			c.SSEvent(event.EventType, event)
			c.Writer.Flush()
		case <-heartbeat.C:
			c.SSEvent(reviewEventHeartbeat, gin.H{"timestamp": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}

// respondError maps engine failures onto HTTP statuses: absent records to
// 404, lock and workflow conflicts to 409, bad input to 400, authority
// failures to 403, and integrity violations to an explicit 500.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var invalidTransition *content.InvalidTransitionError
	switch {
	case errors.Is(err, content.ErrItemNotFound), errors.Is(err, content.ErrVersionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, content.ErrItemLocked), errors.Is(err, content.ErrAlreadyLocked),
		errors.Is(err, content.ErrNotLockHolder):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.As(err, &invalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error": "invalid_transition",
			"from":  string(invalidTransition.From),
			"to":    string(invalidTransition.To),
		})
	case errors.Is(err, content.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "not_authorized"})
	case errors.Is(err, content.ErrValidation), errors.Is(err, content.ErrMalformedVersionNumber):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed"})
	case errors.Is(err, content.ErrIntegrityViolation):
		h.logger.Error("integrity violation surfaced", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "integrity_violation"})
	default:
		h.logger.Error("content operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
