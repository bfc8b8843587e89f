package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"payload/internal/aggregate"
	"payload/internal/auth"
	"payload/internal/domain"
	"payload/internal/photos"
	"payload/internal/service"
	"payload/internal/storage"
	"payload/internal/store"
)

// Config wires HTTP routes to domain services.
type Config struct {
	Users   service.UserService
	Records service.RecordService
	Store   store.RecordStore
	// Storage may be nil when no bucket is configured; photo links then 503.
	Storage     storage.Service
	Bucket      string
	JWTSecret   []byte
	TokenTTL    time.Duration
	PhotoURLTTL time.Duration
	Logger      *logrus.Logger
	Now         func() time.Time
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users       service.UserService
	records     service.RecordService
	store       store.RecordStore
	storage     storage.Service
	bucket      string
	secret      []byte
	tokenTTL    time.Duration
	photoURLTTL time.Duration
	logger      *logrus.Logger
	now         func() time.Time
}

func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.PhotoURLTTL <= 0 {
		cfg.PhotoURLTTL = 15 * time.Minute
	}
	return &Handler{
		users:       cfg.Users,
		records:     cfg.Records,
		store:       cfg.Store,
		storage:     cfg.Storage,
		bucket:      cfg.Bucket,
		secret:      cfg.JWTSecret,
		tokenTTL:    cfg.TokenTTL,
		photoURLTTL: cfg.PhotoURLTTL,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestLogger(h.logger))

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)

		authed := api.Group("", h.requireUser())
		authed.GET("/me", h.me)
		authed.POST("/records", h.createRecord)
		authed.POST("/records/preview", h.previewRecord)
		authed.GET("/records", h.listRecords)
		authed.GET("/records/:id", h.getRecord)
		authed.GET("/dashboard", h.dashboard)
		authed.GET("/history", h.history)
		authed.GET("/photos/*key", h.photo)

		admin := authed.Group("/admin", requireAdmin())
		admin.GET("/overview", h.adminOverview)
		admin.GET("/users", h.adminUsers)
		admin.GET("/users/:username/history", h.adminUserHistory)
		admin.GET("/photos", h.adminPhotos)
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type recordPayloadRequest struct {
	Kind            string   `json:"kind" binding:"required"`
	JobID           string   `json:"job_id"`
	ParcelCount     int      `json:"parcel_count"`
	CollectionCount int      `json:"collection_count"`
	JobIDs          []string `json:"job_ids"`
	TotalParcels    int      `json:"total_parcels"`
}

func (r recordPayloadRequest) payload() (domain.Payload, error) {
	switch domain.RecordKind(strings.ToUpper(strings.TrimSpace(r.Kind))) {
	case domain.KindIndividual:
		return domain.Individual{
			JobID:           r.JobID,
			ParcelCount:     r.ParcelCount,
			CollectionCount: r.CollectionCount,
		}, nil
	case domain.KindDaily:
		return domain.Daily{
			JobIDs:       r.JobIDs,
			TotalParcels: r.TotalParcels,
		}, nil
	default:
		return nil, fmt.Errorf("%w: kind must be INDIVIDUAL or DAILY", domain.ErrInvalidInput)
	}
}

type createRecordRequest struct {
	recordPayloadRequest
	Date string `json:"date" binding:"required"`
	// Photos are data URLs or bare base64 images.
	Photos []string `json:"photos"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeSession(c, http.StatusCreated, *user)
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeSession(c, http.StatusOK, *user)
}

func (h *Handler) writeSession(c *gin.Context, status int, user domain.User) {
	token, err := auth.IssueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, SessionResponse{
		Token:     token,
		ExpiresAt: h.now().Add(h.tokenTTL).UTC().Format(time.RFC3339),
		User:      userToResponse(user),
	})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, userToResponse(currentUser(c)))
}

func (h *Handler) createRecord(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, err := req.payload()
	if err != nil {
		h.writeError(c, err)
		return
	}

	uploads := make([]photos.Upload, len(req.Photos))
	for i := range req.Photos {
		uploads[i] = photos.Upload{Data: req.Photos[i]}
	}

	record, err := h.records.Create(c.Request.Context(), currentUser(c), service.NewRecord{
		Date:    strings.TrimSpace(req.Date),
		Payload: payload,
		Photos:  uploads,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := recordToResponse(*record)
	if dropped := len(req.Photos) - len(record.Photos); dropped > 0 {
		resp.DroppedPhotos = dropped
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) previewRecord(c *gin.Context) {
	var req recordPayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// blank ID fields are still being typed; only filled ones count
	var filled []string
	for _, id := range req.JobIDs {
		if strings.TrimSpace(id) != "" {
			filled = append(filled, id)
		}
	}
	req.JobIDs = filled

	payload, err := req.payload()
	if err != nil {
		h.writeError(c, err)
		return
	}
	value, err := h.records.Preview(payload)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calculated_value": money(value)})
}

func (h *Handler) listRecords(c *gin.Context) {
	records, err := h.store.ListVisible(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordsToResponse(records))
}

func (h *Handler) getRecord(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	record, err := h.store.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordToResponse(*record))
}

func (h *Handler) dashboard(c *gin.Context) {
	month, ok := h.monthParam(c)
	if !ok {
		return
	}
	records, err := h.store.ListVisible(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboardToResponse(aggregate.Dashboard(records, month, aggregate.DefaultRecentLimit)))
}

func (h *Handler) history(c *gin.Context) {
	records, err := h.store.ListVisible(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groupsToResponse(aggregate.GroupByMonth(records)))
}

func (h *Handler) adminOverview(c *gin.Context) {
	month, ok := h.monthParam(c)
	if !ok {
		return
	}
	records, err := h.store.ListVisible(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, overviewToResponse(aggregate.Overview(records, month)))
}

func (h *Handler) adminUsers(c *gin.Context) {
	records, err := h.store.ListVisible(c.Request.Context(), currentUser(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summariesToResponse(aggregate.GroupByUser(records)))
}

func (h *Handler) adminUserHistory(c *gin.Context) {
	owner := strings.TrimSpace(c.Param("username"))
	records, err := h.store.ListOwnedBy(c.Request.Context(), currentUser(c), owner)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if len(records) == 0 {
		h.writeError(c, domain.ErrNotFound)
		return
	}
	summary := aggregate.GroupByUser(records)[0]
	c.JSON(http.StatusOK, gin.H{
		"user":   summaryToResponse(summary),
		"months": groupsToResponse(aggregate.GroupByMonth(records)),
	})
}

func (h *Handler) photo(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo key is required"})
		return
	}

	if _, err := h.store.GetByPhoto(c.Request.Context(), currentUser(c), domain.PhotoRef(key)); err != nil {
		h.writeError(c, err)
		return
	}
	if h.storage == nil || h.bucket == "" {
		h.writeError(c, photos.ErrStorageDisabled)
		return
	}

	url, err := h.storage.PresignGet(c.Request.Context(), h.bucket, key, h.photoURLTTL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *Handler) adminPhotos(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		h.writeError(c, photos.ErrStorageDisabled)
		return
	}

	prefix := c.Query("prefix")
	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, prefix)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

// monthParam reads ?month=YYYY-MM, defaulting to the current UTC month.
func (h *Handler) monthParam(c *gin.Context) (string, bool) {
	month := strings.TrimSpace(c.Query("month"))
	if month == "" {
		return h.now().UTC().Format("2006-01"), true
	}
	if _, err := domain.ParseMonthKey(month); err != nil {
		h.writeError(c, err)
		return "", false
	}
	return month, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUsernameTaken), errors.Is(err, domain.ErrIDCollision):
		return http.StatusConflict
	case errors.Is(err, photos.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Errorf("request failed: %v", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
