package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"drainsentry-backend/internal/alerts"
	"drainsentry-backend/internal/config"
	"drainsentry-backend/internal/genai"
	"drainsentry-backend/internal/ingest"
	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
	"drainsentry-backend/internal/rtdb"
)

type Handler struct {
	store  rtdb.Store
	logger *logging.Logger
	config config.Config
	ingest *ingest.Service
	alerts *alerts.Manager
	genai  *genai.Client
}

func NewHandler(store rtdb.Store, logger *logging.Logger, cfg config.Config, ing *ingest.Service, mgr *alerts.Manager, ai *genai.Client) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
		config: cfg,
		ingest: ing,
		alerts: mgr,
		genai:  ai,
	}
}

// PostSensorData accepts one reading from a sensor unit.
func (h *Handler) PostSensorData(c *gin.Context) {
	var reading models.SensorReading
	if err := c.ShouldBindJSON(&reading); err != nil {
		h.logger.Errorf("Invalid sensor payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ingest.Ingest(c.Request.Context(), reading); err != nil {
		if errors.Is(err, ingest.ErrUnknownDevice) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Ingest failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListDevices(c *gin.Context) {
	uid := userID(c)
	snap, err := h.store.Get(c.Request.Context(), rtdb.UserDevicesPath(uid))
	if err != nil {
		h.logger.Errorf("List devices failed for user %s: %v", uid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	devices := map[string]models.Device{}
	if err := snap.Decode(&devices); err != nil {
		h.logger.Errorf("Decode devices failed for user %s: %v", uid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	keys := make([]string, 0, len(devices))
	for k := range devices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.Device, 0, len(keys))
	for _, k := range keys {
		dev := devices[k]
		if dev.ID == "" {
			dev.ID = k
		}
		out = append(out, dev)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateDevice(c *gin.Context) {
	uid := userID(c)
	var dev models.Device
	if err := c.ShouldBindJSON(&dev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if dev.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device id is required"})
		return
	}

	if err := h.store.Set(c.Request.Context(), rtdb.DevicePath(uid, dev.ID), dev); err != nil {
		h.logger.Errorf("Create device failed for user %s: %v", uid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Infof("User %s registered device %s", uid, dev.ID)
	c.JSON(http.StatusCreated, dev)
}

// deviceUpdate is the mutable slice of a device record. Pointers distinguish
// absent fields from zero values.
type deviceUpdate struct {
	Name       *string            `json:"name"`
	Location   *string            `json:"location"`
	Thresholds *models.Thresholds `json:"thresholds"`
}

func (h *Handler) UpdateDevice(c *gin.Context) {
	uid := userID(c)
	id := c.Param("id")

	var upd deviceUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.store.Get(c.Request.Context(), rtdb.DevicePath(uid, id))
	if err != nil {
		h.logger.Errorf("Read device %s failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !snap.Exists() {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	var dev models.Device
	if err := snap.Decode(&dev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if dev.ID == "" {
		dev.ID = id
	}
	if upd.Name != nil {
		dev.Name = *upd.Name
	}
	if upd.Location != nil {
		dev.Location = *upd.Location
	}
	if upd.Thresholds != nil {
		dev.Thresholds = *upd.Thresholds
	}

	if err := h.store.Set(c.Request.Context(), rtdb.DevicePath(uid, id), dev); err != nil {
		h.logger.Errorf("Update device %s failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dev)
}

func (h *Handler) DeleteDevice(c *gin.Context) {
	uid := userID(c)
	id := c.Param("id")

	if err := h.store.Delete(c.Request.Context(), rtdb.DevicePath(uid, id)); err != nil {
		h.logger.Errorf("Delete device %s failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Infof("User %s removed device %s", uid, id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// GetAlerts returns the user's current derived alert collection.
func (h *Handler) GetAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.alerts.Current(userID(c)))
}

func (h *Handler) GetNotifications(c *gin.Context) {
	uid := userID(c)
	snap, err := h.store.Get(c.Request.Context(), rtdb.UserNotificationsPath(uid))
	if err != nil {
		h.logger.Errorf("Get notifications failed for user %s: %v", uid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	records := map[string]models.Notification{}
	if err := snap.Decode(&records); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// entry keys are chronological; newest first for the client
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	out := make([]models.Notification, 0, len(keys))
	for _, k := range keys {
		out = append(out, records[k])
	}
	c.JSON(http.StatusOK, out)
}

type detectTrashRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

func (h *Handler) DetectTrash(c *gin.Context) {
	var req detectTrashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}

	verdict, err := h.genai.DetectTrash(c.Request.Context(), req.Image, req.MimeType)
	if err != nil {
		h.logger.Errorf("Trash detection failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (h *Handler) HealthReport(c *gin.Context) {
	uid := userID(c)
	snap, err := h.store.Get(c.Request.Context(), rtdb.UserDevicesPath(uid))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	devices := map[string]models.Device{}
	if err := snap.Decode(&devices); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	list := make([]models.Device, 0, len(devices))
	for k, dev := range devices {
		if dev.ID == "" {
			dev.ID = k
		}
		list = append(list, dev)
	}
	if len(list) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no devices registered"})
		return
	}

	report, err := h.genai.GenerateHealthReport(c.Request.Context(), list)
	if err != nil {
		h.logger.Errorf("Health report failed for user %s: %v", uid, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}
