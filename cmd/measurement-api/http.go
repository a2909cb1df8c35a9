package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ridgelinehq/roofmetrics/pkg/aggregate"
	"github.com/ridgelinehq/roofmetrics/pkg/datamodel"
	"github.com/ridgelinehq/roofmetrics/pkg/measurecache"
	"github.com/ridgelinehq/roofmetrics/pkg/persistence"
	"github.com/ridgelinehq/roofmetrics/pkg/projection"
)

type apiServer struct {
	gateway *persistence.Gateway
	store   persistence.SnapshotStore
	cache   *measurecache.SnapshotCache
	mapsKey string
}

func newAPIServer(
	gateway *persistence.Gateway,
	store persistence.SnapshotStore,
	cache *measurecache.SnapshotCache,
	mapsKey string) *apiServer {
	return &apiServer{gateway: gateway, store: store, cache: cache, mapsKey: mapsKey}
}

func (a *apiServer) run(listenAddr string) {
	gin.SetMode(gin.ReleaseMode)
	router := a.router()
	err := router.Run(listenAddr)
	if err != nil {
		zap.S().Fatalf("Failed to start API listener on %s: %s", listenAddr, err)
	}
}

func (a *apiServer) router() *gin.Engine {
	router := gin.New()

	// combined access and error log to zap, RFC3339 with UTC
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/property/:propertyId/measurement", a.saveMeasurementHandler)
		v1.GET("/property/:propertyId/measurement", a.getActiveMeasurementHandler)
		v1.GET("/property/:propertyId/measurement/history", a.getMeasurementHistoryHandler)
		v1.GET("/queue", a.getQueueHandler)
		v1.POST("/queue/replay", a.replayQueueHandler)
	}
	return router
}

type saveMeasurementRequest struct {
	MeasurementID  string               `json:"measurementId"`
	Faces          []datamodel.Shape    `json:"faces"`
	LinearFeatures []datamodel.Shape    `json:"linearFeatures"`
	Viewport       projection.Viewport  `json:"viewport"`
	Pitch          string               `json:"pitch"`
	Complexity     datamodel.Complexity `json:"complexity"`
	WastePercent   float64              `json:"wastePercent"`
}

func (a *apiServer) saveMeasurementHandler(c *gin.Context) {
	propertyID := c.Param("propertyId")

	var req saveMeasurementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// derive WKT server-side so the stored geometry never depends on
	// what the client computed
	if req.Viewport.Zoom > 0 {
		attachWKT(req.Faces, req.Viewport)
		attachWKT(req.LinearFeatures, req.Viewport)
	}

	all := make([]datamodel.Shape, 0, len(req.Faces)+len(req.LinearFeatures))
	all = append(all, req.Faces...)
	all = append(all, req.LinearFeatures...)
	summary := aggregate.Summarize(all)

	var materials *datamodel.MaterialEstimate
	if req.Pitch != "" {
		complexity := req.Complexity
		if complexity == "" {
			complexity = datamodel.ComplexitySimple
		}
		est, err := aggregate.EstimateMaterials(summary, req.Pitch, complexity, req.WastePercent)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		materials = &est
	}

	saveReq := datamodel.SaveRequest{
		MeasurementID:  req.MeasurementID,
		PropertyID:     propertyID,
		Faces:          req.Faces,
		LinearFeatures: req.LinearFeatures,
		Summary:        summary,
		Materials:      materials,
		Metadata: datamodel.SnapshotMetadata{
			CenterLat:    req.Viewport.CenterLat,
			CenterLng:    req.Viewport.CenterLng,
			Zoom:         req.Viewport.Zoom,
			StaticMapURL: projection.StaticMapURL(req.Viewport, a.mapsKey),
		},
	}

	result := a.gateway.Save(c.Request.Context(), saveReq)
	if result.Err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Err.Error()})
		return
	}
	if result.Queued {
		c.JSON(http.StatusAccepted, gin.H{
			"queued":  true,
			"summary": summary,
		})
		return
	}
	c.JSON(http.StatusCreated, result.Snapshot)
}

func attachWKT(shapes []datamodel.Shape, vp projection.Viewport) {
	for i := range shapes {
		wkt, err := projection.ShapeWKT(shapes[i], vp)
		if err != nil {
			zap.S().Warnf("Skipping WKT for shape %s: %s", shapes[i].ID, err)
			continue
		}
		shapes[i].WKT = wkt
	}
}

func (a *apiServer) getActiveMeasurementHandler(c *gin.Context) {
	propertyID := c.Param("propertyId")

	if snap, ok := a.cache.Get(propertyID); ok {
		c.JSON(http.StatusOK, snap)
		return
	}

	snap, err := a.store.GetActive(c.Request.Context(), propertyID)
	if err != nil {
		if errors.Is(err, persistence.ErrNoActiveSnapshot) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no measurement for property"})
			return
		}
		zap.S().Errorf("Failed to read active measurement for %s: %s", propertyID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read measurement"})
		return
	}

	a.cache.Set(snap)
	c.JSON(http.StatusOK, snap)
}

func (a *apiServer) getMeasurementHistoryHandler(c *gin.Context) {
	propertyID := c.Param("propertyId")

	history, err := a.store.History(c.Request.Context(), propertyID)
	if err != nil {
		zap.S().Errorf("Failed to read measurement history for %s: %s", propertyID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": history})
}

func (a *apiServer) getQueueHandler(c *gin.Context) {
	pending, failed, failedItems, err := a.gateway.QueueOverview()
	if err != nil {
		zap.S().Errorf("Failed to read queue state: %s", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending":     pending,
		"failed":      failed,
		"failedItems": failedItems,
	})
}

func (a *apiServer) replayQueueHandler(c *gin.Context) {
	stats := a.gateway.Replay(c.Request.Context())
	c.JSON(http.StatusOK, stats)
}
