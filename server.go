package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/puzpuzpuz/xsync/v3"

	"git.fiblab.net/sim/streetcover/geo"
	"git.fiblab.net/sim/streetcover/osm"
	"git.fiblab.net/sim/streetcover/planner"
	"git.fiblab.net/sim/streetcover/serial"
	"git.fiblab.net/sim/streetcover/store"
)

// 一份归一化后的街道数据集
// 街道列表只增不删，仅完成标记会被翻转，读多写少
type Dataset struct {
	ID      string
	City    string
	Bounds  *geo.Bounds
	mu      *xsync.RBMutex
	streets []*planner.StreetSegment
}

func (d *Dataset) Streets() []*planner.StreetSegment {
	token := d.mu.RLock()
	defer d.mu.RUnlock(token)
	return d.streets
}

type CoverageServer struct {
	datasets *xsync.MapOf[string, *Dataset]
	routes   *xsync.MapOf[string, *planner.SuggestedRoute]
	seq      atomic.Int64

	overpass  *osm.OverpassClient
	nominatim *osm.NominatimClient
	st        store.Store

	// 接口开启true或关闭false
	ok bool
	// 条件变量
	cond *sync.Cond
}

func NewCoverageServer(st store.Store) *CoverageServer {
	s := &CoverageServer{
		datasets:  xsync.NewMapOf[string, *Dataset](),
		routes:    xsync.NewMapOf[string, *planner.SuggestedRoute](),
		overpass:  osm.NewOverpassClient(),
		nominatim: osm.NewNominatimClient(),
		st:        st,
		ok:        true,
		cond:      sync.NewCond(&sync.Mutex{}),
	}
	if st != nil {
		segs, err := st.LoadSegments(context.Background())
		if err != nil {
			log.Panicf("failed to load street dataset: %v", err)
		}
		if len(segs) > 0 {
			s.datasets.Store("default", &Dataset{
				ID:      "default",
				mu:      xsync.NewRBMutex(),
				streets: segs,
			})
			log.Infof("loaded default dataset with %d segments", len(segs))
		}
	}
	return s
}

// 暂停-恢复机制：关闭期间请求阻塞在条件变量上
func (s *CoverageServer) gate() {
	s.cond.L.Lock()
	for !s.ok {
		s.cond.Wait()
	}
	s.cond.L.Unlock()
}

// 暂停服务
func (s *CoverageServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// 恢复服务
func (s *CoverageServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}

// 关闭服务
func (s *CoverageServer) Close() {
	if s.st != nil {
		s.st.Close(context.Background())
	}
}

// 错误到HTTP状态码的映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, osm.ErrBadCityQuery), errors.Is(err, serial.ErrUnsupportedImport):
		return http.StatusBadRequest
	case errors.Is(err, osm.ErrNominatimUnresolved), errors.Is(err, osm.ErrNoStreetsInBoundary),
		errors.Is(err, store.ErrStreetNotFound):
		return http.StatusNotFound
	case errors.Is(err, osm.ErrOverpassUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, planner.ErrPlanInfeasible), errors.Is(err, serial.ErrEmptyImport):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func (s *CoverageServer) Engine() *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())

	e.POST("/datasets", s.handleFetchDataset)
	e.GET("/datasets/:id/streets", s.handleListStreets)
	e.POST("/datasets/:id/streets", s.handleAddStreet)
	e.POST("/datasets/:id/streets/:sid/complete", s.handleComplete)
	e.POST("/datasets/:id/import", s.handleImport)
	e.POST("/routes/plan", s.handlePlan)
	e.GET("/routes/:id/gpx", s.handleExportGPX)
	e.GET("/routes/:id/aml", s.handleExportAML)
	e.GET("/routes/:id/links", s.handleLinks)
	e.POST("/suspend", func(c *gin.Context) { s.Suspend(); c.Status(http.StatusNoContent) })
	e.POST("/resume", func(c *gin.Context) { s.Resume(); c.Status(http.StatusNoContent) })
	return e
}

type fetchDatasetRequest struct {
	City string `json:"city" binding:"required"`
}

// 拉取并归一化一座城市的街道数据集
func (s *CoverageServer) handleFetchDataset(c *gin.Context) {
	s.gate()
	var req fetchDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, fmt.Errorf("%w: %v", osm.ErrBadCityQuery, err))
		return
	}
	place, err := s.nominatim.Resolve(c.Request.Context(), req.City)
	if err != nil {
		abortWith(c, err)
		return
	}
	payload, err := s.overpass.FetchCityStreets(c.Request.Context(), req.City, &place.Bounds)
	if err != nil {
		abortWith(c, err)
		return
	}
	segs, err := osm.Normalize(payload, place.Boundary, &place.Bounds)
	if err != nil {
		abortWith(c, err)
		return
	}

	id := fmt.Sprintf("ds-%d", s.seq.Add(1))
	bounds := place.Bounds
	ds := &Dataset{
		ID:      id,
		City:    place.DisplayName,
		Bounds:  &bounds,
		mu:      xsync.NewRBMutex(),
		streets: segs,
	}
	s.datasets.Store(id, ds)
	if s.st != nil {
		if err := s.st.SaveSegments(c.Request.Context(), segs); err != nil {
			log.Warnf("failed to persist dataset %s: %v", id, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"city":     place.DisplayName,
		"segments": len(segs),
	})
}

func (s *CoverageServer) dataset(c *gin.Context) (*Dataset, bool) {
	ds, ok := s.datasets.Load(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no such dataset"})
		return nil, false
	}
	return ds, true
}

func (s *CoverageServer) handleListStreets(c *gin.Context) {
	s.gate()
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ds.Streets())
}

type addStreetRequest struct {
	Name string       `json:"name" binding:"required"`
	Path []geo.LatLng `json:"path" binding:"required"`
}

// 手工添加一条路段，端点结点id由坐标量化得到
func (s *CoverageServer) handleAddStreet(c *gin.Context) {
	s.gate()
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	var req addStreetRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Path) < 2 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name and a path of at least 2 points are required"})
		return
	}
	seg := &planner.StreetSegment{
		ID:     fmt.Sprintf("manual-%d", s.seq.Add(1)),
		Name:   req.Name,
		Path:   req.Path,
		Source: planner.SOURCE_MANUAL,
	}
	ds.mu.Lock()
	ds.streets = append(ds.streets, seg)
	streets := ds.streets
	ds.mu.Unlock()
	if s.st != nil {
		if err := s.st.SaveSegments(c.Request.Context(), streets); err != nil {
			log.Warnf("failed to persist manual segment: %v", err)
		}
	}
	c.JSON(http.StatusOK, seg)
}

type completeRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

func (s *CoverageServer) handleComplete(c *gin.Context) {
	s.gate()
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sid := c.Param("sid")
	ds.mu.Lock()
	var seg *planner.StreetSegment
	for _, st := range ds.streets {
		if st.ID == sid {
			seg = st
			break
		}
	}
	if seg != nil {
		seg.Completed = *req.Completed
	}
	ds.mu.Unlock()
	if seg == nil {
		abortWith(c, store.ErrStreetNotFound)
		return
	}
	if s.st != nil {
		if err := s.st.SetCompleted(c.Request.Context(), sid, *req.Completed); err != nil &&
			!errors.Is(err, store.ErrStreetNotFound) {
			log.Warnf("failed to persist completion of %s: %v", sid, err)
		}
	}
	c.JSON(http.StatusOK, seg)
}

// 导入活动文件并将跑过的街道标记为完成
func (s *CoverageServer) handleImport(c *gin.Context) {
	s.gate()
	ds, ok := s.dataset(c)
	if !ok {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	points, err := serial.ParseActivityPoints(header.Filename, data)
	if err != nil {
		abortWith(c, err)
		return
	}
	completed := planner.CompletedByActivity(ds.Streets(), points)
	completedSet := make(map[string]bool, len(completed))
	for _, id := range completed {
		completedSet[id] = true
	}
	ds.mu.Lock()
	for _, st := range ds.streets {
		if completedSet[st.ID] {
			st.Completed = true
		}
	}
	ds.mu.Unlock()
	if s.st != nil {
		for _, id := range completed {
			if err := s.st.SetCompleted(c.Request.Context(), id, true); err != nil &&
				!errors.Is(err, store.ErrStreetNotFound) {
				log.Warnf("failed to persist completion of %s: %v", id, err)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"points":           len(points),
		"streetsCompleted": completed,
	})
}

type planRequest struct {
	DatasetID string     `json:"datasetId" binding:"required"`
	Home      geo.LatLng `json:"home"`
	TargetKm  float64    `json:"targetKm"`
	Strategy  string     `json:"strategy"`
}

func (s *CoverageServer) handlePlan(c *gin.Context) {
	s.gate()
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dataset, found := s.datasets.Load(req.DatasetID)
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no such dataset"})
		return
	}
	log.Debugf("plan coverage route from %v, target %.1fkm", req.Home, req.TargetKm)
	route, err := planner.BuildEfficientCoverageRoute(dataset.Streets(), req.Home, req.TargetKm, dataset.Bounds)
	if err != nil {
		abortWith(c, err)
		return
	}
	if req.Strategy == planner.STRATEGY_EULERIAN {
		idSet := make(map[string]bool, len(route.StreetIDs))
		for _, id := range route.StreetIDs {
			idSet[id] = true
		}
		covered := make([]*planner.StreetSegment, 0, len(route.StreetIDs))
		for _, st := range dataset.Streets() {
			if idSet[st.ID] {
				covered = append(covered, st)
			}
		}
		if euler, errEuler := planner.EulerTrailRoute(covered, req.Home); errEuler == nil {
			route = euler
		} else {
			log.Warnf("euler trail unavailable, keeping greedy route: %v", errEuler)
		}
	}
	s.routes.Store(route.ID, route)
	c.JSON(http.StatusOK, route)
}

func (s *CoverageServer) route(c *gin.Context) (*planner.SuggestedRoute, bool) {
	r, ok := s.routes.Load(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no such route"})
		return nil, false
	}
	return r, true
}

func (s *CoverageServer) handleExportGPX(c *gin.Context) {
	r, ok := s.route(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gpx", r.ID))
	c.Data(http.StatusOK, "application/gpx+xml", serial.WriteGPX(r, time.Now()))
}

func (s *CoverageServer) handleExportAML(c *gin.Context) {
	r, ok := s.route(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.aml", r.ID))
	c.Data(http.StatusOK, "application/xml", serial.WriteAML(r, time.Now()))
}

func (s *CoverageServer) handleLinks(c *gin.Context) {
	r, ok := s.route(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"google": serial.GoogleMapsURL(r.Points),
		"apple":  serial.AppleMapsURL(r.Points),
	})
}
