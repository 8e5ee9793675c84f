package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/oldmaps/internal/calibrate"
	"github.com/nao1215/oldmaps/internal/config"
	"github.com/nao1215/oldmaps/internal/extent"
	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/raster"
	"github.com/nao1215/oldmaps/internal/tiler"
	"github.com/nao1215/oldmaps/internal/tilestore"
)

// Step names, as recorded in model.Job.PerformedSteps.
const (
	StepMetadata  = "metadata"
	StepCalibrate = "calibrate"
	StepRectify   = "rectify"
	StepGeometry  = "geometry"
	StepExtent    = "extent"
	StepPlan      = "plan"
	StepSlice     = "slice"
)

// errNotReady is returned when a step runs before the step it depends on.
var errNotReady = errors.New("pipeline: required input missing")

// RectifiedPath returns where the rectified raster of file at zoom is
// saved: {dir}/{basename}-{zoom}.png.
func RectifiedPath(file string, zoom int) string {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(filepath.Dir(file), base+"-"+strconv.Itoa(zoom)+".png")
}

// MetadataStep fills an empty attribution from the source file's EXIF
// copyright or artist tag. Unreadable metadata is not an error.
type MetadataStep struct {
	logger *slog.Logger
}

// NewMetadataStep creates a MetadataStep.
func NewMetadataStep(logger *slog.Logger) *MetadataStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataStep{logger: logger}
}

// Name returns the step name.
func (s *MetadataStep) Name() string {
	return StepMetadata
}

// Do executes the metadata step.
func (s *MetadataStep) Do(_ context.Context, job *model.Job) error {
	if job.Map.Attribution != "" {
		return nil
	}
	meta, err := raster.ReadMetadata(job.Map.File)
	if err != nil {
		s.logger.Debug("no usable EXIF metadata", "map", job.Map.Slug, "error", err)
		return nil
	}
	if a := meta.Attribution(); a != "" {
		job.Map.Attribution = a
		s.logger.Debug("attribution from EXIF", "map", job.Map.Slug, "attribution", a)
	}
	return nil
}

// CalibrateStep derives the scale and rotation of the map from its
// anchors and checks anchor c against the result.
type CalibrateStep struct {
	ref          model.ReferenceAnchors
	residualWarn float64
	logger       *slog.Logger
}

// CalibrateStepOption configures a CalibrateStep.
type CalibrateStepOption func(*CalibrateStep)

// WithResidualWarning sets the anchor c residual, in meters, above which a
// warning is recorded. Zero disables the check.
func WithResidualWarning(meters float64) CalibrateStepOption {
	return func(s *CalibrateStep) {
		s.residualWarn = meters
	}
}

// WithCalibrateLogger sets a custom logger for the calibration step.
func WithCalibrateLogger(logger *slog.Logger) CalibrateStepOption {
	return func(s *CalibrateStep) {
		s.logger = logger
	}
}

// NewCalibrateStep creates a calibration step against the reference anchors.
func NewCalibrateStep(ref model.ReferenceAnchors, opts ...CalibrateStepOption) *CalibrateStep {
	s := &CalibrateStep{
		ref:          ref,
		residualWarn: config.DefaultResidualWarnMeters,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CalibrateStep) Name() string {
	return StepCalibrate
}

// Do executes the calibration step.
func (s *CalibrateStep) Do(_ context.Context, job *model.Job) error {
	t, err := calibrate.Calibrate(s.ref, job.Map, job.Zoom)
	if err != nil {
		return err
	}
	job.Transform = t

	s.logger.Debug("calibrated",
		"map", job.Map.Slug,
		"zoom", job.Zoom,
		"scale_x", t.ScaleX,
		"scale_y", t.ScaleY,
		"rotation", t.RotationDegrees,
		"meters_per_pixel", t.MetersPerPixel,
	)

	residual, err := calibrate.AnchorResidual(s.ref, job.Map, t, job.Zoom)
	if err != nil {
		return err
	}
	job.ResidualMeters = residual
	if s.residualWarn > 0 && residual > s.residualWarn {
		msg := fmt.Sprintf("anchor c is %.1f m from its predicted position (threshold %.0f m); check the anchors", residual, s.residualWarn)
		job.AddWarning(msg)
		s.logger.Warn("large anchor residual",
			"map", job.Map.Slug,
			"zoom", job.Zoom,
			"residual_meters", residual,
		)
	}
	return nil
}

// RectifyStep decodes the source raster, scales and rotates it into the
// target projection, and optionally saves the result as PNG.
type RectifyStep struct {
	kernel         raster.Kernel
	writeRectified bool
	logger         *slog.Logger
}

// RectifyStepOption configures a RectifyStep.
type RectifyStepOption func(*RectifyStep)

// WithKernel selects the resampling kernel.
func WithKernel(k raster.Kernel) RectifyStepOption {
	return func(s *RectifyStep) {
		s.kernel = k
	}
}

// WithRectifiedOutput saves the rectified raster next to the source image.
func WithRectifiedOutput(enabled bool) RectifyStepOption {
	return func(s *RectifyStep) {
		s.writeRectified = enabled
	}
}

// WithRectifyLogger sets a custom logger for the rectification step.
func WithRectifyLogger(logger *slog.Logger) RectifyStepOption {
	return func(s *RectifyStep) {
		s.logger = logger
	}
}

// NewRectifyStep creates a rectification step.
func NewRectifyStep(opts ...RectifyStepOption) *RectifyStep {
	s := &RectifyStep{
		kernel: raster.DefaultKernel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RectifyStep) Name() string {
	return StepRectify
}

// Do executes the rectification step.
func (s *RectifyStep) Do(ctx context.Context, job *model.Job) error {
	if job.Transform == nil {
		return fmt.Errorf("%w: %s needs a calibrated transform", errNotReady, StepRectify)
	}

	img, err := raster.Load(job.Map.File)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r, err := raster.Rectify(img, job.Transform, s.kernel)
	if err != nil {
		return fmt.Errorf("rectify %s: %w", job.Map.Label(), err)
	}
	job.Raster = r

	s.logger.Debug("rectified",
		"map", job.Map.Slug,
		"zoom", job.Zoom,
		"source", fmt.Sprintf("%dx%d", r.SourceWidth, r.SourceHeight),
		"scaled", fmt.Sprintf("%dx%d", r.ScaledWidth, r.ScaledHeight),
		"canvas", fmt.Sprintf("%dx%d", r.Width, r.Height),
	)

	if s.writeRectified {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := RectifiedPath(job.Map.File, job.Zoom)
		if err := raster.SavePNG(path, r.Image); err != nil {
			return fmt.Errorf("save rectified image: %w", err)
		}
		job.RectifiedPath = path
	}
	return nil
}

// GeometryStep computes the rectified raster's dimensions from the image
// header alone. It replaces RectifyStep when only a plan is wanted.
type GeometryStep struct{}

// NewGeometryStep creates a GeometryStep.
func NewGeometryStep() *GeometryStep {
	return &GeometryStep{}
}

// Name returns the step name.
func (s *GeometryStep) Name() string {
	return StepGeometry
}

// Do executes the geometry step.
func (s *GeometryStep) Do(_ context.Context, job *model.Job) error {
	if job.Transform == nil {
		return fmt.Errorf("%w: %s needs a calibrated transform", errNotReady, StepGeometry)
	}
	cfg, _, err := raster.DecodeConfig(job.Map.File)
	if err != nil {
		return err
	}
	r, err := raster.PlanGeometry(cfg.Width, cfg.Height, job.Transform)
	if err != nil {
		return fmt.Errorf("plan %s: %w", job.Map.Label(), err)
	}
	job.Raster = r
	return nil
}

// ExtentStep locates the rectified raster on the ground.
type ExtentStep struct {
	ref    model.ReferenceAnchors
	logger *slog.Logger
}

// NewExtentStep creates an ExtentStep.
func NewExtentStep(ref model.ReferenceAnchors, logger *slog.Logger) *ExtentStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtentStep{ref: ref, logger: logger}
}

// Name returns the step name.
func (s *ExtentStep) Name() string {
	return StepExtent
}

// Do executes the extent step.
func (s *ExtentStep) Do(_ context.Context, job *model.Job) error {
	if job.Transform == nil || job.Raster == nil {
		return fmt.Errorf("%w: %s needs a transform and a raster", errNotReady, StepExtent)
	}

	ext, err := extent.Resolve(job.Raster, job.Transform, extent.Reference{
		Map:     job.Map.Label(),
		Pixel:   job.Map.Anchors[model.AnchorA],
		LatLong: s.ref[model.AnchorA],
	}, job.Zoom)
	if err != nil {
		return err
	}

	bbox := ext.BoundingBox
	job.BoundingBox = &bbox
	job.Center = ext.Center

	if err := extent.CheckRegion(bbox); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			job.AddWarning(line)
		}
		s.logger.Warn("unsupported region",
			"map", job.Map.Slug,
			"zoom", job.Zoom,
			"bbox", bbox.String(),
			"error", err,
		)
	}

	s.logger.Debug("resolved extent",
		"map", job.Map.Slug,
		"zoom", job.Zoom,
		"bbox", bbox.String(),
		"center", ext.Center.String(),
	)
	return nil
}

// PlanStep computes the covering tile range without slicing.
type PlanStep struct{}

// NewPlanStep creates a PlanStep.
func NewPlanStep() *PlanStep {
	return &PlanStep{}
}

// Name returns the step name.
func (s *PlanStep) Name() string {
	return StepPlan
}

// Do executes the plan step.
func (s *PlanStep) Do(_ context.Context, job *model.Job) error {
	if job.BoundingBox == nil {
		return fmt.Errorf("%w: %s needs a bounding box", errNotReady, StepPlan)
	}
	plan, err := tiler.NewPlan(*job.BoundingBox, job.Zoom)
	if err != nil {
		return err
	}
	tiles := plan.Range()
	job.Tiles = &tiles
	return nil
}

// boundsSetter is implemented by stores that record their geographic extent.
type boundsSetter interface {
	SetBounds(model.GeoBoundingBox)
}

// SliceStep cuts the rectified raster into tiles and writes them to the
// map's store.
type SliceStep struct {
	stores    *tilestore.Set
	workers   int
	skipEmpty bool
	minZoom   int
	maxZoom   int
	logger    *slog.Logger
}

// SliceStepOption configures a SliceStep.
type SliceStepOption func(*SliceStep)

// WithTileWorkers sets how many tiles of one raster are encoded concurrently.
func WithTileWorkers(n int) SliceStepOption {
	return func(s *SliceStep) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSkipEmpty drops fully transparent tiles.
func WithSkipEmpty(skip bool) SliceStepOption {
	return func(s *SliceStep) {
		s.skipEmpty = skip
	}
}

// WithZoomRange sets the zoom range recorded in tileset metadata.
func WithZoomRange(minZoom, maxZoom int) SliceStepOption {
	return func(s *SliceStep) {
		s.minZoom, s.maxZoom = minZoom, maxZoom
	}
}

// WithSliceLogger sets a custom logger for the slicing step.
func WithSliceLogger(logger *slog.Logger) SliceStepOption {
	return func(s *SliceStep) {
		s.logger = logger
	}
}

// NewSliceStep creates a slicing step writing into stores.
func NewSliceStep(stores *tilestore.Set, opts ...SliceStepOption) *SliceStep {
	s := &SliceStep{
		stores:  stores,
		workers: config.DefaultTileWorkers,
		minZoom: -1,
		maxZoom: -1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SliceStep) Name() string {
	return StepSlice
}

// Do executes the slicing step.
func (s *SliceStep) Do(ctx context.Context, job *model.Job) error {
	if job.Raster == nil || job.Raster.Image == nil || job.BoundingBox == nil {
		return fmt.Errorf("%w: %s needs a rectified raster and a bounding box", errNotReady, StepSlice)
	}

	plan, err := tiler.NewPlan(*job.BoundingBox, job.Zoom)
	if err != nil {
		return err
	}
	tiles := plan.Range()
	job.Tiles = &tiles

	minZoom, maxZoom := s.minZoom, s.maxZoom
	if minZoom < 0 || maxZoom < 0 {
		minZoom, maxZoom = job.Zoom, job.Zoom
	}
	store, err := s.stores.Get(job.Map.Slug, tilestore.Metadata{
		Name:        job.Map.Label(),
		Attribution: job.Map.Attribution,
		Description: "Rectified from " + filepath.Base(job.Map.File),
		MinZoom:     minZoom,
		MaxZoom:     maxZoom,
	})
	if err != nil {
		return fmt.Errorf("open tile store: %w", err)
	}
	if bs, ok := store.(boundsSetter); ok {
		bs.SetBounds(*job.BoundingBox)
	}

	slicer := tiler.NewSlicer(
		tiler.WithWorkers(s.workers),
		tiler.WithSkipEmpty(s.skipEmpty),
		tiler.WithLogger(s.logger),
	)
	res, err := slicer.Slice(ctx, job.Raster.Image, plan, store)
	if err != nil {
		return fmt.Errorf("slice %s: %w", job.Map.Label(), err)
	}

	job.TileRecords = res.Records
	job.Digest = res.Digest
	job.ReleaseRaster()

	s.logger.Info("tiles written",
		"map", job.Map.Slug,
		"zoom", job.Zoom,
		"tiles", len(res.Records),
		"skipped", res.Skipped,
		"location", store.Location(),
		"elapsed", res.Elapsed,
	)
	return nil
}

// TilePipeline creates the pipeline that renders one map at one zoom:
// metadata, calibrate, rectify, extent, slice.
func TilePipeline(cfg *config.Config, ref model.ReferenceAnchors, stores *tilestore.Set, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	minZoom, maxZoom := zoomBounds(cfg.Zooms)

	p := New(WithLogger(logger))
	p.AddSteps(
		NewMetadataStep(logger),
		NewCalibrateStep(ref,
			WithResidualWarning(cfg.ResidualWarnMeters),
			WithCalibrateLogger(logger),
		),
		NewRectifyStep(
			WithKernel(cfg.Resample),
			WithRectifiedOutput(cfg.WriteRectified),
			WithRectifyLogger(logger),
		),
		NewExtentStep(ref, logger),
		NewSliceStep(stores,
			WithTileWorkers(cfg.TileWorkers),
			WithSkipEmpty(cfg.SkipEmpty),
			WithZoomRange(minZoom, maxZoom),
			WithSliceLogger(logger),
		),
	)
	return p
}

// PlanPipeline creates the pipeline that computes a job's geometry and
// tile range from image headers, without decoding pixels.
func PlanPipeline(cfg *config.Config, ref model.ReferenceAnchors, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := New(WithLogger(logger))
	p.AddSteps(
		NewMetadataStep(logger),
		NewCalibrateStep(ref,
			WithResidualWarning(cfg.ResidualWarnMeters),
			WithCalibrateLogger(logger),
		),
		NewGeometryStep(),
		NewExtentStep(ref, logger),
		NewPlanStep(),
	)
	return p
}

// Jobs expands maps × zooms into jobs, ordered by map, then zoom.
func Jobs(maps []model.SourceMap, zooms []int) []*model.Job {
	jobs := make([]*model.Job, 0, len(maps)*len(zooms))
	for _, m := range maps {
		for _, z := range zooms {
			jobs = append(jobs, model.NewJob(m, z))
		}
	}
	return jobs
}

func zoomBounds(zooms []int) (int, int) {
	if len(zooms) == 0 {
		return -1, -1
	}
	lo, hi := zooms[0], zooms[0]
	for _, z := range zooms[1:] {
		lo = min(lo, z)
		hi = max(hi, z)
	}
	return lo, hi
}
