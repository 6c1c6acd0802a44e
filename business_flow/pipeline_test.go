package businessflow_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/asset-forge/app/dto"
	"github.com/amirphl/asset-forge/app/services"
	businessflow "github.com/amirphl/asset-forge/business_flow"
	"github.com/amirphl/asset-forge/config"
	"github.com/amirphl/asset-forge/models"
	"github.com/amirphl/asset-forge/repository"
	testingutil "github.com/amirphl/asset-forge/testing"
	"github.com/stretchr/testify/require"
)

// stubGenerator wraps the mock generator so tests can force failures and inspect prompts
type stubGenerator struct {
	mu      sync.Mutex
	inner   *services.MockImageGenerator
	failErr error
	blocked bool
	prompts []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	failErr := g.failErr
	blocked := g.blocked
	g.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failErr != nil {
		return nil, failErr
	}
	return g.inner.Generate(ctx, prompt)
}

// block makes Generate wait until its context ends
func (g *stubGenerator) block(blocked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blocked = blocked
}

func (g *stubGenerator) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failErr = err
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// stubRemover delegates to the mock remover unless failErr is set
type stubRemover struct {
	inner   *services.MockBackgroundRemover
	failErr error
	calls   int
}

func (r *stubRemover) RemoveBackground(ctx context.Context, img []byte) ([]byte, error) {
	r.calls++
	if r.failErr != nil {
		return nil, r.failErr
	}
	return r.inner.RemoveBackground(ctx, img)
}

type pipeline struct {
	testDB       *testingutil.TestDB
	fixtures     *testingutil.TestFixtures
	privateStore *services.MemoryBlobStore
	publicStore  *services.MemoryBlobStore
	generator    *stubGenerator
	remover      *stubRemover
	pipelineCfg  config.PipelineConfig
	genTimeout   time.Duration

	assets     businessflow.AssetFlow
	review     businessflow.ReviewFlow
	publish    businessflow.PublishFlow
	composites businessflow.CompositeFlow
	buildings  businessflow.BuildingConfigFlow
	audit      businessflow.AuditFlow
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	testDB, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = testDB.TeardownTestDB() })

	p := &pipeline{
		testDB:       testDB,
		fixtures:     testingutil.NewTestFixtures(testDB),
		privateStore: services.NewMemoryBlobStore("https://private.test"),
		publicStore:  services.NewMemoryBlobStore("https://cdn.test"),
		generator:    &stubGenerator{inner: services.NewMockImageGenerator(64, 64)},
		remover:      &stubRemover{inner: services.NewMockBackgroundRemover()},
		pipelineCfg: config.PipelineConfig{
			MaxGenerationAttempts:   2,
			ServerCompositorEnabled: true,
			CompositorParallelism:   2,
			AvatarWidth:             64,
			AvatarHeight:            64,
		},
		genTimeout: 5 * time.Second,
	}
	p.build(t)
	return p
}

func (p *pipeline) build(t *testing.T) {
	t.Helper()
	db := p.testDB.DB

	assetRepo := repository.NewAssetRecordRepository(db)
	queueRepo := repository.NewQueueEntryRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	rejectionRepo := repository.NewRejectionRecordRepository(db)

	orchestrator := businessflow.NewGenerationOrchestrator(
		db, assetRepo, queueRepo, auditRepo,
		p.generator, p.privateStore,
		nil, config.CacheConfig{}, p.pipelineCfg, p.genTimeout, nil,
	)

	p.assets = businessflow.NewAssetFlow(orchestrator, assetRepo, queueRepo, rejectionRepo)
	p.review = businessflow.NewReviewFlow(db, orchestrator, rejectionRepo)
	p.publish = businessflow.NewPublishFlow(db, orchestrator, p.privateStore, p.publicStore,
		p.remover, services.NewImageNormalizer(), 5*time.Second, nil)
	p.composites = businessflow.NewCompositeFlow(db,
		repository.NewAvatarCompositeRepository(db),
		repository.NewSceneTemplateRepository(db),
		repository.NewSceneCompositeRepository(db),
		assetRepo, auditRepo, p.publicStore,
		services.NewLayerCompositor(p.pipelineCfg.CompositorParallelism),
		p.pipelineCfg, nil)
	p.buildings = businessflow.NewBuildingConfigFlow(db, repository.NewBuildingConfigurationRepository(db), assetRepo, auditRepo)
	p.audit = businessflow.NewAuditFlow(auditRepo)
}

func (p *pipeline) generate(t *testing.T, category, key, prompt string) dto.AssetDTO {
	t.Helper()
	resp, err := p.assets.GenerateAsset(context.Background(), &dto.GenerateAssetRequest{
		Category:   category,
		AssetKey:   key,
		BasePrompt: prompt,
		Actor:      "reviewer@test",
	}, nil)
	require.NoError(t, err)
	return resp.Asset
}

func (p *pipeline) approve(t *testing.T, id uint) dto.AssetDTO {
	t.Helper()
	resp, err := p.review.Approve(context.Background(), &dto.AssetActionRequest{AssetID: id, Actor: "reviewer@test"}, nil)
	require.NoError(t, err)
	return resp.Asset
}

func (p *pipeline) getAsset(t *testing.T, id uint) *dto.GetAssetResponse {
	t.Helper()
	resp, err := p.assets.GetAsset(context.Background(), id)
	require.NoError(t, err)
	return resp
}

// publishedLayer runs an avatar layer through generate, approve and publish
func (p *pipeline) publishedLayer(t *testing.T, key string) dto.AssetDTO {
	t.Helper()
	asset := p.generate(t, models.CategoryAvatarLayer, key, "avatar layer "+key)
	p.approve(t, asset.ID)
	resp, err := p.publish.Publish(context.Background(), &dto.AssetActionRequest{AssetID: asset.ID}, nil)
	require.NoError(t, err)
	return resp.Asset
}

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeBounds(t *testing.T, raw []byte) image.Rectangle {
	t.Helper()
	img, err := services.DecodeImage(raw)
	require.NoError(t, err)
	return img.Bounds()
}

func hasKeyWithSuffix(store *services.MemoryBlobStore, suffix string) bool {
	for _, k := range store.Keys() {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}

func requireKind(t *testing.T, err error, kind businessflow.ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, businessflow.ErrorKindOf(err), "unexpected kind for %v", err)
	if code != "" {
		require.Equal(t, code, businessflow.ErrorCodeOf(err))
	}
}

var errServiceDown = errors.New("service unavailable")
