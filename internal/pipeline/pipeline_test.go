package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastwatch/hazard-monitor/internal/domain"
	"github.com/coastwatch/hazard-monitor/internal/observability"
	"github.com/coastwatch/hazard-monitor/internal/pipeline"
	"github.com/coastwatch/hazard-monitor/internal/realtime"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// Block until cancelled to simulate waiting for messages.
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.SocialMediaPost, error) {
	if m.err != nil {
		return domain.SocialMediaPost{}, m.err
	}
	return pipeline.NewTransformer().Transform(ctx, raw)
}

type mockLoader struct {
	loaded []domain.SocialMediaPost
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, posts []domain.SocialMediaPost) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, posts...)
	return nil
}

type mockAlerter struct {
	alerts []domain.SocialMediaPost
}

func (m *mockAlerter) RaiseAlert(_ context.Context, post domain.SocialMediaPost) error {
	m.alerts = append(m.alerts, post)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Fresh unregistered metrics avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawPost(t, "post-1", "Noticed high waves near Juhu beach this morning")

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, nil, slog.Default(), metrics, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, ldr.loaded, 1)

	post := ldr.loaded[0]
	assert.Equal(t, "high_waves", post.HazardType)
	assert.True(t, post.IsRelevant)
	assert.Equal(t, "mumbai", post.Location)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, nil, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	committed := false
	raw := makeRawPost(t, "post-2", "some content")
	raw.Commit = func(context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, nil, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.loaded)
	assert.True(t, committed, "poison messages must still be committed")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	committed := false
	raw := makeRawPost(t, "post-3", "Rough seas near marina beach today")
	raw.Topic = "raw-social-posts"
	raw.Commit = func(context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, nil, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.True(t, committed)
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	committed := false
	raw := makeRawPost(t, "post-4", "Rough seas near marina beach today")
	raw.Commit = func(context.Context) error {
		committed = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{err: errors.New("db unavailable")}

	p := pipeline.New(ext, &mockTransformer{}, ldr, nil, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.False(t, committed, "offsets must not be committed when the load fails")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RaisesAlertForCriticalPost(t *testing.T) {
	critical := makeRawPost(t, "post-5", "URGENT: tsunami waves approaching marina beach, evacuate immediately")
	routine := makeRawPost(t, "post-6", "Noticed high waves near the beach")

	ext := &mockExtractor{batches: [][]domain.RawEvent{{critical, routine}}}
	ldr := &mockLoader{}
	alerter := &mockAlerter{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, alerter, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 2)
	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, "tsunami", alerter.alerts[0].HazardType)
	assert.Equal(t, "critical", alerter.alerts[0].Severity)
}

func TestPipeline_Run_NoAlertWhenLoadFails(t *testing.T) {
	critical := makeRawPost(t, "post-7", "URGENT: tsunami waves approaching marina beach, evacuate immediately")

	ext := &mockExtractor{batches: [][]domain.RawEvent{{critical}}}
	ldr := &mockLoader{err: errors.New("db unavailable")}
	alerter := &mockAlerter{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, alerter, slog.Default(), newTestMetrics(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, alerter.alerts, "alerts reference persisted posts only")
}

func TestPostTransformer_Transform(t *testing.T) {
	raw := makeRawPost(t, "post-8", "Storm surge flooding the coast near marine drive, very dangerous, happening now")

	post, err := pipeline.NewTransformer().Transform(context.Background(), raw)
	require.NoError(t, err)

	want := domain.Assessment{
		IsRelevant: true,
		HazardType: "storm_surge",
		Severity:   "critical",
		Sentiment:  "urgent",
		Confidence: 1.0,
		Location:   "mumbai",
		Keywords:   []string{"storm surge", "dangerous", "now", "marine drive"},
	}
	if diff := cmp.Diff(want, post.Assess()); diff != "" {
		t.Fatalf("assessment mismatch (-want +got):\n%s", diff)
	}
}

func TestPostTransformer_Transform_Invalid(t *testing.T) {
	_, err := pipeline.NewTransformer().Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestAlertRelay_BroadcastsAndPublishes(t *testing.T) {
	b := &recordingBroadcaster{}
	pub := &recordingPublisher{}
	relay := pipeline.NewAlertRelay(b, pub, slog.Default())

	post := domain.SocialMediaPost{
		ID:         "twitter-abc",
		Platform:   "twitter",
		Content:    "tsunami warning",
		HazardType: "tsunami",
		Severity:   "critical",
		Confidence: 0.9,
		IsRelevant: true,
	}

	require.NoError(t, relay.RaiseAlert(context.Background(), post))

	require.Len(t, b.sent, 1)
	assert.Equal(t, "emergency_alert", b.sent[0].msg.Type)
	assert.Empty(t, b.sent[0].channel, "emergency alerts go to everyone")

	require.Len(t, pub.published, 1)
	assert.Equal(t, "twitter-abc", pub.published[0].ID)
}

func TestAlertRelay_NilPublisher(t *testing.T) {
	b := &recordingBroadcaster{}
	relay := pipeline.NewAlertRelay(b, nil, slog.Default())

	require.NoError(t, relay.RaiseAlert(context.Background(), domain.SocialMediaPost{ID: "x"}))
	assert.Len(t, b.sent, 1)
}

// --- helpers ---

type sentBroadcast struct {
	msg     realtime.Envelope
	channel string
}

type recordingBroadcaster struct {
	sent []sentBroadcast
}

func (r *recordingBroadcaster) Broadcast(msg realtime.Envelope, channel string) {
	r.sent = append(r.sent, sentBroadcast{msg: msg, channel: channel})
}

type recordingPublisher struct {
	published []domain.SocialMediaPost
}

func (r *recordingPublisher) PublishAlert(_ context.Context, post domain.SocialMediaPost) error {
	r.published = append(r.published, post)
	return nil
}

func makeRawPost(t *testing.T, postID, content string) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.RawPostRecord{
		Platform: "twitter",
		PostID:   postID,
		Username: "coastal_watcher",
		Content:  content,
		PostedAt: "2026-02-10T08:30:00Z",
	})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:       []byte(postID),
		Value:     data,
		Timestamp: time.Date(2026, time.February, 10, 8, 30, 0, 0, time.UTC),
	}
}
