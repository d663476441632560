package orchestrate

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovecrm/cardscan/internal/config"
	"github.com/grovecrm/cardscan/internal/ocr"
	"github.com/grovecrm/cardscan/internal/score"
	"github.com/grovecrm/cardscan/internal/variants"
)

const goodCard = "Jane Doe\nPatient Care Manager\njane.doe@riverhealth.org\nOffice: (719) 555-0199"

// fakePrimary returns scripted texts in call order, repeating the last one.
type fakePrimary struct {
	mu        sync.Mutex
	responses []string
	calls     int
	wordText  string
	wordConf  float64
}

func (f *fakePrimary) Name() string    { return "fake" }
func (f *fakePrimary) Available() bool { return true }

func (f *fakePrimary) Recognize(ctx context.Context, _ image.Image, _ ocr.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.responses) == 0 {
		return "", nil
	}
	text := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return text, nil
}

func (f *fakePrimary) RecognizeWords(ctx context.Context, _ image.Image, _ ocr.Options) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	return f.wordText, f.wordConf, nil
}

// fakeEngine is a fixed-response neural engine stand-in.
type fakeEngine struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeEngine) Name() string    { return f.name }
func (f *fakeEngine) Available() bool { return f.err == nil }

func (f *fakeEngine) Recognize(ctx context.Context, _ image.Image, _ ocr.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.calls++
	return f.text, f.err
}

func testImage() image.Image {
	img := imaging.New(200, 120, color.White)
	bar := imaging.New(100, 8, color.Black)
	return imaging.Paste(img, bar, image.Pt(20, 30))
}

func newOrchestrator(p Primary, lines, boxes ocr.Engine) *Orchestrator {
	cfg := config.DefaultConfig()
	return New(p, lines, boxes, variants.NewGenerator(nil), cfg.OCR, cfg.Thresholds, nil)
}

func TestRun_FastPathAccept(t *testing.T) {
	p := &fakePrimary{responses: []string{goodCard}}
	o := newOrchestrator(p, nil, nil)

	res := o.Run(context.Background(), testImage(), nil)
	assert.Equal(t, StateDone, res.State)
	assert.Contains(t, res.Text, "jane.doe@riverhealth.org")
	// All five fast-path reads happen, then the loop stops.
	assert.LessOrEqual(t, p.calls, 5)
}

func TestRun_EarlyExitOnEmailCandidate(t *testing.T) {
	// Fast path sees junk; the first heavy-pipeline read is a clean card.
	responses := []string{"zz", "zz", "zz", "zz", "zz", goodCard}
	p := &fakePrimary{responses: responses}
	o := newOrchestrator(p, nil, nil)

	res := o.Run(context.Background(), testImage(), nil)
	assert.Contains(t, res.Text, "jane.doe@riverhealth.org")
	assert.GreaterOrEqual(t, res.Score, 0.9)
}

func TestRun_NoCandidatesFallsBackToNeural(t *testing.T) {
	p := &fakePrimary{responses: []string{""}}
	lines := &fakeEngine{name: "lines", text: "Jane Doe\nRiverside Care"}
	o := newOrchestrator(p, lines, nil)

	res := o.Run(context.Background(), testImage(), nil)
	assert.Contains(t, res.Text, "Jane Doe")
}

func TestRun_NoCandidatesNoFallbacksReturnsEmpty(t *testing.T) {
	p := &fakePrimary{responses: []string{""}}
	o := newOrchestrator(p, nil, nil)

	res := o.Run(context.Background(), testImage(), nil)
	assert.Empty(t, res.Text)
	assert.Equal(t, StateDone, res.State)
}

func TestRun_NeuralEngineErrorIsNotFatal(t *testing.T) {
	p := &fakePrimary{responses: []string{""}}
	lines := &fakeEngine{name: "lines", err: errors.New("model missing")}
	boxes := &fakeEngine{name: "boxes", err: errors.New("model missing")}
	o := newOrchestrator(p, lines, boxes)

	res := o.Run(context.Background(), testImage(), nil)
	assert.Empty(t, res.Text)
}

func TestRun_BudgetExpires(t *testing.T) {
	p := &fakePrimary{responses: []string{goodCard}}
	cfg := config.DefaultConfig()
	cfg.OCR.TimeBudget = time.Nanosecond
	o := New(p, nil, nil, variants.NewGenerator(nil), cfg.OCR, cfg.Thresholds, nil)

	start := time.Now()
	res := o.Run(context.Background(), testImage(), nil)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateDone, res.State)
}

func TestRun_ProgressReported(t *testing.T) {
	p := &fakePrimary{responses: []string{goodCard}}
	o := newOrchestrator(p, nil, nil)

	var states []State
	o.Run(context.Background(), testImage(), func(s State, _ string) {
		states = append(states, s)
	})
	require.NotEmpty(t, states)
	assert.Equal(t, StateFastPath, states[0])
	assert.Equal(t, StateDone, states[len(states)-1])
}

func TestCombine_MergesWithinWindow(t *testing.T) {
	cands := []Candidate{
		{Text: "Jane Doe\nPatient Care Manager", Score: 1.0},
		{Text: "Jane Doe\nRiverside Hospice", Score: 0.9},
		{Text: "garbage text", Score: 0.3},
	}
	out := combine(cands, 0.18)
	assert.Contains(t, out, "Patient Care Manager")
	assert.Contains(t, out, "Riverside Hospice")
	assert.NotContains(t, out, "garbage")
}

func TestCombine_EmailRecovery(t *testing.T) {
	cands := []Candidate{
		{Text: "Jane Doe\nPatient Care Manager", Score: 1.2},
		{Text: "contact jane@riverside.org today", Score: 0.5},
	}
	out := combine(cands, 0.18)
	assert.True(t, score.HasEmail(out), "email line must be recovered: %q", out)
}

func TestCombine_Empty(t *testing.T) {
	assert.Empty(t, combine(nil, 0.18))
}

func TestSortCandidates_ScoreThenLength(t *testing.T) {
	cands := []Candidate{
		{Text: "short", Score: 0.5},
		{Text: "a much longer text body", Score: 0.5},
		{Text: "best", Score: 0.9},
	}
	sortCandidates(cands)
	assert.Equal(t, "best", cands[0].Text)
	assert.Equal(t, "a much longer text body", cands[1].Text)
}

func TestMergeText_SkipsDuplicatesAndInvalid(t *testing.T) {
	base := "Jane Doe\nManager"
	extra := "Jane Doe\nRiverside Care\nxq1"
	out := mergeText(base, extra)
	assert.Equal(t, "Jane Doe\nManager\nRiverside Care", out)
}

func TestRun_NeuralFirstCandidateWinsWithoutEmail(t *testing.T) {
	// The early neural read carries no email, so it cannot short-circuit,
	// but as a pooled candidate it still wins when the primary engine
	// produces nothing.
	neural := "Jane Doe\nPatient Care Manager\nRiverside Health Partners"
	p := &fakePrimary{responses: []string{""}}
	lines := &fakeEngine{name: "lines", text: "unexpected fallback read"}
	boxes := &fakeEngine{name: "boxes", text: neural}
	o := newOrchestrator(p, lines, boxes)

	res := o.Run(context.Background(), testImage(), nil)
	assert.Contains(t, res.Text, "Riverside Health Partners")
	assert.NotContains(t, res.Text, "unexpected fallback read")
	// With a pooled candidate the empty-result fallback chain never runs.
	assert.Zero(t, lines.calls)
}

func TestRun_GarbledLinesFilteredFromCandidates(t *testing.T) {
	// The junk line rides along with a clean read; the registered candidate
	// must not carry it into extraction.
	noisy := "xK3@!z qwrtpsd\n" + goodCard
	responses := []string{"zz", "zz", "zz", "zz", "zz", noisy}
	p := &fakePrimary{responses: responses}
	o := newOrchestrator(p, nil, nil)

	res := o.Run(context.Background(), testImage(), nil)
	assert.Contains(t, res.Text, "jane.doe@riverhealth.org")
	assert.NotContains(t, res.Text, "qwrtpsd")
}

func TestRescue_SecondPassSkippedOnceScoreRecovers(t *testing.T) {
	p := &fakePrimary{}
	lines := &fakeEngine{name: "lines", text: goodCard}
	boxes := &fakeEngine{name: "boxes", text: "Martin Leeds\nAccount Director"}
	o := newOrchestrator(p, lines, boxes)

	out := o.rescue(context.Background(), testImage(), "zq zq zq")
	assert.Contains(t, out, "jane.doe@riverhealth.org")
	// The first pass lifted the score past the rescue threshold, so the
	// box-based pass never runs.
	assert.Equal(t, 1, lines.calls)
	assert.Zero(t, boxes.calls)
}

func TestPreferNeuralFirst(t *testing.T) {
	cfg := config.DefaultConfig()
	o := New(&fakePrimary{}, nil, nil, variants.NewGenerator(nil), cfg.OCR, cfg.Thresholds, nil)

	neural := goodCard
	weak := "zzz qqq"
	assert.Equal(t, neural, o.preferNeuralFirst(neural, weak))

	strong := goodCard + "\n123 Main Street Suite 4\nwww.riverhealth.org"
	assert.Equal(t, strong, o.preferNeuralFirst("ok text here", strong))

	assert.Equal(t, weak, o.preferNeuralFirst("", weak))
}
