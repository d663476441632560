// Package orchestrate runs the scan control loop: try cheap recognition
// first, escalate through image variants and engines under a wall-clock
// budget, and merge the best-scoring candidates into a final text.
package orchestrate

import (
	"context"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/grovecrm/cardscan/internal/config"
	"github.com/grovecrm/cardscan/internal/contact"
	"github.com/grovecrm/cardscan/internal/ocr"
	"github.com/grovecrm/cardscan/internal/score"
	"github.com/grovecrm/cardscan/internal/variants"
)

// State identifies the stage the control loop is in.
type State int

const (
	StateNotStarted State = iota
	StateFastPath
	StatePrimaryVariants
	StateSecondaryVariants
	StateFallbacks
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateFastPath:
		return "fast_path"
	case StatePrimaryVariants:
		return "primary_variants"
	case StateSecondaryVariants:
		return "secondary_variants"
	case StateFallbacks:
		return "fallbacks"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Primary is the structured engine with its confidence-weighted word mode.
type Primary interface {
	ocr.Engine
	RecognizeWords(ctx context.Context, img image.Image, opts ocr.Options) (string, float64, error)
}

// ProgressFunc receives stage transitions, for callers streaming progress.
type ProgressFunc func(state State, detail string)

// Orchestrator drives the engines according to the escalation policy.
type Orchestrator struct {
	primary Primary
	lines   ocr.Engine
	boxes   ocr.Engine
	gen     *variants.Generator
	ocrCfg  config.OCRConfig
	th      config.ThresholdsConfig
	logger  *slog.Logger
}

// New assembles an orchestrator. The neural engines may be nil, in which
// case their stages are skipped.
func New(primary Primary, lines, boxes ocr.Engine, gen *variants.Generator,
	ocrCfg config.OCRConfig, th config.ThresholdsConfig, logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		primary: primary,
		lines:   lines,
		boxes:   boxes,
		gen:     gen,
		ocrCfg:  ocrCfg,
		th:      th,
		logger:  logger.With("component", "orchestrate"),
	}
}

// Result is the outcome of a scan loop run.
type Result struct {
	Text  string
	Score float64
	State State
}

func (o *Orchestrator) defaultOpts() ocr.Options {
	return ocr.Options{Languages: o.ocrCfg.Languages, DPI: o.ocrCfg.DPI}
}

func (o *Orchestrator) whitelistOpts() ocr.Options {
	opts := o.defaultOpts()
	opts.PSM = 6
	opts.Whitelist = ocr.CharWhitelist
	return opts
}

func (o *Orchestrator) plainOpts() ocr.Options {
	opts := o.defaultOpts()
	opts.PSM = 6
	opts.PreserveSpaces = true
	return opts
}

func (o *Orchestrator) sparseOpts() ocr.Options {
	opts := o.defaultOpts()
	opts.PSM = 11
	return opts
}

// Run executes the full loop. It never fails: the worst case is an empty
// string. The configured time budget bounds every stage.
func (o *Orchestrator) Run(ctx context.Context, img image.Image, progress ProgressFunc) Result {
	if progress == nil {
		progress = func(State, string) {}
	}
	ctx, cancel := context.WithTimeout(ctx, o.ocrCfg.TimeBudget)
	defer cancel()
	start := time.Now()

	// Stage 1: cheap rotation/contrast sweep.
	progress(StateFastPath, "")
	if text, working, done := o.fastPath(ctx, img); done {
		o.logger.Info("fast path accepted", "elapsed", time.Since(start))
		progress(StateDone, "fast_path")
		return Result{Text: text, Score: score.Text(text), State: StateDone}
	} else if working != nil {
		// A rotated variant read best; run the heavy pipeline on it. This is
		// what recovers upside-down cards.
		img = working
	}

	// Stage 2: optional early neural pass. A good read enters the candidate
	// pool so it can win the merge outright, not only via the final override.
	var cands []Candidate
	neuralFirst := ""
	if o.boxes != nil && ctx.Err() == nil {
		if text, err := o.boxes.Recognize(ctx, img, ocr.Options{}); err == nil && text != "" {
			s := score.Text(text)
			if s >= o.th.NeuralFirstAccept && score.HasEmail(text) {
				o.logger.Info("early neural pass accepted", "score", s)
				progress(StateDone, "neural_first")
				return Result{Text: text, Score: s, State: StateDone}
			}
			o.register(&cands, text, "neural_first")
			if cleaned := contact.PostProcess(text); cleaned != "" {
				neuralFirst = cleaned
			} else {
				neuralFirst = text
			}
		}
	}

	// Stage 3: primary engine over deduplicated variants.
	progress(StatePrimaryVariants, "")
	primaryCands, earlyExit := o.primaryVariants(ctx, img, false)
	cands = append(cands, primaryCands...)
	if !earlyExit && totalTextLen(cands) < o.th.AggressiveBelowChars && ctx.Err() == nil {
		more, exited := o.primaryVariants(ctx, img, true)
		cands = append(cands, more...)
		earlyExit = exited
	}

	// Stage 4: sparse-text secondary pass.
	if !earlyExit && bestScore(cands) < o.th.SecondaryPassBelow && ctx.Err() == nil {
		progress(StateSecondaryVariants, "")
		cands = append(cands, o.secondaryVariants(ctx, img)...)
	}

	// Stage 5: nothing at all -> fallback chain.
	if len(cands) == 0 {
		progress(StateFallbacks, "no_candidates")
		text := o.emptyFallback(ctx, img)
		final := o.preferNeuralFirst(neuralFirst, text)
		progress(StateDone, "fallback")
		return Result{Text: final, Score: score.Text(final), State: StateDone}
	}

	// Stage 6: merge candidates and strip garbled lines from the result.
	text := contact.PostProcess(combine(cands, o.th.MergeWindow))

	// Stage 7: neural rescue for weak results.
	if score.Text(text) < o.th.RescueBelow && ctx.Err() == nil {
		progress(StateFallbacks, "rescue")
		text = o.rescue(ctx, img, text)
	}

	// Stage 8: prefer the early neural read over a still-poor pipeline result.
	final := o.preferNeuralFirst(neuralFirst, text)
	o.logger.Info("scan loop finished",
		"score", score.Text(final), "candidates", len(cands), "elapsed", time.Since(start))
	progress(StateDone, "")
	return Result{Text: final, Score: score.Text(final), State: StateDone}
}

// fastPath reads five cheap variants and accepts the best outright when it
// is clearly good. Returns the rotated image to continue with when a
// quarter-turn variant read best.
func (o *Orchestrator) fastPath(ctx context.Context, img image.Image) (string, image.Image, bool) {
	bestText := ""
	bestName := ""
	bestFast := -1.0
	var bestImage image.Image
	for _, v := range o.gen.FastRotations(img) {
		if ctx.Err() != nil {
			break
		}
		text, err := o.primary.Recognize(ctx, v.Image, o.defaultOpts())
		if err != nil {
			o.logger.Debug("fast path read failed", "variant", v.Name, "error", err)
			continue
		}
		if s := score.Rotational(text); s > bestFast {
			bestFast = s
			bestText = text
			bestName = v.Name
			bestImage = v.Image
		}
	}
	if bestText == "" {
		return "", nil, false
	}
	s := score.Text(bestText)
	if (score.HasEmail(bestText) && s >= o.th.FastAcceptWithEmail) || s >= o.th.FastAcceptScore {
		return contact.PostProcess(bestText), nil, true
	}
	if strings.HasPrefix(bestName, "rot") {
		// A quarter turn won; keep its orientation for the heavy pipeline.
		return "", bestImage, false
	}
	return "", nil, false
}

// primaryVariants runs the whitelisted and plain configs, plus the word
// mode, over the variant list. Reports whether the early-exit condition
// fired.
func (o *Orchestrator) primaryVariants(ctx context.Context, img image.Image, aggressive bool) ([]Candidate, bool) {
	maxGen := o.ocrCfg.MaxVariants - 1
	if aggressive {
		maxGen = 2
	}
	vs := o.gen.Generate(img, aggressive, maxGen)
	vs = variants.ExpandWithInversions(vs, img, o.ocrCfg.MaxVariants)

	var cands []Candidate
	configs := []struct {
		name string
		opts ocr.Options
	}{
		{"whitelist", o.whitelistOpts()},
		{"plain", o.plainOpts()},
	}

	for _, v := range vs {
		for _, cfg := range configs {
			if ctx.Err() != nil {
				return cands, false
			}
			text, err := o.primary.Recognize(ctx, v.Image, cfg.opts)
			if err != nil {
				o.logger.Debug("primary read failed", "variant", v.Name, "config", cfg.name, "error", err)
				continue
			}
			if c, ok := o.register(&cands, text, v.Name+"/"+cfg.name); ok {
				if c.Score >= o.th.EarlyExitScore && score.HasEmail(c.Text) {
					return cands, true
				}
			}

			// Confidence-weighted reconstruction as a second candidate.
			wordText, conf, werr := o.primary.RecognizeWords(ctx, v.Image, cfg.opts)
			if werr != nil || wordText == "" {
				continue
			}
			combined := score.Text(wordText)
			if byConf := conf/100 + 0.1; byConf > combined {
				combined = byConf
			}
			if combined >= o.th.CandidateFloor {
				c := Candidate{Text: wordText, Score: combined, Source: v.Name + "/" + cfg.name + "/words"}
				cands = append(cands, c)
				if c.Score >= o.th.EarlyExitScore && score.HasEmail(c.Text) {
					return cands, true
				}
			}
		}
	}
	return cands, false
}

// secondaryVariants retries the first two variants with the sparse layout
// config.
func (o *Orchestrator) secondaryVariants(ctx context.Context, img image.Image) []Candidate {
	vs := o.gen.Generate(img, false, 2)
	var cands []Candidate
	for _, v := range vs {
		if ctx.Err() != nil {
			break
		}
		text, err := o.primary.Recognize(ctx, v.Image, o.sparseOpts())
		if err != nil {
			continue
		}
		o.register(&cands, text, v.Name+"/sparse")
	}
	return cands
}

// register strips garbled lines and adds the text as a candidate when it
// clears the floor.
func (o *Orchestrator) register(cands *[]Candidate, text, source string) (Candidate, bool) {
	if text == "" {
		return Candidate{}, false
	}
	if cleaned := contact.PostProcess(text); cleaned != "" {
		text = cleaned
	}
	s := score.Text(text)
	if s < o.th.CandidateFloor {
		return Candidate{}, false
	}
	c := Candidate{Text: text, Score: s, Source: source}
	*cands = append(*cands, c)
	return c, true
}

// emptyFallback is the last resort when no candidate was produced at all:
// neural engines in order, then one plain primary read of the untouched image.
func (o *Orchestrator) emptyFallback(ctx context.Context, img image.Image) string {
	for _, eng := range []ocr.Engine{o.lines, o.boxes} {
		if eng == nil || ctx.Err() != nil {
			continue
		}
		if text, err := eng.Recognize(ctx, img, ocr.Options{}); err == nil && text != "" {
			if cleaned := contact.PostProcess(text); cleaned != "" {
				return cleaned
			}
			return text
		}
	}
	if ctx.Err() != nil {
		return ""
	}
	text, err := o.primary.Recognize(ctx, img, o.plainOpts())
	if err != nil {
		return ""
	}
	return contact.PostProcess(text)
}

// rescue offers the weak merged text to the neural engines: adopt an
// outright better read, or merge one that lands close enough. Each pass
// re-checks the score first; a pass that lifts the text above the rescue
// threshold ends the escalation.
func (o *Orchestrator) rescue(ctx context.Context, img image.Image, text string) string {
	current := score.Text(text)

	type pass struct {
		eng     ocr.Engine
		margin  float64
		floor   float64
		cleaned bool
	}
	for _, p := range []pass{
		{o.lines, 0.1, 0.25, true},
		{o.boxes, 0.12, 0.3, false},
	} {
		if p.eng == nil || ctx.Err() != nil || current >= o.th.RescueBelow {
			continue
		}
		candidate, err := p.eng.Recognize(ctx, img, ocr.Options{})
		if err != nil || candidate == "" {
			continue
		}
		if p.cleaned {
			if c := contact.PostProcess(candidate); c != "" {
				candidate = c
			}
		}
		s := score.Text(candidate)
		switch {
		case s > current:
			text, current = candidate, s
		case s >= maxFloat(current-p.margin, p.floor):
			merged := mergeText(text, candidate)
			if c := contact.PostProcess(merged); c != "" {
				merged = c
			}
			text = merged
			current = score.Text(text)
		}
	}
	return text
}

// preferNeuralFirst applies the final override: when the early neural read
// was reasonable and the pipeline result is weak or gibberish, the early
// read wins.
func (o *Orchestrator) preferNeuralFirst(neuralFirst, text string) string {
	if neuralFirst == "" {
		return text
	}
	nf := score.Text(neuralFirst)
	if nf < o.th.FastAcceptWithEmail {
		return text
	}
	final := score.Text(text)
	if final < o.th.NeuralFirstAccept || score.Gibberish(text) {
		if nf >= final*0.8 {
			return neuralFirst
		}
	}
	return text
}

func bestScore(cands []Candidate) float64 {
	best := 0.0
	for _, c := range cands {
		if c.Score > best {
			best = c.Score
		}
	}
	return best
}

func totalTextLen(cands []Candidate) int {
	total := 0
	for _, c := range cands {
		total += len(c.Text)
	}
	return total
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
