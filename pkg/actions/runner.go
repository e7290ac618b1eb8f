package actions

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ImageGenerator produces one or more images for a prompt.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, prompt string, count int) ([]conversation.ImageData, error)
}

// VideoOperation is the pollable state of a long-running video generation.
type VideoOperation struct {
	ID    string
	Done  bool
	Error string
	URI   string
}

// VideoGenerator drives the asynchronous video backend: start an operation,
// poll it until done, then materialize the binary result.
type VideoGenerator interface {
	Start(ctx context.Context, prompt, aspectRatio string) (*VideoOperation, error)
	Poll(ctx context.Context, op *VideoOperation) (*VideoOperation, error)
	Download(ctx context.Context, uri string) (*conversation.VideoFile, error)
}

// KeySelector is the video precondition: generation requires an explicitly
// selected API key.
type KeySelector interface {
	HasSelectedKey(ctx context.Context) (bool, error)
}

// ToastFunc surfaces non-fatal notifications. Level is "info" or "error".
type ToastFunc func(level, message string)

// Sleeper is an interruptible delay, swappable in tests.
type Sleeper func(ctx context.Context, d time.Duration) error

func ctxSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner executes artifact generation subroutines. Every subroutine follows
// the same shape: progress marker already set by the caller, one or more
// backend calls, then either an attached artifact or a localized error
// appended to the message's active content. Failures never abort the rest of
// the conversation; cancellation propagates as an error.
type Runner struct {
	store      *conversation.Store
	translator i18n.Translator
	images     ImageGenerator
	video      VideoGenerator
	keys       KeySelector
	toast      ToastFunc
	sleep      Sleeper

	prepDelay    time.Duration
	imageDelay   time.Duration
	pollInterval time.Duration
}

type RunnerOption func(*Runner)

func WithVideoGenerator(gen VideoGenerator, keys KeySelector) RunnerOption {
	return func(r *Runner) {
		r.video = gen
		r.keys = keys
	}
}

func WithToast(fn ToastFunc) RunnerOption {
	return func(r *Runner) { r.toast = fn }
}

func WithSleeper(s Sleeper) RunnerOption {
	return func(r *Runner) { r.sleep = s }
}

// WithDelays overrides the pacing intervals: spreadsheet preparation delay,
// inter-image delay during presentation image generation, and the video poll
// interval.
func WithDelays(prep, image, poll time.Duration) RunnerOption {
	return func(r *Runner) {
		r.prepDelay = prep
		r.imageDelay = image
		r.pollInterval = poll
	}
}

func NewRunner(store *conversation.Store, translator i18n.Translator, images ImageGenerator, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:        store,
		translator:   translator,
		images:       images,
		toast:        func(string, string) {},
		sleep:        ctxSleep,
		prepDelay:    1500 * time.Millisecond,
		imageDelay:   4 * time.Second,
		pollInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the subroutine matching the action. The returned error is
// non-nil only for cancellation; all other failures are reported into the
// message and swallowed.
func (r *Runner) Run(ctx context.Context, convID, msgID string, action *Action) error {
	switch action.Kind {
	case KindImage:
		return r.runImage(ctx, convID, msgID, action.Image)
	case KindPDF:
		return r.runPDF(convID, msgID, action.PDF)
	case KindSpreadsheet:
		return r.runSpreadsheet(ctx, convID, msgID, action.Spreadsheet)
	case KindPresentation:
		return r.runPresentation(ctx, convID, msgID, action.Presentation)
	case KindWord:
		return r.runWord(convID, msgID, action.Word)
	case KindVideo:
		return r.runVideo(ctx, convID, msgID, action.Video)
	default:
		return errors.Errorf("unknown action kind %q", action.Kind)
	}
}

func (r *Runner) attach(convID, msgID string, payload *conversation.ArtifactPayload) {
	err := r.store.UpdateMessage(convID, msgID, func(m *conversation.Message) {
		m.Pending = nil
		m.Artifact = payload
	})
	if err != nil {
		log.Error().Err(err).Str("conversation_id", convID).Msg("failed to attach artifact")
	}
}

// fail clears the progress marker and appends the localized error to the
// active content so unrelated prior content survives.
func (r *Runner) fail(convID, msgID, key string, cause error) {
	err := r.store.UpdateMessage(convID, msgID, func(m *conversation.Message) {
		m.Pending = nil
		m.AppendToActiveContent(r.translator.T(key) + ": " + cause.Error())
	})
	if err != nil {
		log.Error().Err(err).Str("conversation_id", convID).Msg("failed to record artifact error")
	}
}

func (r *Runner) runImage(ctx context.Context, convID, msgID string, action *ImageAction) error {
	count := action.Count
	if count < 1 {
		count = 1
	}
	images, err := r.images.GenerateImages(ctx, action.Prompt, count)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Msg("image generation failed")
		r.fail(convID, msgID, "imageGenerationError", err)
		return nil
	}
	if len(images) == 0 {
		r.fail(convID, msgID, "imageGenerationError", errors.New("the backend did not return any images"))
		return nil
	}
	r.attach(convID, msgID, &conversation.ArtifactPayload{
		Kind:   conversation.ArtifactImage,
		Images: images,
	})
	return nil
}

func (r *Runner) runPDF(convID, msgID string, action *PDFAction) error {
	r.attach(convID, msgID, &conversation.ArtifactPayload{
		Kind: conversation.ArtifactPDF,
		PDF: &conversation.PDFDocument{
			Filename: action.Filename,
			Title:    action.Title,
			Markdown: action.Content,
		},
	})
	return nil
}

func (r *Runner) runSpreadsheet(ctx context.Context, convID, msgID string, action *SpreadsheetAction) error {
	if err := r.sleep(ctx, r.prepDelay); err != nil {
		return err
	}
	filename := action.Filename
	if filename == "" {
		filename = "lampwick_spreadsheet.xlsx"
	}
	r.attach(convID, msgID, &conversation.ArtifactPayload{
		Kind: conversation.ArtifactSpreadsheet,
		Spreadsheet: &conversation.SpreadsheetFile{
			Filename: filename,
			Sheets:   action.Sheets,
		},
	})
	return nil
}

func (r *Runner) runPresentation(ctx context.Context, convID, msgID string, action *PresentationAction) error {
	slides := make([]conversation.Slide, len(action.Data.Slides))
	copy(slides, action.Data.Slides)

	var pending []int
	for i := range slides {
		if slides[i].Image != nil && slides[i].Image.Prompt != "" && slides[i].Image.Data == "" {
			pending = append(pending, i)
		}
	}

	if len(pending) > 0 {
		err := r.store.UpdateMessage(convID, msgID, func(m *conversation.Message) {
			if m.Pending != nil {
				m.Pending.GeneratingImages = true
			}
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to mark presentation image phase")
		}

		// Sequential on purpose: one image call at a time with a fixed delay
		// between calls to respect provider rate limits. Per-image failures
		// are non-fatal.
		for _, idx := range pending {
			if ctx.Err() != nil {
				log.Debug().Msg("presentation image generation cancelled")
				break
			}
			images, err := r.images.GenerateImages(ctx, slides[idx].Image.Prompt, 1)
			if err != nil {
				log.Error().Err(err).Str("prompt", slides[idx].Image.Prompt).Msg("slide image generation failed")
				r.toast("error", r.translator.T("imageGenerationError")+": "+err.Error())
			} else if len(images) > 0 {
				slides[idx].Image.Data = images[0].Data
			}
			if err := r.sleep(ctx, r.imageDelay); err != nil {
				break
			}
		}
	}

	filename := action.Filename
	if filename == "" {
		filename = "lampwick_presentation.pptx"
	}
	r.attach(convID, msgID, &conversation.ArtifactPayload{
		Kind: conversation.ArtifactPresentation,
		Presentation: &conversation.PresentationFile{
			Filename: filename,
			Theme:    action.Data.Theme,
			Slides:   slides,
		},
	})
	return nil
}

func (r *Runner) runWord(convID, msgID string, action *WordAction) error {
	theme := action.Theme
	if theme == nil {
		theme = &conversation.WordTheme{}
	}
	if theme.PrimaryColor == "" {
		theme.PrimaryColor = "2E74B5"
	}
	if theme.Font == "" {
		theme.Font = "Calibri"
	}
	r.attach(convID, msgID, &conversation.ArtifactPayload{
		Kind: conversation.ArtifactWord,
		Word: &conversation.WordFile{
			Filename: action.Filename,
			Theme:    theme,
			Content:  action.Content,
		},
	})
	return nil
}

func (r *Runner) requireKeySelection(convID, msgID string) {
	err := r.store.UpdateMessage(convID, msgID, func(m *conversation.Message) {
		m.Pending = nil
		m.AnalysisState = nil
		m.RequiresKeySelection = true
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to mark key selection requirement")
	}
}

func (r *Runner) failVideo(convID, msgID string, cause error) {
	err := r.store.UpdateMessage(convID, msgID, func(m *conversation.Message) {
		m.Pending = nil
		m.AnalysisState = nil
		m.ReplaceContent(r.translator.T("videoGenerationError") + ": " + cause.Error())
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to record video error")
	}
}

func (r *Runner) setVideoStatus(convID, msgID, key string) {
	err := r.store.UpdateMessage(convID, msgID, func(m *conversation.Message) {
		if m.Pending != nil {
			m.Pending.Status = r.translator.T(key)
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to update video status")
	}
}

func (r *Runner) runVideo(ctx context.Context, convID, msgID string, action *VideoAction) error {
	if r.video == nil {
		err := r.store.UpdateMessage(convID, msgID, func(m *conversation.Message) {
			m.Pending = nil
			m.AnalysisState = nil
			m.ReplaceContent(r.translator.T("videoGenerationError"))
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to record missing video backend")
		}
		return nil
	}

	if r.keys != nil {
		hasKey, err := r.keys.HasSelectedKey(ctx)
		if err != nil {
			r.failVideo(convID, msgID, err)
			return nil
		}
		if !hasKey {
			r.requireKeySelection(convID, msgID)
			return nil
		}
	}

	r.setVideoStatus(convID, msgID, "videoStatusGenerating")

	aspectRatio := action.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}

	op, err := r.video.Start(ctx, action.Prompt, aspectRatio)
	if err != nil {
		return r.handleVideoError(ctx, convID, msgID, err)
	}

	for !op.Done {
		if err := r.sleep(ctx, r.pollInterval); err != nil {
			return err
		}
		op, err = r.video.Poll(ctx, op)
		if err != nil {
			return r.handleVideoError(ctx, convID, msgID, err)
		}
	}

	if op.Error != "" {
		return r.handleVideoError(ctx, convID, msgID, errors.New(op.Error))
	}
	if op.URI == "" {
		r.failVideo(convID, msgID, errors.New("video generation finished but no download link was provided"))
		return nil
	}

	r.setVideoStatus(convID, msgID, "videoStatusFinalizing")

	file, err := r.video.Download(ctx, op.URI)
	if err != nil {
		return r.handleVideoError(ctx, convID, msgID, err)
	}

	r.attach(convID, msgID, &conversation.ArtifactPayload{
		Kind:  conversation.ArtifactVideo,
		Video: file,
	})
	return nil
}

func (r *Runner) handleVideoError(ctx context.Context, convID, msgID string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Error().Err(err).Msg("video generation failed")
	if strings.Contains(err.Error(), "Requested entity was not found.") {
		r.requireKeySelection(convID, msgID)
		return nil
	}
	r.failVideo(convID, msgID, err)
	return nil
}
