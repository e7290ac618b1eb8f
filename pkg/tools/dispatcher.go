package tools

import (
	"context"
	"encoding/json"

	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/go-go-golems/lampwick/pkg/generation"
	"github.com/go-go-golems/lampwick/pkg/i18n"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// dispatchOrder fixes the order tool calls are examined in. One round per
// tool per turn; chained tool calls are deliberately unsupported.
var dispatchOrder = []string{
	"getWeatherForecast",
	"computerControl",
	"openWebsite",
	"searchYouTube",
}

// Progress is intermediate UI state reported while tools run.
type Progress struct {
	Text   string
	Typing bool
	Videos []conversation.VideoSearchResult
}

// ProgressFunc receives progress updates during dispatch. May be nil.
type ProgressFunc func(Progress)

// Outcome carries tool side effects that belong on the final message rather
// than in the model's answer.
type Outcome struct {
	Videos []conversation.VideoSearchResult
}

// Dispatcher executes function calls returned by the generation backend and
// feeds their results back into a follow-up generation round.
type Dispatcher struct {
	registry   *Registry
	svc        generation.Service
	translator i18n.Translator
}

func NewDispatcher(registry *Registry, svc generation.Service, translator i18n.Translator) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		svc:        svc,
		translator: translator,
	}
}

// Dispatch runs one round per known tool present in the primary response.
// The calls are snapshotted up front, so every tool the model requested in
// that response executes even though each round replaces resp with the
// follow-up. A round executes the tool, then re-invokes generation on the
// base transcript plus the current model turn and the function response,
// with tool declarations removed so the follow-up produces a
// natural-language answer instead of another tool call.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	contents []generation.Content,
	resp *generation.Response,
	cfg generation.Config,
	notify ProgressFunc,
) (*generation.Response, Outcome, error) {
	outcome := Outcome{}
	followUpCfg := cfg.WithoutTools()
	primary := resp

	for _, name := range dispatchOrder {
		call := primary.FindFunctionCall(name)
		if call == nil {
			continue
		}
		if !d.registry.Has(name) {
			log.Warn().Str("tool", name).Msg("model requested unregistered tool")
			continue
		}

		args, err := json.Marshal(call.Args)
		if err != nil {
			return nil, outcome, errors.Wrapf(err, "failed to marshal arguments for %s", name)
		}

		d.report(notify, name, resp, call)

		def, err := d.registry.Get(name)
		if err != nil {
			return nil, outcome, err
		}

		log.Debug().Str("tool", name).RawJSON("args", args).Msg("executing tool call")
		result, err := def.Execute(ctx, args)
		if err != nil {
			return nil, outcome, errors.Wrapf(err, "tool %s failed", name)
		}

		if videos, ok := result.(*VideoSearchResponse); ok {
			outcome.Videos = videos.Results
			if notify != nil {
				notify(Progress{Typing: true, Videos: videos.Results})
			}
		}

		responseMap, err := toResponseMap(result)
		if err != nil {
			return nil, outcome, errors.Wrapf(err, "tool %s produced an unencodable result", name)
		}

		round := make([]generation.Content, 0, len(contents)+2)
		round = append(round, contents...)
		if resp.ModelTurn != nil {
			round = append(round, *resp.ModelTurn)
		}
		round = append(round, generation.NewFunctionResponseContent(name, responseMap))

		resp, err = d.svc.Generate(ctx, round, followUpCfg)
		if err != nil {
			return nil, outcome, errors.Wrapf(err, "follow-up generation after %s failed", name)
		}
	}

	return resp, outcome, nil
}

func (d *Dispatcher) report(notify ProgressFunc, name string, resp *generation.Response, call *generation.FunctionCall) {
	if notify == nil {
		return
	}
	switch name {
	case "getWeatherForecast":
		text := resp.Text
		if text == "" {
			text = d.translator.T("consultingWeatherService")
		}
		notify(Progress{Text: text})
	case "computerControl":
		text := resp.Text
		if text == "" {
			setting, _ := call.Args["setting"].(string)
			text = d.translator.T("performingAction", setting)
		}
		notify(Progress{Text: text})
	case "openWebsite":
		text := resp.Text
		if text == "" {
			text = d.translator.T("openingWebsite")
		}
		notify(Progress{Text: text})
	case "searchYouTube":
		query, _ := call.Args["query"].(string)
		notify(Progress{Text: d.translator.T("searchingYouTubeFor", query)})
	}
}

func toResponseMap(result interface{}) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
