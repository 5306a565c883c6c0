package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
	"github.com/smallbiznis/atelier/internal/auth"
	"github.com/smallbiznis/atelier/internal/authorization"
	"github.com/smallbiznis/atelier/internal/gateway"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	"github.com/smallbiznis/atelier/internal/pipeline"
)

const defaultContentType = "image/png"

// plan is everything PerformAction needs after validation and before the pipeline runs.
type plan struct {
	feature string
	stages  []pipeline.Stage
	state   *pipeline.State

	// artifact actions; edits load their source only after the capability check
	needsSource  bool
	artifactKind artifactdomain.Kind
	parentID     *snowflake.ID
	keyHint      string
	prompt       string
	metadata     map[string]any

	// chat turns
	session   *historydomain.Session
	mode      historydomain.Mode
	message   string
	firstTurn bool
}

func validate(spec ActionSpec) error {
	switch spec.Kind {
	case KindResearchImage:
		if strings.TrimSpace(spec.Topic) == "" {
			return fmt.Errorf("%w: topic is required", ErrInvalidAction)
		}
	case KindImageEdit:
		if strings.TrimSpace(spec.Instruction) == "" {
			return fmt.Errorf("%w: instruction is required", ErrInvalidAction)
		}
		return validateSource(spec)
	case KindStyleTransform:
		if strings.TrimSpace(spec.Style) == "" {
			return fmt.Errorf("%w: style is required", ErrInvalidAction)
		}
		return validateSource(spec)
	case KindChatTurn:
		if strings.TrimSpace(spec.Message) == "" {
			return fmt.Errorf("%w: message is required", ErrInvalidAction)
		}
		if spec.SessionID == 0 && spec.Mode != "" && !spec.Mode.Valid() {
			return fmt.Errorf("%w: %w", ErrInvalidAction, historydomain.ErrInvalidMode)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, spec.Kind)
	}
	return nil
}

func validateSource(spec ActionSpec) error {
	hasArtifact := spec.SourceArtifactID != 0
	hasUpload := len(spec.SourceImage) > 0
	switch {
	case hasArtifact && hasUpload:
		return fmt.Errorf("%w: give either source_artifact_id or source_image", ErrInvalidAction)
	case !hasArtifact && !hasUpload:
		return fmt.Errorf("%w: a source image is required", ErrInvalidAction)
	}
	return nil
}

func (o *Orchestrator) buildPlan(ctx context.Context, accountID snowflake.ID, spec ActionSpec) (*plan, error) {
	features := o.features.Get()
	size := strings.TrimSpace(spec.Size)
	if size == "" {
		size = features.ImageSize
	}

	switch spec.Kind {
	case KindResearchImage:
		topic := strings.TrimSpace(spec.Topic)
		prompt := strings.TrimSpace(spec.Prompt)
		if prompt == "" {
			prompt = topic
		}
		return &plan{
			feature:      authorization.CapabilityImageResearch,
			state:        pipeline.NewState(),
			stages:       []pipeline.Stage{pipeline.Research(o.gateway, topic), pipeline.Synthesize(o.gateway, prompt, size)},
			artifactKind: artifactdomain.KindResearchImage,
			keyHint:      topic,
			prompt:       prompt,
			metadata:     map[string]any{"topic": topic, "size": size},
		}, nil

	case KindImageEdit:
		instruction := strings.TrimSpace(spec.Instruction)
		return &plan{
			feature:      authorization.CapabilityImageEdit,
			needsSource:  true,
			stages:       []pipeline.Stage{pipeline.Edit(o.gateway, instruction, size)},
			artifactKind: artifactdomain.KindImageEdit,
			keyHint:      instruction,
			prompt:       instruction,
			metadata:     map[string]any{"size": size},
		}, nil

	case KindStyleTransform:
		style := strings.ToLower(strings.TrimSpace(spec.Style))
		preset, ok := features.StylePresets[style]
		if !ok {
			return nil, fmt.Errorf("%w: unknown style %q", ErrInvalidAction, style)
		}
		return &plan{
			feature:      authorization.CapabilityImageStyle,
			needsSource:  true,
			stages:       []pipeline.Stage{pipeline.Edit(o.gateway, preset, size)},
			artifactKind: artifactdomain.KindStyleTransform,
			keyHint:      style,
			prompt:       preset,
			metadata:     map[string]any{"style": style, "size": size},
		}, nil

	case KindChatTurn:
		return o.buildChatPlan(ctx, accountID, spec)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, spec.Kind)
}

func (o *Orchestrator) buildChatPlan(ctx context.Context, accountID snowflake.ID, spec ActionSpec) (*plan, error) {
	p := &plan{
		state:     pipeline.NewState(),
		message:   strings.TrimSpace(spec.Message),
		firstTurn: true,
	}

	var history []gateway.ChatMessage
	if spec.SessionID != 0 {
		session, err := o.history.GetSession(ctx, accountID, spec.SessionID)
		if err != nil {
			return nil, err
		}
		messages, err := o.history.ListMessages(ctx, accountID, session.ID, 0)
		if err != nil {
			return nil, err
		}
		history = make([]gateway.ChatMessage, 0, len(messages))
		for _, m := range messages {
			history = append(history, gateway.ChatMessage{Role: string(m.Role), Content: m.Content})
		}
		p.session = session
		p.mode = session.Mode
		p.firstTurn = session.Title == "" && len(messages) == 0
	} else {
		p.mode = spec.Mode
		if p.mode == "" {
			p.mode = historydomain.ModeStandard
		}
	}

	p.feature = authorization.CapabilityChatStandard
	if p.mode == historydomain.ModeDeep {
		p.feature = authorization.CapabilityChatDeep
	}

	p.stages = []pipeline.Stage{pipeline.Chat(o.gateway, string(p.mode), history, p.message)}
	if p.firstTurn {
		p.stages = append(p.stages, pipeline.SummarizeTitle(o.gateway, p.message, o.features.Get().TitleMaxLength))
	}
	return p, nil
}

// loadSource seeds the pipeline state with the image to edit. A referenced
// artifact must belong to the caller.
func (o *Orchestrator) loadSource(ctx context.Context, accountID snowflake.ID, spec ActionSpec) (*pipeline.State, *snowflake.ID, error) {
	state := pipeline.NewState()
	if spec.SourceArtifactID == 0 {
		state.Image = spec.SourceImage
		state.ContentType = strings.TrimSpace(spec.SourceContentType)
		if state.ContentType == "" {
			state.ContentType = defaultContentType
		}
		return state, nil, nil
	}

	source, err := o.artifacts.GetArtifact(ctx, spec.SourceArtifactID)
	if err != nil {
		return nil, nil, err
	}
	if source.AccountID != accountID {
		return nil, nil, auth.ErrForbidden
	}

	data, contentType, err := o.assets.Get(ctx, source.ObjectKey)
	if err != nil {
		o.obsMetrics.RecordStorageFailure(ctx, o.assets.Backend())
		return nil, nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	state.Image = data
	state.ContentType = contentType
	if state.ContentType == "" {
		state.ContentType = source.ContentType
	}
	parentID := source.ID
	return state, &parentID, nil
}
