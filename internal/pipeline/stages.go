package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/atelier/internal/gateway"
)

const (
	StageResearch       = "research"
	StageSynthesize     = "synthesize"
	StageEdit           = "edit"
	StageChat           = "chat"
	StageSummarizeTitle = "summarize_title"

	OutputResearch = "research"
	OutputPrompt   = "prompt"
	OutputTitle    = "title"
)

// Research gathers reference notes for topic into Outputs[OutputResearch].
func Research(gw gateway.Gateway, topic string) Stage {
	return Stage{
		Name: StageResearch,
		Run: func(ctx context.Context, st *State) (int64, error) {
			res, err := gw.Research(ctx, gateway.ResearchRequest{Topic: topic})
			if err != nil {
				return 0, err
			}
			if strings.TrimSpace(res.Text) == "" {
				return res.Cost, fmt.Errorf("%w: empty research", ErrInvalidOutput)
			}
			st.Outputs[OutputResearch] = res.Text
			st.Text = res.Text
			return res.Cost, nil
		},
	}
}

// Synthesize renders an image from prompt, enriched by earlier research when present.
func Synthesize(gw gateway.Gateway, prompt, size string) Stage {
	return Stage{
		Name: StageSynthesize,
		Run: func(ctx context.Context, st *State) (int64, error) {
			full := prompt
			if notes := st.Outputs[OutputResearch]; notes != "" {
				full = prompt + "\n\nReference notes:\n" + notes
			}
			res, err := gw.SynthesizeImage(ctx, gateway.SynthesizeRequest{Prompt: full, Size: size})
			if err != nil {
				return 0, err
			}
			if err := setImage(st, res); err != nil {
				return res.Cost, err
			}
			st.Outputs[OutputPrompt] = full
			if res.RevisedPrompt != "" {
				st.Outputs[OutputPrompt] = res.RevisedPrompt
			}
			return res.Cost, nil
		},
	}
}

// Edit transforms the image already in the state, replacing it with the result.
func Edit(gw gateway.Gateway, instruction, size string) Stage {
	return Stage{
		Name: StageEdit,
		Run: func(ctx context.Context, st *State) (int64, error) {
			if len(st.Image) == 0 {
				return 0, fmt.Errorf("%w: no source image", ErrInvalidOutput)
			}
			res, err := gw.EditImage(ctx, gateway.EditRequest{
				Image:       st.Image,
				ContentType: st.ContentType,
				Instruction: instruction,
				Size:        size,
			})
			if err != nil {
				return 0, err
			}
			if err := setImage(st, res); err != nil {
				return res.Cost, err
			}
			st.Outputs[OutputPrompt] = instruction
			return res.Cost, nil
		},
	}
}

// Chat produces the assistant reply to message in st.Text.
func Chat(gw gateway.Gateway, mode string, history []gateway.ChatMessage, message string) Stage {
	return Stage{
		Name: StageChat,
		Run: func(ctx context.Context, st *State) (int64, error) {
			res, err := gw.ChatTurn(ctx, gateway.ChatRequest{Mode: mode, History: history, Message: message})
			if err != nil {
				return 0, err
			}
			if strings.TrimSpace(res.Text) == "" {
				return res.Cost, fmt.Errorf("%w: empty reply", ErrInvalidOutput)
			}
			st.Text = res.Text
			return res.Cost, nil
		},
	}
}

// SummarizeTitle derives a session title from the opening message and the reply.
func SummarizeTitle(gw gateway.Gateway, opening string, maxLength int) Stage {
	return Stage{
		Name: StageSummarizeTitle,
		Run: func(ctx context.Context, st *State) (int64, error) {
			res, err := gw.SummarizeTitle(ctx, gateway.TitleRequest{
				Text:      strings.TrimSpace(opening + "\n" + st.Text),
				MaxLength: maxLength,
			})
			if err != nil {
				return 0, err
			}
			title := strings.TrimSpace(res.Text)
			if title == "" {
				return res.Cost, fmt.Errorf("%w: empty title", ErrInvalidOutput)
			}
			if maxLength > 0 && len([]rune(title)) > maxLength {
				title = string([]rune(title)[:maxLength])
			}
			st.Outputs[OutputTitle] = title
			return res.Cost, nil
		},
	}
}

func setImage(st *State, res *gateway.ImageResult) error {
	if len(res.Image) == 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidOutput)
	}
	st.Image = res.Image
	st.ContentType = res.ContentType
	if st.ContentType == "" {
		st.ContentType = "image/png"
	}
	return nil
}
