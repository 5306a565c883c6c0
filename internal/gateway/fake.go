package gateway

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"
)

const (
	fakeResearchBase = 40
	fakeImageBase    = 110
	fakeEditBase     = 80
	fakeChatBase     = 15
	fakeDeepBase     = 60
	fakeTitleBase    = 5
)

// Fake is a deterministic offline gateway. Costs scale with input length
// and images are solid PNG tiles colored by a hash of the prompt.
type Fake struct{}

func NewFake() *Fake { return &Fake{} }

func (Fake) Research(ctx context.Context, req ResearchRequest) (*TextResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(req.Topic)
	return &TextResult{
		Text: fmt.Sprintf("Key visual facts about %s: composition, palette, period details.", topic),
		Cost: fakeResearchBase + tokens(topic),
	}, nil
}

func (Fake) SynthesizeImage(ctx context.Context, req SynthesizeRequest) (*ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := tile(req.Prompt)
	if err != nil {
		return nil, err
	}
	return &ImageResult{
		Image:         img,
		ContentType:   "image/png",
		RevisedPrompt: req.Prompt,
		Cost:          fakeImageBase + tokens(req.Prompt),
	}, nil
}

func (Fake) EditImage(ctx context.Context, req EditRequest) (*ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: source image required", ErrBadResponse)
	}
	img, err := tile(req.Instruction + string(req.Image[:min(len(req.Image), 64)]))
	if err != nil {
		return nil, err
	}
	return &ImageResult{
		Image:       img,
		ContentType: "image/png",
		Cost:        fakeEditBase + tokens(req.Instruction),
	}, nil
}

func (Fake) ChatTurn(ctx context.Context, req ChatRequest) (*TextResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := int64(fakeChatBase)
	if req.Mode == "deep" {
		base = fakeDeepBase
	}
	var history int64
	for _, m := range req.History {
		history += tokens(m.Content)
	}
	return &TextResult{
		Text: "You said: " + strings.TrimSpace(req.Message),
		Cost: base + tokens(req.Message) + history/4,
	}, nil
}

func (Fake) SummarizeTitle(ctx context.Context, req TitleRequest) (*TextResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := strings.Fields(req.Text)
	if len(words) > 6 {
		words = words[:6]
	}
	title := strings.Join(words, " ")
	if req.MaxLength > 0 && len(title) > req.MaxLength {
		title = title[:req.MaxLength]
	}
	return &TextResult{Text: title, Cost: fakeTitleBase}, nil
}

func tokens(s string) int64 {
	return int64(len(s)+3) / 4
}

func tile(seed string) ([]byte, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
