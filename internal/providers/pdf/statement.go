package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementData is pre-formatted; the renderer does no arithmetic.
type StatementData struct {
	AccountID    string
	AccountEmail string
	DisplayName  string
	GeneratedAt  string

	InitialGrant string
	UsageTotal   string
	Balance      string

	Items     []StatementItem
	Truncated bool
}

type StatementItem struct {
	Date      string
	Feature   string
	Reference string
	Delta     string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Usage statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.GeneratedAt, props.Text{
			Size:  9,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New(data.DisplayName, props.Text{Style: fontstyle.Bold}),
			text.New(data.AccountEmail, props.Text{Top: 5}),
			text.New("Account "+data.AccountID, props.Text{Top: 10, Size: 8}),
		),
		col.New(6).Add(
			text.New("Initial grant: "+data.InitialGrant, props.Text{Align: align.Right}),
			text.New("Recorded usage: "+data.UsageTotal, props.Text{Top: 5, Align: align.Right}),
			text.New("Balance: "+data.Balance, props.Text{Top: 10, Style: fontstyle.Bold, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Feature", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Reference", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Tokens", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(3, item.Date, props.Text{Size: 8}),
			text.NewCol(4, item.Feature, props.Text{Size: 8}),
			text.NewCol(3, item.Reference, props.Text{Size: 8}),
			text.NewCol(2, item.Delta, props.Text{Size: 8, Align: align.Right}),
		)
	}

	if len(data.Items) == 0 {
		m.AddRow(10, text.NewCol(12, "No usage recorded.", props.Text{Size: 9, Top: 2}))
	}
	if data.Truncated {
		m.AddRow(10, text.NewCol(12, "Older records omitted. Use the usage API for the full history.", props.Text{Size: 8, Top: 2}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
