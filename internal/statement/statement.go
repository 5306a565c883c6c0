package statement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	"github.com/smallbiznis/atelier/internal/providers/pdf"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	maxStatementRecords = 500
	timeLayout          = "2006-01-02 15:04 UTC"
)

var ErrRenderFailed = errors.New("statement_render_failed")

var Module = fx.Module("statement",
	fx.Provide(NewService),
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Accounts accountdomain.Service
	Ledger   ledgerdomain.Service
	PDF      pdf.Provider
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	accounts accountdomain.Service
	ledger   ledgerdomain.Service
	pdf      pdf.Provider
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("statement.service"),
		clock:    p.Clock,
		accounts: p.Accounts,
		ledger:   p.Ledger,
		pdf:      p.PDF,
	}
}

// Render builds the PDF usage statement for an account, newest records first.
func (s *Service) Render(ctx context.Context, accountID snowflake.ID) (io.Reader, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	summary, err := s.ledger.Reconcile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	data := pdf.StatementData{
		AccountID:    account.ID.String(),
		AccountEmail: account.Email,
		DisplayName:  account.DisplayName,
		GeneratedAt:  s.clock.Now().UTC().Format(timeLayout),
		InitialGrant: strconv.FormatInt(summary.InitialGrant, 10),
		UsageTotal:   strconv.FormatInt(summary.UsageTotal, 10),
		Balance:      strconv.FormatInt(summary.Balance, 10),
	}

	token := ""
	for {
		page, err := s.ledger.ListUsage(ctx, ledgerdomain.ListUsageRequest{
			AccountID:  accountID,
			Pagination: pagination.Pagination{PageToken: token, PageSize: pagination.MaxPageSize},
		})
		if err != nil {
			return nil, err
		}
		for _, r := range page.Records {
			if len(data.Items) == maxStatementRecords {
				data.Truncated = true
				break
			}
			data.Items = append(data.Items, pdf.StatementItem{
				Date:      r.CreatedAt.UTC().Format(timeLayout),
				Feature:   r.Feature,
				Reference: r.ReferenceID,
				Delta:     strconv.FormatInt(r.Delta, 10),
			})
		}
		if data.Truncated || !page.PageInfo.HasMore {
			break
		}
		token = page.PageInfo.NextPageToken
	}

	doc, err := s.pdf.GenerateStatement(ctx, data)
	if err != nil {
		logger.WithContext(ctx, s.log).Error("statement render failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return doc, nil
}
