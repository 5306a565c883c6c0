package providers

import (
	"github.com/smallbiznis/atelier/internal/providers/pdf"
	"github.com/smallbiznis/atelier/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	pdf.Module,
	slack.Module,
)
