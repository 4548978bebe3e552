package engagement

import (
	"fundwave/services/payment"

	"go.uber.org/fx"
)

var Module = fx.Module("engagement.service",
	fx.Provide(
		NewService,
		NewHandler,
		func(p *payment.Service) DonorSource { return p },
	),
	fx.Invoke(RegisterRoutes),
)
