package kyc

import "go.uber.org/fx"

var Module = fx.Module("kyc.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(RegisterRoutes),
)
