package payment

import "go.uber.org/fx"

var Module = fx.Module("payment.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(RegisterRoutes),
)

// ReconcilerModule polls the vendor for payments whose webhook never arrived.
var ReconcilerModule = fx.Module("payment.reconciler",
	fx.Provide(NewReconciler),
	fx.Invoke(StartReconciler),
)
